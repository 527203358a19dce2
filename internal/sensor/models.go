package sensor

import (
	"context"
	"time"
)

// SourceKind identifies which network a reading came from. It determines
// which optional fields are populated and whether history is kept.
type SourceKind string

const (
	SourceCommunity SourceKind = "community"
	SourceOfficial  SourceKind = "official"
)

// NormalizedSensor is the unified record both networks reduce to. A value
// is immutable once built for a refresh cycle; the next cycle produces a
// fresh value under the same ID rather than mutating this one.
type NormalizedSensor struct {
	ID     string     `json:"id"`
	Source SourceKind `json:"source"`

	// Name and Address are only known for official stations; NodeID is
	// the community network's logical sensor identifier.
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	NodeID  string `json:"nodeId,omitempty"`

	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`

	// Metric fields are nil when the source did not report them.
	// Absent is not zero.
	PM10        *float64 `json:"pm10"`
	PM25        *float64 `json:"pm25"`
	NO2         *float64 `json:"no2,omitempty"`
	NO          *float64 `json:"no,omitempty"`
	Humidity    *float64 `json:"humidity"`
	Temperature *float64 `json:"temperature"`
	Pressure    *float64 `json:"pressure"`

	// Timestamp is the most recent contributing raw reading, in epoch
	// millis of the source network's clock.
	Timestamp int64 `json:"timestamp"`

	// DisplayTimestamp (official only) is the station's own display-clock
	// period: what the UI shows as "as of". It can trail Timestamp by
	// hours when validation lags.
	DisplayTimestamp int64 `json:"displayTimestamp,omitempty"`
}

// SampleTime picks the timestamp a history sample should carry: the
// display clock for official stations, the reading clock otherwise, and
// the given fallback when neither is known.
func (s NormalizedSensor) SampleTime(fallback time.Time) int64 {
	if s.Source == SourceOfficial && s.DisplayTimestamp != 0 {
		return s.DisplayTimestamp
	}
	if s.Timestamp != 0 {
		return s.Timestamp
	}
	return fallback.UnixMilli()
}

// HistorySample is one point in a per-sensor rolling series.
type HistorySample struct {
	T           int64    `json:"t"`
	PM10        *float64 `json:"pm10"`
	PM25        *float64 `json:"pm25"`
	NO2         *float64 `json:"no2"`
	NO          *float64 `json:"no"`
	Humidity    *float64 `json:"humidity"`
	Temperature *float64 `json:"temperature"`
	Pressure    *float64 `json:"pressure"`
}

// SampleOf snapshots a sensor's current metrics as a history sample.
func SampleOf(s NormalizedSensor, fallback time.Time) HistorySample {
	return HistorySample{
		T:           s.SampleTime(fallback),
		PM10:        s.PM10,
		PM25:        s.PM25,
		NO2:         s.NO2,
		NO:          s.NO,
		Humidity:    s.Humidity,
		Temperature: s.Temperature,
		Pressure:    s.Pressure,
	}
}

// Source abstracts one sensor network (community feed, official network).
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]NormalizedSensor, error)
}

// History is the contract the refresh cycle needs from the history store.
type History interface {
	AppendAll(sensors []NormalizedSensor)
}
