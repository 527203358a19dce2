package sources

import (
	"math"
	"strings"
	"time"

	"github.com/pmxixon/airemap/internal/asturaire"
)

// Metric names the normalized field a raw channel maps onto.
type Metric string

const (
	metricPM10        Metric = "pm10"
	metricPM25        Metric = "pm25"
	metricNO2         Metric = "no2"
	metricNO          Metric = "no"
	metricTemperature Metric = "temperature"
	metricHumidity    Metric = "humidity"
	metricPressure    Metric = "pressure"
)

// channelMetrics maps the official network's numeric channel codes to
// metrics. NO has no stable channel code and is matched by name only.
var channelMetrics = map[int]Metric{
	10: metricPM10,
	9:  metricPM25,
	8:  metricNO2,
	83: metricTemperature,
	86: metricHumidity,
	87: metricPressure,
}

// nameMetrics maps pollutant-name tags to metrics, the fallback axis of
// the normalization table.
var nameMetrics = map[string]Metric{
	"NO2": metricNO2,
	"NO":  metricNO,
}

// Reduced is the outcome of collapsing a flat channel-tagged reading
// list into one normalized set of values for a station.
type Reduced struct {
	PM10        *float64
	PM25        *float64
	NO2         *float64
	NO          *float64
	Temperature *float64
	Humidity    *float64
	Pressure    *float64

	// Timestamp is the newest contributing reading (epoch millis).
	Timestamp int64
	// DisplayTimestamp is the resolved display period expressed on the
	// wall clock, when a display date was known.
	DisplayTimestamp int64
}

const hourMillis = int64(time.Hour / time.Millisecond)

type tagged struct {
	stamp int64
	item  asturaire.Reading
	found bool
}

// ReduceReadings collapses raw hourly readings. For every channel (or
// name tag) the reading whose date and period exactly match the
// station's resolved display slot wins; otherwise the newest reading
// for that channel is used regardless of period. Pure and idempotent.
func ReduceReadings(items []asturaire.Reading, displayDate string, targetPeriod int, loc *time.Location) Reduced {
	latest := make(map[int]tagged)
	latestByName := make(map[string]tagged)
	targetByChannel := make(map[int]asturaire.Reading)
	targetByName := make(map[string]asturaire.Reading)
	displayPeriod := 0

	for _, item := range items {
		if !item.Cana.Valid {
			continue
		}
		code := int(item.Cana.Value)
		stamp := readingTime(item, loc)
		dateKey := ""
		if stamp != 0 {
			dateKey = time.UnixMilli(stamp).In(loc).Format("2006-01-02")
		} else if base, ok := asturaire.ParseLocalDate(item.FechaF.String(), loc); ok {
			dateKey = base.Format("2006-01-02")
		}

		if prev, ok := latest[code]; !ok || stamp > prev.stamp {
			latest[code] = tagged{stamp: stamp, item: item, found: true}
		}
		name := strings.ToUpper(strings.TrimSpace(item.Nombre.String()))
		if name != "" {
			if prev, ok := latestByName[name]; !ok || stamp > prev.stamp {
				latestByName[name] = tagged{stamp: stamp, item: item, found: true}
			}
		}

		period := 0
		if item.Periodo.Valid {
			period = int(item.Periodo.Value)
		}
		if displayDate != "" && targetPeriod != 0 && dateKey == displayDate && period == targetPeriod {
			targetByChannel[code] = item
			if name != "" {
				targetByName[name] = item
			}
		}
		if _, display := channelMetrics[code]; display && displayDate != "" && dateKey == displayDate && item.Periodo.Valid {
			if period > displayPeriod {
				displayPeriod = period
			}
		}
	}

	value := func(code int) *float64 {
		item, ok := targetByChannel[code]
		if !ok {
			entry, exists := latest[code]
			if !exists {
				return nil
			}
			item = entry.item
		}
		if !item.Val.Valid {
			return nil
		}
		v := item.Val.Value
		return &v
	}
	valueByName := func(name string) *float64 {
		item, ok := targetByName[name]
		if !ok {
			entry, exists := latestByName[name]
			if !exists {
				return nil
			}
			item = entry.item
		}
		if !item.Val.Valid {
			return nil
		}
		v := item.Val.Value
		return &v
	}

	values := make(map[Metric]*float64)
	for code, metric := range channelMetrics {
		if v := value(code); v != nil {
			values[metric] = v
		}
	}
	for name, metric := range nameMetrics {
		if values[metric] == nil {
			values[metric] = valueByName(name)
		}
	}

	var newest int64
	for _, entry := range latest {
		if entry.stamp > newest {
			newest = entry.stamp
		}
	}

	reduced := Reduced{
		PM10:        values[metricPM10],
		PM25:        values[metricPM25],
		NO2:         values[metricNO2],
		NO:          values[metricNO],
		Temperature: values[metricTemperature],
		Humidity:    values[metricHumidity],
		Pressure:    values[metricPressure],
		Timestamp:   newest,
	}

	period := targetPeriod
	if period == 0 {
		period = displayPeriod
	}
	if displayDate != "" && period != 0 {
		if base, err := time.ParseInLocation("2006-01-02", displayDate, loc); err == nil {
			adjusted := float64(period) - utcOffsetHours(base)
			reduced.DisplayTimestamp = base.UnixMilli() + int64(adjusted*float64(hourMillis))
		}
	}

	return reduced
}

// readingTime resolves a raw reading onto the clock: the period's hour
// offset applied to its base date (fechaF string, else numeric fecha).
func readingTime(item asturaire.Reading, loc *time.Location) int64 {
	offset := int64(0)
	if item.Periodo.Valid {
		p := int64(item.Periodo.Value) - 1
		if p < 0 {
			p = 0
		}
		offset = p * hourMillis
	}
	if base, ok := asturaire.ParseLocalDate(item.FechaF.String(), loc); ok {
		if item.Periodo.Valid {
			return base.UnixMilli() + offset
		}
		return base.UnixMilli()
	}
	if item.Fecha.Valid {
		base := int64(item.Fecha.Value)
		if item.Periodo.Valid {
			return base + offset
		}
		return base
	}
	return 0
}

// utcOffsetHours mirrors JS Date.getTimezoneOffset()/60: positive west
// of UTC, negative east.
func utcOffsetHours(t time.Time) float64 {
	_, off := t.Zone()
	return -float64(off) / 3600
}

// calcTargetPeriod maps a station display time onto the 1-24 hourly
// reporting period, adjusting by the local UTC offset. The constant
// offset assumption can misalign by one hour right around a DST
// transition; the upstream documents the formula this way.
func calcTargetPeriod(display time.Time) int {
	if display.IsZero() {
		return 0
	}
	raw := float64(display.Hour()) + utcOffsetHours(display)
	period := int(math.Round(raw))
	if period < 1 {
		return 1
	}
	if period > 24 {
		return 24
	}
	return period
}
