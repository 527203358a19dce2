package sources

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pmxixon/airemap/internal/asturaire"
	"github.com/pmxixon/airemap/internal/common"
	"github.com/pmxixon/airemap/internal/sensor"
)

// StationLister is the station-list cache contract the hydrator degrades
// to when the list endpoint is unreachable.
type StationLister interface {
	Save(stations []asturaire.Station)
	Load() []asturaire.Station
}

// OfficialSource hydrates the regulatory network: filters the station
// list to the configured municipality, refreshes per-station detail, and
// walks an ordered candidate list of reading requests until one yields
// parseable data. Identifier scheme, validation lag, and date-range
// semantics are all independently unreliable upstream, hence the
// multi-axis retry.
type OfficialSource struct {
	name         string
	client       *asturaire.Client
	stations     StationLister
	municipality string
	loc          *time.Location
	now          func() time.Time
}

func NewOfficialSource(client *asturaire.Client, stations StationLister, municipality string, loc *time.Location) *OfficialSource {
	if loc == nil {
		loc = time.Local
	}
	return &OfficialSource{
		name:         "official",
		client:       client,
		stations:     stations,
		municipality: common.NormalizeName(municipality),
		loc:          loc,
		now:          time.Now,
	}
}

func (s *OfficialSource) Name() string { return s.name }

func (s *OfficialSource) Fetch(ctx context.Context) ([]sensor.NormalizedSensor, error) {
	stations, err := s.client.Stations(ctx)
	if err != nil {
		cached := s.stations.Load()
		if len(cached) == 0 {
			return nil, fmt.Errorf("official stations: %w", err)
		}
		log.Printf("official: station list fetch failed, using cached list: %v", err)
		stations = cached
	} else {
		s.stations.Save(stations)
	}

	return s.hydrate(ctx, stations), nil
}

// hydrate refreshes every matching station concurrently. A station that
// fails any step degrades on its own (absent readings, stale detail) and
// never aborts the others.
func (s *OfficialSource) hydrate(ctx context.Context, stations []asturaire.Station) []sensor.NormalizedSensor {
	var matched []asturaire.Station
	for _, st := range stations {
		if common.HasAny(common.NormalizeName(st.PoblacEs.String()), s.municipality) {
			matched = append(matched, st)
		}
	}

	results := make([]*sensor.NormalizedSensor, len(matched))
	var wg sync.WaitGroup
	for i, st := range matched {
		wg.Add(1)
		go func(i int, st asturaire.Station) {
			defer wg.Done()
			if rec, ok := s.hydrateStation(ctx, st); ok {
				results[i] = &rec
			}
		}(i, st)
	}
	wg.Wait()

	sensors := make([]sensor.NormalizedSensor, 0, len(results))
	for _, rec := range results {
		if rec != nil {
			sensors = append(sensors, *rec)
		}
	}
	return sensors
}

func (s *OfficialSource) hydrateStation(ctx context.Context, st asturaire.Station) (sensor.NormalizedSensor, bool) {
	info := st
	if id := firstNonEmpty(st.UUID.String(), st.Ides.String()); id != "" {
		if detail, err := s.client.StationDetail(ctx, id); err == nil && len(detail) > 0 {
			info = detail[0]
		}
	}

	displayDate, hasDisplay := asturaire.ParseLocalDate(info.TmpFEs.String(), s.loc)
	if !hasDisplay {
		displayDate = s.now().In(s.loc)
	}
	targetPeriod := calcTargetPeriod(displayDate)
	displayKey := displayDate.Format("2006-01-02")

	var reduced Reduced
	for _, q := range s.readingCandidates(info, displayDate) {
		readings, err := s.client.Readings(ctx, q)
		if err != nil || len(readings) == 0 {
			continue
		}
		reduced = ReduceReadings(readings, displayKey, targetPeriod, s.loc)
		if reduced.Timestamp != 0 {
			break
		}
	}

	lon, lonOK := asturaire.ParseDMS(info.LonEs.String())
	lat, latOK := asturaire.ParseDMS(info.LatEs.String())
	if !lonOK || !latOK || !finite(lon) || !finite(lat) {
		return sensor.NormalizedSensor{}, false
	}

	timestamp := reduced.Timestamp
	if timestamp == 0 {
		timestamp = s.now().UnixMilli()
	}
	display := int64(0)
	if hasDisplay {
		display = displayDate.UnixMilli()
	}
	if display == 0 {
		display = reduced.DisplayTimestamp
	}
	if display == 0 {
		display = reduced.Timestamp
	}

	return sensor.NormalizedSensor{
		ID:               "official-" + info.Ides.String(),
		Source:           sensor.SourceOfficial,
		Name:             info.NombreEs.String(),
		Address:          info.DirecEs.String(),
		Lon:              lon,
		Lat:              lat,
		PM10:             reduced.PM10,
		PM25:             reduced.PM25,
		NO2:              reduced.NO2,
		NO:               reduced.NO,
		Humidity:         reduced.Humidity,
		Temperature:      reduced.Temperature,
		Pressure:         reduced.Pressure,
		Timestamp:        timestamp,
		DisplayTimestamp: display,
	}, true
}

// readingCandidates builds the ordered request list: every station
// identifier variant crossed with two date ranges (yesterday..today,
// then a window anchored to the station's own last-update date) and
// validated-before-provisional. The first candidate returning parseable
// data wins.
func (s *OfficialSource) readingCandidates(info asturaire.Station, displayDate time.Time) []asturaire.ReadingQuery {
	now := s.now().In(s.loc)
	day := 24 * time.Hour
	ranges := [][2]string{
		{formatDDMMYYYY(now.Add(-day)), formatDDMMYYYY(now)},
		{formatDDMMYYYY(displayDate.Add(-day)), formatDDMMYYYY(displayDate)},
	}

	var ids []string
	for _, id := range []string{info.UUID.String(), info.Ides.String()} {
		if id != "" {
			ids = append(ids, id)
		}
	}

	var candidates []asturaire.ReadingQuery
	for _, id := range ids {
		for _, r := range ranges {
			for _, validated := range []string{"T", "F"} {
				candidates = append(candidates, asturaire.ReadingQuery{
					StationID: id,
					Validated: validated,
					From:      r[0],
					To:        r[1],
				})
			}
		}
	}
	return candidates
}

func formatDDMMYYYY(t time.Time) string {
	return t.Format("02-01-2006")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
