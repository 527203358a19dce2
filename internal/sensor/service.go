package sensor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Status summarizes the last refresh cycle for the status endpoint.
type Status struct {
	LastRefresh     time.Time `json:"lastRefresh"`
	CommunityCount  int       `json:"communityCount"`
	OfficialCount   int       `json:"officialCount"`
	CommunityLatest int64     `json:"communityLatest,omitempty"`
	OfficialLatest  int64     `json:"officialLatest,omitempty"`
	CommunityError  string    `json:"communityError,omitempty"`
	OfficialError   string    `json:"officialError,omitempty"`
}

// AddressResolver fills sensor addresses. Cached answers immediately
// from the memo; ResolveAsync kicks off a background lookup.
type AddressResolver interface {
	Cached(id string) string
	ResolveAsync(id string, lat, lon float64)
}

// Service orchestrates the refresh cycle: both networks fetched
// concurrently and independently, outputs fused into one result set.
type Service struct {
	sources  []Source
	history  History
	resolver AddressResolver

	mu     sync.RWMutex
	latest []NormalizedSensor
	status Status
}

func NewService(history History, sources []Source) *Service {
	return &Service{
		sources: sources,
		history: history,
	}
}

// SetResolver attaches an address resolver. Call before the first
// Refresh.
func (s *Service) SetResolver(r AddressResolver) {
	s.resolver = r
}

// SetAddress fills the address on the sensor with the given id in the
// latest result set. Used by asynchronous address resolution.
func (s *Service) SetAddress(id, address string) {
	if address == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.latest {
		if s.latest[i].ID == id {
			s.latest[i].Address = address
			return
		}
	}
}

// Refresh fetches every source concurrently. A failure in one source
// never suppresses another's results; the cycle fails only when every
// source does. The result set is swapped in whole, so readers never see
// a partially updated cycle.
func (s *Service) Refresh(ctx context.Context) error {
	if len(s.sources) == 0 {
		return fmt.Errorf("no sensor sources configured")
	}

	type outcome struct {
		name    string
		sensors []NormalizedSensor
		err     error
	}

	var wg sync.WaitGroup
	outcomes := make([]outcome, len(s.sources))
	for i, src := range s.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			sensors, err := src.Fetch(ctx)
			if err != nil {
				log.Printf("source %s fetch failed: %v", src.Name(), err)
			}
			outcomes[i] = outcome{name: src.Name(), sensors: sensors, err: err}
		}(i, src)
	}
	wg.Wait()

	status := Status{LastRefresh: time.Now()}
	var fused []NormalizedSensor
	failures := 0
	for _, out := range outcomes {
		switch out.name {
		case string(SourceCommunity):
			status.CommunityCount = len(out.sensors)
			if out.err != nil {
				status.CommunityError = out.err.Error()
			}
			for _, rec := range out.sensors {
				if rec.Timestamp > status.CommunityLatest {
					status.CommunityLatest = rec.Timestamp
				}
			}
		case string(SourceOfficial):
			status.OfficialCount = len(out.sensors)
			if out.err != nil {
				status.OfficialError = out.err.Error()
			}
			for _, rec := range out.sensors {
				stamp := rec.DisplayTimestamp
				if stamp == 0 {
					stamp = rec.Timestamp
				}
				if stamp > status.OfficialLatest {
					status.OfficialLatest = stamp
				}
			}
		}
		if out.err != nil {
			failures++
			continue
		}
		fused = append(fused, out.sensors...)
	}

	if s.resolver != nil {
		for i := range fused {
			rec := &fused[i]
			if rec.Address != "" {
				continue
			}
			if addr := s.resolver.Cached(rec.ID); addr != "" {
				rec.Address = addr
				continue
			}
			s.resolver.ResolveAsync(rec.ID, rec.Lat, rec.Lon)
		}
	}

	if failures == len(s.sources) {
		s.mu.Lock()
		s.status = status
		s.mu.Unlock()
		return fmt.Errorf("all sensor sources failed")
	}

	s.mu.Lock()
	s.latest = fused
	s.status = status
	s.mu.Unlock()

	if s.history != nil {
		s.history.AppendAll(fused)
	}
	return nil
}

// Sensors returns the latest fused result set, optionally filtered by
// source kind.
func (s *Service) Sensors(kind SourceKind) []NormalizedSensor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]NormalizedSensor, 0, len(s.latest))
	for _, rec := range s.latest {
		if kind != "" && rec.Source != kind {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Sensor looks a sensor up by id in the latest result set. Consumers
// track sensors by id across cycles.
func (s *Service) Sensor(id string) (NormalizedSensor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.latest {
		if rec.ID == id {
			return rec, true
		}
	}
	return NormalizedSensor{}, false
}

// Status returns the last cycle's summary.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
