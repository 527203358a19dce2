package store

import (
	"encoding/json"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pmxixon/airemap/internal/sensor"
)

// Series holds the ordered rolling samples for one sensor.
type Series struct {
	Data []sensor.HistorySample `json:"data"`
}

// HistoryStore keeps a bounded rolling time series per official sensor,
// persisted as a single JSON blob. Every write rewrites the whole file;
// the store is local and retention-bounded, so that stays cheap.
// Community sensors are never persisted (their network keeps no history
// to reconcile against).
type HistoryStore struct {
	mu sync.Mutex

	path      string
	retention time.Duration
	coalesce  time.Duration
	series    map[string]*Series

	now func() time.Time
}

// NewHistoryStore loads the blob at path; a missing or corrupt file is
// treated as an empty store.
func NewHistoryStore(path string, retention, coalesce time.Duration) *HistoryStore {
	h := &HistoryStore{
		path:      path,
		retention: retention,
		coalesce:  coalesce,
		series:    make(map[string]*Series),
		now:       time.Now,
	}
	h.load()
	return h
}

func (h *HistoryStore) load() {
	raw, err := os.ReadFile(h.path)
	if err != nil {
		return
	}
	var series map[string]*Series
	if err := json.Unmarshal(raw, &series); err != nil || series == nil {
		log.Printf("history: ignoring corrupt store at %s", h.path)
		return
	}
	for id, s := range series {
		if s != nil {
			h.series[id] = s
		}
	}
}

// Append records one sample for the sensor, coalescing with the previous
// sample when they fall within the coalescing interval, then prunes the
// retention window. Community sensors are skipped.
func (h *HistoryStore) Append(s sensor.NormalizedSensor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.append(s) {
		h.persist()
	}
}

// AppendAll records samples for a whole refresh cycle in one write.
func (h *HistoryStore) AppendAll(sensors []sensor.NormalizedSensor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	changed := false
	for _, s := range sensors {
		if h.append(s) {
			changed = true
		}
	}
	if changed {
		h.persist()
	}
}

func (h *HistoryStore) append(s sensor.NormalizedSensor) bool {
	if s.Source == sensor.SourceCommunity {
		return false
	}
	now := h.now()
	sample := sensor.SampleOf(s, now)

	series, ok := h.series[s.ID]
	if !ok {
		series = &Series{}
		h.series[s.ID] = series
	}

	if n := len(series.Data); n == 0 || absGap(sample.T, series.Data[n-1].T) >= h.coalesce.Milliseconds() {
		series.Data = append(series.Data, sample)
	} else {
		series.Data[n-1] = sample
	}
	series.Data = h.pruned(series.Data, now)
	return true
}

func absGap(a, b int64) int64 {
	if a < b {
		return b - a
	}
	return a - b
}

func (h *HistoryStore) pruned(data []sensor.HistorySample, now time.Time) []sensor.HistorySample {
	cutoff := now.UnixMilli() - h.retention.Milliseconds()
	kept := data[:0]
	for _, entry := range data {
		if entry.T >= cutoff {
			kept = append(kept, entry)
		}
	}
	return kept
}

// MergeBaselineFile unions a shipped baseline dataset into the store,
// once at startup. Samples are deduplicated by exact timestamp with the
// locally accumulated sample winning on collision, sorted ascending, and
// retention-filtered. A missing or corrupt baseline is a no-op.
func (h *HistoryStore) MergeBaselineFile(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var baseline map[string]*Series
	if err := json.Unmarshal(raw, &baseline); err != nil || baseline == nil {
		log.Printf("history: ignoring corrupt baseline at %s", path)
		return
	}
	h.MergeBaseline(baseline)
}

// MergeBaseline applies the baseline-union rules to already decoded data.
func (h *HistoryStore) MergeBaseline(baseline map[string]*Series) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	changed := false
	for id, incoming := range baseline {
		if incoming == nil || len(incoming.Data) == 0 {
			continue
		}
		series, ok := h.series[id]
		if !ok {
			series = &Series{}
			h.series[id] = series
		}

		byTime := make(map[int64]sensor.HistorySample, len(series.Data)+len(incoming.Data))
		for _, entry := range incoming.Data {
			if entry.T == 0 {
				continue
			}
			byTime[entry.T] = entry
		}
		// Local entries win on exact-timestamp collision.
		for _, entry := range series.Data {
			if entry.T == 0 {
				continue
			}
			byTime[entry.T] = entry
		}

		merged := make([]sensor.HistorySample, 0, len(byTime))
		for _, entry := range byTime {
			merged = append(merged, entry)
		}
		sort.Slice(merged, func(i, j int) bool { return merged[i].T < merged[j].T })
		series.Data = h.pruned(merged, now)
		changed = true
	}
	if changed {
		h.persist()
	}
}

// Read returns the ordered series for a sensor id; unknown ids yield an
// empty series, never an error.
func (h *HistoryStore) Read(id string) []sensor.HistorySample {
	h.mu.Lock()
	defer h.mu.Unlock()
	series, ok := h.series[id]
	if !ok {
		return nil
	}
	out := make([]sensor.HistorySample, len(series.Data))
	copy(out, series.Data)
	return out
}

// Export writes the current store to path as a baseline seed for fresh
// deployments.
func (h *HistoryStore) Export(path string) error {
	h.mu.Lock()
	raw, err := json.Marshal(h.series)
	h.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func (h *HistoryStore) persist() {
	if h.path == "" {
		return
	}
	raw, err := json.Marshal(h.series)
	if err != nil {
		log.Printf("history: marshal failed: %v", err)
		return
	}
	if err := os.WriteFile(h.path, raw, 0o644); err != nil {
		log.Printf("history: persist failed: %v", err)
	}
}
