package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pmxixon/airemap/internal/sensor"
)

func newTestStore(t *testing.T, now time.Time) *HistoryStore {
	t.Helper()
	h := NewHistoryStore(filepath.Join(t.TempDir(), "history.json"), 24*time.Hour, 2*time.Minute)
	h.now = func() time.Time { return now }
	return h
}

func officialSample(id string, t time.Time, pm10 float64) sensor.NormalizedSensor {
	v := pm10
	return sensor.NormalizedSensor{
		ID:        id,
		Source:    sensor.SourceOfficial,
		Timestamp: t.UnixMilli(),
		PM10:      &v,
	}
}

func TestAppendCoalescesCloseSamples(t *testing.T) {
	now := time.Now()
	h := newTestStore(t, now)

	h.Append(officialSample("official-3", now.Add(-90*time.Second), 10))
	h.Append(officialSample("official-3", now, 20))

	samples := h.Read("official-3")
	if len(samples) != 1 {
		t.Fatalf("expected 1 coalesced sample, got %d", len(samples))
	}
	if samples[0].PM10 == nil || *samples[0].PM10 != 20 {
		t.Fatalf("expected later values to win, got %+v", samples[0])
	}
}

func TestAppendKeepsSpacedSamples(t *testing.T) {
	now := time.Now()
	h := newTestStore(t, now)

	h.Append(officialSample("official-3", now.Add(-2*time.Minute), 10))
	h.Append(officialSample("official-3", now, 20))

	samples := h.Read("official-3")
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples at a 2-minute gap, got %d", len(samples))
	}
}

func TestRetentionWindow(t *testing.T) {
	now := time.Now()
	h := newTestStore(t, now)

	h.Append(officialSample("official-3", now.Add(-25*time.Hour), 10))
	h.Append(officialSample("official-3", now, 20))

	samples := h.Read("official-3")
	if len(samples) != 1 {
		t.Fatalf("expected expired sample to be pruned, got %d samples", len(samples))
	}
	if samples[0].T != now.UnixMilli() {
		t.Fatalf("wrong sample survived: %+v", samples[0])
	}
}

func TestCommunitySamplesNeverPersisted(t *testing.T) {
	now := time.Now()
	h := newTestStore(t, now)

	h.Append(sensor.NormalizedSensor{
		ID:        "community-1",
		Source:    sensor.SourceCommunity,
		Timestamp: now.UnixMilli(),
	})

	if samples := h.Read("community-1"); samples != nil {
		t.Fatalf("expected no history for community sensors, got %d samples", len(samples))
	}
}

func TestMergeBaselineLocalWins(t *testing.T) {
	now := time.Now()
	h := newTestStore(t, now)

	shared := now.Add(-time.Hour)
	h.Append(officialSample("official-3", shared, 50))

	older := 1.0
	colliding := 99.0
	h.MergeBaseline(map[string]*Series{
		"official-3": {Data: []sensor.HistorySample{
			{T: now.Add(-3 * time.Hour).UnixMilli(), PM10: &older},
			{T: shared.UnixMilli(), PM10: &colliding},
		}},
	})

	samples := h.Read("official-3")
	if len(samples) != 2 {
		t.Fatalf("expected 2 merged samples, got %d", len(samples))
	}
	if samples[0].T >= samples[1].T {
		t.Fatal("merged samples must be sorted ascending")
	}
	last := samples[1]
	if last.PM10 == nil || *last.PM10 != 50 {
		t.Fatalf("expected local sample to win the collision, got %+v", last)
	}
}

func TestMergeBaselineRespectsRetention(t *testing.T) {
	now := time.Now()
	h := newTestStore(t, now)

	stale := 1.0
	h.MergeBaseline(map[string]*Series{
		"official-3": {Data: []sensor.HistorySample{
			{T: now.Add(-48 * time.Hour).UnixMilli(), PM10: &stale},
		}},
	})

	if samples := h.Read("official-3"); len(samples) != 0 {
		t.Fatalf("expected stale baseline samples to be dropped, got %d", len(samples))
	}
}

func TestReadUnknownSensor(t *testing.T) {
	h := newTestStore(t, time.Now())
	if samples := h.Read("nope"); samples != nil {
		t.Fatalf("expected nil for unknown id, got %v", samples)
	}
}

func TestLoadIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := NewHistoryStore(path, 24*time.Hour, 2*time.Minute)
	if samples := h.Read("official-3"); samples != nil {
		t.Fatal("corrupt store must load as empty")
	}
}

func TestPersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	now := time.Now()

	h := NewHistoryStore(path, 24*time.Hour, 2*time.Minute)
	h.now = func() time.Time { return now }
	h.Append(officialSample("official-3", now, 33))

	reloaded := NewHistoryStore(path, 24*time.Hour, 2*time.Minute)
	samples := reloaded.Read("official-3")
	if len(samples) != 1 || samples[0].PM10 == nil || *samples[0].PM10 != 33 {
		t.Fatalf("expected persisted sample to survive reload, got %+v", samples)
	}
}
