package store

import (
	"encoding/json"
	"log"
	"os"
	"sync"

	"github.com/pmxixon/airemap/internal/asturaire"
)

// StationCache keeps the last successfully fetched official station list
// so hydration can degrade to it when the list endpoint is down.
type StationCache struct {
	mu   sync.Mutex
	path string
}

func NewStationCache(path string) *StationCache {
	return &StationCache{path: path}
}

// Save replaces the cached list. Failures are logged and swallowed;
// caching is an optimization, not a correctness requirement.
func (c *StationCache) Save(stations []asturaire.Station) {
	if c.path == "" || len(stations) == 0 {
		return
	}
	raw, err := json.Marshal(stations)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.WriteFile(c.path, raw, 0o644); err != nil {
		log.Printf("stations: persist failed: %v", err)
	}
}

// Load returns the cached list, or nil when absent or corrupt.
func (c *StationCache) Load() []asturaire.Station {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil
	}
	var stations []asturaire.Station
	if err := json.Unmarshal(raw, &stations); err != nil {
		return nil
	}
	return stations
}
