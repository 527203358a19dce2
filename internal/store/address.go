package store

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

// AddressCache maps sensor ids to resolved addresses. Entries are
// permanent; reverse geocoding is best-effort and a hit never expires.
type AddressCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// NewAddressCache loads the cache at path; missing or corrupt data is
// treated as empty.
func NewAddressCache(path string) *AddressCache {
	c := &AddressCache{
		path:    path,
		entries: make(map[string]string),
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var entries map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		log.Printf("addresses: ignoring corrupt cache at %s", path)
		return c
	}
	c.entries = entries
	return c
}

func (c *AddressCache) Get(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	addr, ok := c.entries[id]
	return addr, ok
}

func (c *AddressCache) Put(id, address string) {
	if address == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = address
	c.persist()
}

func (c *AddressCache) persist() {
	if c.path == "" {
		return
	}
	raw, err := json.Marshal(c.entries)
	if err != nil {
		return
	}
	if err := os.WriteFile(c.path, raw, 0o644); err != nil {
		log.Printf("addresses: persist failed: %v", err)
	}
}
