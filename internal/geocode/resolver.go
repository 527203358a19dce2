package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"

	"github.com/pmxixon/airemap/internal/httpx"
	"github.com/pmxixon/airemap/internal/store"
)

// Resolver turns coordinates into short human-readable addresses.
// Results are memoized permanently per sensor id: a sensor does not
// move, so one successful lookup is enough. Lookups run in the
// background and failures are silent, the id is simply retried on the
// next request for it.
type Resolver struct {
	base    string
	httpCfg httpx.Config
	circuit *gobreaker.CircuitBreaker
	cache   *store.AddressCache

	// googleKey switches reverse lookups to the Google geocoding API
	// when set.
	googleKey string

	// OnResolved is called with each freshly resolved id/address pair,
	// after the cache is updated. May be nil.
	OnResolved func(id, address string)

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewResolver(base string, client *http.Client, cache *store.AddressCache, googleKey string) *Resolver {
	if googleKey != "" {
		geocoder.ApiKey = googleKey
	}
	return &Resolver{
		base: strings.TrimRight(base, "/"),
		httpCfg: httpx.Config{
			Client:  client,
			Backoff: httpx.DefaultBackoff(),
		},
		circuit:   httpx.NewBreaker("geocode"),
		cache:     cache,
		googleKey: googleKey,
		inFlight:  make(map[string]struct{}),
	}
}

// Cached returns the memoized address for id, empty when unknown.
func (r *Resolver) Cached(id string) string {
	addr, _ := r.cache.Get(id)
	return addr
}

// ResolveAsync resolves the address for id in the background unless it
// is already cached or a lookup for it is running.
func (r *Resolver) ResolveAsync(id string, lat, lon float64) {
	if _, ok := r.cache.Get(id); ok {
		return
	}
	r.mu.Lock()
	if _, running := r.inFlight[id]; running {
		r.mu.Unlock()
		return
	}
	r.inFlight[id] = struct{}{}
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.inFlight, id)
			r.mu.Unlock()
		}()

		addr, err := r.Resolve(context.Background(), lat, lon)
		if err != nil || addr == "" {
			return
		}
		r.cache.Put(id, addr)
		if r.OnResolved != nil {
			r.OnResolved(id, addr)
		}
	}()
}

// Resolve performs one reverse lookup without touching the cache. With
// an API key configured the Google backend is tried first, Nominatim
// covers misses and failures.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) (string, error) {
	if r.googleKey != "" {
		if addr, err := r.resolveGoogle(lat, lon); err == nil && addr != "" {
			return addr, nil
		}
	}
	return r.resolveNominatim(ctx, lat, lon)
}

func (r *Resolver) resolveGoogle(lat, lon float64) (string, error) {
	addresses, err := geocoder.GeocodingReverse(geocoder.Location{
		Latitude:  lat,
		Longitude: lon,
	})
	if err != nil {
		return "", fmt.Errorf("geocode: google reverse: %w", err)
	}
	if len(addresses) == 0 {
		return "", nil
	}
	return addresses[0].FormatAddress(), nil
}

type nominatimResponse struct {
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
}

type nominatimAddress struct {
	Road        string `json:"road"`
	Pedestrian  string `json:"pedestrian"`
	Cycleway    string `json:"cycleway"`
	Path        string `json:"path"`
	HouseNumber string `json:"house_number"`
	Suburb      string `json:"suburb"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
}

func (r *Resolver) resolveNominatim(ctx context.Context, lat, lon float64) (string, error) {
	resp, err := httpx.Do(ctx, r.httpCfg, r.circuit, func() (*http.Request, error) {
		q := url.Values{}
		q.Set("format", "jsonv2")
		q.Set("lat", fmt.Sprintf("%v", lat))
		q.Set("lon", fmt.Sprintf("%v", lon))
		q.Set("accept-language", "es")
		return http.NewRequest(http.MethodGet, r.base+"/reverse?"+q.Encode(), nil)
	})
	if err != nil {
		return "", fmt.Errorf("geocode: nominatim reverse: %w", err)
	}
	defer resp.Body.Close()

	var payload nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("geocode: decode nominatim response: %w", err)
	}
	return formatAddress(payload), nil
}

// formatAddress builds a short "street number, suburb, locality" label
// from the structured address, falling back to the first parts of the
// free-form display name.
func formatAddress(p nominatimResponse) string {
	street := firstNonEmpty(p.Address.Road, p.Address.Pedestrian, p.Address.Cycleway, p.Address.Path)
	if street != "" && p.Address.HouseNumber != "" {
		street += " " + p.Address.HouseNumber
	}
	locality := firstNonEmpty(p.Address.City, p.Address.Town, p.Address.Village)

	var parts []string
	for _, part := range []string{street, p.Address.Suburb, locality} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}

	if p.DisplayName == "" {
		return ""
	}
	pieces := strings.Split(p.DisplayName, ",")
	if len(pieces) > 3 {
		pieces = pieces[:3]
	}
	for i := range pieces {
		pieces[i] = strings.TrimSpace(pieces[i])
	}
	return strings.Join(pieces, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
