package asturaire

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pmxixon/airemap/internal/httpx"
)

// AllowedPaths lists the upstream endpoints the client (and the proxy
// handler) will touch; anything else is rejected.
var AllowedPaths = map[string]bool{
	"/getEstacion": true,
	"/getDato":     true,
	"/getAnalogin": true,
}

// Config wires a Client. ProxyURLs are tried in order when the direct
// upstream call fails; proxies sign requests themselves, so the client
// only forwards the path and query to them.
type Config struct {
	BaseURL   string
	ProxyURLs []string
	User      string
	Pass      string
	Client    *http.Client
	Now       func() time.Time
}

// Client talks to the AsturAire REST API with the signed-header auth
// scheme, falling back to proxy endpoints when the direct call fails.
type Client struct {
	baseURL   string
	proxyURLs []string
	user      string
	pass      string
	now       func() time.Time
	httpCfg   httpx.Config
	circuit   *gobreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		proxyURLs: cfg.ProxyURLs,
		user:      cfg.User,
		pass:      cfg.Pass,
		now:       now,
		httpCfg: httpx.Config{
			Client:  cfg.Client,
			Backoff: httpx.DefaultBackoff(),
		},
		circuit: httpx.NewBreaker("asturaire"),
	}
}

// Get fetches path with params, trying the direct upstream first and
// each configured proxy afterwards. The returned bytes are the raw
// upstream JSON.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if !AllowedPaths[path] {
		return nil, fmt.Errorf("asturaire: path %q not allowed", path)
	}

	body, _, directErr := c.direct(ctx, path, params)
	if directErr == nil {
		return body, nil
	}

	lastErr := directErr
	for _, proxy := range c.proxyURLs {
		body, err := c.viaProxy(ctx, proxy, path, params)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("asturaire %s: %w", path, lastErr)
}

// Forward issues a single signed direct request. It backs the proxy
// endpoint, which must not recurse into the fallback chain.
func (c *Client) Forward(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	if !AllowedPaths[path] {
		return nil, 0, fmt.Errorf("asturaire: path %q not allowed", path)
	}
	return c.direct(ctx, path, params)
}

func (c *Client) direct(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	status := 0
	resp, err := httpx.Do(ctx, c.httpCfg, c.circuit, func() (*http.Request, error) {
		u := c.baseURL + path + "?" + c.query(params)
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		signature, timestamp := Sign(c.user, c.pass, c.now())
		req.Header.Set("signature", signature)
		req.Header.Set("timestamp", timestamp)
		return req, nil
	})
	if err != nil {
		return nil, status, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (c *Client) viaProxy(ctx context.Context, proxyURL, path string, params url.Values) ([]byte, error) {
	values := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	values.Set("path", path)
	u := proxyURL + "?" + c.withCacheBust(values)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpCfg.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("proxy %s: status %d", proxyURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) query(params url.Values) string {
	values := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	return c.withCacheBust(values)
}

// withCacheBust mirrors the upstream convention of a throwaway "_"
// parameter so intermediaries never serve stale readings.
func (c *Client) withCacheBust(values url.Values) string {
	values.Set("_", strconv.FormatInt(c.now().UnixMilli(), 10))
	return values.Encode()
}

// Stations fetches the full station list.
func (c *Client) Stations(ctx context.Context) ([]Station, error) {
	body, err := c.Get(ctx, "/getEstacion", nil)
	if err != nil {
		return nil, err
	}
	var stations []Station
	if err := json.Unmarshal(body, &stations); err != nil {
		return nil, fmt.Errorf("asturaire stations: %w", err)
	}
	return stations, nil
}

// StationDetail fetches the detail record for one station identifier.
func (c *Client) StationDetail(ctx context.Context, id string) ([]Station, error) {
	params := url.Values{}
	params.Set("ides", id)
	body, err := c.Get(ctx, "/getEstacion", params)
	if err != nil {
		return nil, err
	}
	var stations []Station
	if err := json.Unmarshal(body, &stations); err != nil {
		return nil, fmt.Errorf("asturaire station detail: %w", err)
	}
	return stations, nil
}

// ReadingQuery identifies one hourly-readings request candidate.
type ReadingQuery struct {
	StationID string
	Validated string // "T" validated, "F" provisional
	From      string // DD-MM-YYYY
	To        string // DD-MM-YYYY
}

// Readings fetches hourly channel readings for one candidate query.
func (c *Client) Readings(ctx context.Context, q ReadingQuery) ([]Reading, error) {
	params := url.Values{}
	params.Set("uuidEs", q.StationID)
	params.Set("histo", "60m")
	params.Set("validado", q.Validated)
	params.Set("fechaiF", q.From)
	params.Set("fechafF", q.To)
	body, err := c.Get(ctx, "/getDato", params)
	if err != nil {
		return nil, err
	}
	var readings []Reading
	if err := json.Unmarshal(body, &readings); err != nil {
		return nil, fmt.Errorf("asturaire readings: %w", err)
	}
	return readings, nil
}
