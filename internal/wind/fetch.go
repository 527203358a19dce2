package wind

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/pmxixon/airemap/internal/httpx"
)

// GRIB parameter numbers used by the feed for the wind components.
const (
	paramU = 2
	paramV = 3
)

var ErrIncompleteField = errors.New("wind: feed missing a wind component")

type feedRecord struct {
	Header GridHeader `json:"header"`
	Data   []float64  `json:"data"`
}

// FeedClient fetches the wind grid feed. Concurrent callers share one
// in-flight fetch through singleflight.
type FeedClient struct {
	url     string
	httpCfg httpx.Config
	circuit *gobreaker.CircuitBreaker

	group singleflight.Group
}

func NewFeedClient(url string, client *http.Client) *FeedClient {
	return &FeedClient{
		url:     url,
		httpCfg: httpx.Config{Client: client, Backoff: httpx.DefaultBackoff()},
		circuit: httpx.NewBreaker("wind-feed"),
	}
}

// Fetch retrieves and decodes the feed into a Field. The feed is a JSON
// array of records keyed by GRIB parameter number: 2 is the eastward
// component, 3 the northward one. Both must be present.
func (c *FeedClient) Fetch(ctx context.Context) (*Field, error) {
	v, err, _ := c.group.Do("feed", func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Field), nil
}

func (c *FeedClient) fetch(ctx context.Context) (*Field, error) {
	resp, err := httpx.Do(ctx, c.httpCfg, c.circuit, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, c.url, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("wind: fetch feed: %w", err)
	}
	defer resp.Body.Close()
	return ReadFeed(resp.Body)
}

// DecodeFeed parses the raw feed payload.
func DecodeFeed(body []byte) (*Field, error) {
	var records []feedRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("wind: decode feed: %w", err)
	}

	field := &Field{}
	for _, rec := range records {
		switch rec.Header.ParameterNumber {
		case paramU:
			field.Header = rec.Header
			field.U = rec.Data
		case paramV:
			field.V = rec.Data
		}
	}
	if len(field.U) == 0 || len(field.V) == 0 {
		return nil, ErrIncompleteField
	}
	return field, nil
}

// ReadFeed decodes a feed payload from a reader.
func ReadFeed(r io.Reader) (*Field, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("wind: read feed: %w", err)
	}
	return DecodeFeed(body)
}

// Controller holds the latest geographic field and serves screen-space
// resamplings of it. Rebuilds for near-identical viewports are
// rate-limited: a request within the rebuild window gets the previous
// screen field back when one exists.
type Controller struct {
	client *FeedClient

	mu        sync.Mutex
	field     *Field
	updated   time.Time
	lastBuild time.Time
	lastView  Viewport
	lastSF    *ScreenField

	rebuildEvery time.Duration
	now          func() time.Time
}

func NewController(client *FeedClient) *Controller {
	return &Controller{
		client:       client,
		rebuildEvery: 350 * time.Millisecond,
		now:          time.Now,
	}
}

// Refresh replaces the held field with a fresh fetch.
func (c *Controller) Refresh(ctx context.Context) error {
	field, err := c.client.Fetch(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.field = field
	c.updated = c.now()
	c.lastSF = nil
	c.mu.Unlock()
	return nil
}

// Updated reports when the field was last refreshed, zero if never.
func (c *Controller) Updated() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updated
}

// ScreenFieldFor resamples the current field for the viewport. Returns
// nil when no field has been loaded yet.
func (c *Controller) ScreenFieldFor(vp Viewport) *ScreenField {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.field == nil {
		return nil
	}
	if c.lastSF != nil && c.lastView == vp && c.now().Sub(c.lastBuild) < c.rebuildEvery {
		return c.lastSF
	}
	sf := BuildScreenField(c.field, vp)
	c.lastSF = sf
	c.lastView = vp
	c.lastBuild = c.now()
	return sf
}
