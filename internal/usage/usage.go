// Package usage fetches the rolling rate-limit windows from the OAuth usage
// endpoint, behind a short-lived on-disk cache so repeated statusline
// invocations don't hammer a rate-limited API.
package usage

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/tau/claude-statusline/internal/auth"
	"github.com/tau/claude-statusline/internal/cache"
)

const (
	cacheKey = "usage"

	// Successful fetches are reused for a minute; failures are retried
	// sooner but still cached to avoid hot-looping against the API.
	ttlFresh   = 60 * time.Second
	ttlFailure = 15 * time.Second

	fetchTimeout = 8 * time.Second

	defaultEndpoint = "https://api.anthropic.com/api/oauth/usage"

	maxResponseBytes = 1 << 20 // 1 MiB
)

// Snapshot holds both rate-limit windows. Percentages are always in
// [0,100]; reset instants are nil when the API omitted or mangled them.
type Snapshot struct {
	FiveHourPercent float64    `json:"fiveHourPercent"`
	FiveHourReset   *time.Time `json:"fiveHourReset,omitempty"`
	SevenDayPercent float64    `json:"sevenDayPercent"`
	SevenDayReset   *time.Time `json:"sevenDayReset,omitempty"`
}

// CredentialSource resolves credentials ready for immediate use.
type CredentialSource interface {
	Load() (auth.Credentials, error)
	EnsureFresh(auth.Credentials) (auth.Credentials, error)
}

// Client is the cached usage fetcher.
type Client struct {
	Endpoint string

	store  cache.Store
	creds  CredentialSource
	client *http.Client
	now    func() time.Time
}

// NewClient returns a Client reading through the given cache store and
// credential source.
func NewClient(store cache.Store, creds CredentialSource) *Client {
	return &Client{
		Endpoint: defaultEndpoint,
		store:    store,
		creds:    creds,
		client:   &http.Client{Timeout: fetchTimeout},
		now:      time.Now,
	}
}

// Get returns the current usage snapshot, or nil when unavailable. It never
// returns an error: every failure degrades to nil and is cached briefly.
func (c *Client) Get() *Snapshot {
	now := c.now()

	if e, ok := c.store.Get(cacheKey); ok && e.Age(now) < ttl(e.Error) {
		if e.Error {
			return nil
		}
		var snap Snapshot
		if err := json.Unmarshal(e.Data, &snap); err == nil {
			return &snap
		}
		// fall through to a fresh fetch on a corrupt payload
	}

	creds, err := c.creds.Load()
	if err == nil {
		creds, err = c.creds.EnsureFresh(creds)
	}
	if err != nil {
		c.writeFailure(now)
		return nil
	}

	snap, err := c.fetch(creds.AccessToken)
	if err != nil {
		c.writeFailure(now)
		return nil
	}

	data, err := json.Marshal(snap)
	if err == nil {
		c.store.Set(cacheKey, cache.Entry{Timestamp: now.UnixMilli(), Data: data})
	}
	return snap
}

func ttl(errorFlag bool) time.Duration {
	if errorFlag {
		return ttlFailure
	}
	return ttlFresh
}

func (c *Client) writeFailure(now time.Time) {
	c.store.Set(cacheKey, cache.Entry{Timestamp: now.UnixMilli(), Error: true})
}

// wire format of the usage endpoint

type usageResponse struct {
	FiveHour *usageBucket `json:"five_hour"`
	SevenDay *usageBucket `json:"seven_day"`
}

type usageBucket struct {
	Utilization float64 `json:"utilization"` // 0.0–100.0
	ResetsAt    *string `json:"resets_at"`   // ISO 8601 or null
}

func (c *Client) fetch(token string) (*Snapshot, error) {
	req, err := http.NewRequest("GET", c.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("anthropic-beta", "oauth-2025-04-20")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("API response too large")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (HTTP %d)", resp.StatusCode)
	}

	var ur usageResponse
	if err := json.Unmarshal(body, &ur); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	snap := &Snapshot{}
	if ur.FiveHour != nil {
		snap.FiveHourPercent = clampPercent(ur.FiveHour.Utilization)
		snap.FiveHourReset = parseReset(ur.FiveHour.ResetsAt)
	}
	if ur.SevenDay != nil {
		snap.SevenDayPercent = clampPercent(ur.SevenDay.Utilization)
		snap.SevenDayReset = parseReset(ur.SevenDay.ResetsAt)
	}
	return snap, nil
}

// clampPercent forces a utilization value into [0,100]. NaN and -Inf become
// 0, +Inf becomes 100.
func clampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// parseReset parses a reset instant defensively: invalid strings become
// absent, never an error.
func parseReset(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &t
}
