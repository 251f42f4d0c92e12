// Package version resolves the latest published release of the host tool
// from the npm registry, cached for an hour. Version info is cosmetic, so
// failures never overwrite an existing cache entry.
package version

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tau/claude-statusline/internal/cache"
)

const (
	cacheKey = "version"

	ttl          = time.Hour
	fetchTimeout = 3 * time.Second

	defaultEndpoint = "https://registry.npmjs.org/@anthropic-ai/claude-code/latest"
)

// Client is the cached latest-version fetcher.
type Client struct {
	Endpoint string

	store  cache.Store
	client *http.Client
	now    func() time.Time
}

// NewClient returns a Client reading through the given cache store.
func NewClient(store cache.Store) *Client {
	return &Client{
		Endpoint: defaultEndpoint,
		store:    store,
		client:   &http.Client{Timeout: fetchTimeout},
		now:      time.Now,
	}
}

// Latest returns the latest published version, or "" when unavailable.
func (c *Client) Latest() string {
	now := c.now()

	if e, ok := c.store.Get(cacheKey); ok && e.Age(now) < ttl {
		var v string
		if err := json.Unmarshal(e.Data, &v); err == nil && v != "" {
			return v
		}
	}

	v, err := c.fetch()
	if err != nil {
		// Leave any expired entry in place; absence is non-critical.
		return ""
	}

	data, err := json.Marshal(v)
	if err == nil {
		c.store.Set(cacheKey, cache.Entry{Timestamp: now.UnixMilli(), Data: data})
	}
	return v
}

func (c *Client) fetch() (string, error) {
	resp, err := c.client.Get(c.Endpoint)
	if err != nil {
		return "", fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registry error (HTTP %d)", resp.StatusCode)
	}

	var doc struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("failed to parse registry response: %w", err)
	}
	if doc.Version == "" {
		return "", fmt.Errorf("registry response carried no version")
	}
	return doc.Version, nil
}
