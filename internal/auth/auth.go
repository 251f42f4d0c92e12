// Package auth loads the Claude Code OAuth credential pair and refreshes it
// through the token endpoint when the access token has expired.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tau/claude-statusline/internal/cache"
)

// ErrUnavailable means no usable credentials exist: nothing stored, the
// document was unreadable, or a required refresh failed.
var ErrUnavailable = errors.New("credentials unavailable")

const (
	// wrapperKey nests the OAuth pair inside the credential document.
	wrapperKey = "claudeAiOauth"

	defaultTokenURL = "https://console.anthropic.com/v1/oauth/token"
	defaultClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"

	refreshTimeout = 8 * time.Second
)

// Credentials is the OAuth pair stored in the credential document.
// ExpiresAt is epoch milliseconds; zero means no known expiry.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"`
}

// Expired reports whether the access token's expiry has passed.
func (c Credentials) Expired(now time.Time) bool {
	return c.ExpiresAt != 0 && now.UnixMilli() >= c.ExpiresAt
}

// Store reads and writes the credential document and performs the
// refresh-token exchange. The zero value is not usable; call NewStore.
type Store struct {
	Path     string
	TokenURL string
	ClientID string

	client *http.Client
	now    func() time.Time
}

// NewStore returns a Store over the default credential document
// (~/.claude/.credentials.json) and the production token endpoint.
func NewStore() *Store {
	path := ""
	if home, err := os.UserHomeDir(); err == nil {
		path = filepath.Join(home, ".claude", ".credentials.json")
	}
	return &Store{
		Path:     path,
		TokenURL: defaultTokenURL,
		ClientID: defaultClientID,
		client:   &http.Client{Timeout: refreshTimeout},
		now:      time.Now,
	}
}

// Load reads credentials from the environment override or the credential
// document. The document may nest the pair under the claudeAiOauth wrapper
// key or carry it at the top level.
func (s *Store) Load() (Credentials, error) {
	// env var override first
	if tok := os.Getenv("CLAUDE_OAUTH_TOKEN"); tok != "" {
		return Credentials{AccessToken: tok}, nil
	}

	doc, err := s.readDocument()
	if err != nil {
		return Credentials{}, ErrUnavailable
	}

	var creds Credentials
	if raw, ok := doc[wrapperKey]; ok {
		if err := json.Unmarshal(raw, &creds); err != nil {
			return Credentials{}, ErrUnavailable
		}
	} else {
		data, _ := json.Marshal(doc)
		if err := json.Unmarshal(data, &creds); err != nil {
			return Credentials{}, ErrUnavailable
		}
	}
	if creds.AccessToken == "" {
		return Credentials{}, ErrUnavailable
	}
	return creds, nil
}

// EnsureFresh returns credentials valid for immediate use, refreshing them
// first when expired. A successful refresh is persisted back to the
// credential document before returning; any failure leaves the document
// untouched and reports ErrUnavailable.
func (s *Store) EnsureFresh(creds Credentials) (Credentials, error) {
	if !creds.Expired(s.now()) {
		return creds, nil
	}
	if creds.RefreshToken == "" {
		return Credentials{}, ErrUnavailable
	}

	refreshed, err := s.refresh(creds)
	if err != nil {
		return Credentials{}, ErrUnavailable
	}
	if err := s.save(refreshed); err != nil {
		return Credentials{}, ErrUnavailable
	}
	return refreshed, nil
}

// tokenResponse is the refresh-exchange response body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

func (s *Store) refresh(creds Credentials) (Credentials, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {creds.RefreshToken},
		"client_id":     {s.ClientID},
	}
	resp, err := s.client.Post(s.TokenURL, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		return Credentials{}, fmt.Errorf("token refresh failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Credentials{}, fmt.Errorf("token refresh rejected (HTTP %d)", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Credentials{}, fmt.Errorf("token response carried no access token")
	}

	merged := creds
	merged.AccessToken = tr.AccessToken
	if tr.RefreshToken != "" {
		merged.RefreshToken = tr.RefreshToken
	}
	if tr.ExpiresIn > 0 {
		merged.ExpiresAt = s.now().Add(time.Duration(tr.ExpiresIn) * time.Second).UnixMilli()
	}
	return merged, nil
}

// save writes the refreshed pair back to the credential document,
// preserving every unrelated key already stored there.
func (s *Store) save(creds Credentials) error {
	doc, err := s.readDocument()
	if err != nil {
		doc = map[string]json.RawMessage{}
	}

	credsJSON, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if raw, ok := doc[wrapperKey]; ok {
		// Merge into the wrapper so sibling keys inside it survive too.
		inner := map[string]json.RawMessage{}
		if err := json.Unmarshal(raw, &inner); err != nil {
			inner = map[string]json.RawMessage{}
		}
		mergeFields(inner, credsJSON)
		merged, err := json.Marshal(inner)
		if err != nil {
			return fmt.Errorf("failed to marshal credential wrapper: %w", err)
		}
		doc[wrapperKey] = merged
	} else if len(doc) > 0 {
		mergeFields(doc, credsJSON)
	} else {
		doc[wrapperKey] = credsJSON
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential document: %w", err)
	}
	return cache.WriteFileAtomic(s.Path, data, 0o600)
}

func (s *Store) readDocument() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse credential document: %w", err)
	}
	return doc, nil
}

func mergeFields(dst map[string]json.RawMessage, credsJSON []byte) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(credsJSON, &fields); err != nil {
		return
	}
	for k, v := range fields {
		dst[k] = v
	}
}
