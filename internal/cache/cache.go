// Package cache provides the small on-disk key-value store backing the
// usage and version caches. Every write replaces the whole file, so a
// concurrent invocation racing on the same key reads either the old or the
// new snapshot, never a torn one.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry is one cached record: an epoch-millisecond timestamp, an opaque
// payload, and a flag marking entries written after a failed fetch.
type Entry struct {
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     bool            `json:"error,omitempty"`
}

// Time returns the entry's timestamp as a time.Time.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Age returns how old the entry is relative to now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Time())
}

// Store is a key-value cache with per-entry timestamps. Implementations
// must treat missing or unreadable entries as absent, never as errors.
type Store interface {
	Get(key string) (Entry, bool)
	Set(key string, e Entry) error
}

// Dir returns the cache directory for the tool, honoring XDG_CACHE_HOME.
func Dir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "claude-statusline")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", "claude-statusline")
}

// fileStore keeps one JSON document per key under a directory.
type fileStore struct {
	dir string
}

// NewFileStore returns a Store persisting entries as <dir>/<key>.json.
func NewFileStore(dir string) Store {
	return &fileStore{dir: dir}
}

func (s *fileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *fileStore) Get(key string) (Entry, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// Malformed cache files are treated as absent.
		return Entry{}, false
	}
	if e.Timestamp == 0 {
		return Entry{}, false
	}
	return e, true
}

func (s *fileStore) Set(key string, e Entry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return WriteFileAtomic(s.path(key), data, 0o644)
}

// WriteFileAtomic replaces path with data via a same-directory temp file and
// rename, so readers see either the previous or the new content in full.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// memStore is an in-memory Store for tests.
type memStore struct {
	entries map[string]Entry
}

// NewMemStore returns an in-memory Store.
func NewMemStore() Store {
	return &memStore{entries: make(map[string]Entry)}
}

func (s *memStore) Get(key string) (Entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

func (s *memStore) Set(key string, e Entry) error {
	s.entries[key] = e
	return nil
}
