package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// fileEntry is the on-disk envelope of one cache key.
type fileEntry struct {
	Key       string          `json:"key"`
	ExpiresAt int64           `json:"expires_at"` // epoch ms, 0 never expires
	Data      json.RawMessage `json:"data,omitempty"`
	Raw       []byte          `json:"raw,omitempty"`
}

func (e *fileEntry) expired(now time.Time) bool {
	return e.ExpiresAt > 0 && now.UnixMilli() > e.ExpiresAt
}

func (e *fileEntry) value() []byte {
	if e.Data != nil {
		return []byte(e.Data)
	}
	return e.Raw
}

// FileCache stores one JSON file per key in a directory. It survives
// restarts, which keeps the catalog snapshot across deploys.
type FileCache struct {
	dir string
}

var _ Cache = (*FileCache)(nil)

// NewFileCache creates the directory if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	log.Printf("[FileCache] Using %s", dir)
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

func (c *FileCache) read(path string) (*fileEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e fileEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Get retrieves a value by key.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, error) {
	e, err := c.read(c.path(key))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("[FileCache] Unreadable entry %s: %v", key, err)
		}
		return nil, ErrCacheMiss
	}
	if e.Key != key || e.expired(time.Now()) {
		return nil, ErrCacheMiss
	}
	return e.value(), nil
}

// Set stores a value with the given TTL.
func (c *FileCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := fileEntry{Key: key}
	if deadline := expiry(ttl); !deadline.IsZero() {
		e.ExpiresAt = deadline.UnixMilli()
	}
	if json.Valid(value) {
		e.Data = json.RawMessage(value)
	} else {
		e.Raw = value
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}

	// Write to a temp file first so readers never see a partial entry.
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(key))
}

// Delete removes a value by key.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := os.Remove(c.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists checks if a live key exists.
func (c *FileCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	return err == nil, nil
}

// GetOrSet retrieves a value or computes and stores it if missing.
func (c *FileCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	if value, err := c.Get(ctx, key); err == nil {
		return value, nil
	}

	value, err := fn()
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		return nil, err
	}
	return value, nil
}

// Clear removes every entry file.
func (c *FileCache) Clear(ctx context.Context) error {
	files, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Keys lists live keys with the given prefix.
func (c *FileCache) Keys(ctx context.Context, prefix string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	keys := make([]string, 0, len(files))
	for _, f := range files {
		e, err := c.read(f)
		if err != nil || e.expired(now) {
			continue
		}
		if strings.HasPrefix(e.Key, prefix) {
			keys = append(keys, e.Key)
		}
	}
	return keys, nil
}

// PurgeExpired deletes entry files whose deadline has passed.
func (c *FileCache) PurgeExpired(ctx context.Context) (int, error) {
	files, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0, err
	}

	now := time.Now()
	removed := 0
	for _, f := range files {
		e, err := c.read(f)
		if err != nil || !e.expired(now) {
			continue
		}
		if err := os.Remove(f); err == nil {
			removed++
		}
	}
	return removed, nil
}
