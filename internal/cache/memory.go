package cache

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type memoryEntry struct {
	value    []byte
	deadline time.Time // zero: no expiry
}

func (e memoryEntry) live(now time.Time) bool {
	return e.deadline.IsZero() || !now.After(e.deadline)
}

// MemoryCache keeps entries in process memory. Nothing survives a restart,
// so it suits tests and single-instance deployments that can refetch.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	fill    singleflight.Group

	sweepEvery time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a memory cache that sweeps expired entries every minute.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		entries:    make(map[string]memoryEntry),
		sweepEvery: time.Minute,
		done:       make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !e.live(time.Now()) {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...), deadline: expiry(ttl)}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	return err == nil, nil
}

// GetOrSet runs fn at most once per key for concurrent misses.
func (c *MemoryCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}

	v, err, _ := c.fill.Do(key, func() (interface{}, error) {
		// A fill that finished between the miss above and Do has stored it.
		if v, err := c.Get(ctx, key); err == nil {
			return v, nil
		}
		value, err := fn()
		if err != nil {
			return nil, err
		}
		return value, c.Set(ctx, key, value, ttl)
	})
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), v.([]byte)...), nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Keys(ctx context.Context, prefix string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	keys := make([]string, 0)
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) && e.live(now) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// PurgeExpired drops expired entries and reports how many went.
func (c *MemoryCache) PurgeExpired(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range c.entries {
		if !e.live(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Close stops the sweep goroutine. Safe to call more than once.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *MemoryCache) sweepLoop() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, _ := c.PurgeExpired(context.Background()); n > 0 {
				log.Printf("[MemoryCache] Swept %d expired entries", n)
			}
		case <-c.done:
			return
		}
	}
}
