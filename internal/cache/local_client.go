package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

const (
	defaultNumCounters = 1e5
	defaultMaxCost     = 1 << 24 // 16MB of cached bytes
	defaultBufferItems = 64
)

// LocalClient is an in-process Client backed by ristretto. It is the
// development default and the fallback when Redis is not configured.
type LocalClient struct {
	cache  *ristretto.Cache
	mu     sync.RWMutex
	closed bool
}

// LocalConfig configures a LocalClient. Zero fields take defaults.
type LocalConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
}

// NewLocalClient creates an in-process cache.
func NewLocalClient(cfg LocalConfig) (*LocalClient, error) {
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = defaultNumCounters
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = defaultMaxCost
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = defaultBufferItems
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("create local cache: %w", err)
	}

	return &LocalClient{cache: c}, nil
}

// Get retrieves a value from cache.
func (c *LocalClient) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrCacheMiss
	}

	v, ok := c.cache.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Set stores a value with TTL. Writes are buffered by ristretto; Set waits
// for the write so a following Get observes it.
func (c *LocalClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return fmt.Errorf("local cache closed")
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	cost := int64(len(key) + len(stored))
	if !c.cache.SetWithTTL(key, stored, cost, ttl) {
		return fmt.Errorf("local cache rejected key %q", key)
	}
	c.cache.Wait()
	return nil
}

// Delete removes a value from cache.
func (c *LocalClient) Delete(ctx context.Context, key string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.closed {
		c.cache.Del(key)
	}
	return nil
}

// Close releases the cache.
func (c *LocalClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.cache.Close()
	return nil
}

// Ensure implementations satisfy interface.
var (
	_ Client = (*RedisClient)(nil)
	_ Client = (*LocalClient)(nil)
)
