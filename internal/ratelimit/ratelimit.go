// Package ratelimit limits requests per client key. Stores are injected into
// the HTTP middleware; the package keeps no global state.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Config holds the per-key limit: MaxRequests within Window.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultConfig returns 20 requests per minute.
func DefaultConfig() Config {
	return Config{MaxRequests: 20, Window: time.Minute}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRequests <= 0 {
		c.MaxRequests = d.MaxRequests
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	return c
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Store decides whether a request for key is allowed.
type Store interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalStore is an in-process token bucket per key.
type LocalStore struct {
	mu       sync.Mutex
	limiters map[string]*localEntry
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// NewLocalStore creates a store that refills MaxRequests tokens per Window
// and evicts keys idle for longer than two windows.
func NewLocalStore(cfg Config) *LocalStore {
	cfg = cfg.withDefaults()
	s := &LocalStore{
		limiters: make(map[string]*localEntry),
		limit:    rate.Limit(float64(cfg.MaxRequests) / cfg.Window.Seconds()),
		burst:    cfg.MaxRequests,
		idleTTL:  2 * cfg.Window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go s.cleanup(cfg.Window)
	return s
}

// Allow consumes one token for key.
func (s *LocalStore) Allow(ctx context.Context, key string) (Result, error) {
	now := s.now()

	s.mu.Lock()
	e, ok := s.limiters[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = e
	}
	e.lastSeen = now
	s.mu.Unlock()

	res := Result{Limit: s.burst}
	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = delay
		return res, nil
	}

	res.Allowed = true
	res.Remaining = int(e.limiter.TokensAt(now))
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	return res, nil
}

// Len returns the number of tracked keys.
func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// Stop shuts down the cleanup goroutine.
func (s *LocalStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *LocalStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictIdle()
		}
	}
}

func (s *LocalStore) evictIdle() {
	cutoff := s.now().Add(-s.idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(s.limiters, k)
		}
	}
}

// RedisStore is a fixed-window counter shared by all API instances.
type RedisStore struct {
	client *redis.Client
	prefix string
	cfg    Config
}

// NewRedisStore creates a store over an existing go-redis client.
func NewRedisStore(client *redis.Client, prefix string, cfg Config) *RedisStore {
	return &RedisStore{client: client, prefix: prefix + "ratelimit:", cfg: cfg.withDefaults()}
}

// Allow increments the key's counter for the current window.
func (s *RedisStore) Allow(ctx context.Context, key string) (Result, error) {
	k := s.prefix + key

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, s.cfg.Window)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit incr: %w", err)
	}

	count := int(incr.Val())
	res := Result{Limit: s.cfg.MaxRequests, Remaining: s.cfg.MaxRequests - count}
	if count <= s.cfg.MaxRequests {
		res.Allowed = true
		return res, nil
	}

	res.Remaining = 0
	ttl, err := s.client.PTTL(ctx, k).Result()
	if err != nil || ttl <= 0 {
		ttl = s.cfg.Window
	}
	res.RetryAfter = ttl
	return res, nil
}

// Ensure implementations satisfy interface.
var (
	_ Store = (*LocalStore)(nil)
	_ Store = (*RedisStore)(nil)
)
