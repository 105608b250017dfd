// Package querycache caches the results of remote loads by key. Entries are
// fresh for a per-call TTL; stale entries keep being served when a refetch
// fails, and concurrent loads of one key share a single loader call.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader fetches the value for a key. It receives a context that is not
// cancelled when an individual caller gives up.
type Loader func(ctx context.Context) (any, error)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Result is what Fetch hands back to callers.
type Result struct {
	Value     any
	FetchedAt time.Time
	// Stale is set when Value is a previous result served because the
	// refetch failed; Err then holds the refetch error.
	Stale bool
	Err   error
	// Cached is set when Value came from a live entry without calling the loader.
	Cached bool
}

// Status describes a key for display, mirroring what a view needs to render
// "updating…", "last updated at" and "refresh failed" states.
type Status struct {
	Key         string    `json:"key"`
	HasValue    bool      `json:"has_value"`
	FetchedAt   time.Time `json:"fetched_at,omitzero"`
	Fresh       bool      `json:"fresh"`
	Fetching    bool      `json:"fetching"`
	Invalidated bool      `json:"invalidated"`
	LastError   string    `json:"last_error,omitempty"`
}

type entry struct {
	value       any
	hasValue    bool
	fetchedAt   time.Time
	ttl         time.Duration
	invalidated bool
	lastErr     error
	lastUsed    time.Time
	fetching    int
}

func (e *entry) fresh(now time.Time) bool {
	return e.hasValue && !e.invalidated && now.Sub(e.fetchedAt) < e.ttl
}

// Cache is safe for concurrent use.
type Cache struct {
	clock  Clock
	gcTime time.Duration
	logger *slog.Logger

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the clock used for freshness and GC decisions.
func WithClock(c Clock) Option {
	return func(cc *Cache) { cc.clock = c }
}

// WithGCTime sets how long an unused entry is kept before Sweep drops it.
// Zero disables collection.
func WithGCTime(d time.Duration) Option {
	return func(cc *Cache) { cc.gcTime = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(cc *Cache) { cc.logger = l }
}

// New creates an empty Cache with a five-minute GC time.
func New(opts ...Option) *Cache {
	c := &Cache{
		clock:   realClock{},
		gcTime:  5 * time.Minute,
		logger:  slog.Default(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the value for key. A fresh entry is returned without calling
// load. Otherwise load runs once for all concurrent callers of key. If load
// fails and an earlier value exists, that value is returned as a stale Result
// with a nil error; with no earlier value the load error is returned.
//
// If ctx ends before the load settles, Fetch returns ctx.Err() and the load
// keeps running for the other waiters and for the cache.
func (c *Cache) Fetch(ctx context.Context, key string, ttl time.Duration, load Loader) (Result, error) {
	now := c.clock.Now()

	c.mu.Lock()
	e := c.entryLocked(key)
	e.lastUsed = now
	if e.fresh(now) {
		res := Result{Value: e.value, FetchedAt: e.fetchedAt, Cached: true}
		c.mu.Unlock()
		return res, nil
	}
	c.mu.Unlock()

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.load(loadCtx, key, ttl, load)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		return c.settle(key, r.Val, r.Err)
	}
}

func (c *Cache) load(ctx context.Context, key string, ttl time.Duration, load Loader) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	// A load for key may have finished between the caller's freshness check
	// and joining the flight.
	if e.fresh(c.clock.Now()) {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	e.fetching++
	c.mu.Unlock()

	start := c.clock.Now()
	v, err := load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	e = c.entryLocked(key)
	e.fetching--
	if err != nil {
		e.lastErr = err
		c.logger.Warn("cache load failed", "key", key, "error", err, "stale_available", e.hasValue)
		return nil, err
	}
	now := c.clock.Now()
	e.value = v
	e.hasValue = true
	e.fetchedAt = now
	e.ttl = ttl
	e.invalidated = false
	e.lastErr = nil
	e.lastUsed = now
	c.logger.Debug("cache load", "key", key, "duration", now.Sub(start))
	return v, nil
}

// settle builds the caller's Result after a shared load finished.
func (c *Cache) settle(key string, v any, loadErr error) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	if loadErr == nil {
		return Result{Value: v, FetchedAt: e.fetchedAt}, nil
	}
	if e.hasValue {
		return Result{Value: e.value, FetchedAt: e.fetchedAt, Stale: true, Err: loadErr}, nil
	}
	return Result{}, loadErr
}

// Invalidate forces the next Fetch of key to call its loader regardless of
// TTL. The current value stays servable until that load succeeds.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.invalidated = true
	}
}

// InvalidatePrefix invalidates every key starting with prefix and returns how many matched.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if strings.HasPrefix(k, prefix) {
			e.invalidated = true
			n++
		}
	}
	return n
}

// Status reports the state of key. Unknown keys report a zero Status.
func (c *Cache) Status(key string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{Key: key}
	e, ok := c.entries[key]
	if !ok {
		return st
	}
	st.HasValue = e.hasValue
	st.FetchedAt = e.fetchedAt
	st.Fresh = e.fresh(c.clock.Now())
	st.Fetching = e.fetching > 0
	st.Invalidated = e.invalidated
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	return st
}

// Len returns the number of entries, including ones without a value yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep drops entries that have not been used for longer than the GC time
// and are not being loaded. It returns the number removed.
func (c *Cache) Sweep() int {
	if c.gcTime <= 0 {
		return 0
	}
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if e.fetching == 0 && now.Sub(e.lastUsed) > c.gcTime {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is cancelled.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("cache sweep", "removed", n)
			}
		}
	}
}

func (c *Cache) entryLocked(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// FetchAs is Fetch with the value asserted to T.
func FetchAs[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, Result, error) {
	var zero T
	res, err := c.Fetch(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		return zero, res, err
	}
	v, ok := res.Value.(T)
	if !ok {
		return zero, res, fmt.Errorf("cache key %q holds %T: %w", key, res.Value, ErrTypeMismatch)
	}
	return v, res, nil
}

// ErrTypeMismatch is returned by FetchAs when the cached value has another type.
var ErrTypeMismatch = errors.New("cached value type mismatch")
