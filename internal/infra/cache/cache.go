// Package cache holds derived results (group assignments, class insights)
// for a bounded time. An entry is valid while now - ComputedAt < TTL.
//
// Concurrent misses on one key are collapsed with singleflight so a single
// provider call serves all of them. No lock is held while computing.
package cache

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Entry is one stored value with its validity window.
type Entry[V any] struct {
	Value      V             `json:"value"`
	ComputedAt time.Time     `json:"computed_at"`
	TTL        time.Duration `json:"ttl"`
}

// Valid reports whether the entry is still fresh at now.
func (e Entry[V]) Valid(now time.Time) bool {
	return now.Sub(e.ComputedAt) < e.TTL
}

// Store persists entries. Implementations must be safe for concurrent use.
type Store[V any] interface {
	Get(ctx context.Context, key string) (Entry[V], bool, error)
	Set(ctx context.Context, key string, e Entry[V]) error
	// DeletePrefix drops every key starting with prefix and returns how many went.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type options struct {
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Cache.
type Option func(*options)

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used for store errors.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Cache is a TTL cache over a Store with per-key single flight.
type Cache[V any] struct {
	store  Store[V]
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
	group  singleflight.Group
}

// New returns a Cache whose entries live for ttl.
func New[V any](store Store[V], ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{store: store, ttl: ttl, now: o.now, logger: o.logger.Named("cache")}
}

// TTL returns the lifetime given to entries written by WithSingleFlight.
func (c *Cache[V]) TTL() time.Duration { return c.ttl }

// Get returns the value for key when a valid entry exists.
// Store errors are logged and reported as a miss.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	if !ok || !e.Valid(c.now()) {
		return zero, false
	}
	return e.Value, true
}

// Set stores value under key, computed now, valid for ttl.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	return c.store.Set(ctx, key, Entry[V]{Value: value, ComputedAt: c.now(), TTL: ttl})
}

// Invalidate drops every entry whose key starts with prefix.
func (c *Cache[V]) Invalidate(ctx context.Context, prefix string) (int, error) {
	return c.store.DeletePrefix(ctx, prefix)
}

// forceSuffix separates forced flights from read-through ones.
const forceSuffix = "\x00force"

type flight[V any] struct {
	value V
	hit   bool
}

// WithSingleFlight returns the cached value for key, or runs compute once for
// all concurrent callers and stores its result. force skips the read and runs
// in its own flight, so it never receives a value read back from the store.
// The bool reports a cache hit.
//
// compute runs detached from the caller's cancellation so one caller giving up
// does not fail the others waiting on the same flight.
func (c *Cache[V]) WithSingleFlight(ctx context.Context, key string, force bool, compute func(context.Context) (V, error)) (V, bool, error) {
	if !force {
		if v, ok := c.Get(ctx, key); ok {
			return v, true, nil
		}
	}

	flightKey := key
	if force {
		flightKey = key + forceSuffix
	}
	res, err, _ := c.group.Do(flightKey, func() (any, error) {
		detached := context.WithoutCancel(ctx)
		if !force {
			// a flight that finished between our read and Do may have filled it
			if v, ok := c.Get(detached, key); ok {
				return flight[V]{value: v, hit: true}, nil
			}
		}
		v, err := compute(detached)
		if err != nil {
			return nil, err
		}
		if err := c.Set(detached, key, v, c.ttl); err != nil {
			c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
		return flight[V]{value: v}, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	f := res.(flight[V])
	return f.value, f.hit, nil
}

// hasPrefix is shared by the stores.
func hasPrefix(key, prefix string) bool {
	return prefix == "" || strings.HasPrefix(key, prefix)
}
