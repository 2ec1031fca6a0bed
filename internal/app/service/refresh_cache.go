package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/metrics"

	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
)

// RefreshCacheOptions configures freshness and retention.
type RefreshCacheOptions struct {
	// FreshFor is how long an entry is served without triggering a refresh.
	FreshFor time.Duration
	// EvictAfter is the hard expiry of an entry that was never refreshed.
	EvictAfter time.Duration
	// CleanupInterval is how often expired entries are purged.
	CleanupInterval time.Duration
	// MaxEntries bounds the cache; the entry fetched longest ago is evicted first. <= 0 means unbounded.
	MaxEntries int
	// RefreshTimeout bounds every fetch started by the cache.
	RefreshTimeout time.Duration
}

func (o RefreshCacheOptions) withDefaults() RefreshCacheOptions {
	if o.FreshFor <= 0 {
		o.FreshFor = 90 * time.Second
	}
	if o.EvictAfter <= 0 {
		o.EvictAfter = 30 * time.Minute
	}
	if o.EvictAfter < o.FreshFor {
		o.EvictAfter = o.FreshFor
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = 5 * time.Minute
	}
	if o.RefreshTimeout <= 0 {
		o.RefreshTimeout = time.Minute
	}
	return o
}

// RefreshCacheOption customizes a refresh cache.
type RefreshCacheOption func(*refreshCacheImpl)

// WithClock replaces time.Now as the source of FetchedAt and entry age.
func WithClock(now func() time.Time) RefreshCacheOption {
	return func(c *refreshCacheImpl) {
		c.now = now
	}
}

// refreshCacheImpl implements port.RefreshCache.
type refreshCacheImpl struct {
	aggregator port.Aggregator
	opts       RefreshCacheOptions
	logger     port.Logger
	now        func() time.Time

	entries *gocache.Cache
	storeMu sync.Mutex // serializes store + size enforcement

	misses singleflight.Group

	// refreshMu guards only the per-key refresh-in-flight set.
	refreshMu  sync.Mutex
	refreshing map[string]struct{}
	closed     bool
	wg         sync.WaitGroup
}

// NewRefreshCache creates a cache in front of aggregator.
func NewRefreshCache(aggregator port.Aggregator, opts RefreshCacheOptions, l port.Logger, options ...RefreshCacheOption) port.RefreshCache {
	opts = opts.withDefaults()
	c := &refreshCacheImpl{
		aggregator: aggregator,
		opts:       opts,
		logger:     l,
		now:        time.Now,
		entries:    gocache.New(opts.EvictAfter, opts.CleanupInterval),
		refreshing: make(map[string]struct{}),
	}
	for _, o := range options {
		o(c)
	}
	c.entries.OnEvicted(func(key string, _ interface{}) {
		c.logger.Debug("Cache entry evicted", "key", key)
		metrics.SetCacheEntries(c.Len())
	})
	return c
}

// Get implements port.RefreshCache. A fresh entry is returned as is. A stale entry is returned
// immediately and at most one background refresh is started for its key. A miss fetches
// synchronously; concurrent misses for one key share a single fetch.
func (c *refreshCacheImpl) Get(ctx context.Context, key entity.QueryKey) (*entity.AggregateResult, entity.CacheStatus, error) {
	ck := key.CacheKey()

	if entry, ok := c.lookup(ck); ok {
		if entry.Age(c.now()) <= c.opts.FreshFor {
			metrics.RecordCacheLookup(string(entity.CacheHit))
			return entry.Value, entity.CacheHit, nil
		}
		c.scheduleRefresh(entry)
		metrics.RecordCacheLookup(string(entity.CacheStale))
		return entry.Value, entity.CacheStale, nil
	}

	metrics.RecordCacheLookup(string(entity.CacheMiss))
	// the fetch is shared by every waiting caller, so one caller's cancellation must not abort it
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.misses.DoChan(ck, func() (interface{}, error) {
		if entry, ok := c.lookup(ck); ok {
			return entry.Value, nil
		}
		ctx, cancel := context.WithTimeout(fetchCtx, c.opts.RefreshTimeout)
		defer cancel()

		res, err := c.aggregator.Fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		c.store(key, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, entity.CacheMiss, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, entity.CacheMiss, r.Err
		}
		return r.Val.(*entity.AggregateResult), entity.CacheMiss, nil
	}
}

// Invalidate drops the entry for key. A refresh already in flight may still store a new value.
func (c *refreshCacheImpl) Invalidate(key entity.QueryKey) {
	c.entries.Delete(key.CacheKey())
}

// Len counts live entries only; hard-expired ones awaiting the janitor are skipped.
func (c *refreshCacheImpl) Len() int {
	return len(c.entries.Items())
}

func (c *refreshCacheImpl) Close() {
	c.refreshMu.Lock()
	c.closed = true
	c.refreshMu.Unlock()
	c.wg.Wait()
}

func (c *refreshCacheImpl) lookup(ck string) (*entity.CacheEntry, bool) {
	v, ok := c.entries.Get(ck)
	if !ok {
		return nil, false
	}
	entry, ok := v.(*entity.CacheEntry)
	return entry, ok
}

// scheduleRefresh starts a detached refresh unless one is already running for the key or the
// entry was replaced since it was observed.
func (c *refreshCacheImpl) scheduleRefresh(observed *entity.CacheEntry) {
	ck := observed.Key.CacheKey()

	c.refreshMu.Lock()
	if _, busy := c.refreshing[ck]; busy || c.closed {
		c.refreshMu.Unlock()
		return
	}
	if current, ok := c.lookup(ck); !ok || current != observed {
		c.refreshMu.Unlock()
		return
	}
	c.refreshing[ck] = struct{}{}
	c.wg.Add(1)
	c.refreshMu.Unlock()

	go c.refresh(observed.Key)
}

func (c *refreshCacheImpl) refresh(key entity.QueryKey) {
	ck := key.CacheKey()
	defer c.wg.Done()
	defer func() {
		c.refreshMu.Lock()
		delete(c.refreshing, ck)
		c.refreshMu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Background refresh panicked", "key", ck, "panic", fmt.Sprint(r))
			metrics.RecordCacheRefresh(false)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.RefreshTimeout)
	defer cancel()

	started := time.Now()
	res, err := c.aggregator.Fetch(ctx, key)
	if err != nil {
		c.logger.Warn("Background refresh failed, keeping stale entry", "key", ck, "error", err)
		metrics.RecordCacheRefresh(false)
		return
	}
	c.store(key, res)
	metrics.RecordCacheRefresh(true)
	c.logger.Debug("Background refresh completed", "key", ck, "took", time.Since(started).String())
}

// store replaces the entry for key wholesale and enforces MaxEntries.
func (c *refreshCacheImpl) store(key entity.QueryKey, res *entity.AggregateResult) {
	entry := &entity.CacheEntry{Key: key, Value: res, FetchedAt: c.now()}

	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	c.entries.Set(key.CacheKey(), entry, gocache.DefaultExpiration)
	c.evictOverflow()
	metrics.SetCacheEntries(c.Len())
}

func (c *refreshCacheImpl) evictOverflow() {
	if c.opts.MaxEntries <= 0 {
		return
	}
	// Items skips expired entries, so only live ones count toward the bound
	entries := lo.FilterMap(lo.Values(c.entries.Items()), func(item gocache.Item, _ int) (*entity.CacheEntry, bool) {
		entry, ok := item.Object.(*entity.CacheEntry)
		return entry, ok
	})
	overflow := len(entries) - c.opts.MaxEntries
	if overflow <= 0 {
		return
	}
	slices.SortFunc(entries, func(a, b *entity.CacheEntry) int {
		return a.FetchedAt.Compare(b.FetchedAt)
	})
	for _, entry := range entries[:overflow] {
		c.logger.Debug("Evicting oldest cache entry", "key", entry.Key.CacheKey(), "fetched_at", entry.FetchedAt)
		c.entries.Delete(entry.Key.CacheKey())
	}
}
