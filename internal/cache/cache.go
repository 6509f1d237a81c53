// Package cache memoizes enriched snapshots for a short TTL so repeated
// dashboard views do not hit the upstream source.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"crypto_dash/internal/analytics"
	"crypto_dash/internal/domain"
	"crypto_dash/internal/infra"
)

// DefaultTTL is how long a fetched snapshot stays fresh.
const DefaultTTL = 120 * time.Second

// SourceResolver returns the adapter for a source kind.
type SourceResolver func(kind domain.SourceKind) (domain.MarketSource, error)

// SnapshotCache loads, enriches and memoizes snapshots per (source, page size).
type SnapshotCache struct {
	resolve SourceResolver
	store   Store
	ttl     time.Duration
	logger  *slog.Logger

	mu    sync.Mutex // guards locks
	locks map[string]*sync.Mutex
}

// New creates a SnapshotCache; ttl <= 0 uses DefaultTTL.
func New(resolve SourceResolver, store Store, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &SnapshotCache{
		resolve: resolve,
		store:   store,
		ttl:     ttl,
		logger:  slog.Default().With("module", "snapshot_cache"),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Key identifies a cached snapshot.
func Key(kind domain.SourceKind, pageSize int) string {
	return fmt.Sprintf("%s:%d", kind, pageSize)
}

// keyLock returns the mutex serializing loads of key.
func (c *SnapshotCache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// Get returns a snapshot fetched less than TTL before now, loading a new
// one otherwise. Concurrent callers of the same key share one load; other
// keys are not blocked by it. A failed load is returned as-is; stale data
// is never served in its place.
func (c *SnapshotCache) Get(ctx context.Context, kind domain.SourceKind, pageSize int, now time.Time) (domain.MarketSnapshot, error) {
	key := Key(kind, pageSize)

	l := c.keyLock(key)
	l.Lock()
	defer l.Unlock()

	snap, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Cache read failed", slog.String("key", key), slog.Any("error", err))
	} else if ok && now.Sub(snap.FetchedAt()) < c.ttl {
		infra.GlobalMetrics.RecordCacheHit()
		return snap, nil
	}
	infra.GlobalMetrics.RecordCacheMiss()

	src, err := c.resolve(kind)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	raw, err := src.Fetch(ctx, pageSize)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}

	snap = analytics.EnrichParallel(raw, 0, kind, now)
	if err := c.store.Set(ctx, key, snap, c.ttl); err != nil {
		c.logger.Warn("Cache write failed", slog.String("key", key), slog.Any("error", err))
	}
	c.logger.Debug("Snapshot loaded", slog.String("key", key), slog.Int("rows", snap.Len()))
	return snap, nil
}
