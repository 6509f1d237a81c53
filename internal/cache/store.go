package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"
	"time"

	"crypto_dash/internal/domain"

	"github.com/go-redis/redis/v8"
)

// Store keeps snapshots by key. Expiry is advisory; SnapshotCache applies
// its own TTL check on FetchedAt.
type Store interface {
	Get(ctx context.Context, key string) (domain.MarketSnapshot, bool, error)
	Set(ctx context.Context, key string, snap domain.MarketSnapshot, ttl time.Duration) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.MarketSnapshot
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]domain.MarketSnapshot)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (domain.MarketSnapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.entries[key]
	return snap, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, snap domain.MarketSnapshot, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = snap
	return nil
}

// RedisKeyPrefix namespaces snapshot keys in a shared Redis.
const RedisKeyPrefix = "cryptodash:snapshot:"

// RedisStore shares snapshots between processes through Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (domain.MarketSnapshot, bool, error) {
	payload, err := r.client.Get(ctx, RedisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.MarketSnapshot{}, false, nil
	}
	if err != nil {
		return domain.MarketSnapshot{}, false, err
	}
	snap, err := decodeSnapshot(payload)
	if err != nil {
		return domain.MarketSnapshot{}, false, err
	}
	return snap, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, snap domain.MarketSnapshot, ttl time.Duration) error {
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, RedisKeyPrefix+key, payload, ttl).Err()
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// wireSnapshot is the gob payload; gob keeps NaN where JSON cannot.
type wireSnapshot struct {
	Source    domain.SourceKind
	FetchedAt time.Time
	Rows      []domain.EnrichedMarketRow
}

func encodeSnapshot(snap domain.MarketSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := wireSnapshot{Source: snap.Source(), FetchedAt: snap.FetchedAt(), Rows: snap.Rows()}
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(payload []byte) (domain.MarketSnapshot, error) {
	var w wireSnapshot
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&w); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return domain.NewMarketSnapshot(w.Source, w.FetchedAt, w.Rows), nil
}
