package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	calls atomic.Int32
	rows  []domain.RawMarketRow
	err   error
}

func (f *fakeSource) Kind() domain.SourceKind { return domain.SourceCoinGecko }

func (f *fakeSource) Fetch(_ context.Context, _ int) ([]domain.RawMarketRow, error) {
	f.calls.Add(1)
	return f.rows, f.err
}

func resolverFor(src domain.MarketSource) SourceResolver {
	return func(kind domain.SourceKind) (domain.MarketSource, error) {
		if kind != src.Kind() {
			return nil, domain.ErrUnknownSource
		}
		return src, nil
	}
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleRows() []domain.RawMarketRow {
	return []domain.RawMarketRow{
		{ID: "bitcoin", CoinName: "Bitcoin", CoinSymbol: "BTC", Price: 64000, Pct1h: 1, Pct24h: -2, Pct7d: domain.Missing},
	}
}

func TestSnapshotCache_HitWithinTTL(t *testing.T) {
	infra.GlobalMetrics.Reset()
	src := &fakeSource{rows: sampleRows()}
	c := New(resolverFor(src), NewMemoryStore(), time.Minute)

	first, err := c.Get(context.Background(), domain.SourceCoinGecko, 10, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Len())
	assert.False(t, domain.IsMissing(first.At(0).PrevPrice1h), "rows should be enriched")

	second, err := c.Get(context.Background(), domain.SourceCoinGecko, 10, t0.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, first.FetchedAt(), second.FetchedAt())
	assert.Equal(t, int32(1), src.calls.Load())

	m := infra.GlobalMetrics.Snapshot()
	assert.Equal(t, uint64(1), m.CacheHits)
	assert.Equal(t, uint64(1), m.CacheMisses)
}

func TestSnapshotCache_ReloadAfterTTL(t *testing.T) {
	src := &fakeSource{rows: sampleRows()}
	c := New(resolverFor(src), NewMemoryStore(), time.Minute)

	_, err := c.Get(context.Background(), domain.SourceCoinGecko, 10, t0)
	require.NoError(t, err)

	snap, err := c.Get(context.Background(), domain.SourceCoinGecko, 10, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute), snap.FetchedAt())
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestSnapshotCache_KeyedByPageSize(t *testing.T) {
	src := &fakeSource{rows: sampleRows()}
	c := New(resolverFor(src), nil, 0)

	_, err := c.Get(context.Background(), domain.SourceCoinGecko, 10, t0)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), domain.SourceCoinGecko, 20, t0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestSnapshotCache_FailureNotMaskedByStaleData(t *testing.T) {
	src := &fakeSource{rows: sampleRows()}
	c := New(resolverFor(src), NewMemoryStore(), time.Minute)

	_, err := c.Get(context.Background(), domain.SourceCoinGecko, 10, t0)
	require.NoError(t, err)

	boom := domain.NewFetchError(domain.SourceCoinGecko, "request", errors.New("connection reset"))
	src.err = boom
	src.rows = nil

	_, err = c.Get(context.Background(), domain.SourceCoinGecko, 10, t0.Add(2*time.Minute))
	assert.ErrorIs(t, err, boom)
}

func TestSnapshotCache_UnknownSource(t *testing.T) {
	c := New(resolverFor(&fakeSource{}), NewMemoryStore(), time.Minute)

	_, err := c.Get(context.Background(), domain.SourceCoinMarketCap, 10, t0)
	assert.ErrorIs(t, err, domain.ErrUnknownSource)
}

func TestSnapshotCache_EmptyFetchIsCached(t *testing.T) {
	src := &fakeSource{}
	c := New(resolverFor(src), NewMemoryStore(), time.Minute)

	snap, err := c.Get(context.Background(), domain.SourceCoinGecko, 10, t0)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
}

func TestSnapshotCodecKeepsMissingValues(t *testing.T) {
	src := &fakeSource{rows: sampleRows()}
	c := New(resolverFor(src), NewMemoryStore(), time.Minute)
	snap, err := c.Get(context.Background(), domain.SourceCoinGecko, 10, t0)
	require.NoError(t, err)

	payload, err := encodeSnapshot(snap)
	require.NoError(t, err)
	decoded, err := decodeSnapshot(payload)
	require.NoError(t, err)

	assert.Equal(t, domain.SourceCoinGecko, decoded.Source())
	assert.True(t, decoded.FetchedAt().Equal(t0))
	require.Equal(t, 1, decoded.Len())
	assert.True(t, domain.IsMissing(decoded.At(0).Pct7d))
	assert.Equal(t, snap.At(0).PriceRange, decoded.At(0).PriceRange)
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := NewRedisStore(ctx, "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}

type blockingSource struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newBlockingSource() *blockingSource {
	return &blockingSource{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (b *blockingSource) Kind() domain.SourceKind { return domain.SourceCoinMarketCap }

func (b *blockingSource) Fetch(ctx context.Context, _ int) ([]domain.RawMarketRow, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return sampleRows(), nil
}

func TestSnapshotCache_SlowLoadDoesNotBlockOtherKeys(t *testing.T) {
	slow := newBlockingSource()
	fast := &fakeSource{rows: sampleRows()}
	resolve := func(kind domain.SourceKind) (domain.MarketSource, error) {
		if kind == domain.SourceCoinMarketCap {
			return slow, nil
		}
		return fast, nil
	}
	c := New(resolve, NewMemoryStore(), time.Minute)

	slowDone := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), domain.SourceCoinMarketCap, 10, t0)
		slowDone <- err
	}()
	<-slow.started

	fastDone := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), domain.SourceCoinGecko, 10, t0)
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("load of another key blocked by a slow fetch")
	}

	close(slow.release)
	require.NoError(t, <-slowDone)
}

func TestSnapshotCache_SameKeySharesOneLoad(t *testing.T) {
	slow := newBlockingSource()
	c := New(resolverFor(slow), NewMemoryStore(), time.Minute)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := c.Get(context.Background(), domain.SourceCoinMarketCap, 10, t0)
			errs <- err
		}()
	}
	<-slow.started
	close(slow.release)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.Equal(t, int32(1), slow.calls.Load())
}
