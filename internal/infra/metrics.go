package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	fetchesTotal atomic.Uint64
	fetchErrors  atomic.Uint64
	rowsLogged   atomic.Uint64
	cacheHits    atomic.Uint64
	cacheMisses  atomic.Uint64

	// Latency tracking
	fetchLatencySumNs atomic.Int64
	fetchLatencyCount atomic.Uint64

	// Gauges
	lastSnapshotRows atomic.Int64
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordFetch records a successful upstream fetch with its latency and row count.
func (m *Metrics) RecordFetch(latency time.Duration, rows int) {
	m.fetchesTotal.Add(1)
	m.fetchLatencySumNs.Add(latency.Nanoseconds())
	m.fetchLatencyCount.Add(1)
	m.lastSnapshotRows.Store(int64(rows))
}

// RecordFetchError records a failed upstream fetch.
func (m *Metrics) RecordFetchError() {
	m.fetchesTotal.Add(1)
	m.fetchErrors.Add(1)
}

// RecordRowsLogged records rows appended to snapshot storage.
func (m *Metrics) RecordRowsLogged(n int) {
	m.rowsLogged.Add(uint64(n))
}

// RecordCacheHit records a snapshot served from cache.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a snapshot that had to be fetched.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	FetchesTotal      uint64
	FetchErrors       uint64
	RowsLogged        uint64
	CacheHits         uint64
	CacheMisses       uint64
	AvgFetchLatencyNs int64
	LastSnapshotRows  int64
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.fetchLatencyCount.Load()
	if count > 0 {
		avgLatency = m.fetchLatencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		FetchesTotal:      m.fetchesTotal.Load(),
		FetchErrors:       m.fetchErrors.Load(),
		RowsLogged:        m.rowsLogged.Load(),
		CacheHits:         m.cacheHits.Load(),
		CacheMisses:       m.cacheMisses.Load(),
		AvgFetchLatencyNs: avgLatency,
		LastSnapshotRows:  m.lastSnapshotRows.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.fetchesTotal.Store(0)
	m.fetchErrors.Store(0)
	m.rowsLogged.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.fetchLatencySumNs.Store(0)
	m.fetchLatencyCount.Store(0)
	m.lastSnapshotRows.Store(0)
}
