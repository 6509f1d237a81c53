package domain

import (
	"context"
	"time"
)

// MarketSource fetches one page of raw market rows from an upstream source.
type MarketSource interface {
	Kind() SourceKind
	Fetch(ctx context.Context, pageSize int) ([]RawMarketRow, error)
}

// SnapshotRepository persists raw snapshot rows keyed by timestamp.
type SnapshotRepository interface {
	AppendSnapshot(ctx context.Context, rows []EnrichedMarketRow, ts time.Time) error
	ReadRecent(ctx context.Context, limit int) ([]SnapshotRecord, error)
}
