package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"crypto_dash/internal/analytics"
	"crypto_dash/internal/domain"
)

// SnapshotProvider returns the snapshot current at now.
type SnapshotProvider interface {
	Get(ctx context.Context, kind domain.SourceKind, pageSize int, now time.Time) (domain.MarketSnapshot, error)
}

// WorkingHours is the local-hour window [Start, End) in which the volume
// view is available.
type WorkingHours struct {
	Start int
	End   int
}

// Contains reports whether t falls inside the window.
func (w WorkingHours) Contains(t time.Time) bool {
	h := t.Hour()
	return h >= w.Start && h < w.End
}

// Dashboard serves the analytic views over the cached live snapshot.
type Dashboard struct {
	snapshots SnapshotProvider
	history   domain.SnapshotRepository
	kind      domain.SourceKind
	pageSize  int
	hours     WorkingHours
	logger    *slog.Logger
}

// NewDashboard creates a dashboard. history may be nil when no database
// is configured.
func NewDashboard(snapshots SnapshotProvider, history domain.SnapshotRepository, kind domain.SourceKind, pageSize int, hours WorkingHours) *Dashboard {
	return &Dashboard{
		snapshots: snapshots,
		history:   history,
		kind:      kind,
		pageSize:  pageSize,
		hours:     hours,
		logger:    slog.Default().With("module", "dashboard"),
	}
}

// Snapshot returns the current enriched snapshot, or domain.ErrNoData when
// the source returned no rows.
func (d *Dashboard) Snapshot(ctx context.Context, now time.Time) (domain.MarketSnapshot, error) {
	snap, err := d.snapshots.Get(ctx, d.kind, d.pageSize, now)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	if snap.IsEmpty() {
		return domain.MarketSnapshot{}, domain.ErrNoData
	}
	return snap, nil
}

// BudgetPick finds the coin with the least average downfall among ranges.
// ok is false when no coin qualifies.
func (d *Dashboard) BudgetPick(ctx context.Context, now time.Time, ranges []domain.PriceRange) (pick analytics.BudgetPick, ok bool, err error) {
	snap, err := d.Snapshot(ctx, now)
	if err != nil {
		return analytics.BudgetPick{}, false, err
	}
	pick, ok = analytics.LeastAvgDownfallByRange(snap, ranges)
	return pick, ok, nil
}

// CheapestPrev1h lists the ten coins with the highest reconstructed 1h-ago price.
func (d *Dashboard) CheapestPrev1h(ctx context.Context, now time.Time) ([]domain.EnrichedMarketRow, error) {
	snap, err := d.Snapshot(ctx, now)
	if err != nil {
		return nil, err
	}
	return analytics.TopCheapByPrev1h(snap), nil
}

// PriceIncrease lists the biggest 1h absolute price gains within tier.
func (d *Dashboard) PriceIncrease(ctx context.Context, now time.Time, tier domain.PriceTier) ([]analytics.PriceIncrease, error) {
	snap, err := d.Snapshot(ctx, now)
	if err != nil {
		return nil, err
	}
	return analytics.TopPriceIncrease(snap, tier), nil
}

// VolumeLeaders lists the top 24h volumes among prefix-matching coins.
// Outside working hours it returns domain.ErrOutsideWorkingHours.
func (d *Dashboard) VolumeLeaders(ctx context.Context, now time.Time) ([]domain.EnrichedMarketRow, error) {
	if !d.hours.Contains(now) {
		d.logger.Info("Volume view requested outside working hours", slog.Int("hour", now.Hour()))
		return nil, domain.ErrOutsideWorkingHours
	}
	snap, err := d.Snapshot(ctx, now)
	if err != nil {
		return nil, err
	}
	return analytics.TopVolumeByPrefix(snap), nil
}

// Compare puts two coins side by side.
func (d *Dashboard) Compare(ctx context.Context, now time.Time, name1, name2 string) (analytics.Comparison, error) {
	snap, err := d.Snapshot(ctx, now)
	if err != nil {
		return analytics.Comparison{}, err
	}
	return analytics.CompareCoins(snap, name1, name2)
}

// Liquidity returns the top five volumes in band plus the Others aggregate.
func (d *Dashboard) Liquidity(ctx context.Context, now time.Time, band domain.PriceBand) ([]analytics.LiquidityShare, error) {
	snap, err := d.Snapshot(ctx, now)
	if err != nil {
		return nil, err
	}
	return analytics.LiquidityTop5WithOthers(snap, band), nil
}

// History returns persisted snapshot rows, newest first.
func (d *Dashboard) History(ctx context.Context, limit int) ([]domain.SnapshotRecord, error) {
	if d.history == nil {
		return nil, fmt.Errorf("history: %w", domain.ErrNoData)
	}
	records, err := d.history.ReadRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.ErrNoData
	}
	return records, nil
}
