package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"crypto_dash/internal/analytics"
	"crypto_dash/internal/domain"
	"crypto_dash/internal/infra"

	"github.com/google/uuid"
)

// SnapshotLogger periodically fetches a snapshot and appends it to storage.
type SnapshotLogger struct {
	source   domain.MarketSource
	repo     domain.SnapshotRepository
	pageSize int
	logger   *slog.Logger
}

// NewSnapshotLogger creates a logger writing pageSize rows per run.
func NewSnapshotLogger(source domain.MarketSource, repo domain.SnapshotRepository, pageSize int) *SnapshotLogger {
	return &SnapshotLogger{
		source:   source,
		repo:     repo,
		pageSize: pageSize,
		logger:   slog.Default().With("module", "snapshot_logger", "source", string(source.Kind())),
	}
}

// RunOnce fetches, enriches and persists one snapshot stamped with now.
// It returns the number of rows written.
func (l *SnapshotLogger) RunOnce(ctx context.Context, now time.Time) (int, error) {
	runID := uuid.NewString()
	log := l.logger.With("run_id", runID)

	raw, err := l.source.Fetch(ctx, l.pageSize)
	if err != nil {
		return 0, err
	}

	snap := analytics.Enrich(raw, l.source.Kind(), now)
	if err := l.repo.AppendSnapshot(ctx, snap.Rows(), now); err != nil {
		return 0, fmt.Errorf("append snapshot: %w", err)
	}

	infra.GlobalMetrics.RecordRowsLogged(snap.Len())
	log.Info(fmt.Sprintf("Logged %d coins", snap.Len()),
		slog.Int("rows", snap.Len()),
		slog.String("ts", domain.FormatTimestamp(now)),
	)
	return snap.Len(), nil
}

// Run calls RunOnce immediately and then every interval until ctx is done.
// A failed run is logged and the loop continues.
func (l *SnapshotLogger) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return &domain.ConfigError{Field: "logger.interval_minutes", Err: fmt.Errorf("interval must be positive, got %s", interval)}
	}

	l.logger.Info("Snapshot logger started", slog.Duration("interval", interval), slog.Int("page_size", l.pageSize))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := l.RunOnce(ctx, time.Now()); err != nil && ctx.Err() == nil {
			l.logger.Error("Snapshot run failed", slog.Any("error", err), slog.Bool("retriable", domain.IsRetriable(err)))
		}

		select {
		case <-ctx.Done():
			l.logger.Info("Snapshot logger stopped")
			return nil
		case <-ticker.C:
		}
	}
}
