package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"crypto_dash/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultRecentLimit bounds ReadRecent when the caller passes no limit.
const DefaultRecentLimit = 2000

const insertBatchSize = 200

// Storage is the append-only SQLite snapshot log.
type Storage struct {
	db *gorm.DB
}

var _ domain.SnapshotRepository = (*Storage)(nil)

// NewStorage opens (or creates) the snapshot database at dbPath.
func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		return nil, &domain.ConfigError{Field: "storage.path", Err: fmt.Errorf("empty database path")}
	}

	// Ensure directory exists
	if dbDir := filepath.Dir(dbPath); dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.SnapshotRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// AppendSnapshot writes the raw fields of rows under one shared timestamp.
// Nothing is written for an empty slice.
func (s *Storage) AppendSnapshot(ctx context.Context, rows []domain.EnrichedMarketRow, ts time.Time) error {
	if len(rows) == 0 {
		return nil
	}

	stamp := domain.FormatTimestamp(ts)
	records := make([]domain.SnapshotRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, domain.NewSnapshotRecord(stamp, r.RawMarketRow))
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&records, insertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to append snapshot %s: %w", stamp, err)
		}
		return nil
	})
}

// ReadRecent returns at most limit records, newest timestamp first and
// insertion order within a timestamp.
func (s *Storage) ReadRecent(ctx context.Context, limit int) ([]domain.SnapshotRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	var records []domain.SnapshotRecord
	err := s.db.WithContext(ctx).
		Order("ts DESC").
		Order("rowid ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}
	return records, nil
}

// Count returns the number of stored rows.
func (s *Storage) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.SnapshotRecord{}).Count(&n).Error
	return n, err
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
