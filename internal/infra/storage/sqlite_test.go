package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"crypto_dash/internal/domain"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func enriched(id, name string, price float64) domain.EnrichedMarketRow {
	return domain.EnrichedMarketRow{RawMarketRow: domain.RawMarketRow{
		ID:                id,
		CoinName:          name,
		CoinSymbol:        "SYM",
		Price:             price,
		Pct1h:             1,
		Pct24h:            -2,
		Pct7d:             domain.Missing,
		Volume24h:         1000,
		MarketCap:         5000,
		CirculatingSupply: domain.Missing,
	}}
}

func TestAppendAndReadRecent(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := []domain.EnrichedMarketRow{enriched("a", "Alpha", 1), enriched("b", "Beta", 2)}
	if err := s.AppendSnapshot(ctx, rows, ts); err != nil {
		t.Fatalf("AppendSnapshot failed: %v", err)
	}

	got, err := s.ReadRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ReadRecent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].TS != "2024-05-01T12:00:00Z" {
		t.Errorf("unexpected ts %q", got[0].TS)
	}
	if got[0].CoinID != "a" || got[1].CoinID != "b" {
		t.Errorf("insertion order not kept: %s, %s", got[0].CoinID, got[1].CoinID)
	}
	if got[0].Pct7d != nil {
		t.Error("missing pct_7d should be stored as NULL")
	}
	if got[0].Pct24h == nil || *got[0].Pct24h != -2 {
		t.Errorf("pct_24h not round-tripped: %v", got[0].Pct24h)
	}
}

func TestAppendEmptyWritesNothing(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	if err := s.AppendSnapshot(ctx, nil, time.Now()); err != nil {
		t.Fatalf("AppendSnapshot failed: %v", err)
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows, got %d", n)
	}
}

func TestReadRecentNewestFirstWithLimit(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * 15 * time.Minute)
		rows := []domain.EnrichedMarketRow{enriched("a", "Alpha", float64(i)), enriched("b", "Beta", float64(i))}
		if err := s.AppendSnapshot(ctx, rows, ts); err != nil {
			t.Fatalf("AppendSnapshot %d failed: %v", i, err)
		}
	}

	got, err := s.ReadRecent(ctx, 3)
	if err != nil {
		t.Fatalf("ReadRecent failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].TS != "2024-05-01T12:30:00Z" || got[2].TS != "2024-05-01T12:15:00Z" {
		t.Errorf("unexpected order: %s .. %s", got[0].TS, got[2].TS)
	}

	all, err := s.ReadRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ReadRecent default limit failed: %v", err)
	}
	if len(all) != 6 {
		t.Errorf("expected 6 records with default limit, got %d", len(all))
	}
}

func TestNewStorageRejectsEmptyPath(t *testing.T) {
	if _, err := NewStorage(""); err == nil {
		t.Error("expected error for empty path")
	}
}
