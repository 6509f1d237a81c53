package domain

import "time"

// TimestampLayout is the ISO-8601 UTC layout of persisted snapshot timestamps.
const TimestampLayout = "2006-01-02T15:04:05Z"

// FormatTimestamp renders t as a second-precision UTC timestamp.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}

// SnapshotRecord is one row of the append-only market_snapshots table.
// Nil numbers are stored as NULL.
type SnapshotRecord struct {
	TS                string   `gorm:"column:ts;not null;index" json:"ts"`
	CoinID            string   `gorm:"column:coin_id" json:"coin_id"`
	CoinName          string   `gorm:"column:coin_name" json:"coin_name"`
	CoinSymbol        string   `gorm:"column:coin_symbol" json:"coin_symbol"`
	Price             *float64 `gorm:"column:price" json:"price"`
	Pct1h             *float64 `gorm:"column:pct_1h" json:"pct_1h"`
	Pct24h            *float64 `gorm:"column:pct_24h" json:"pct_24h"`
	Pct7d             *float64 `gorm:"column:pct_7d" json:"pct_7d"`
	Volume24h         *float64 `gorm:"column:volume_24h" json:"volume_24h"`
	MarketCap         *float64 `gorm:"column:market_cap" json:"market_cap"`
	CirculatingSupply *float64 `gorm:"column:circulating_supply" json:"circulating_supply"`
}

// TableName pins the table name shared with existing snapshot databases.
func (SnapshotRecord) TableName() string {
	return "market_snapshots"
}

// NewSnapshotRecord keeps only the raw fields of row.
func NewSnapshotRecord(ts string, row RawMarketRow) SnapshotRecord {
	return SnapshotRecord{
		TS:                ts,
		CoinID:            row.ID,
		CoinName:          row.CoinName,
		CoinSymbol:        row.CoinSymbol,
		Price:             nullable(row.Price),
		Pct1h:             nullable(row.Pct1h),
		Pct24h:            nullable(row.Pct24h),
		Pct7d:             nullable(row.Pct7d),
		Volume24h:         nullable(row.Volume24h),
		MarketCap:         nullable(row.MarketCap),
		CirculatingSupply: nullable(row.CirculatingSupply),
	}
}

// Raw converts a persisted record back into a RawMarketRow.
func (r SnapshotRecord) Raw() RawMarketRow {
	return RawMarketRow{
		ID:                r.CoinID,
		CoinName:          r.CoinName,
		CoinSymbol:        r.CoinSymbol,
		Price:             orMissing(r.Price),
		Pct1h:             orMissing(r.Pct1h),
		Pct24h:            orMissing(r.Pct24h),
		Pct7d:             orMissing(r.Pct7d),
		Volume24h:         orMissing(r.Volume24h),
		MarketCap:         orMissing(r.MarketCap),
		CirculatingSupply: orMissing(r.CirculatingSupply),
		LastUpdated:       r.TS,
	}
}

func nullable(v float64) *float64 {
	if IsMissing(v) {
		return nil
	}
	return &v
}

func orMissing(v *float64) float64 {
	if v == nil {
		return Missing
	}
	return *v
}
