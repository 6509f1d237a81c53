package domain

import (
	"math"
	"time"
)

// SourceKind selects the upstream market data source.
type SourceKind string

const (
	SourceCoinGecko     SourceKind = "coingecko"
	SourceCoinMarketCap SourceKind = "coinmarketcap_scrape"
)

// PriceRange is the bucket label of a coin price. The zero value means the
// price could not be bucketed (missing or negative).
type PriceRange string

const (
	RangeMicro     PriceRange = "$0 - $0.05"
	RangeSmall     PriceRange = "$0.05 - $0.5"
	RangeMid       PriceRange = "$0.5 - $5"
	RangeLarge     PriceRange = "$5 - $50"
	RangeAbove50   PriceRange = ">$50"
	RangeUndefined PriceRange = ""
)

// PriceRanges lists every defined bucket in ascending price order.
var PriceRanges = []PriceRange{RangeMicro, RangeSmall, RangeMid, RangeLarge, RangeAbove50}

// PriceBand splits coins at $50 for the liquidity view.
type PriceBand string

const (
	BandUpTo50  PriceBand = "$0 - $50"
	BandAbove50 PriceBand = ">$50"
)

// PriceTier splits coins at $10 for the price increase view.
type PriceTier string

const (
	TierUnder10   PriceTier = "< $10"
	TierAtLeast10 PriceTier = ">= $10"
)

// Missing is the absent marker for numeric market fields.
var Missing = math.NaN()

// IsMissing reports whether v carries no usable value.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// RawMarketRow is one coin as delivered by an ingestion source.
// Absent numeric fields hold NaN.
type RawMarketRow struct {
	ID                string  `json:"id"`
	CoinName          string  `json:"coin_name"`
	CoinSymbol        string  `json:"coin_symbol"`
	Price             float64 `json:"price"`
	Pct1h             float64 `json:"pct_1h"`
	Pct24h            float64 `json:"pct_24h"`
	Pct7d             float64 `json:"pct_7d"`
	Volume24h         float64 `json:"volume_24h"`
	MarketCap         float64 `json:"market_cap"`
	CirculatingSupply float64 `json:"circulating_supply"`
	LastUpdated       string  `json:"last_updated"`
	ImageURL          string  `json:"image_url,omitempty"`
}

// EnrichedMarketRow is a RawMarketRow plus the fields derived from it.
type EnrichedMarketRow struct {
	RawMarketRow

	PrevPrice1h        float64    `json:"prev_price_1h"`
	PrevPrice24h       float64    `json:"prev_price_24h"`
	PrevPrice7d        float64    `json:"prev_price_7d"`
	AvgDownfallPct     float64    `json:"avg_downfall_pct"`
	PriceRange         PriceRange `json:"price_range"`
	PriceCategory0to50 PriceBand  `json:"price_category_0_50"`
	PriceCategory10    PriceTier  `json:"price_category_10"`
}

// MarketSnapshot is the enriched result of a single fetch.
// It is immutable: accessors hand out copies.
type MarketSnapshot struct {
	source    SourceKind
	fetchedAt time.Time
	rows      []EnrichedMarketRow
}

// NewMarketSnapshot takes ownership of rows. Callers must not keep a
// reference to the slice.
func NewMarketSnapshot(source SourceKind, fetchedAt time.Time, rows []EnrichedMarketRow) MarketSnapshot {
	return MarketSnapshot{source: source, fetchedAt: fetchedAt, rows: rows}
}

func (s MarketSnapshot) Source() SourceKind   { return s.source }
func (s MarketSnapshot) FetchedAt() time.Time { return s.fetchedAt }
func (s MarketSnapshot) Len() int             { return len(s.rows) }
func (s MarketSnapshot) IsEmpty() bool        { return len(s.rows) == 0 }

// At returns a copy of the i-th row.
func (s MarketSnapshot) At(i int) EnrichedMarketRow {
	return s.rows[i]
}

// Rows returns a copy of all rows in fetch order.
func (s MarketSnapshot) Rows() []EnrichedMarketRow {
	out := make([]EnrichedMarketRow, len(s.rows))
	copy(out, s.rows)
	return out
}
