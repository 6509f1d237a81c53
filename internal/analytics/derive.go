// Package analytics derives per-coin fields from raw market rows and
// answers the investor queries over the resulting snapshot.
package analytics

import (
	"math"
	"runtime"
	"strings"
	"sync"
	"time"

	"crypto_dash/internal/domain"
)

// priceBin is a half-open [lo, hi) bucket.
type priceBin struct {
	lo, hi float64
	label  domain.PriceRange
}

var priceBins = []priceBin{
	{0, 0.05, domain.RangeMicro},
	{0.05, 0.5, domain.RangeSmall},
	{0.5, 5, domain.RangeMid},
	{5, 50, domain.RangeLarge},
	{50, math.Inf(1), domain.RangeAbove50},
}

// Enrich derives every field of every row. Rows are never dropped.
func Enrich(raw []domain.RawMarketRow, source domain.SourceKind, fetchedAt time.Time) domain.MarketSnapshot {
	rows := make([]domain.EnrichedMarketRow, len(raw))
	for i, r := range raw {
		rows[i] = EnrichRow(r)
	}
	return domain.NewMarketSnapshot(source, fetchedAt, rows)
}

// EnrichParallel is Enrich with rows partitioned across workers.
// The result is identical to Enrich; workers <= 0 uses GOMAXPROCS.
func EnrichParallel(raw []domain.RawMarketRow, workers int, source domain.SourceKind, fetchedAt time.Time) domain.MarketSnapshot {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(raw) {
		workers = len(raw)
	}
	if workers <= 1 {
		return Enrich(raw, source, fetchedAt)
	}

	rows := make([]domain.EnrichedMarketRow, len(raw))
	chunk := (len(raw) + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < len(raw); start += chunk {
		end := min(start+chunk, len(raw))
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				rows[i] = EnrichRow(raw[i])
			}
		}(start, end)
	}
	wg.Wait()

	return domain.NewMarketSnapshot(source, fetchedAt, rows)
}

// EnrichRow computes the derived fields of a single row from its own raw fields.
func EnrichRow(r domain.RawMarketRow) domain.EnrichedMarketRow {
	r = sanitize(r)
	return domain.EnrichedMarketRow{
		RawMarketRow:       r,
		PrevPrice1h:        PrevPriceFromIncrease(r.Price, r.Pct1h),
		PrevPrice24h:       PrevPriceFromDecrease(r.Price, r.Pct24h),
		PrevPrice7d:        PrevPriceFromIncrease(r.Price, r.Pct7d),
		AvgDownfallPct:     AvgDownfall(r.Pct1h, r.Pct24h, r.Pct7d),
		PriceRange:         PriceRangeOf(r.Price),
		PriceCategory0to50: PriceBandOf(r.Price),
		PriceCategory10:    PriceTierOf(r.Price),
	}
}

// sanitize maps non-finite numbers to missing and normalizes text fields.
func sanitize(r domain.RawMarketRow) domain.RawMarketRow {
	r.CoinName = strings.TrimSpace(r.CoinName)
	r.CoinSymbol = strings.ToUpper(strings.TrimSpace(r.CoinSymbol))
	for _, f := range []*float64{&r.Price, &r.Pct1h, &r.Pct24h, &r.Pct7d, &r.Volume24h, &r.MarketCap, &r.CirculatingSupply} {
		if math.IsInf(*f, 0) {
			*f = domain.Missing
		}
	}
	return r
}

// PrevPriceFromIncrease treats pct as the increase that produced price:
// price / (1 + pct/100).
func PrevPriceFromIncrease(price, pct float64) float64 {
	return divide(price, 1+pct/100)
}

// PrevPriceFromDecrease treats pct as a decrease regardless of its sign:
// price / (1 - |pct|/100).
func PrevPriceFromDecrease(price, pct float64) float64 {
	return divide(price, 1-math.Abs(pct)/100)
}

func divide(num, denom float64) float64 {
	if domain.IsMissing(num) || domain.IsMissing(denom) || denom == 0 {
		return domain.Missing
	}
	return num / denom
}

// AvgDownfall is the mean of the absolute percent changes that are present.
// It is missing only when all of them are.
func AvgDownfall(pcts ...float64) float64 {
	var sum float64
	var n int
	for _, p := range pcts {
		if domain.IsMissing(p) {
			continue
		}
		sum += math.Abs(p)
		n++
	}
	if n == 0 {
		return domain.Missing
	}
	return sum / float64(n)
}

// PriceRangeOf buckets a non-negative price. Negative or missing prices
// have no bucket.
func PriceRangeOf(price float64) domain.PriceRange {
	if domain.IsMissing(price) {
		return domain.RangeUndefined
	}
	for _, b := range priceBins {
		if price >= b.lo && price < b.hi {
			return b.label
		}
	}
	return domain.RangeUndefined
}

// PriceBandOf splits at $50 inclusive.
func PriceBandOf(price float64) domain.PriceBand {
	if domain.IsMissing(price) {
		return ""
	}
	if price <= 50 {
		return domain.BandUpTo50
	}
	return domain.BandAbove50
}

// PriceTierOf splits at $10 inclusive.
func PriceTierOf(price float64) domain.PriceTier {
	if domain.IsMissing(price) {
		return ""
	}
	if price >= 10 {
		return domain.TierAtLeast10
	}
	return domain.TierUnder10
}
