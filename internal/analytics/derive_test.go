package analytics

import (
	"math"
	"testing"
	"time"

	"crypto_dash/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func raw(name string, price, p1h, p24h, p7d float64) domain.RawMarketRow {
	return domain.RawMarketRow{
		ID:                name,
		CoinName:          name,
		CoinSymbol:        name[:min(3, len(name))],
		Price:             price,
		Pct1h:             p1h,
		Pct24h:            p24h,
		Pct7d:             p7d,
		Volume24h:         nan,
		MarketCap:         nan,
		CirculatingSupply: nan,
	}
}

func TestPrevPriceFromIncrease(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		pct   float64
		want  float64
		miss  bool
	}{
		{name: "positive change", price: 110, pct: 10, want: 100},
		{name: "negative change", price: 90, pct: -10, want: 100},
		{name: "no change", price: 5, pct: 0, want: 5},
		{name: "minus 100 is degenerate", price: 2, pct: -100, miss: true},
		{name: "missing pct", price: 2, pct: nan, miss: true},
		{name: "missing price", price: nan, pct: 3, miss: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PrevPriceFromIncrease(tt.price, tt.pct)
			if tt.miss {
				assert.True(t, domain.IsMissing(got), "expected missing, got %v", got)
				return
			}
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.False(t, math.IsInf(got, 0))
		})
	}
}

func TestPrevPriceFromDecrease(t *testing.T) {
	t.Run("sign is discarded", func(t *testing.T) {
		assert.InDelta(t, 125.0, PrevPriceFromDecrease(100, 20), 1e-9)
		assert.InDelta(t, 125.0, PrevPriceFromDecrease(100, -20), 1e-9)
	})

	t.Run("100 percent is degenerate", func(t *testing.T) {
		assert.True(t, domain.IsMissing(PrevPriceFromDecrease(100, 100)))
		assert.True(t, domain.IsMissing(PrevPriceFromDecrease(100, -100)))
	})

	t.Run("missing pct", func(t *testing.T) {
		assert.True(t, domain.IsMissing(PrevPriceFromDecrease(100, nan)))
	})
}

func TestAvgDownfall(t *testing.T) {
	assert.InDelta(t, 2.0, AvgDownfall(-1, 2, -3), 1e-9)
	assert.InDelta(t, 3.0, AvgDownfall(nan, -2, 4), 1e-9)
	assert.InDelta(t, 7.0, AvgDownfall(nan, nan, -7), 1e-9)
	assert.True(t, domain.IsMissing(AvgDownfall(nan, nan, nan)))
}

func TestPriceRangeOf(t *testing.T) {
	tests := []struct {
		price float64
		want  domain.PriceRange
	}{
		{0, domain.RangeMicro},
		{0.0499, domain.RangeMicro},
		{0.05, domain.RangeSmall},
		{0.4999, domain.RangeSmall},
		{0.5, domain.RangeMid},
		{4.99, domain.RangeMid},
		{5, domain.RangeLarge},
		{49.99, domain.RangeLarge},
		{50, domain.RangeAbove50},
		{1e9, domain.RangeAbove50},
		{-0.01, domain.RangeUndefined},
		{nan, domain.RangeUndefined},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PriceRangeOf(tt.price), "price %v", tt.price)
	}
}

func TestPriceRangeOf_Partition(t *testing.T) {
	// Every non-negative finite price falls into exactly one bucket.
	for _, p := range []float64{0, 1e-12, 0.05 - 1e-12, 0.05, 0.3, 0.5, 2, 5, 12, 50, 50.0001, 1e15} {
		hits := 0
		for _, b := range priceBins {
			if p >= b.lo && p < b.hi {
				hits++
			}
		}
		assert.Equal(t, 1, hits, "price %v", p)
		assert.NotEqual(t, domain.RangeUndefined, PriceRangeOf(p))
	}
}

func TestPriceBandAndTier(t *testing.T) {
	assert.Equal(t, domain.BandUpTo50, PriceBandOf(50))
	assert.Equal(t, domain.BandAbove50, PriceBandOf(50.01))
	assert.Equal(t, domain.BandUpTo50, PriceBandOf(-1))
	assert.Equal(t, domain.PriceBand(""), PriceBandOf(nan))

	assert.Equal(t, domain.TierAtLeast10, PriceTierOf(10))
	assert.Equal(t, domain.TierUnder10, PriceTierOf(9.99))
	assert.Equal(t, domain.PriceTier(""), PriceTierOf(nan))
}

func TestEnrichRow(t *testing.T) {
	t.Run("24h reconstruction", func(t *testing.T) {
		r := EnrichRow(raw("Solana", 100, nan, 20, nan))
		assert.InDelta(t, 125.0, r.PrevPrice24h, 1e-9)
		assert.True(t, domain.IsMissing(r.PrevPrice1h))
		assert.True(t, domain.IsMissing(r.PrevPrice7d))
		assert.InDelta(t, 20.0, r.AvgDownfallPct, 1e-9)
		assert.Equal(t, domain.RangeAbove50, r.PriceRange)
		assert.Equal(t, domain.BandAbove50, r.PriceCategory0to50)
		assert.Equal(t, domain.TierAtLeast10, r.PriceCategory10)
	})

	t.Run("degenerate 1h only affects that field", func(t *testing.T) {
		r := EnrichRow(raw("Dogecoin", 2, -100, 5, 10))
		assert.True(t, domain.IsMissing(r.PrevPrice1h))
		assert.InDelta(t, 2/0.95, r.PrevPrice24h, 1e-9)
		assert.InDelta(t, 2/1.1, r.PrevPrice7d, 1e-9)
		assert.Equal(t, domain.RangeMid, r.PriceRange)
	})

	t.Run("non-finite inputs become missing", func(t *testing.T) {
		r := EnrichRow(raw("Weird", math.Inf(1), 1, 1, 1))
		assert.True(t, domain.IsMissing(r.Price))
		assert.Equal(t, domain.RangeUndefined, r.PriceRange)
	})

	t.Run("text normalization", func(t *testing.T) {
		in := raw("Bitcoin", 1, 1, 1, 1)
		in.CoinName = "  Bitcoin "
		in.CoinSymbol = "btc"
		r := EnrichRow(in)
		assert.Equal(t, "Bitcoin", r.CoinName)
		assert.Equal(t, "BTC", r.CoinSymbol)
	})
}

func TestEnrich_KeepsEveryRow(t *testing.T) {
	in := []domain.RawMarketRow{
		raw("Alpha", nan, nan, nan, nan),
		raw("Beta", 1, 2, 3, 4),
	}
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	snap := Enrich(in, domain.SourceCoinGecko, at)
	require.Equal(t, 2, snap.Len())
	assert.Equal(t, "Alpha", snap.At(0).CoinName)
	assert.Equal(t, domain.SourceCoinGecko, snap.Source())
	assert.Equal(t, at, snap.FetchedAt())
}

func TestEnrich_Empty(t *testing.T) {
	snap := Enrich(nil, domain.SourceCoinGecko, time.Now())
	assert.True(t, snap.IsEmpty())
}

func TestEnrichParallel_MatchesSequential(t *testing.T) {
	var in []domain.RawMarketRow
	for i := 0; i < 257; i++ {
		p := float64(i) * 0.37
		in = append(in, raw("Coin", p, float64(i%7)-3, float64(i%11)-5, nan))
	}
	at := time.Now()

	seq := Enrich(in, domain.SourceCoinGecko, at)
	par := EnrichParallel(in, 4, domain.SourceCoinGecko, at)

	require.Equal(t, seq.Len(), par.Len())
	for i := 0; i < seq.Len(); i++ {
		a, b := seq.At(i), par.At(i)
		assert.Equal(t, a.PriceRange, b.PriceRange)
		assert.Equal(t, a.Price, b.Price)
		if domain.IsMissing(a.PrevPrice1h) {
			assert.True(t, domain.IsMissing(b.PrevPrice1h))
		} else {
			assert.Equal(t, a.PrevPrice1h, b.PrevPrice1h)
		}
	}
}

func TestCoerce(t *testing.T) {
	f := 1.5
	assert.Equal(t, 1.5, Coerce(1.5))
	assert.Equal(t, 1.5, Coerce(&f))
	assert.Equal(t, 3.0, Coerce(3))
	assert.Equal(t, 1234.56, Coerce("$1,234.56"))
	assert.Equal(t, -0.42, Coerce("-0.42%"))
	assert.Equal(t, 1200.0, Coerce("1.2e3"))

	for _, v := range []any{nil, "", "n/a", "--", (*float64)(nil), math.Inf(1), nan, struct{}{}} {
		assert.True(t, domain.IsMissing(Coerce(v)), "value %#v", v)
	}
}
