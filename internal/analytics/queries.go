package analytics

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"crypto_dash/internal/domain"
)

const (
	topN          = 10
	liquidityTopN = 5

	// OthersLabel names the aggregate slice of the liquidity view.
	OthersLabel = "Others"
)

// BudgetPick is the coin with the least average downfall in a price range selection.
type BudgetPick struct {
	Row        domain.EnrichedMarketRow
	Considered int
}

// PriceIncrease pairs a row with its absolute 1h price change.
type PriceIncrease struct {
	Row      domain.EnrichedMarketRow
	Change1h float64
}

// CoinFacts is one side of a coin comparison.
type CoinFacts struct {
	Name              string
	Symbol            string
	Price             float64
	Volume24h         float64
	MarketCap         float64
	CirculatingSupply float64
}

// Comparison holds both coins and the coin1 - coin2 differences.
type Comparison struct {
	First      CoinFacts
	Second     CoinFacts
	VolumeDiff float64
	SupplyDiff float64
	MarketDiff float64
}

// LiquidityShare is one slice of the liquidity view.
type LiquidityShare struct {
	CoinName   string
	CoinSymbol string
	Volume24h  float64
	Others     bool
}

// filter returns the rows of s that satisfy keep, in snapshot order.
func filter(s domain.MarketSnapshot, keep func(r *domain.EnrichedMarketRow) bool) []domain.EnrichedMarketRow {
	var out []domain.EnrichedMarketRow
	for i := 0; i < s.Len(); i++ {
		r := s.At(i)
		if keep(&r) {
			out = append(out, r)
		}
	}
	return out
}

// sortDesc orders rows by key descending, keeping snapshot order on ties.
func sortDesc[T any](rows []T, key func(T) float64) {
	slices.SortStableFunc(rows, func(a, b T) int {
		ka, kb := key(a), key(b)
		switch {
		case ka > kb:
			return -1
		case ka < kb:
			return 1
		default:
			return 0
		}
	})
}

func head[T any](rows []T, n int) []T {
	if len(rows) > n {
		return rows[:n:n]
	}
	return rows
}

func present(vs ...float64) bool {
	for _, v := range vs {
		if domain.IsMissing(v) {
			return false
		}
	}
	return true
}

// LeastAvgDownfallByRange picks the coin with the smallest average downfall
// among rows whose price range is selected. The first minimum in snapshot
// order wins. It reports false when no row qualifies, including when
// ranges is empty.
func LeastAvgDownfallByRange(s domain.MarketSnapshot, ranges []domain.PriceRange) (BudgetPick, bool) {
	if len(ranges) == 0 {
		return BudgetPick{}, false
	}
	selected := make(map[domain.PriceRange]struct{}, len(ranges))
	for _, r := range ranges {
		selected[r] = struct{}{}
	}

	var pick BudgetPick
	for i := 0; i < s.Len(); i++ {
		r := s.At(i)
		if _, ok := selected[r.PriceRange]; !ok || r.PriceRange == domain.RangeUndefined {
			continue
		}
		if !present(r.AvgDownfallPct, r.Price) {
			continue
		}
		if pick.Considered == 0 || r.AvgDownfallPct < pick.Row.AvgDownfallPct {
			pick.Row = r
		}
		pick.Considered++
	}
	return pick, pick.Considered > 0
}

// TopCheapByPrev1h returns up to 10 coins priced $0-$5 with the highest
// reconstructed 1h-before price.
func TopCheapByPrev1h(s domain.MarketSnapshot) []domain.EnrichedMarketRow {
	rows := filter(s, func(r *domain.EnrichedMarketRow) bool {
		return present(r.Price, r.PrevPrice1h, r.PrevPrice24h, r.PrevPrice7d) &&
			r.Price >= 0 && r.Price <= 5
	})
	sortDesc(rows, func(r domain.EnrichedMarketRow) float64 { return r.PrevPrice1h })
	return head(rows, topN)
}

// TopPriceIncrease returns up to 10 coins of the given tier with the largest
// absolute change against the reconstructed 1h-before price.
func TopPriceIncrease(s domain.MarketSnapshot, tier domain.PriceTier) []PriceIncrease {
	var out []PriceIncrease
	for i := 0; i < s.Len(); i++ {
		r := s.At(i)
		if !present(r.Price, r.PrevPrice1h) || r.PriceCategory10 != tier {
			continue
		}
		out = append(out, PriceIncrease{Row: r, Change1h: r.Price - r.PrevPrice1h})
	}
	sortDesc(out, func(p PriceIncrease) float64 { return p.Change1h })
	return head(out, topN)
}

// HasLiquidityPrefix reports whether name starts with a vowel or B, C, D.
func HasLiquidityPrefix(name string) bool {
	first, _ := utf8.DecodeRuneInString(name)
	return strings.ContainsRune("AEIOUBCD", unicode.ToUpper(first))
}

// TopVolumeByPrefix returns up to 10 coins whose name passes
// HasLiquidityPrefix, by 24h volume.
func TopVolumeByPrefix(s domain.MarketSnapshot) []domain.EnrichedMarketRow {
	rows := filter(s, func(r *domain.EnrichedMarketRow) bool {
		return present(r.Volume24h) && HasLiquidityPrefix(r.CoinName)
	})
	sortDesc(rows, func(r domain.EnrichedMarketRow) float64 { return r.Volume24h })
	return head(rows, topN)
}

// ValidCoinName accepts 3 to 10 characters after trimming, with no digits.
func ValidCoinName(name string) bool {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n <= 2 || n >= 11 {
		return false
	}
	return !strings.ContainsFunc(name, unicode.IsDigit)
}

// CompareCoins looks up two coins by name and returns their facts and
// differences. Invalid names fail with a *domain.ValidationError before any
// lookup; unmatched names fail with a *domain.NotFoundError.
func CompareCoins(s domain.MarketSnapshot, name1, name2 string) (Comparison, error) {
	for _, n := range []string{name1, name2} {
		if !ValidCoinName(n) {
			return Comparison{}, &domain.ValidationError{Field: "coin name", Value: n, Err: domain.ErrInvalidCoinName}
		}
	}

	a, okA := findByName(s, name1)
	b, okB := findByName(s, name2)
	if !okA || !okB {
		nf := &domain.NotFoundError{}
		if !okA {
			nf.Names = append(nf.Names, strings.TrimSpace(name1))
		}
		if !okB {
			nf.Names = append(nf.Names, strings.TrimSpace(name2))
		}
		return Comparison{}, nf
	}

	return Comparison{
		First:      factsOf(a),
		Second:     factsOf(b),
		VolumeDiff: a.Volume24h - b.Volume24h,
		SupplyDiff: a.CirculatingSupply - b.CirculatingSupply,
		MarketDiff: a.MarketCap - b.MarketCap,
	}, nil
}

func findByName(s domain.MarketSnapshot, name string) (domain.EnrichedMarketRow, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for i := 0; i < s.Len(); i++ {
		r := s.At(i)
		if strings.ToLower(strings.TrimSpace(r.CoinName)) == want {
			return r, true
		}
	}
	return domain.EnrichedMarketRow{}, false
}

func factsOf(r domain.EnrichedMarketRow) CoinFacts {
	return CoinFacts{
		Name:              r.CoinName,
		Symbol:            r.CoinSymbol,
		Price:             r.Price,
		Volume24h:         r.Volume24h,
		MarketCap:         r.MarketCap,
		CirculatingSupply: r.CirculatingSupply,
	}
}

// LiquidityTop5WithOthers returns the five most traded coins of the band and
// an "Others" slice summing the rest. Others is omitted unless its sum is
// strictly positive.
func LiquidityTop5WithOthers(s domain.MarketSnapshot, band domain.PriceBand) []LiquidityShare {
	rows := filter(s, func(r *domain.EnrichedMarketRow) bool {
		return present(r.Price, r.Volume24h) && r.PriceCategory0to50 == band
	})
	sortDesc(rows, func(r domain.EnrichedMarketRow) float64 { return r.Volume24h })

	out := make([]LiquidityShare, 0, liquidityTopN+1)
	for _, r := range head(rows, liquidityTopN) {
		out = append(out, LiquidityShare{CoinName: r.CoinName, CoinSymbol: r.CoinSymbol, Volume24h: r.Volume24h})
	}

	if len(rows) > liquidityTopN {
		var rest float64
		for _, r := range rows[liquidityTopN:] {
			rest += r.Volume24h
		}
		if rest > 0 {
			out = append(out, LiquidityShare{CoinName: OthersLabel, Volume24h: rest, Others: true})
		}
	}
	return out
}
