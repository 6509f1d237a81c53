package service

import (
	"strings"

	"crypto_dash/internal/domain"

	"github.com/shopspring/decimal"
)

// MissingText is shown in place of absent numbers.
const MissingText = "—"

// FormatUSD renders a dollar amount: six decimals below $1, otherwise two
// decimals with thousands separators.
func FormatUSD(v float64) string {
	if domain.IsMissing(v) {
		return MissingText
	}
	d := decimal.NewFromFloat(v)
	var s string
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		s = d.StringFixed(6)
	} else {
		s = groupThousands(d.StringFixed(2))
	}
	if rest, neg := strings.CutPrefix(s, "-"); neg {
		return "-$" + rest
	}
	return "$" + s
}

// FormatPct renders a percentage with two decimals.
func FormatPct(v float64) string {
	if domain.IsMissing(v) {
		return MissingText
	}
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

// FormatNumber renders a plain quantity with thousands separators.
func FormatNumber(v float64) string {
	if domain.IsMissing(v) {
		return MissingText
	}
	return groupThousands(decimal.NewFromFloat(v).StringFixed(0))
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}
