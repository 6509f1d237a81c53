package analytics

import (
	"encoding/json"
	"math"
	"strings"

	"crypto_dash/internal/domain"

	"github.com/shopspring/decimal"
)

// Coerce converts an upstream value into a float64. Anything that is not a
// finite number becomes missing; it never fails.
func Coerce(v any) float64 {
	switch x := v.(type) {
	case nil:
		return domain.Missing
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case uint64:
		return float64(x)
	case *float64:
		if x == nil {
			return domain.Missing
		}
		return finite(*x)
	case json.Number:
		return CoerceString(x.String())
	case decimal.Decimal:
		f, _ := x.Float64()
		return finite(f)
	case string:
		return CoerceString(x)
	case *string:
		if x == nil {
			return domain.Missing
		}
		return CoerceString(*x)
	default:
		return domain.Missing
	}
}

var numberNoise = strings.NewReplacer("$", "", ",", "", "%", "", " ", "", "\u00a0", "", "\u2212", "-")

// CoerceString parses display-formatted numbers such as "$1,234.56",
// "-0.42%" or "1.2e3".
func CoerceString(s string) float64 {
	s = numberNoise.Replace(strings.TrimSpace(s))
	if s == "" {
		return domain.Missing
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return domain.Missing
	}
	f, _ := d.Float64()
	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return domain.Missing
	}
	return f
}
