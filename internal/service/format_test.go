package service

import (
	"testing"

	"crypto_dash/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.0123456, "$0.012346"},
		{0, "$0.000000"},
		{1, "$1.00"},
		{999.999, "$1,000.00"},
		{64000.5, "$64,000.50"},
		{1234567.891, "$1,234,567.89"},
		{-2500, "-$2,500.00"},
		{-0.5, "-$0.500000"},
		{domain.Missing, MissingText},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUSD(tt.in), "FormatUSD(%v)", tt.in)
	}
}

func TestFormatPct(t *testing.T) {
	assert.Equal(t, "1.25%", FormatPct(1.254))
	assert.Equal(t, "-0.50%", FormatPct(-0.5))
	assert.Equal(t, MissingText, FormatPct(domain.Missing))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "19,700,000", FormatNumber(19.7e6))
	assert.Equal(t, "12", FormatNumber(12))
	assert.Equal(t, MissingText, FormatNumber(domain.Missing))
}
