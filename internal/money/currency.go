package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToMinor converts a decimal currency amount to cents.
func ToMinor(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// FromMinor converts cents back to a currency amount.
func FromMinor(cents int64) float64 {
	return decimal.NewFromInt(cents).Div(hundred).InexactFloat64()
}

// FormatBRL renders v as "R$ 1234,50".
func FormatBRL(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	return "R$ " + strings.Replace(s, ".", ",", 1)
}
