package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountType identifies how a bundle discount is applied to a base price.
type DiscountType string

const (
	// DiscountNone leaves prices untouched.
	DiscountNone DiscountType = ""
	// DiscountPercentage removes a percentage of the base price.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed subtracts a fixed amount from the base price.
	DiscountFixed DiscountType = "fixed"
)

// ParseDiscountType normalises a raw discount type. Unknown values map to DiscountNone.
func ParseDiscountType(raw string) DiscountType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(DiscountPercentage):
		return DiscountPercentage
	case string(DiscountFixed):
		return DiscountFixed
	default:
		return DiscountNone
	}
}

var hundred = decimal.NewFromInt(100)

// ComputeFinalPrice applies the discount to base. Percentage values are not
// clamped: callers must keep them within [0,100]. Fixed discounts floor at zero.
// The result is not rounded.
func ComputeFinalPrice(base decimal.Decimal, kind DiscountType, value decimal.Decimal) decimal.Decimal {
	switch kind {
	case DiscountPercentage:
		return base.Mul(decimal.NewFromInt(1).Sub(value.Div(hundred)))
	case DiscountFixed:
		return decimal.Max(decimal.Zero, base.Sub(value))
	default:
		return base
	}
}

// Round2 rounds to currency precision.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatMoney renders d with exactly two decimal places, the format the
// platform expects for price fields.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ParseMoney parses a platform money string. Empty strings yield ok=false.
func ParseMoney(raw string) (decimal.Decimal, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
