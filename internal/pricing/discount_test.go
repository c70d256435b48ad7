package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestComputeFinalPriceFixed(t *testing.T) {
	require.True(t, ComputeFinalPrice(dec("100"), DiscountFixed, dec("30")).Equal(dec("70")))
	require.True(t, ComputeFinalPrice(dec("50"), DiscountFixed, dec("999")).Equal(decimal.Zero))
}

func TestComputeFinalPriceFixedMonotonic(t *testing.T) {
	base := dec("42.50")
	prev := ComputeFinalPrice(base, DiscountFixed, decimal.Zero)
	for v := int64(1); v <= 60; v++ {
		got := ComputeFinalPrice(base, DiscountFixed, decimal.NewFromInt(v))
		require.False(t, got.IsNegative(), "value %d", v)
		require.True(t, got.LessThanOrEqual(prev), "value %d", v)
		prev = got
	}
}

func TestComputeFinalPricePercentage(t *testing.T) {
	require.True(t, ComputeFinalPrice(dec("200"), DiscountPercentage, dec("25")).Equal(dec("150")))
	require.True(t, ComputeFinalPrice(dec("200"), DiscountPercentage, decimal.Zero).Equal(dec("200")))
}

func TestComputeFinalPricePercentageNotClamped(t *testing.T) {
	got := ComputeFinalPrice(dec("10"), DiscountPercentage, dec("150"))
	require.True(t, got.Equal(dec("-5")))
}

func TestComputeFinalPriceNoDiscount(t *testing.T) {
	for _, v := range []string{"0", "10", "1000"} {
		require.True(t, ComputeFinalPrice(dec("19.99"), DiscountNone, dec(v)).Equal(dec("19.99")))
	}
}

func TestParseDiscountType(t *testing.T) {
	require.Equal(t, DiscountPercentage, ParseDiscountType(" Percentage "))
	require.Equal(t, DiscountFixed, ParseDiscountType("fixed"))
	require.Equal(t, DiscountNone, ParseDiscountType(""))
	require.Equal(t, DiscountNone, ParseDiscountType("bogo"))
}

func TestFormatMoney(t *testing.T) {
	require.Equal(t, "33.33", FormatMoney(Round2(ComputeFinalPrice(dec("100"), DiscountPercentage, dec("66.67")))))
	require.Equal(t, "5.00", FormatMoney(dec("5")))
	_, ok := ParseMoney(" ")
	require.False(t, ok)
	v, ok := ParseMoney("12.5")
	require.True(t, ok)
	require.True(t, v.Equal(dec("12.5")))
}
