package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PricedComponent is the pricing view of a bundle component.
type PricedComponent struct {
	ProductID string
	Quantity  int
	// UnitPrice is nil when no price could be determined for the product.
	UnitPrice *decimal.Decimal
}

// ComputePriceDelta returns the signed change in bundle reference price when
// the composition moves from old to updated. Components are matched by product
// identity, so the result does not depend on ordering. Components without a
// unit price count as zero and produce a warning.
func ComputePriceDelta(old, updated []PricedComponent) (decimal.Decimal, []string) {
	oldByID := make(map[string]PricedComponent, len(old))
	for _, c := range old {
		oldByID[c.ProductID] = c
	}
	newByID := make(map[string]PricedComponent, len(updated))
	for _, c := range updated {
		newByID[c.ProductID] = c
	}

	var warnings []string
	unit := func(c PricedComponent) decimal.Decimal {
		if c.UnitPrice == nil {
			warnings = append(warnings, fmt.Sprintf("unable to determine price for product %s", c.ProductID))
			return decimal.Zero
		}
		return *c.UnitPrice
	}

	delta := decimal.Zero
	for _, prev := range old {
		next, ok := newByID[prev.ProductID]
		switch {
		case !ok:
			delta = delta.Sub(unit(prev).Mul(decimal.NewFromInt(int64(prev.Quantity))))
		case next.Quantity != prev.Quantity:
			delta = delta.Add(unit(prev).Mul(decimal.NewFromInt(int64(next.Quantity - prev.Quantity))))
		}
	}
	for _, next := range updated {
		if _, ok := oldByID[next.ProductID]; !ok {
			delta = delta.Add(unit(next).Mul(decimal.NewFromInt(int64(next.Quantity))))
		}
	}
	return delta, warnings
}

// ReconcileVariant shifts the reference price of a variant by delta and
// derives the sale price by reapplying the discount to the shifted reference.
// Both results are rounded to currency precision.
func ReconcileVariant(reference, delta decimal.Decimal, kind DiscountType, value decimal.Decimal) (price, compareAt decimal.Decimal) {
	compareAt = reference.Add(delta)
	price = ComputeFinalPrice(compareAt, kind, value)
	return Round2(price), Round2(compareAt)
}

// UnitPrice picks the primary price of a component: the first variant price,
// else the component's own price. Nil means no usable price was found.
func UnitPrice(variantPrices []string, price string) *decimal.Decimal {
	if len(variantPrices) > 0 {
		if d, ok := ParseMoney(variantPrices[0]); ok {
			return &d
		}
		return nil
	}
	if d, ok := ParseMoney(price); ok {
		return &d
	}
	return nil
}
