// Package bundle manages product bundles: the local record, its platform
// product and the pricing of the bundle variants.
package bundle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/bundle-admin/internal/media"
	"github.com/noah-isme/bundle-admin/internal/pricing"
)

// BundleKind discriminates the two bundle layouts.
type BundleKind string

const (
	KindFixed    BundleKind = "fixed"
	KindInfinite BundleKind = "infinite"
)

// Status is the publication state requested for the bundle product.
type Status string

const (
	StatusActive Status = "active"
	StatusDraft  Status = "draft"
)

// Discount applied to the bundle reference price. Type DiscountNone means no
// discount and carries a zero value.
type Discount struct {
	Type  pricing.DiscountType `json:"type"`
	Value decimal.Decimal      `json:"value"`
}

// None reports whether the discount leaves prices untouched.
func (d Discount) None() bool { return d.Type == pricing.DiscountNone }

// OptionSelection lists the option values a component offers in the bundle.
type OptionSelection struct {
	OptionID string   `json:"id" validate:"required"`
	Name     string   `json:"name"`
	Values   []string `json:"values" validate:"min=1,dive,required"`
}

// ComponentVariant is the cached price of one component variant.
type ComponentVariant struct {
	ID             string  `json:"id"`
	Price          string  `json:"price"`
	CompareAtPrice *string `json:"compareAtPrice,omitempty"`
}

// Component is one product of a fixed bundle.
type Component struct {
	ProductID string             `json:"id" validate:"required"`
	Title     string             `json:"title"`
	Quantity  int                `json:"quantity" validate:"min=1"`
	Options   []OptionSelection  `json:"options" validate:"dive"`
	Variants  []ComponentVariant `json:"variants,omitempty"`
	Price     string             `json:"price,omitempty"`
}

// UnitPrice is the primary unit price of the component, nil when unknown.
func (c Component) UnitPrice() *decimal.Decimal {
	prices := make([]string, 0, len(c.Variants))
	for _, v := range c.Variants {
		prices = append(prices, v.Price)
	}
	return pricing.UnitPrice(prices, c.Price)
}

// GroupProduct is a selectable variant inside a component group.
type GroupProduct struct {
	VariantID string `json:"variantId"`
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Image     string `json:"image,omitempty"`
	Price     string `json:"price,omitempty"`
	Stock     int    `json:"stock"`
}

// ComponentGroup is a named pool of products of an infinite bundle.
type ComponentGroup struct {
	ID       string         `json:"id"`
	Name     string         `json:"name" validate:"required"`
	Products []GroupProduct `json:"products" validate:"min=1"`
}

// VariantPrice is the price pair written to a bundle variant.
type VariantPrice struct {
	VariantID      string `json:"id"`
	Price          string `json:"price"`
	CompareAtPrice string `json:"compareAtPrice"`
}

// Bundle is the local record of a platform bundle product.
type Bundle struct {
	ID            int64            `json:"id"`
	ShopDomain    string           `json:"shop"`
	ProductID     string           `json:"productId"`
	ProductHandle string           `json:"productHandle"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Discount      Discount         `json:"discount"`
	Kind          BundleKind       `json:"kind"`
	Fixed         []Component      `json:"products,omitempty"`
	Groups        []ComponentGroup `json:"groups,omitempty"`
	Variants      []VariantPrice   `json:"variants"`
	Version       int64            `json:"version"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// ContainsProduct reports whether productID is a component of a fixed bundle.
func (b Bundle) ContainsProduct(productID string) bool {
	for _, c := range b.Fixed {
		if c.ProductID == productID {
			return true
		}
	}
	return false
}

// DiscountInput is the discount part of create and update requests.
type DiscountInput struct {
	NoDiscount    bool                `json:"noDiscount"`
	DiscountType  string              `json:"discountType"`
	DiscountValue decimal.NullDecimal `json:"discountValue"`
}

// Resolve turns the request fields into a Discount. An explicit noDiscount,
// or neither a type nor a value, yields no discount.
func (d DiscountInput) Resolve() Discount {
	if d.NoDiscount || (d.DiscountType == "" && !d.DiscountValue.Valid) {
		return Discount{}
	}
	kind := pricing.ParseDiscountType(d.DiscountType)
	if kind == pricing.DiscountNone {
		return Discount{}
	}
	return Discount{Type: kind, Value: d.DiscountValue.Decimal}
}

// Collection references a collection the bundle product joins.
type Collection struct {
	ID string `json:"id" validate:"required"`
}

// MediaMeta describes one entry of the media list sent with a create request.
// The bytes of new files arrive as separate multipart parts.
type MediaMeta struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	Size           int64  `json:"size"`
	AltText        string `json:"altText"`
	Src            string `json:"src"`
	IsProductImage bool   `json:"isProductImage"`
}

// CreateInput is the request to create a fixed bundle.
type CreateInput struct {
	Name              string       `json:"bundleName" validate:"required"`
	Description       string       `json:"description"`
	Status            Status       `json:"status" validate:"required,oneof=active draft"`
	Products          []Component  `json:"products" validate:"required,min=1,dive"`
	ProductTags       []string     `json:"productTags"`
	ProductType       string       `json:"productType"`
	CollectionsToJoin []Collection `json:"collectionsToJoin" validate:"dive"`
	MediaMeta         []MediaMeta  `json:"media"`
	DiscountInput

	Media []media.Item `json:"-"`
}

// UpdateInput is the request to change the composition or discount of a
// fixed bundle.
type UpdateInput struct {
	Products []Component `json:"products" validate:"required,min=1,dive"`
	DiscountInput
}

// InfiniteInput creates or updates a bundle built from component groups.
type InfiniteInput struct {
	Name   string           `json:"bundleName" validate:"required"`
	Status Status           `json:"status" validate:"omitempty,oneof=active draft"`
	Groups []ComponentGroup `json:"groups" validate:"required,min=1,dive"`
}

// CreateResult reports a created bundle.
type CreateResult struct {
	BundleID      int64  `json:"bundleId"`
	ProductID     string `json:"productId"`
	ProductHandle string `json:"productHandle"`
	Message       string `json:"message"`
}

// UpdateResult reports an applied update along with the completed operation
// and any pricing warnings.
type UpdateResult struct {
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	Bundle    Bundle        `json:"bundle"`
	Operation OperationView `json:"operation"`
	Warnings  []string      `json:"warnings,omitempty"`
}

// OperationView is the client-facing summary of a completed platform job.
type OperationView struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ProductID string `json:"productId,omitempty"`
}
