// Package cartexpand implements the checkout cart transform that replaces a
// bundle line with its component variants.
package cartexpand

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/noah-isme/bundle-admin/internal/shopify"
)

// Input is the decoded function input.
type Input struct {
	Cart Cart `json:"cart"`
}

// Cart holds the lines under evaluation.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// CartLine is one checkout line. BundleID carries the serialised component
// list of a bundle line.
type CartLine struct {
	ID       string     `json:"id"`
	BundleID *Attribute `json:"bundleId"`
}

// Attribute is a line attribute value.
type Attribute struct {
	Value *string `json:"value"`
}

// Result is the function output.
type Result struct {
	Operations []Operation `json:"operations"`
	// Diagnostics lists lines that were skipped; never serialised.
	Diagnostics []Diagnostic `json:"-"`
}

// Operation is one cart transform operation.
type Operation struct {
	Expand *ExpandOperation `json:"expand,omitempty"`
}

// ExpandOperation replaces a cart line with component lines.
type ExpandOperation struct {
	CartLineID        string         `json:"cartLineId"`
	ExpandedCartItems []ExpandedItem `json:"expandedCartItems"`
}

// ExpandedItem is one component line.
type ExpandedItem struct {
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

// Diagnostic explains why a bundle line was left untouched.
type Diagnostic struct {
	CartLineID string
	Reason     string
}

type bundleComponent struct {
	ID       variantRef `json:"id"`
	Quantity int        `json:"quantity"`
}

// variantRef accepts a variant id encoded as a JSON string or number.
type variantRef string

func (v *variantRef) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*v = variantRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("variant id must be a string or number: %w", err)
	}
	*v = variantRef(n.String())
	return nil
}

// Run expands every line carrying bundle metadata. Lines without metadata
// pass through. Lines whose metadata cannot be decoded are skipped and
// reported in Result.Diagnostics; the evaluation itself never fails.
func Run(in Input) Result {
	res := Result{Operations: []Operation{}}
	for _, line := range in.Cart.Lines {
		if line.BundleID == nil || line.BundleID.Value == nil || *line.BundleID.Value == "" {
			continue
		}
		items, err := expandLine(*line.BundleID.Value)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{CartLineID: line.ID, Reason: err.Error()})
			continue
		}
		res.Operations = append(res.Operations, Operation{Expand: &ExpandOperation{
			CartLineID:        line.ID,
			ExpandedCartItems: items,
		}})
	}
	return res
}

func expandLine(metadata string) ([]ExpandedItem, error) {
	var components []bundleComponent
	if err := json.Unmarshal([]byte(metadata), &components); err != nil {
		return nil, fmt.Errorf("invalid bundle metadata: %w", err)
	}
	if len(components) == 0 {
		return nil, errors.New("bundle metadata lists no components")
	}
	items := make([]ExpandedItem, 0, len(components))
	for i, c := range components {
		if c.ID == "" {
			return nil, fmt.Errorf("component %d has no variant id", i)
		}
		if c.Quantity < 1 {
			return nil, fmt.Errorf("component %d has quantity %d", i, c.Quantity)
		}
		items = append(items, ExpandedItem{
			MerchandiseID: shopify.VariantGID(string(c.ID)),
			Quantity:      c.Quantity,
		})
	}
	return items, nil
}

// Execute decodes the input from r, runs the transform and writes the result
// to w. Skipped lines are logged as warnings.
func Execute(r io.Reader, w io.Writer, logger zerolog.Logger) error {
	var in Input
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return fmt.Errorf("cartexpand: decode input: %w", err)
	}
	res := Run(in)
	for _, d := range res.Diagnostics {
		logger.Warn().Str("cart_line_id", d.CartLineID).Str("reason", d.Reason).Msg("bundle_line_skipped")
	}
	logger.Debug().Int("lines", len(in.Cart.Lines)).Int("operations", len(res.Operations)).Msg("cart_transform_done")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		return fmt.Errorf("cartexpand: encode result: %w", err)
	}
	return nil
}
