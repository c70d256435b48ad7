package cartexpand_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bundle-admin/internal/cartexpand"
)

func line(id string, metadata *string) cartexpand.CartLine {
	l := cartexpand.CartLine{ID: id}
	if metadata != nil {
		l.BundleID = &cartexpand.Attribute{Value: metadata}
	}
	return l
}

func ptr(s string) *string { return &s }

func TestRunWithoutBundleLines(t *testing.T) {
	res := cartexpand.Run(cartexpand.Input{Cart: cartexpand.Cart{Lines: []cartexpand.CartLine{line("gid://shopify/CartLine/1", nil)}}})
	require.NotNil(t, res.Operations)
	require.Empty(t, res.Operations)
	require.Empty(t, res.Diagnostics)
}

func TestRunExpandsBundleLine(t *testing.T) {
	res := cartexpand.Run(cartexpand.Input{Cart: cartexpand.Cart{Lines: []cartexpand.CartLine{
		line("gid://shopify/CartLine/1", ptr(`[{"id":"V1","quantity":2}]`)),
	}}})
	require.Len(t, res.Operations, 1)
	require.Equal(t, &cartexpand.ExpandOperation{
		CartLineID:        "gid://shopify/CartLine/1",
		ExpandedCartItems: []cartexpand.ExpandedItem{{MerchandiseID: "gid://shopify/ProductVariant/V1", Quantity: 2}},
	}, res.Operations[0].Expand)
}

func TestRunAcceptsNumericAndGIDVariantIDs(t *testing.T) {
	res := cartexpand.Run(cartexpand.Input{Cart: cartexpand.Cart{Lines: []cartexpand.CartLine{
		line("L1", ptr(`[{"id":4455,"quantity":1},{"id":"gid://shopify/ProductVariant/7","quantity":3}]`)),
	}}})
	require.Len(t, res.Operations, 1)
	require.Equal(t, []cartexpand.ExpandedItem{
		{MerchandiseID: "gid://shopify/ProductVariant/4455", Quantity: 1},
		{MerchandiseID: "gid://shopify/ProductVariant/7", Quantity: 3},
	}, res.Operations[0].Expand.ExpandedCartItems)
}

func TestRunSkipsMalformedLines(t *testing.T) {
	in := cartexpand.Input{Cart: cartexpand.Cart{Lines: []cartexpand.CartLine{
		line("bad-json", ptr(`[{"id":`)),
		line("empty-list", ptr(`[]`)),
		line("no-id", ptr(`[{"quantity":1}]`)),
		line("zero-qty", ptr(`[{"id":"V1","quantity":0}]`)),
		line("negative-qty", ptr(`[{"id":"1","quantity":1},{"id":"2","quantity":-2}]`)),
		line("missing-qty", ptr(`[{"id":"V1"}]`)),
		line("empty-value", ptr("")),
		line("good", ptr(`[{"id":"1","quantity":1}]`)),
	}}}
	res := cartexpand.Run(in)
	require.Len(t, res.Operations, 1)
	require.Equal(t, "good", res.Operations[0].Expand.CartLineID)
	require.Len(t, res.Diagnostics, 6)
	require.Equal(t, "bad-json", res.Diagnostics[0].CartLineID)
	require.Equal(t, "zero-qty", res.Diagnostics[3].CartLineID)
	require.Contains(t, res.Diagnostics[3].Reason, "quantity 0")
	require.Equal(t, "negative-qty", res.Diagnostics[4].CartLineID)

	again := cartexpand.Run(in)
	require.Equal(t, res, again)
}

func TestExecuteWritesOperationsDocument(t *testing.T) {
	input := `{"cart":{"lines":[{"id":"L1","bundleId":{"value":"[{\"id\":\"V1\",\"quantity\":2}]"}},{"id":"L2","bundleId":null},{"id":"L3","bundleId":{"value":"oops"}}]}}`
	var out, logs bytes.Buffer
	err := cartexpand.Execute(strings.NewReader(input), &out, zerolog.New(&logs))
	require.NoError(t, err)
	require.JSONEq(t, `{"operations":[{"expand":{"cartLineId":"L1","expandedCartItems":[{"merchandiseId":"gid://shopify/ProductVariant/V1","quantity":2}]}}]}`, out.String())
	require.Contains(t, logs.String(), `"cart_line_id":"L3"`)

	out.Reset()
	require.NoError(t, cartexpand.Execute(strings.NewReader(`{"cart":{"lines":[]}}`), &out, zerolog.Nop()))
	require.JSONEq(t, `{"operations":[]}`, out.String())

	require.Error(t, cartexpand.Execute(strings.NewReader(`not json`), &out, zerolog.Nop()))
}
