package bundle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComponentsDocRoundTripsByKind(t *testing.T) {
	fixed := Bundle{Kind: KindFixed, Fixed: []Component{{ProductID: "gid://shopify/Product/1", Quantity: 2}}}
	raw, err := encodeComponents(fixed)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.JSONEq(t, `"fixed"`, string(doc["kind"]))
	require.NotContains(t, doc, "groups")

	var decoded Bundle
	decoded.Kind = KindFixed
	require.NoError(t, decodeComponents(raw, &decoded))
	require.Equal(t, fixed.Fixed, decoded.Fixed)
	require.Nil(t, decoded.Groups)

	infinite := Bundle{Kind: KindInfinite, Groups: []ComponentGroup{{Name: "Tops", Products: []GroupProduct{{VariantID: "1"}}}}}
	raw, err = encodeComponents(infinite)
	require.NoError(t, err)
	decoded = Bundle{Kind: KindInfinite}
	require.NoError(t, decodeComponents(raw, &decoded))
	require.Equal(t, infinite.Groups, decoded.Groups)
}

func TestComponentsDocRejectsMismatchedKind(t *testing.T) {
	raw, err := encodeComponents(Bundle{Kind: KindInfinite})
	require.NoError(t, err)
	b := Bundle{Kind: KindFixed}
	require.Error(t, decodeComponents(raw, &b))

	_, err = encodeComponents(Bundle{Kind: "mystery"})
	require.Error(t, err)
}

func TestDiscountColumns(t *testing.T) {
	dType, dValue := discountColumns(Discount{})
	require.Nil(t, dType)
	require.Nil(t, dValue)

	d := DiscountInput{DiscountType: "percentage"}
	require.NoError(t, json.Unmarshal([]byte(`{"discountType":"percentage","discountValue":"12.5"}`), &d))
	dType, dValue = discountColumns(d.Resolve())
	require.Equal(t, "percentage", dType)
	require.Equal(t, "12.5", dValue)

	require.True(t, DiscountInput{NoDiscount: true, DiscountType: "fixed"}.Resolve().None())
}
