package shopify_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bundle-admin/internal/shopify"
)

type tokenMap map[string]string

func (m tokenMap) AccessToken(_ context.Context, shop string) (string, error) {
	if t, ok := m[shop]; ok {
		return t, nil
	}
	return "", shopify.ErrNoAccessToken
}

func TestRegistryResolvesTokens(t *testing.T) {
	tokens := tokenMap{"a.myshopify.com": "tok-a"}
	reg := &shopify.Registry{
		Base:   shopify.ClientConfig{Shop: "dev.myshopify.com", AccessToken: "static", HTTP: plainDoer{client: http.DefaultClient}},
		Tokens: tokens,
	}
	ctx := context.Background()

	a1, err := reg.Client(ctx, "https://A.myshopify.com/")
	require.NoError(t, err)
	require.Equal(t, "a.myshopify.com", a1.Shop())
	a2, err := reg.Client(ctx, "a.myshopify.com")
	require.NoError(t, err)
	require.Same(t, a1, a2)

	tokens["a.myshopify.com"] = "rotated"
	a3, err := reg.Client(ctx, "a.myshopify.com")
	require.NoError(t, err)
	require.NotSame(t, a1, a3)

	dev, err := reg.Client(ctx, "dev.myshopify.com")
	require.NoError(t, err)
	require.Equal(t, "dev.myshopify.com", dev.Shop())

	_, err = reg.Client(ctx, "unknown.myshopify.com")
	require.ErrorIs(t, err, shopify.ErrNoAccessToken)
}
