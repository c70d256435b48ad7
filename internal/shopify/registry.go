package shopify

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoAccessToken is returned when no offline token is known for a shop.
var ErrNoAccessToken = errors.New("shopify: no access token for shop")

// TokenSource looks up the offline access token stored for a shop.
type TokenSource interface {
	AccessToken(ctx context.Context, shop string) (string, error)
}

// Registry hands out one Client per shop. Base supplies the transport, API
// version and logger; its Shop/AccessToken pair acts as a static credential
// used when Tokens has nothing for that shop.
type Registry struct {
	Base   ClientConfig
	Tokens TokenSource

	mu      sync.Mutex
	clients map[string]*Client
}

// Client returns the cached client for shop, building it on first use or when
// the stored token changed.
func (r *Registry) Client(ctx context.Context, shop string) (*Client, error) {
	shop = NormalizeShopDomain(shop)
	if shop == "" {
		return nil, errors.New("shopify: shop domain is required")
	}
	token, err := r.token(ctx, shop)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[shop]; ok && c.token == token {
		return c, nil
	}
	cfg := r.Base
	cfg.Shop = shop
	cfg.AccessToken = token
	cfg.Endpoint = ""
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if r.clients == nil {
		r.clients = make(map[string]*Client)
	}
	r.clients[shop] = c
	return c, nil
}

// Forget drops the cached client of shop, for example after uninstall.
func (r *Registry) Forget(shop string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, NormalizeShopDomain(shop))
}

func (r *Registry) token(ctx context.Context, shop string) (string, error) {
	if r.Tokens != nil {
		token, err := r.Tokens.AccessToken(ctx, shop)
		if err != nil && !errors.Is(err, ErrNoAccessToken) {
			return "", fmt.Errorf("shopify: load access token: %w", err)
		}
		if token != "" {
			return token, nil
		}
	}
	if r.Base.AccessToken != "" && NormalizeShopDomain(r.Base.Shop) == shop {
		return r.Base.AccessToken, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoAccessToken, shop)
}

// ShopInfo fetches the settings of shop with its cached client.
func (r *Registry) ShopInfo(ctx context.Context, shop string) (ShopInfo, error) {
	c, err := r.Client(ctx, shop)
	if err != nil {
		return ShopInfo{}, err
	}
	return c.ShopInfo(ctx)
}
