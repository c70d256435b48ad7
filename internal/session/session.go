// Package session stores the per-shop installation record: the offline access
// token used for Admin API calls and the onboarding flag shown by the admin UI.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/bundle-admin/internal/shopify"
)

// ErrNotFound is returned when no session exists for a shop.
var ErrNotFound = errors.New("session: not found")

// Session is one installed shop.
type Session struct {
	ID          string    `json:"id"`
	Shop        string    `json:"shop"`
	AccessToken string    `json:"-"`
	Scope       string    `json:"scope,omitempty"`
	Onboarded   bool      `json:"onboarded"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store persists sessions keyed by shop domain.
type Store interface {
	Get(ctx context.Context, shop string) (Session, error)
	Upsert(ctx context.Context, s Session) (Session, error)
	SetOnboarded(ctx context.Context, shop string, onboarded bool) error
	Delete(ctx context.Context, shop string) error
}

// Service wraps a Store with the operations the HTTP and webhook layers need.
type Service struct {
	Store Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Ensure returns the session for shop, creating an empty one when the shop has
// none yet. The access token is left untouched on existing sessions.
func (s *Service) Ensure(ctx context.Context, shop string) (Session, error) {
	shop = shopify.NormalizeShopDomain(shop)
	if shop == "" {
		return Session{}, errors.New("session: shop is required")
	}
	existing, err := s.Store.Get(ctx, shop)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}
	return s.Store.Upsert(ctx, Session{ID: "offline_" + shop, Shop: shop, CreatedAt: s.now()})
}

// Install records the offline token granted for shop.
func (s *Service) Install(ctx context.Context, shop, accessToken, scope string) (Session, error) {
	shop = shopify.NormalizeShopDomain(shop)
	if shop == "" || strings.TrimSpace(accessToken) == "" {
		return Session{}, errors.New("session: shop and access token are required")
	}
	current, err := s.Store.Get(ctx, shop)
	switch {
	case errors.Is(err, ErrNotFound):
		current = Session{ID: "offline_" + shop, Shop: shop, CreatedAt: s.now()}
	case err != nil:
		return Session{}, err
	}
	current.AccessToken = strings.TrimSpace(accessToken)
	current.Scope = strings.TrimSpace(scope)
	return s.Store.Upsert(ctx, current)
}

// CompleteOnboarding flips the onboarding flag for shop.
func (s *Service) CompleteOnboarding(ctx context.Context, shop string) (Session, error) {
	if _, err := s.Ensure(ctx, shop); err != nil {
		return Session{}, err
	}
	if err := s.Store.SetOnboarded(ctx, shopify.NormalizeShopDomain(shop), true); err != nil {
		return Session{}, err
	}
	return s.Store.Get(ctx, shopify.NormalizeShopDomain(shop))
}

// Uninstall removes the shop session. A missing session is not an error.
func (s *Service) Uninstall(ctx context.Context, shop string) error {
	err := s.Store.Delete(ctx, shopify.NormalizeShopDomain(shop))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// AccessToken implements shopify.TokenSource.
func (s *Service) AccessToken(ctx context.Context, shop string) (string, error) {
	sess, err := s.Store.Get(ctx, shopify.NormalizeShopDomain(shop))
	if errors.Is(err, ErrNotFound) || (err == nil && sess.AccessToken == "") {
		return "", shopify.ErrNoAccessToken
	}
	if err != nil {
		return "", err
	}
	return sess.AccessToken, nil
}
