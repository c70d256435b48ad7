package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/bundle-admin/internal/common"
	"github.com/noah-isme/bundle-admin/internal/shopify"
)

// ShopDirectory reads shop settings from the platform; *shopify.Registry
// satisfies it.
type ShopDirectory interface {
	ShopInfo(ctx context.Context, shop string) (shopify.ShopInfo, error)
}

// Handler exposes the current shop session to the admin UI.
type Handler struct {
	Svc    *Service
	Shops  ShopDirectory
	Logger zerolog.Logger
}

// Current returns the session of the authenticated shop, creating it on first visit.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	shop, ok := common.Shop(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing shop session", nil)
		return
	}
	sess, err := h.Svc.Ensure(r.Context(), shop)
	if err != nil {
		h.Logger.Error().Err(err).Str("shop", shop).Msg("load session")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load session", nil)
		return
	}
	common.JSON(w, http.StatusOK, sess)
}

// CompleteOnboarding marks the onboarding walkthrough as done.
func (h *Handler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	shop, ok := common.Shop(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing shop session", nil)
		return
	}
	sess, err := h.Svc.CompleteOnboarding(r.Context(), shop)
	if err != nil {
		h.Logger.Error().Err(err).Str("shop", shop).Msg("update onboarding")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "Failed to update onboarding status", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"success": true, "session": sess})
}

// Shop returns the platform settings of the authenticated shop.
func (h *Handler) Shop(w http.ResponseWriter, r *http.Request) {
	shop, ok := common.Shop(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing shop session", nil)
		return
	}
	if h.Shops == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "shop directory not configured", nil)
		return
	}
	info, err := h.Shops.ShopInfo(r.Context(), shop)
	switch {
	case errors.Is(err, shopify.ErrNoAccessToken):
		common.JSONError(w, http.StatusUnauthorized, "NOT_INSTALLED", "app is not installed for this shop", nil)
		return
	case err != nil:
		h.Logger.Error().Err(err).Str("shop", shop).Msg("load shop info")
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM", "failed to load shop", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": info})
}
