package analytics

import (
	"net/http"

	"github.com/noah-isme/bundle-admin/internal/common"
)

// Handler exposes analytics read endpoints.
type Handler struct {
	Svc *Service
}

// Overview returns the revenue counters of the authenticated shop.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	shop, ok := common.Shop(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing shop session", nil)
		return
	}
	summary, err := h.Svc.Summary(r.Context(), shop)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", "failed to load analytics", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}
