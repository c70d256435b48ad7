package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/bundle-admin/internal/common"
	"github.com/noah-isme/bundle-admin/internal/obs"
)

var errNoToken = errors.New("auth: token missing")

// Middleware resolves the calling shop from the session token sent by the
// embedded admin app.
type Middleware struct {
	Tokens SessionTokens
	// DevShop authenticates token-less requests as this shop. Only set it
	// for local development.
	DevShop string
}

// RequireShop rejects requests without a valid session token and stores the
// shop in the request context.
func (m Middleware) RequireShop(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.authenticate(r)
		if err != nil {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				status := appErr.HTTPStatus
				if status == 0 {
					status = http.StatusUnauthorized
				}
				common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		ctx := common.WithShop(r.Context(), claims.Shop)
		if claims.SessionID != "" {
			ctx = common.WithSessionID(ctx, claims.SessionID)
		}
		obs.AnnotateShop(ctx, claims.Shop)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) authenticate(r *http.Request) (Claims, error) {
	token := extractToken(r)
	if token == "" {
		if m.DevShop != "" {
			return Claims{Shop: m.DevShop}, nil
		}
		return Claims{}, errNoToken
	}
	return m.Tokens.Parse(token)
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
