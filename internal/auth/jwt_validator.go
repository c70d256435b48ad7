package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/bundle-admin/internal/shopify"
)

// Claims are the session token fields the API relies on.
type Claims struct {
	Shop      string
	UserID    string
	SessionID string
}

// TokenValidator validates the structural and contextual properties of a
// Shopify session token. Audience is the app's API key.
type TokenValidator struct {
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate checks algorithm, audience and time claims, then resolves the shop
// from the dest claim. The issuer must be the admin of that same shop.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) (Claims, error) {
	if tok == nil {
		return Claims{}, errors.New("auth: token is nil")
	}

	if algorithm == "" {
		return Claims{}, errors.New("auth: token missing algorithm")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return Claims{}, fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	if err := jwt.Validate(tok, options...); err != nil {
		return Claims{}, err
	}

	dest, _ := tok.Get("dest")
	destStr, _ := dest.(string)
	shop := hostOf(destStr)
	if shop == "" {
		return Claims{}, errors.New("auth: token missing dest claim")
	}
	if iss := hostOf(tok.Issuer()); iss != shop {
		return Claims{}, fmt.Errorf("auth: issuer %q does not match shop %q", tok.Issuer(), shop)
	}

	claims := Claims{Shop: shop, UserID: tok.Subject()}
	if sid, ok := tok.Get("sid"); ok {
		claims.SessionID, _ = sid.(string)
	}
	return claims, nil
}

func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return shopify.NormalizeShopDomain(u.Hostname())
}
