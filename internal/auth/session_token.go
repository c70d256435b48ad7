package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/bundle-admin/internal/common"
)

// SessionTokens parses session tokens signed with the app's API secret.
type SessionTokens struct {
	Secret    []byte
	Validator TokenValidator
	Now       func() time.Time
}

// NewSessionTokens returns a parser for HS256 tokens issued to apiKey.
func NewSessionTokens(apiKey, apiSecret string) SessionTokens {
	return SessionTokens{
		Secret: []byte(apiSecret),
		Validator: TokenValidator{
			Audience:  apiKey,
			ClockSkew: 5 * time.Second,
			Algorithm: jwa.HS256,
		},
	}
}

func (s SessionTokens) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Parse verifies raw and returns its claims.
func (s SessionTokens) Parse(raw string) (Claims, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	if len(s.Secret) == 0 {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "session tokens not configured", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if s.Validator.Algorithm != "" && algorithm != s.Validator.Algorithm {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	// time claims are checked by the validator against s.Now
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.Secret), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	claims, err := s.Validator.Validate(parsed, algorithm, s.now())
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	return claims, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: token must carry exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	if alg == "" || alg == jwa.NoSignature {
		return "", errors.New("auth: token missing algorithm")
	}
	return alg, nil
}
