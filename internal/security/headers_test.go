package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func serve(h Headers, req *http.Request) http.Header {
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr.Result().Header
}

func TestHeadersMiddlewareSetsSecurityHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://example.com", nil)
	req.TLS = &tls.ConnectionState{}

	headers := serve(Headers{Enable: true, EnableHSTS: true}, req)
	require.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", headers.Get("X-Frame-Options"))
	require.Equal(t, "frame-ancestors 'none'", headers.Get("Content-Security-Policy"))
	require.Equal(t, "max-age=31536000; includeSubDomains", headers.Get("Strict-Transport-Security"))
}

func TestHeadersMiddlewareEmbeddedAdmin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	headers := serve(Headers{Enable: true, EnableHSTS: true, FrameAncestors: []string{"https://admin.shopify.com", "https://*.myshopify.com"}}, req)
	require.Empty(t, headers.Get("X-Frame-Options"))
	require.Equal(t, "frame-ancestors https://admin.shopify.com https://*.myshopify.com", headers.Get("Content-Security-Policy"))
	require.Empty(t, headers.Get("Strict-Transport-Security"))
}

func TestHeadersMiddlewareDisabled(t *testing.T) {
	headers := serve(Headers{}, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Empty(t, headers.Get("X-Content-Type-Options"))
}
