package common_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bundle-admin/internal/common"
)

func TestShopContext(t *testing.T) {
	_, ok := common.Shop(context.Background())
	require.False(t, ok)
	ctx := common.WithShop(context.Background(), "demo.myshopify.com")
	shop, ok := common.Shop(ctx)
	require.True(t, ok)
	require.Equal(t, "demo.myshopify.com", shop)
}

func TestParsePaginationCaps(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/bundles?page=3&limit=500", nil)
	page, per := common.ParsePagination(r, 20, 100)
	require.Equal(t, 3, page)
	require.Equal(t, 100, per)
	require.Equal(t, 200, common.Offset(page, per))
}

func TestIdemRejectsReplayPerShop(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	calls := 0
	h := common.Idem{R: rdb, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	send := func(shop string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bundles", nil)
		req.Header.Set("Idempotency-Key", "abc")
		req = req.WithContext(common.WithShop(req.Context(), shop))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusCreated, send("a.myshopify.com"))
	require.Equal(t, http.StatusConflict, send("a.myshopify.com"))
	require.Equal(t, http.StatusCreated, send("b.myshopify.com"))
	require.Equal(t, 2, calls)
}
