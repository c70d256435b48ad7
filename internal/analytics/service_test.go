package analytics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bundle-admin/internal/analytics"
	"github.com/noah-isme/bundle-admin/internal/common"
)

type memQueries struct {
	mu       sync.Mutex
	rows     map[string]analytics.Totals
	getCalls int
}

func newMemQueries() *memQueries { return &memQueries{rows: map[string]analytics.Totals{}} }

func (m *memQueries) GetTotals(_ context.Context, shop string) (analytics.Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	t, ok := m.rows[shop]
	if !ok {
		return analytics.Totals{}, analytics.ErrNoTotals
	}
	return t, nil
}

func (m *memQueries) AddOrder(_ context.Context, shop string, amount decimal.Decimal, currency string) (analytics.Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.rows[shop]
	t.Shop = shop
	t.Revenue = t.Revenue.Add(amount)
	t.Orders++
	if currency != "" {
		t.Currency = currency
	}
	m.rows[shop] = t
	return t, nil
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestSummaryDefaultsForNewShop(t *testing.T) {
	svc := &analytics.Service{Q: newMemQueries()}
	out, err := svc.Summary(context.Background(), "demo.myshopify.com")
	require.NoError(t, err)
	require.True(t, out.Revenue.IsZero())
	require.Zero(t, out.Orders)
	require.Equal(t, analytics.DefaultCurrency, out.Currency)
	require.True(t, out.AverageOrderValue.IsZero())
}

func TestRecordOrderAccumulatesAndInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	q := newMemQueries()
	svc := &analytics.Service{Q: q, R: newRedis(t), TTL: time.Minute}

	_, err := svc.Summary(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	_, err = svc.Summary(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	require.Equal(t, 1, q.getCalls)

	_, err = svc.RecordOrder(ctx, "demo.myshopify.com", "19.99", "USD")
	require.NoError(t, err)
	_, err = svc.RecordOrder(ctx, "demo.myshopify.com", "10.00", "USD")
	require.NoError(t, err)

	out, err := svc.Summary(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	require.Equal(t, 2, q.getCalls)
	require.Equal(t, "29.99", out.Revenue.StringFixed(2))
	require.Equal(t, int64(2), out.Orders)
	require.Equal(t, "USD", out.Currency)
	require.Equal(t, "15", out.AverageOrderValue.String())
}

func TestRecordOrderRejectsBadSubtotal(t *testing.T) {
	svc := &analytics.Service{Q: newMemQueries()}
	_, err := svc.RecordOrder(context.Background(), "demo.myshopify.com", "abc", "USD")
	require.Error(t, err)
}

func TestOverviewHandler(t *testing.T) {
	h := &analytics.Handler{Svc: &analytics.Service{Q: newMemQueries()}}

	rr := httptest.NewRecorder()
	h.Overview(rr, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil)
	req = req.WithContext(common.WithShop(req.Context(), "demo.myshopify.com"))
	rr = httptest.NewRecorder()
	h.Overview(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"revenue":"0","orders":0,"currency":"$","averageOrderValue":"0"}}`, rr.Body.String())
}
