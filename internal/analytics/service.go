package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is reported for shops that have not received an order yet.
const DefaultCurrency = "$"

// Totals is the stored running aggregate for one shop.
type Totals struct {
	Shop     string
	Revenue  decimal.Decimal
	Orders   int64
	Currency string
}

// Summary is the read model returned to the admin UI.
type Summary struct {
	Revenue           decimal.Decimal `json:"revenue"`
	Orders            int64           `json:"orders"`
	Currency          string          `json:"currency"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
}

// ErrNoTotals is returned by a Querier when the shop has no row yet.
var ErrNoTotals = errors.New("analytics: no totals for shop")

// Querier defines the database access required for analytics operations.
type Querier interface {
	GetTotals(ctx context.Context, shop string) (Totals, error)
	AddOrder(ctx context.Context, shop string, amount decimal.Decimal, currency string) (Totals, error)
}

// Service provides cached access to per-shop revenue counters.
type Service struct {
	Q   Querier
	R   *redis.Client
	TTL time.Duration
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

func summaryKey(shop string) string { return cacheKey("an", "shop", strings.ToLower(shop)) }

// Summary returns the revenue counters for shop. A shop without orders gets a
// zero summary in DefaultCurrency.
func (s *Service) Summary(ctx context.Context, shop string) (Summary, error) {
	if s == nil || s.Q == nil {
		return Summary{}, fmt.Errorf("analytics service not configured")
	}
	key := summaryKey(shop)
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}
	totals, err := s.Q.GetTotals(ctx, shop)
	if errors.Is(err, ErrNoTotals) {
		totals = Totals{Shop: shop}
	} else if err != nil {
		return Summary{}, err
	}
	out := summarize(totals)
	s.store(ctx, key, out)
	return out, nil
}

// RecordOrder adds one order with the given subtotal to the shop counters.
func (s *Service) RecordOrder(ctx context.Context, shop, subtotal, currency string) (Summary, error) {
	if s == nil || s.Q == nil {
		return Summary{}, fmt.Errorf("analytics service not configured")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(subtotal))
	if err != nil {
		return Summary{}, fmt.Errorf("analytics: invalid subtotal %q: %w", subtotal, err)
	}
	totals, err := s.Q.AddOrder(ctx, shop, amount, strings.TrimSpace(currency))
	if err != nil {
		return Summary{}, err
	}
	if s.R != nil {
		_ = s.R.Del(ctx, summaryKey(shop)).Err()
	}
	return summarize(totals), nil
}

func summarize(t Totals) Summary {
	out := Summary{Revenue: t.Revenue, Orders: t.Orders, Currency: t.Currency}
	if out.Currency == "" {
		out.Currency = DefaultCurrency
	}
	if t.Orders > 0 {
		out.AverageOrderValue = t.Revenue.Div(decimal.NewFromInt(t.Orders)).Round(2)
	}
	return out
}

func (s *Service) fromCache(ctx context.Context, key string) (Summary, bool) {
	if s.R == nil || s.TTL <= 0 {
		return Summary{}, false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return Summary{}, false
	}
	var out Summary
	if err := json.Unmarshal(data, &out); err != nil {
		return Summary{}, false
	}
	return out, true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}

type pgQuerier struct {
	pool *pgxpool.Pool
}

// NewPostgresQuerier returns a Querier backed by the shop_analytics table.
func NewPostgresQuerier(pool *pgxpool.Pool) Querier {
	return &pgQuerier{pool: pool}
}

func (q *pgQuerier) GetTotals(ctx context.Context, shop string) (Totals, error) {
	return scanTotals(q.pool.QueryRow(ctx, `
		SELECT shop, revenue::text, orders, currency
		FROM shop_analytics WHERE shop = $1`, shop))
}

func (q *pgQuerier) AddOrder(ctx context.Context, shop string, amount decimal.Decimal, currency string) (Totals, error) {
	return scanTotals(q.pool.QueryRow(ctx, `
		INSERT INTO shop_analytics (shop, revenue, orders, currency, updated_at)
		VALUES ($1, $2::numeric, 1, $3, now())
		ON CONFLICT (shop) DO UPDATE
		SET revenue = shop_analytics.revenue + EXCLUDED.revenue,
		    orders = shop_analytics.orders + 1,
		    currency = COALESCE(NULLIF(EXCLUDED.currency, ''), shop_analytics.currency),
		    updated_at = now()
		RETURNING shop, revenue::text, orders, currency`, shop, amount.String(), currency))
}

func scanTotals(row pgx.Row) (Totals, error) {
	var (
		t       Totals
		revenue string
	)
	if err := row.Scan(&t.Shop, &revenue, &t.Orders, &t.Currency); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Totals{}, ErrNoTotals
		}
		return Totals{}, fmt.Errorf("analytics: scan totals: %w", err)
	}
	parsed, err := decimal.NewFromString(revenue)
	if err != nil {
		return Totals{}, fmt.Errorf("analytics: parse revenue: %w", err)
	}
	t.Revenue = parsed
	return t, nil
}
