package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Result is the outcome of one counted request.
type Result struct {
	Limit     int64
	Remaining int64
	Reset     time.Time
	Reached   bool
}

// Limiter counts a request against key.
type Limiter interface {
	Take(ctx context.Context, key string) (Result, error)
}

// Fixed is a fixed-window Limiter built on ulule/limiter.
type Fixed struct {
	l *limiter.Limiter
}

// New returns a Limiter enforcing rate ("60-M", "10-S", ...) on store.
func New(store limiter.Store, rate string) (*Fixed, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse rate %q: %w", rate, err)
	}
	return &Fixed{l: limiter.New(store, parsed)}, nil
}

// NewRedis returns a Limiter whose counters live in Redis under prefix.
func NewRedis(rdb *redis.Client, prefix, rate string) (*Fixed, error) {
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: redis store: %w", err)
	}
	return New(store, rate)
}

// Take implements Limiter.
func (f *Fixed) Take(ctx context.Context, key string) (Result, error) {
	lctx, err := f.l.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Limit:     lctx.Limit,
		Remaining: lctx.Remaining,
		Reset:     time.Unix(lctx.Reset, 0),
		Reached:   lctx.Reached,
	}, nil
}
