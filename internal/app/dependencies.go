package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bundle-admin/internal/analytics"
	"github.com/noah-isme/bundle-admin/internal/bundle"
	"github.com/noah-isme/bundle-admin/internal/config"
	"github.com/noah-isme/bundle-admin/internal/jobpoll"
	"github.com/noah-isme/bundle-admin/internal/lock"
	"github.com/noah-isme/bundle-admin/internal/media"
	"github.com/noah-isme/bundle-admin/internal/obs"
	"github.com/noah-isme/bundle-admin/internal/resilience"
	"github.com/noah-isme/bundle-admin/internal/session"
	"github.com/noah-isme/bundle-admin/internal/shopify"
	"github.com/noah-isme/bundle-admin/internal/webhooks"
)

// Options tune how shared dependencies are built.
type Options struct {
	// AppName is reported to Postgres as application_name.
	AppName        string
	MetricsEnabled bool
	ConnectTimeout time.Duration
}

// Dependencies enumerates the services shared by the API and the worker.
type Dependencies struct {
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Sessions  *session.Service
	Shopify   *shopify.Registry
	Bundles   *bundle.Service
	Analytics *analytics.Service
	Webhooks  *webhooks.Processor
}

// New connects to Postgres and Redis and builds the service graph.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	pool, err := OpenDatabase(ctx, cfg.DatabaseURL, opts.AppName, opts.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	rdb, err := OpenRedis(ctx, cfg.RedisURL, opts.MetricsEnabled, opts.ConnectTimeout, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	d := Wire(cfg, logger, pool, rdb)
	d.DB = pool
	return d, nil
}

// Wire assembles services over already opened stores.
func Wire(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, rdb *redis.Client) *Dependencies {
	sessions := &session.Service{Store: session.NewPostgresStore(pool)}
	registry := &shopify.Registry{
		Base: shopify.ClientConfig{
			Shop:        cfg.ShopifyShopDomain,
			AccessToken: cfg.ShopifyAccessToken,
			APIVersion:  cfg.ShopifyAPIVersion,
			HTTP:        ShopifyHTTP(cfg, logger),
			Logger:      &logger,
		},
		Tokens: sessions,
	}

	bundles := &bundle.Service{
		Repo:        bundle.NewPostgresRepository(pool),
		Platforms:   bundle.RegistrySource(registry),
		Poller:      jobpoll.Poller{Logger: logger},
		PollOptions: jobpoll.Options{Timeout: cfg.JobPollTimeout, Interval: cfg.JobPollInterval},
		Uploader:    media.Uploader{HTTP: UploadHTTP(cfg, logger), Logger: logger},
		Validate:    bundle.NewValidator(),
		Logger:      logger,
	}
	if cfg.BundleUpdateLock {
		bundles.Locker = lock.Locker{R: rdb, RetryBackoff: 100 * time.Millisecond, MaxWait: cfg.JobPollTimeout}
		bundles.LockTTL = cfg.BundleLockTTL
	}

	stats := &analytics.Service{Q: analytics.NewPostgresQuerier(pool), R: rdb, TTL: cfg.AnalyticsCacheTTL}

	return &Dependencies{
		Redis:     rdb,
		Sessions:  sessions,
		Shopify:   registry,
		Bundles:   bundles,
		Analytics: stats,
		Webhooks: &webhooks.Processor{
			Bundles:  bundles,
			Orders:   stats,
			Sessions: sessions,
			Clients:  registry,
			Logger:   logger,
		},
	}
}

// Close releases the store connections.
func (d *Dependencies) Close() error {
	var err error
	if d.Redis != nil {
		err = d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	return err
}

// ShopifyHTTP is the traced transport used for Admin API calls. Only queries
// are retried; shopify.Client sends mutations once.
func ShopifyHTTP(cfg *config.Config, logger zerolog.Logger) resilience.HTTPClient {
	return resilience.HTTPClient{
		Client:        obs.OutboundClient(cfg.ShopifyHTTPTimeout, "shopify"),
		Breaker:       resilience.NewBreaker(20, 0.5, 30*time.Second).WithTarget("shopify_admin").WithLogger(logger),
		BaseBackoff:   250 * time.Millisecond,
		MaxAttempts:   cfg.ShopifyMaxAttempts,
		Jitter:        0.2,
		Timeout:       cfg.ShopifyHTTPTimeout,
		MaxRetryAfter: 10 * time.Second,
	}
}

// UploadHTTP is the transport used for staged media uploads.
func UploadHTTP(cfg *config.Config, logger zerolog.Logger) resilience.HTTPClient {
	return resilience.HTTPClient{
		Client:      obs.OutboundClient(cfg.UploadTimeout, "staged-upload"),
		Breaker:     resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("staged_upload").WithLogger(logger),
		BaseBackoff: 500 * time.Millisecond,
		// an upload POST is not repeated; a failed create is retried by the caller
		MaxAttempts: 1,
		Jitter:      0.2,
		Timeout:     cfg.UploadTimeout,
	}
}

// OpenDatabase creates a traced pgx pool and pings it.
func OpenDatabase(ctx context.Context, url, appName string, timeout time.Duration) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if appName != "" {
		if poolConfig.ConnConfig.RuntimeParams == nil {
			poolConfig.ConnConfig.RuntimeParams = map[string]string{}
		}
		poolConfig.ConnConfig.RuntimeParams["application_name"] = appName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenRedis creates an instrumented client and pings it.
func OpenRedis(ctx context.Context, url string, metrics bool, timeout time.Duration, logger zerolog.Logger) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
