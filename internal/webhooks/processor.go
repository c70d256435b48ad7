package webhooks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bundle-admin/internal/analytics"
	"github.com/noah-isme/bundle-admin/internal/bundle"
	"github.com/noah-isme/bundle-admin/internal/shopify"
)

// Bundles is the bundle side of webhook processing; *bundle.Service satisfies it.
type Bundles interface {
	SyncComponentPrices(ctx context.Context, shop, productID string, prices []bundle.ComponentVariantPrice) (bundle.SyncResult, error)
	RemoveByProduct(ctx context.Context, shop, productID string) (bool, error)
}

// Orders records order totals; *analytics.Service satisfies it.
type Orders interface {
	RecordOrder(ctx context.Context, shop, subtotal, currency string) (analytics.Summary, error)
}

// Sessions removes a shop installation; *session.Service satisfies it.
type Sessions interface {
	Uninstall(ctx context.Context, shop string) error
}

// ClientCache drops cached platform clients; *shopify.Registry satisfies it.
type ClientCache interface {
	Forget(shop string)
}

// Processor applies webhook effects. Nil dependencies turn the matching
// topic into a logged no-op.
type Processor struct {
	Bundles  Bundles
	Orders   Orders
	Sessions Sessions
	Clients  ClientCache
	Logger   zerolog.Logger
}

type productPayload struct {
	ID                int64            `json:"id"`
	AdminGraphQLAPIID string           `json:"admin_graphql_api_id"`
	Variants          []variantPayload `json:"variants"`
}

type variantPayload struct {
	ID                int64   `json:"id"`
	AdminGraphQLAPIID string  `json:"admin_graphql_api_id"`
	Price             string  `json:"price"`
	CompareAtPrice    *string `json:"compare_at_price"`
}

type orderPayload struct {
	SubtotalPrice string `json:"subtotal_price"`
	Currency      string `json:"currency"`
}

// Process handles one webhook synchronously.
func (p *Processor) Process(ctx context.Context, env Envelope) error {
	logger := p.Logger.With().Str("topic", env.Topic).Str("shop", env.Shop).Str("webhook_id", env.ID).Logger()
	switch env.Topic {
	case TopicProductsUpdate:
		return p.productsUpdate(ctx, logger, env)
	case TopicProductsDelete:
		return p.productsDelete(ctx, logger, env)
	case TopicOrdersCreate:
		return p.ordersCreate(ctx, logger, env)
	case TopicAppUninstalled:
		return p.appUninstalled(ctx, logger, env)
	default:
		return fmt.Errorf("webhooks: unhandled topic %q: %w", env.Topic, asynq.SkipRetry)
	}
}

// ProcessTask is the asynq handler for webhook tasks.
func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	env, err := DecodeTask(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return p.Process(ctx, env)
}

// Register mounts ProcessTask for every supported topic.
func (p *Processor) Register(mux *asynq.ServeMux) {
	for _, topic := range []string{TopicProductsUpdate, TopicProductsDelete, TopicOrdersCreate, TopicAppUninstalled} {
		mux.HandleFunc(TaskType(topic), p.ProcessTask)
	}
}

func decode(env Envelope, v any) error {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("webhooks: decode %s payload: %v: %w", env.Topic, err, asynq.SkipRetry)
	}
	return nil
}

func (p *Processor) productsUpdate(ctx context.Context, logger zerolog.Logger, env Envelope) error {
	if p.Bundles == nil {
		logger.Warn().Msg("bundle sync not configured")
		return nil
	}
	var payload productPayload
	if err := decode(env, &payload); err != nil {
		return err
	}
	productID := payload.AdminGraphQLAPIID
	if productID == "" && payload.ID != 0 {
		productID = shopify.ProductGIDFromInt(payload.ID)
	}
	if productID == "" {
		return fmt.Errorf("webhooks: product id missing: %w", asynq.SkipRetry)
	}
	prices := make([]bundle.ComponentVariantPrice, 0, len(payload.Variants))
	for _, v := range payload.Variants {
		id := v.AdminGraphQLAPIID
		if id == "" && v.ID != 0 {
			id = shopify.VariantGID(fmt.Sprint(v.ID))
		}
		prices = append(prices, bundle.ComponentVariantPrice{VariantID: id, Price: v.Price, CompareAtPrice: v.CompareAtPrice})
	}
	res, err := p.Bundles.SyncComponentPrices(ctx, env.Shop, productID, prices)
	if err != nil {
		return err
	}
	if len(res.Updated) == 0 && len(res.Failed) == 0 {
		logger.Debug().Str("product_id", productID).Msg("product is not part of any bundle")
		return nil
	}
	logger.Info().Str("product_id", productID).Ints64("updated", res.Updated).Ints64("failed", res.Failed).Msg("component prices synced")
	return nil
}

func (p *Processor) productsDelete(ctx context.Context, logger zerolog.Logger, env Envelope) error {
	if p.Bundles == nil {
		logger.Warn().Msg("bundle store not configured")
		return nil
	}
	var payload productPayload
	if err := decode(env, &payload); err != nil {
		return err
	}
	if payload.ID == 0 {
		return fmt.Errorf("webhooks: product id missing: %w", asynq.SkipRetry)
	}
	productID := shopify.ProductGIDFromInt(payload.ID)
	removed, err := p.Bundles.RemoveByProduct(ctx, env.Shop, productID)
	if err != nil {
		return err
	}
	if !removed {
		logger.Debug().Str("product_id", productID).Msg("deleted product is not a bundle")
		return nil
	}
	logger.Info().Str("product_id", productID).Msg("bundle removed")
	return nil
}

func (p *Processor) ordersCreate(ctx context.Context, logger zerolog.Logger, env Envelope) error {
	if p.Orders == nil {
		logger.Warn().Msg("analytics not configured")
		return nil
	}
	var payload orderPayload
	if err := decode(env, &payload); err != nil {
		return err
	}
	if payload.SubtotalPrice == "" {
		return fmt.Errorf("webhooks: order subtotal missing: %w", asynq.SkipRetry)
	}
	summary, err := p.Orders.RecordOrder(ctx, env.Shop, payload.SubtotalPrice, payload.Currency)
	if err != nil {
		return err
	}
	logger.Info().Str("revenue", summary.Revenue.String()).Int64("orders", summary.Orders).Str("currency", summary.Currency).Msg("analytics updated")
	return nil
}

func (p *Processor) appUninstalled(ctx context.Context, logger zerolog.Logger, env Envelope) error {
	if p.Clients != nil {
		p.Clients.Forget(env.Shop)
	}
	if p.Sessions == nil {
		return nil
	}
	if err := p.Sessions.Uninstall(ctx, env.Shop); err != nil {
		return err
	}
	logger.Info().Msg("session deleted")
	return nil
}
