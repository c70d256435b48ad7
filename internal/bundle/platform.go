package bundle

import (
	"context"
	"errors"

	"github.com/noah-isme/bundle-admin/internal/shopify"
)

// Platform is the subset of the Admin API the orchestrator drives.
// *shopify.Client satisfies it.
type Platform interface {
	ProductBundleCreate(ctx context.Context, input shopify.ProductBundleCreateInput) (string, error)
	ProductBundleUpdate(ctx context.Context, input shopify.ProductBundleUpdateInput) (string, error)
	ProductOperation(ctx context.Context, jobID string) (shopify.Operation, error)
	ProductUpdate(ctx context.Context, input shopify.ProductInput) error
	ProductCreate(ctx context.Context, input shopify.ProductInput) (string, string, error)
	ProductDelete(ctx context.Context, productID string) error
	ProductVariantsBulkUpdate(ctx context.Context, productID string, variants []shopify.VariantPriceInput) error
	StagedUploadsCreate(ctx context.Context, inputs []shopify.StagedUploadInput) ([]shopify.StagedTarget, error)
	ProductCreateMedia(ctx context.Context, productID string, media []shopify.CreateMediaInput) error
}

// PlatformSource resolves the platform client acting for a shop.
type PlatformSource interface {
	Platform(ctx context.Context, shop string) (Platform, error)
}

// PlatformFunc adapts a function to PlatformSource.
type PlatformFunc func(ctx context.Context, shop string) (Platform, error)

// Platform implements PlatformSource.
func (f PlatformFunc) Platform(ctx context.Context, shop string) (Platform, error) {
	return f(ctx, shop)
}

// StaticPlatform serves p for every shop.
func StaticPlatform(p Platform) PlatformSource {
	return PlatformFunc(func(context.Context, string) (Platform, error) { return p, nil })
}

// RegistrySource resolves per-shop clients from a shopify.Registry.
func RegistrySource(reg *shopify.Registry) PlatformSource {
	return PlatformFunc(func(ctx context.Context, shop string) (Platform, error) {
		if reg == nil {
			return nil, errors.New("bundle: platform registry not configured")
		}
		client, err := reg.Client(ctx, shop)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}
