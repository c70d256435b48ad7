package bundle

import (
	"context"
	"errors"

	"github.com/noah-isme/bundle-admin/internal/shopify"
)

// ComponentVariantPrice carries the current price of one variant of a
// component product, as reported by the platform.
type ComponentVariantPrice struct {
	VariantID      string
	Price          string
	CompareAtPrice *string
}

// SyncResult reports what SyncComponentPrices touched.
type SyncResult struct {
	Updated []int64
	Failed  []int64
}

// applyVariantPrices copies changed prices onto the cached component variants
// of productID and reports whether anything changed.
func applyVariantPrices(b *Bundle, productID string, prices []ComponentVariantPrice) bool {
	changed := false
	for i := range b.Fixed {
		c := &b.Fixed[i]
		if c.ProductID != productID {
			continue
		}
		for _, p := range prices {
			for j := range c.Variants {
				v := &c.Variants[j]
				if v.ID != p.VariantID {
					continue
				}
				if v.Price != p.Price || !sameOptional(v.CompareAtPrice, p.CompareAtPrice) {
					v.Price = p.Price
					v.CompareAtPrice = p.CompareAtPrice
					changed = true
				}
			}
		}
	}
	return changed
}

func sameOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// SyncComponentPrices refreshes the cached variant prices of productID in
// every fixed bundle of shop that contains it. A failure on one bundle is
// logged and the remaining bundles are still processed.
func (s *Service) SyncComponentPrices(ctx context.Context, shop, productID string, prices []ComponentVariantPrice) (SyncResult, error) {
	productID = shopify.ProductGID(productID)
	bundles, err := s.Repo.ListContainingProduct(ctx, shop, productID)
	if err != nil {
		return SyncResult{}, storeError("Error loading bundles", err)
	}
	var res SyncResult
	for _, b := range bundles {
		err := s.serialise(ctx, shop, b.ID, func(ctx context.Context) error {
			return s.syncOne(ctx, shop, b.ID, productID, prices)
		})
		switch {
		case errors.Is(err, errUnchanged):
		case err != nil:
			s.Logger.Error().Err(err).Str("shop", shop).Int64("bundle_id", b.ID).Str("bundle_name", b.Name).Msg("sync component prices")
			res.Failed = append(res.Failed, b.ID)
		default:
			res.Updated = append(res.Updated, b.ID)
		}
	}
	return res, nil
}

var errUnchanged = errors.New("bundle: unchanged")

// syncOne reloads the bundle so a concurrent edit is not overwritten, then
// writes it back with a version check.
func (s *Service) syncOne(ctx context.Context, shop string, id int64, productID string, prices []ComponentVariantPrice) error {
	current, err := s.Repo.Get(ctx, shop, id)
	if err != nil {
		return err
	}
	if !applyVariantPrices(&current, productID, prices) {
		return errUnchanged
	}
	_, err = s.Repo.Update(ctx, current, current.Version)
	return err
}

// RemoveByProduct deletes the local record of the bundle whose platform
// product is productID. It reports whether a bundle was removed.
func (s *Service) RemoveByProduct(ctx context.Context, shop, productID string) (bool, error) {
	n, err := s.Repo.DeleteByProductID(ctx, shop, shopify.ProductGID(productID))
	if err != nil {
		return false, storeError("Error deleting bundle", err)
	}
	return n > 0, nil
}
