package bundle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bundle-admin/internal/bundle"
)

func seedContaining(t *testing.T, repo bundle.Repository, productID string, components ...bundle.Component) bundle.Bundle {
	t.Helper()
	b := &bundle.Bundle{
		ShopDomain: shop,
		ProductID:  productID,
		Name:       "Kit " + productID,
		Kind:       bundle.KindFixed,
		Fixed:      components,
	}
	require.NoError(t, repo.Create(context.Background(), b))
	return *b
}

func TestSyncComponentPricesUpdatesChangedBundles(t *testing.T) {
	repo := bundle.NewMemoryRepository()
	const component1 = "gid://shopify/Product/1"
	first := seedContaining(t, repo, "gid://shopify/Product/100", component(component1, 1, "10"))
	second := seedContaining(t, repo, "gid://shopify/Product/101", component(component1, 2, "10"), component("gid://shopify/Product/2", 1, "5"))
	unrelated := seedContaining(t, repo, "gid://shopify/Product/102", component("gid://shopify/Product/3", 1, "5"))
	svc := newService(newFakePlatform(), repo)

	res, err := svc.SyncComponentPrices(context.Background(), shop, "1", []bundle.ComponentVariantPrice{
		{VariantID: component1 + "-v1", Price: "12.50", CompareAtPrice: strPtr("15.00")},
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{first.ID, second.ID}, res.Updated)
	require.Empty(t, res.Failed)

	stored, err := repo.Get(context.Background(), shop, second.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, stored.Version)
	require.Equal(t, "12.50", stored.Fixed[0].Variants[0].Price)
	require.Equal(t, "15.00", *stored.Fixed[0].Variants[0].CompareAtPrice)
	require.Equal(t, "5", stored.Fixed[1].Variants[0].Price)

	untouched, err := repo.Get(context.Background(), shop, unrelated.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, untouched.Version)
}

func TestSyncComponentPricesSkipsUnchanged(t *testing.T) {
	repo := bundle.NewMemoryRepository()
	const component1 = "gid://shopify/Product/1"
	seeded := seedContaining(t, repo, "gid://shopify/Product/100", component(component1, 1, "10"))
	svc := newService(newFakePlatform(), repo)

	res, err := svc.SyncComponentPrices(context.Background(), shop, component1, []bundle.ComponentVariantPrice{
		{VariantID: component1 + "-v1", Price: "10"},
	})
	require.NoError(t, err)
	require.Empty(t, res.Updated)
	require.Empty(t, res.Failed)

	stored, err := repo.Get(context.Background(), shop, seeded.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, stored.Version)
}

type conflictingRepo struct {
	*bundle.MemoryRepository
	failID int64
}

func (r conflictingRepo) Update(ctx context.Context, b bundle.Bundle, expected int64) (bundle.Bundle, error) {
	if b.ID == r.failID {
		return bundle.Bundle{}, bundle.ErrVersionConflict
	}
	return r.MemoryRepository.Update(ctx, b, expected)
}

func TestSyncComponentPricesContinuesAfterFailure(t *testing.T) {
	mem := bundle.NewMemoryRepository()
	const component1 = "gid://shopify/Product/1"
	bad := seedContaining(t, mem, "gid://shopify/Product/100", component(component1, 1, "10"))
	good := seedContaining(t, mem, "gid://shopify/Product/101", component(component1, 1, "10"))
	svc := newService(newFakePlatform(), conflictingRepo{MemoryRepository: mem, failID: bad.ID})

	res, err := svc.SyncComponentPrices(context.Background(), shop, component1, []bundle.ComponentVariantPrice{
		{VariantID: component1 + "-v1", Price: "11"},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{bad.ID}, res.Failed)
	require.Equal(t, []int64{good.ID}, res.Updated)
}

func TestRemoveByProduct(t *testing.T) {
	repo := bundle.NewMemoryRepository()
	seeded := seedContaining(t, repo, "gid://shopify/Product/100", component("gid://shopify/Product/1", 1, "10"))
	svc := newService(newFakePlatform(), repo)

	removed, err := svc.RemoveByProduct(context.Background(), shop, "100")
	require.NoError(t, err)
	require.True(t, removed)

	_, err = repo.Get(context.Background(), shop, seeded.ID)
	require.True(t, errors.Is(err, bundle.ErrNotFound))

	removed, err = svc.RemoveByProduct(context.Background(), shop, "100")
	require.NoError(t, err)
	require.False(t, removed)
}
