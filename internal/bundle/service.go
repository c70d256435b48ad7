package bundle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/bundle-admin/internal/jobpoll"
	"github.com/noah-isme/bundle-admin/internal/lock"
	"github.com/noah-isme/bundle-admin/internal/media"
	"github.com/noah-isme/bundle-admin/internal/obs"
	"github.com/noah-isme/bundle-admin/internal/pricing"
	"github.com/noah-isme/bundle-admin/internal/shopify"
)

// Uploader transfers files to staged upload targets.
type Uploader interface {
	UploadAll(ctx context.Context, targets []shopify.StagedTarget, uploads []media.Item) error
}

// Locker serialises work on a key; lock.Locker satisfies it.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service orchestrates bundle creation and updates across the platform and
// the local store. Steps run strictly in sequence; nothing is retried or
// rolled back when a later step fails.
type Service struct {
	Repo        Repository
	Platforms   PlatformSource
	Poller      jobpoll.Poller
	PollOptions jobpoll.Options
	Uploader    Uploader
	// Locker serialises updates of the same bundle. Nil leaves concurrent
	// updates to the repository version check.
	Locker   Locker
	LockTTL  time.Duration
	Validate *validator.Validate
	Logger   zerolog.Logger
}

func (s *Service) platform(ctx context.Context, shop string) (Platform, error) {
	if s.Platforms == nil {
		return nil, &Error{Kind: ErrorTransport, Message: "platform not configured"}
	}
	p, err := s.Platforms.Platform(ctx, shop)
	if err != nil {
		return nil, &Error{Kind: ErrorTransport, Message: "resolve platform client", Err: err}
	}
	return p, nil
}

func (s *Service) poll(ctx context.Context, p Platform, jobID string) (shopify.Operation, error) {
	return s.Poller.PollUntilDone(ctx, jobID, p.ProductOperation, s.PollOptions)
}

func observe(operation string, err error) {
	result := "ok"
	var e *Error
	if errors.As(err, &e) {
		result = string(e.Kind)
	} else if err != nil {
		result = "error"
	}
	obs.IncBundleOperation(operation, result)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Create creates a fixed bundle: the platform bundle product first, then the
// local record, media, product details and finally the variant prices.
func (s *Service) Create(ctx context.Context, shop string, in CreateInput) (res CreateResult, err error) {
	ctx, span := obs.StartSpan(ctx, "bundle.create", attribute.String("shop.domain", shop))
	defer func() {
		observe("create", err)
		endSpan(span, err)
	}()
	if err := s.check(in); err != nil {
		return CreateResult{}, err
	}
	p, err := s.platform(ctx, shop)
	if err != nil {
		return CreateResult{}, err
	}
	logger := s.Logger.With().Str("shop", shop).Str("bundle_name", in.Name).Logger()

	jobID, err := p.ProductBundleCreate(ctx, shopify.ProductBundleCreateInput{
		Title:      in.Name,
		Components: componentInputs(in.Products),
	})
	if err != nil {
		return CreateResult{}, remoteError("Error creating product bundle", err)
	}
	op, err := s.poll(ctx, p, jobID)
	if err != nil {
		return CreateResult{}, remoteError("Error waiting for product bundle", err)
	}
	if op.Product == nil || op.Product.ID == "" {
		return CreateResult{}, &Error{Kind: ErrorJobFailed, Message: "Failed to create product bundle in Shopify"}
	}
	productID := op.Product.ID
	discount := in.Resolve()

	b := &Bundle{
		ShopDomain:    shop,
		ProductID:     productID,
		ProductHandle: op.Product.Handle,
		Name:          in.Name,
		Description:   in.Description,
		Discount:      discount,
		Kind:          KindFixed,
		Fixed:         in.Products,
	}
	if err := s.Repo.Create(ctx, b); err != nil {
		return CreateResult{}, storeError("Error saving bundle", err)
	}
	logger = logger.With().Int64("bundle_id", b.ID).Str("product_id", productID).Logger()

	if err := s.attachMedia(ctx, p, productID, in.Media); err != nil {
		return CreateResult{}, err
	}
	if err := p.ProductUpdate(ctx, productDetails(productID, in)); err != nil {
		return CreateResult{}, remoteError("Error updating product details", err)
	}

	variants, err := reconcileVariants(op.Product.Variants, false, decimal.Zero, discount)
	if err != nil {
		logger.Warn().Err(err).Msg("variant_price_unparseable")
		return CreateResult{}, err
	}
	if err := p.ProductVariantsBulkUpdate(ctx, productID, variantInputs(variants)); err != nil {
		return CreateResult{}, remoteError("Error updating variant prices", err)
	}
	b.Variants = variants
	if _, err := s.Repo.Update(ctx, *b, b.Version); err != nil {
		return CreateResult{}, storeError("Error saving bundle variants", err)
	}

	message := "Bundle published successfully"
	if in.Status == StatusDraft {
		message = "Bundle saved as draft successfully"
	}
	logger.Info().Int("variants", len(variants)).Msg("bundle_created")
	return CreateResult{BundleID: b.ID, ProductID: productID, ProductHandle: b.ProductHandle, Message: message}, nil
}

func (s *Service) attachMedia(ctx context.Context, p Platform, productID string, items []media.Item) error {
	if len(items) == 0 {
		return nil
	}
	uploads, images := media.Split(items)
	var targets []shopify.StagedTarget
	if len(uploads) > 0 {
		var err error
		targets, err = p.StagedUploadsCreate(ctx, media.StagedInputs(uploads))
		if err != nil {
			return remoteError("Error creating staged uploads", err)
		}
		if s.Uploader == nil {
			return &Error{Kind: ErrorTransport, Message: "media uploader not configured"}
		}
		if err := s.Uploader.UploadAll(ctx, targets, uploads); err != nil {
			return &Error{Kind: ErrorTransport, Message: "Error uploading media", Err: err}
		}
	}
	if err := p.ProductCreateMedia(ctx, productID, media.CreateInputs(targets, uploads, images)); err != nil {
		return remoteError("Error creating product media", err)
	}
	return nil
}

// Update changes the composition and discount of a fixed bundle. Variant
// reference prices shift by the price delta between the old and new
// composition and sale prices are re-derived from the discount.
func (s *Service) Update(ctx context.Context, shop string, id int64, in UpdateInput) (res UpdateResult, err error) {
	ctx, span := obs.StartSpan(ctx, "bundle.update", attribute.String("shop.domain", shop), attribute.Int64("bundle.id", id))
	defer func() {
		observe("update", err)
		endSpan(span, err)
	}()
	if err := s.check(in); err != nil {
		return UpdateResult{}, err
	}
	p, err := s.platform(ctx, shop)
	if err != nil {
		return UpdateResult{}, err
	}
	err = s.serialise(ctx, shop, id, func(ctx context.Context) error {
		var runErr error
		res, runErr = s.update(ctx, p, shop, id, in)
		return runErr
	})
	return res, err
}

func (s *Service) update(ctx context.Context, p Platform, shop string, id int64, in UpdateInput) (UpdateResult, error) {
	prior, err := s.Repo.Get(ctx, shop, id)
	if err != nil {
		return UpdateResult{}, storeError("Error loading bundle", err)
	}
	if prior.Kind != KindFixed {
		return UpdateResult{}, validationError("bundle is not a fixed bundle", nil)
	}
	logger := s.Logger.With().Str("shop", shop).Int64("bundle_id", id).Str("product_id", prior.ProductID).Logger()

	jobID, err := p.ProductBundleUpdate(ctx, shopify.ProductBundleUpdateInput{
		ProductID:  prior.ProductID,
		Components: componentInputs(in.Products),
	})
	if err != nil {
		return UpdateResult{}, remoteError("Error updating product bundle", err)
	}
	op, err := s.poll(ctx, p, jobID)
	if err != nil {
		return UpdateResult{}, remoteError("Error waiting for product bundle", err)
	}
	if op.Product == nil {
		return UpdateResult{}, &Error{Kind: ErrorJobFailed, Message: "Product bundle operation completed without a product"}
	}

	delta, warnings := pricing.ComputePriceDelta(pricedComponents(prior.Fixed), pricedComponents(in.Products))
	for _, w := range warnings {
		logger.Warn().Str("warning", w).Msg("price_delta_incomplete")
		if obs.PriceDeltaWarnings != nil {
			obs.PriceDeltaWarnings.Inc()
		}
	}
	discount := in.Resolve()
	variants, err := reconcileVariants(op.Product.Variants, true, delta, discount)
	if err != nil {
		logger.Warn().Err(err).Msg("variant_price_unparseable")
		return UpdateResult{}, err
	}
	if err := p.ProductVariantsBulkUpdate(ctx, prior.ProductID, variantInputs(variants)); err != nil {
		return UpdateResult{}, remoteError("Error updating variant prices", err)
	}

	next := prior
	next.Fixed = in.Products
	next.Discount = discount
	next.Variants = variants
	saved, err := s.Repo.Update(ctx, next, prior.Version)
	if err != nil {
		return UpdateResult{}, storeError("Error saving bundle", err)
	}
	logger.Info().Str("delta", delta.String()).Int("variants", len(variants)).Msg("bundle_updated")
	return UpdateResult{
		Success:   true,
		Message:   "Bundle updated successfully",
		Bundle:    saved,
		Operation: OperationView{ID: op.ID, Status: string(op.Status), ProductID: op.Product.ID},
		Warnings:  warnings,
	}, nil
}

// serialise runs fn under the per-bundle lock when one is configured.
func (s *Service) serialise(ctx context.Context, shop string, id int64, fn func(context.Context) error) error {
	if s.Locker == nil {
		return fn(ctx)
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	err := s.Locker.WithLock(ctx, lock.BundleKey(shop, id), ttl, fn)
	var e *Error
	if err != nil && !errors.As(err, &e) {
		return storeError("Error locking bundle", err)
	}
	return err
}

// CreateInfinite creates a plain product and records a group-based bundle
// for it. Infinite bundles carry no discount.
func (s *Service) CreateInfinite(ctx context.Context, shop string, in InfiniteInput) (res CreateResult, err error) {
	defer func() { observe("create_infinite", err) }()
	if err := s.check(in); err != nil {
		return CreateResult{}, err
	}
	p, err := s.platform(ctx, shop)
	if err != nil {
		return CreateResult{}, err
	}
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	productID, handle, err := p.ProductCreate(ctx, shopify.ProductInput{Title: in.Name, Status: strings.ToUpper(string(status))})
	if err != nil {
		return CreateResult{}, remoteError("Error creating product", err)
	}
	b := &Bundle{
		ShopDomain:    shop,
		ProductID:     productID,
		ProductHandle: handle,
		Name:          in.Name,
		Kind:          KindInfinite,
		Groups:        in.Groups,
	}
	if err := s.Repo.Create(ctx, b); err != nil {
		return CreateResult{}, storeError("Error saving bundle", err)
	}
	s.Logger.Info().Str("shop", shop).Int64("bundle_id", b.ID).Str("product_id", productID).Msg("infinite_bundle_created")
	return CreateResult{BundleID: b.ID, ProductID: productID, ProductHandle: handle, Message: "Bundle created successfully"}, nil
}

// UpdateInfinite renames an infinite bundle and replaces its groups.
func (s *Service) UpdateInfinite(ctx context.Context, shop string, id int64, in InfiniteInput) (out Bundle, err error) {
	defer func() { observe("update_infinite", err) }()
	if err := s.check(in); err != nil {
		return Bundle{}, err
	}
	p, err := s.platform(ctx, shop)
	if err != nil {
		return Bundle{}, err
	}
	err = s.serialise(ctx, shop, id, func(ctx context.Context) error {
		prior, err := s.Repo.Get(ctx, shop, id)
		if err != nil {
			return storeError("Error loading bundle", err)
		}
		if prior.Kind != KindInfinite {
			return validationError("bundle is not an infinite bundle", nil)
		}
		update := shopify.ProductInput{ID: prior.ProductID, Title: in.Name}
		if in.Status != "" {
			update.Status = strings.ToUpper(string(in.Status))
		}
		if err := p.ProductUpdate(ctx, update); err != nil {
			return remoteError("Error updating product details", err)
		}
		next := prior
		next.Name = in.Name
		next.Groups = in.Groups
		saved, err := s.Repo.Update(ctx, next, prior.Version)
		if err != nil {
			return storeError("Error saving bundle", err)
		}
		out = saved
		return nil
	})
	return out, err
}

// Get returns one bundle of the shop.
func (s *Service) Get(ctx context.Context, shop string, id int64) (Bundle, error) {
	b, err := s.Repo.Get(ctx, shop, id)
	if err != nil {
		return Bundle{}, storeError("Error loading bundle", err)
	}
	return b, nil
}

// List returns a page of the shop's bundles and the total count.
func (s *Service) List(ctx context.Context, shop string, limit, offset int) ([]Bundle, int64, error) {
	items, total, err := s.Repo.List(ctx, shop, limit, offset)
	if err != nil {
		return nil, 0, storeError("Error listing bundles", err)
	}
	return items, total, nil
}

// SetStatus publishes or unpublishes the product of one of the shop's bundles.
func (s *Service) SetStatus(ctx context.Context, shop, productID string, status Status) error {
	if status != StatusActive && status != StatusDraft {
		return validationError("status must be one of: active draft", []FieldError{{Field: "status", Rule: "oneof", Param: "active draft"}})
	}
	productID = shopify.ProductGID(productID)
	if _, err := s.Repo.GetByProductID(ctx, shop, productID); err != nil {
		return storeError("Error loading bundle", err)
	}
	p, err := s.platform(ctx, shop)
	if err != nil {
		return err
	}
	if err := p.ProductUpdate(ctx, shopify.ProductInput{ID: productID, Status: strings.ToUpper(string(status))}); err != nil {
		return remoteError("Error updating product status", err)
	}
	return nil
}

// DeleteProduct deletes the platform product of one of the shop's bundles.
// The local record is removed when the products/delete webhook arrives.
func (s *Service) DeleteProduct(ctx context.Context, shop, productID string) error {
	productID = shopify.ProductGID(productID)
	if _, err := s.Repo.GetByProductID(ctx, shop, productID); err != nil {
		return storeError("Error loading bundle", err)
	}
	p, err := s.platform(ctx, shop)
	if err != nil {
		return err
	}
	if err := p.ProductDelete(ctx, productID); err != nil {
		return remoteError("Error deleting product", err)
	}
	return nil
}

// Delete removes the bundle product and the local record immediately.
func (s *Service) Delete(ctx context.Context, shop string, id int64) error {
	b, err := s.Repo.Get(ctx, shop, id)
	if err != nil {
		return storeError("Error loading bundle", err)
	}
	p, err := s.platform(ctx, shop)
	if err != nil {
		return err
	}
	if err := p.ProductDelete(ctx, b.ProductID); err != nil {
		return remoteError("Error deleting product", err)
	}
	if err := s.Repo.Delete(ctx, shop, id); err != nil && !errors.Is(err, ErrNotFound) {
		return storeError("Error deleting bundle", err)
	}
	return nil
}

func componentInputs(products []Component) []shopify.BundleComponentInput {
	out := make([]shopify.BundleComponentInput, 0, len(products))
	for _, c := range products {
		selections := make([]shopify.OptionSelectionInput, 0, len(c.Options))
		for _, o := range c.Options {
			selections = append(selections, shopify.OptionSelectionInput{
				ComponentOptionID: o.OptionID,
				Name:              strings.TrimSpace(c.Title + " " + o.Name),
				Values:            o.Values,
			})
		}
		out = append(out, shopify.BundleComponentInput{
			Quantity:         c.Quantity,
			ProductID:        c.ProductID,
			OptionSelections: selections,
		})
	}
	return out
}

func productDetails(productID string, in CreateInput) shopify.ProductInput {
	description := in.Description
	collections := make([]string, 0, len(in.CollectionsToJoin))
	for _, c := range in.CollectionsToJoin {
		collections = append(collections, c.ID)
	}
	return shopify.ProductInput{
		ID:                productID,
		DescriptionHTML:   &description,
		Status:            strings.ToUpper(string(in.Status)),
		Tags:              in.ProductTags,
		ProductType:       in.ProductType,
		CollectionsToJoin: collections,
	}
}

func pricedComponents(products []Component) []pricing.PricedComponent {
	out := make([]pricing.PricedComponent, 0, len(products))
	for _, c := range products {
		out = append(out, pricing.PricedComponent{ProductID: c.ProductID, Quantity: c.Quantity, UnitPrice: c.UnitPrice()})
	}
	return out
}

// referencePrice is the compare-at price of a variant, falling back to its
// price. With useCompareAt false only the price is read.
func referencePrice(v shopify.ProductVariant, useCompareAt bool) (decimal.Decimal, bool) {
	if useCompareAt && v.CompareAtPrice != nil {
		if d, ok := pricing.ParseMoney(*v.CompareAtPrice); ok {
			return d, true
		}
	}
	return pricing.ParseMoney(v.Price)
}

// reconcileVariants derives the sale and compare-at price of every variant.
// A variant without a readable price fails the whole batch rather than being
// pushed at zero.
func reconcileVariants(variants []shopify.ProductVariant, useCompareAt bool, delta decimal.Decimal, discount Discount) ([]VariantPrice, error) {
	out := make([]VariantPrice, 0, len(variants))
	for _, v := range variants {
		reference, ok := referencePrice(v, useCompareAt)
		if !ok {
			return nil, &Error{
				Kind:    ErrorJobFailed,
				Message: fmt.Sprintf("Variant %s reported an unreadable price %q", v.ID, v.Price),
			}
		}
		price, compareAt := pricing.ReconcileVariant(reference, delta, discount.Type, discount.Value)
		out = append(out, VariantPrice{VariantID: v.ID, Price: pricing.FormatMoney(price), CompareAtPrice: pricing.FormatMoney(compareAt)})
	}
	return out, nil
}

func variantInputs(variants []VariantPrice) []shopify.VariantPriceInput {
	out := make([]shopify.VariantPriceInput, 0, len(variants))
	for _, v := range variants {
		out = append(out, shopify.VariantPriceInput{ID: v.VariantID, Price: v.Price, CompareAtPrice: v.CompareAtPrice})
	}
	return out
}
