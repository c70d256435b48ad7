package bundle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/bundle-admin/internal/pricing"
)

// ErrStoreUnavailable indicates the repository has no database configured.
var ErrStoreUnavailable = errors.New("bundle: store unavailable")

// Repository persists bundle records. Update is a compare-and-swap on
// Version: it fails with ErrVersionConflict when the stored version differs
// from expectedVersion and increments the version on success.
type Repository interface {
	Create(ctx context.Context, b *Bundle) error
	Get(ctx context.Context, shop string, id int64) (Bundle, error)
	GetByProductID(ctx context.Context, shop, productID string) (Bundle, error)
	List(ctx context.Context, shop string, limit, offset int) ([]Bundle, int64, error)
	ListContainingProduct(ctx context.Context, shop, productID string) ([]Bundle, error)
	Update(ctx context.Context, b Bundle, expectedVersion int64) (Bundle, error)
	Delete(ctx context.Context, shop string, id int64) error
	DeleteByProductID(ctx context.Context, shop, productID string) (int64, error)
}

// componentsDoc is the JSONB layout of the components column. Exactly one of
// Fixed or Groups is populated, selected by Kind.
type componentsDoc struct {
	Kind   BundleKind       `json:"kind"`
	Fixed  []Component      `json:"fixed,omitempty"`
	Groups []ComponentGroup `json:"groups,omitempty"`
}

func encodeComponents(b Bundle) ([]byte, error) {
	doc := componentsDoc{Kind: b.Kind}
	switch b.Kind {
	case KindFixed:
		doc.Fixed = b.Fixed
	case KindInfinite:
		doc.Groups = b.Groups
	default:
		return nil, fmt.Errorf("bundle: unknown kind %q", b.Kind)
	}
	return json.Marshal(doc)
}

func decodeComponents(raw []byte, b *Bundle) error {
	if len(raw) == 0 {
		return nil
	}
	var doc componentsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("bundle: decode components: %w", err)
	}
	if doc.Kind != "" && doc.Kind != b.Kind {
		return fmt.Errorf("bundle: components tagged %q on a %q bundle", doc.Kind, b.Kind)
	}
	switch b.Kind {
	case KindFixed:
		b.Fixed = doc.Fixed
	case KindInfinite:
		b.Groups = doc.Groups
	default:
		return fmt.Errorf("bundle: unknown kind %q", b.Kind)
	}
	return nil
}

func discountColumns(d Discount) (any, any) {
	if d.None() {
		return nil, nil
	}
	return string(d.Type), d.Value.String()
}

// NewPostgresRepository constructs a Repository backed by a pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

type pgRepository struct {
	pool *pgxpool.Pool
}

const selectColumns = `id, shop_domain, product_id, product_handle, name, description, discount_type, discount_value::text, kind, components, variants, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBundle(row rowScanner) (Bundle, error) {
	var (
		b             Bundle
		discountType  sql.NullString
		discountValue sql.NullString
		components    []byte
		variants      []byte
		kind          string
	)
	if err := row.Scan(&b.ID, &b.ShopDomain, &b.ProductID, &b.ProductHandle, &b.Name, &b.Description,
		&discountType, &discountValue, &kind, &components, &variants, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bundle{}, ErrNotFound
		}
		return Bundle{}, err
	}
	b.Kind = BundleKind(kind)
	if discountType.Valid {
		b.Discount.Type = pricing.ParseDiscountType(discountType.String)
		if discountValue.Valid {
			value, err := decimal.NewFromString(discountValue.String)
			if err != nil {
				return Bundle{}, fmt.Errorf("bundle: decode discount value: %w", err)
			}
			b.Discount.Value = value
		}
	}
	if err := decodeComponents(components, &b); err != nil {
		return Bundle{}, err
	}
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &b.Variants); err != nil {
			return Bundle{}, fmt.Errorf("bundle: decode variants: %w", err)
		}
	}
	return b, nil
}

func encodeVariants(v []VariantPrice) ([]byte, error) {
	if v == nil {
		v = []VariantPrice{}
	}
	return json.Marshal(v)
}

// Create inserts b and fills in its identifier, version and timestamps.
func (r *pgRepository) Create(ctx context.Context, b *Bundle) error {
	if r == nil || r.pool == nil {
		return ErrStoreUnavailable
	}
	components, err := encodeComponents(*b)
	if err != nil {
		return err
	}
	variants, err := encodeVariants(b.Variants)
	if err != nil {
		return err
	}
	dType, dValue := discountColumns(b.Discount)
	row := r.pool.QueryRow(ctx, `INSERT INTO bundles (shop_domain, product_id, product_handle, name, description, discount_type, discount_value, kind, components, variants)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10)
RETURNING id, version, created_at, updated_at`,
		b.ShopDomain, b.ProductID, b.ProductHandle, b.Name, b.Description, dType, dValue, string(b.Kind), components, variants)
	return row.Scan(&b.ID, &b.Version, &b.CreatedAt, &b.UpdatedAt)
}

// Get fetches a bundle owned by shop.
func (r *pgRepository) Get(ctx context.Context, shop string, id int64) (Bundle, error) {
	if r == nil || r.pool == nil {
		return Bundle{}, ErrStoreUnavailable
	}
	return scanBundle(r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM bundles WHERE shop_domain = $1 AND id = $2`, shop, id))
}

// GetByProductID fetches the bundle attached to a platform product.
func (r *pgRepository) GetByProductID(ctx context.Context, shop, productID string) (Bundle, error) {
	if r == nil || r.pool == nil {
		return Bundle{}, ErrStoreUnavailable
	}
	return scanBundle(r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM bundles WHERE shop_domain = $1 AND product_id = $2`, shop, productID))
}

// List returns a page of the shop's bundles, newest first, and the total count.
func (r *pgRepository) List(ctx context.Context, shop string, limit, offset int) ([]Bundle, int64, error) {
	if r == nil || r.pool == nil {
		return nil, 0, ErrStoreUnavailable
	}
	if limit <= 0 || limit > 250 {
		limit = 250
	}
	if offset < 0 {
		offset = 0
	}
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bundles WHERE shop_domain = $1`, shop).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM bundles WHERE shop_domain = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, shop, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out, err := collect(rows, limit)
	return out, total, err
}

// ListContainingProduct returns the shop's fixed bundles that include productID
// as a component.
func (r *pgRepository) ListContainingProduct(ctx context.Context, shop, productID string) ([]Bundle, error) {
	if r == nil || r.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM bundles
WHERE shop_domain = $1 AND kind = 'fixed'
  AND components -> 'fixed' @> jsonb_build_array(jsonb_build_object('id', $2::text))
ORDER BY id`, shop, productID)
	if err != nil {
		return nil, err
	}
	return collect(rows, 0)
}

func collect(rows pgx.Rows, capacity int) ([]Bundle, error) {
	defer rows.Close()
	out := make([]Bundle, 0, capacity)
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Update writes the mutable fields of b when the stored version still equals
// expectedVersion.
func (r *pgRepository) Update(ctx context.Context, b Bundle, expectedVersion int64) (Bundle, error) {
	if r == nil || r.pool == nil {
		return Bundle{}, ErrStoreUnavailable
	}
	components, err := encodeComponents(b)
	if err != nil {
		return Bundle{}, err
	}
	variants, err := encodeVariants(b.Variants)
	if err != nil {
		return Bundle{}, err
	}
	dType, dValue := discountColumns(b.Discount)
	row := r.pool.QueryRow(ctx, `UPDATE bundles
SET name = $3, description = $4, product_handle = $5, discount_type = $6, discount_value = $7::numeric,
    components = $8, variants = $9, version = version + 1, updated_at = $10
WHERE shop_domain = $1 AND id = $2 AND version = $11
RETURNING `+selectColumns,
		b.ShopDomain, b.ID, b.Name, b.Description, b.ProductHandle, dType, dValue, components, variants, time.Now().UTC(), expectedVersion)
	updated, err := scanBundle(row)
	if errors.Is(err, ErrNotFound) {
		// distinguish a stale version from a missing row
		var exists bool
		if qerr := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bundles WHERE shop_domain = $1 AND id = $2)`, b.ShopDomain, b.ID).Scan(&exists); qerr != nil {
			return Bundle{}, qerr
		}
		if exists {
			return Bundle{}, ErrVersionConflict
		}
	}
	return updated, err
}

// Delete removes a bundle by identifier.
func (r *pgRepository) Delete(ctx context.Context, shop string, id int64) error {
	if r == nil || r.pool == nil {
		return ErrStoreUnavailable
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM bundles WHERE shop_domain = $1 AND id = $2`, shop, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByProductID removes the bundles attached to a platform product and
// reports how many rows were deleted.
func (r *pgRepository) DeleteByProductID(ctx context.Context, shop, productID string) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, ErrStoreUnavailable
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM bundles WHERE shop_domain = $1 AND product_id = $2`, shop, productID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
