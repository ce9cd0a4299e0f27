package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/IT-Gio/ShopElec/internal/domain/coupon"
	"github.com/IT-Gio/ShopElec/internal/domain/product"
)

const (
	// Product names are not unique in the schema, so update by name first
	// and insert only when nothing matched.
	upsertProductSQL = `WITH updated AS (
			UPDATE products SET description = $2, brand = $3, category = $4,
				subcategory = $5, price = $6, stock = $7
			WHERE name = $1
			RETURNING id
		)
		INSERT INTO products (name, description, brand, category, subcategory, price, stock)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE NOT EXISTS (SELECT 1 FROM updated)`

	// An existing coupon keeps its active flag.
	upsertCouponSQL = `INSERT INTO coupons (code, valid_from, valid_to, discount, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ((UPPER(code))) DO UPDATE SET
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			discount = EXCLUDED.discount`
)

// Upsert writes products keyed by name in one batch.
func (r *ProductRepository) Upsert(ctx context.Context, products []product.Product) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(upsertProductSQL,
			p.Name, p.Description, p.Brand, p.Category, p.Subcategory, p.Price, p.Stock)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d products: %w", len(products), err)
	}
	return nil
}

// Upsert writes coupons keyed by case-insensitive code in one batch. Active
// applies to new coupons only.
func (r *CouponRepository) Upsert(ctx context.Context, coupons []coupon.Coupon) error {
	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(upsertCouponSQL, c.Code, c.ValidFrom.UTC(), c.ValidTo.UTC(), c.Percent, c.Active)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d coupons: %w", len(coupons), err)
	}
	return nil
}
