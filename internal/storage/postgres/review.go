package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IT-Gio/ShopElec/internal/domain/review"
)

// xmax is zero only for a freshly inserted row version.
const upsertReviewSQL = `INSERT INTO reviews (user_id, product_id, order_id, rating, comment)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT ON CONSTRAINT reviews_user_product_order_key
	DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, updated_at = now()
	RETURNING id, created_at, updated_at, (xmax = 0) AS inserted`

var _ review.Repository = (*ReviewRepository)(nil)

// ReviewRepository implements review.Repository backed by PostgreSQL.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository returns a ReviewRepository that uses the given pool.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Upsert relies on the unique constraint so concurrent submissions for the
// same triple converge on one row.
func (r *ReviewRepository) Upsert(ctx context.Context, rv *review.Review) (bool, error) {
	var inserted bool
	err := r.pool.QueryRow(ctx, upsertReviewSQL,
		rv.UserID, rv.ProductID, rv.OrderID, rv.Rating, rv.Comment,
	).Scan(&rv.ID, &rv.CreatedAt, &rv.UpdatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("upserting review of product %d in order %s: %w", rv.ProductID, rv.OrderID, err)
	}
	rv.CreatedAt = rv.CreatedAt.UTC()
	rv.UpdatedAt = rv.UpdatedAt.UTC()
	return inserted, nil
}
