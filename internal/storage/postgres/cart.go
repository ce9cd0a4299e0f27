package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IT-Gio/ShopElec/internal/domain/checkout"
)

const clearCartSQL = `DELETE FROM cart_items WHERE cart_id IN (
		SELECT id FROM carts WHERE user_id = $1 OR ($2 <> '' AND session_key = $2)
	)`

var _ checkout.CartStore = (*CartRepository)(nil)

// CartRepository clears server-side carts.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Clear empties the carts owned by userID or bound to sessionKey.
func (r *CartRepository) Clear(ctx context.Context, userID *int64, sessionKey string) error {
	if _, err := r.pool.Exec(ctx, clearCartSQL, userID, sessionKey); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}
