package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IT-Gio/ShopElec/internal/domain/order"
)

const (
	paymentRefConstraint = "orders_payment_ref_key"

	orderColumns = `id, user_id, email, address, subtotal, discount, shipping_fee,
		total_price, coupon_id, payment_ref, status, created_at`

	insertOrderSQL = `INSERT INTO orders (id, user_id, email, address, subtotal, discount,
		shipping_fee, total_price, coupon_id, payment_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, name, brand, category,
		price, quantity, price_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	getOrderByIDSQL         = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderByPaymentRefSQL = `SELECT ` + orderColumns + ` FROM orders WHERE payment_ref = $1`

	findCompletedWithProductSQL = `SELECT ` + orderColumns + ` FROM orders o
		WHERE o.user_id = $1 AND o.status = 'completed'
			AND EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.name = $2)
		ORDER BY o.created_at DESC
		LIMIT 1`

	listOrderItemsSQL = `SELECT id, product_id, name, brand, category, price, quantity, price_source
		FROM order_items WHERE order_id = $1 ORDER BY id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order and its items in a single transaction. A payment
// reference that is already taken yields order.ErrDuplicatePaymentRef.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning order tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	createdAt := o.CreatedAt
	err = tx.QueryRow(ctx, insertOrderSQL,
		o.ID, o.UserID, o.Email, o.Address, o.Subtotal, o.Discount,
		o.ShippingFee, o.TotalPrice, o.CouponID, o.PaymentRef, string(o.Status),
	).Scan(&createdAt)
	if err != nil {
		if isUniqueViolation(err, paymentRefConstraint) {
			return errors.Wrapf(order.ErrDuplicatePaymentRef, "payment ref %q", o.PaymentRef)
		}
		return fmt.Errorf("inserting order %s: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(insertOrderItemSQL,
			o.ID, it.ProductID, it.Name, it.Brand, it.Category,
			it.Price, it.Quantity, it.PriceSource,
		)
	}
	ids := make([]int64, len(o.Items))
	br := tx.SendBatch(ctx, batch)
	for i := range o.Items {
		if err := br.QueryRow().Scan(&ids[i]); err != nil {
			_ = br.Close()
			return fmt.Errorf("inserting order %s item %d: %w", o.ID, i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("inserting order %s items: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %s: %w", o.ID, err)
	}

	o.CreatedAt = createdAt.UTC()
	for i := range o.Items {
		o.Items[i].ID = ids[i]
	}
	return nil
}

// FindByPaymentRef returns the order created for a payment reference, with
// its items.
func (r *OrderRepository) FindByPaymentRef(ctx context.Context, ref string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByPaymentRefSQL, ref)
}

// GetByID returns an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

func (r *OrderRepository) FindCompletedWithProduct(ctx context.Context, userID int64, productName string) (*order.Order, error) {
	return r.getOne(ctx, findCompletedWithProductSQL, userID, productName)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, args ...any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}

	rows, err = r.pool.Query(ctx, listOrderItemsSQL, o.ID)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %s: %w", o.ID, err)
	}
	o.Items, err = pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %s: %w", o.ID, err)
	}

	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Email, &o.Address, &o.Subtotal, &o.Discount, &o.ShippingFee,
		&o.TotalPrice, &o.CouponID, &o.PaymentRef, &status, &o.CreatedAt,
	)
	o.Status = order.Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(
		&it.ID, &it.ProductID, &it.Name, &it.Brand, &it.Category,
		&it.Price, &it.Quantity, &it.PriceSource,
	)
	return it, err
}
