package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IT-Gio/ShopElec/internal/domain/checkout"
)

const (
	getSessionCouponSQL = `SELECT coupon_id FROM checkout_sessions WHERE session_key = $1`

	setSessionCouponSQL = `INSERT INTO checkout_sessions (session_key, coupon_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_key) DO UPDATE SET coupon_id = EXCLUDED.coupon_id, updated_at = now()`

	deleteStaleSessionsSQL = `DELETE FROM checkout_sessions WHERE updated_at < $1`
)

var _ checkout.SessionStore = (*SessionRepository)(nil)

// SessionRepository stores checkout selections per client session.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) CouponID(ctx context.Context, sessionKey string) (*int64, error) {
	var id *int64
	err := r.pool.QueryRow(ctx, getSessionCouponSQL, sessionKey).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting session coupon: %w", err)
	}
	return id, nil
}

func (r *SessionRepository) SetCoupon(ctx context.Context, sessionKey string, couponID *int64) error {
	if _, err := r.pool.Exec(ctx, setSessionCouponSQL, sessionKey, couponID); err != nil {
		return fmt.Errorf("setting session coupon: %w", err)
	}
	return nil
}

// DeleteStale removes sessions untouched since before cutoff and returns how
// many were removed.
func (r *SessionRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteStaleSessionsSQL, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting stale sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
