package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no coupon matches the requested code or id.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotUsable is returned when a coupon exists but is inactive or outside
	// its validity window.
	ErrNotUsable = errors.New("coupon is not active or expired")
)

// Coupon is a percentage discount code managed by administrators. The
// checkout flow only reads coupons, it never mutates them.
type Coupon struct {
	ID        int64
	Code      string
	ValidFrom time.Time
	ValidTo   time.Time
	// Percent is the discount percentage in [0, 100].
	Percent decimal.Decimal
	Active  bool
}

// Repository provides read access to coupons.
type Repository interface {
	// FindByCode looks up a coupon by code, ignoring case.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	GetByID(ctx context.Context, id int64) (*Coupon, error)
}
