// Package checkout prices carts, reserves payments and turns confirmed
// payments into persisted orders.
package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/IT-Gio/ShopElec/internal/domain/coupon"
	"github.com/IT-Gio/ShopElec/internal/domain/order"
	"github.com/IT-Gio/ShopElec/internal/domain/pricing"
)

// ErrInvalidRequest is returned for missing or malformed checkout input.
var ErrInvalidRequest = errors.New("invalid checkout request")

// CartLine is a client-submitted cart entry. Price is only trusted when the
// catalog has no price for the product.
type CartLine struct {
	Name     string
	Brand    string
	Category string
	Price    decimal.Decimal
	Quantity int
}

// Requester identifies who is checking out. UserID is nil for guests.
type Requester struct {
	UserID *int64
	Email  string
}

// Selection is the checkout state of one client session: the coupon chosen
// earlier, by identity only.
type Selection struct {
	SessionKey string
	CouponID   *int64
}

// Quote is the result of Reserve. Pricing is rounded to cents.
//
// Free orders need no payment: ClientSecret is empty and PaymentHandle is a
// locally generated reference the client submits on completion.
type Quote struct {
	Pricing       pricing.Result
	PaymentHandle string
	ClientSecret  string
}

// CompleteRequest is the input of Complete.
type CompleteRequest struct {
	Lines         []CartLine
	Address       string
	PaymentHandle string
	// Email is used for guests. An authenticated requester's email wins.
	Email     string
	Requester Requester
	Selection Selection
}

// Receipt describes a completed order.
type Receipt struct {
	OrderID   uuid.UUID
	ItemIDs   []int64
	Discount  decimal.Decimal
	TotalPaid decimal.Decimal
	// Replayed is true when the order already existed for the payment handle.
	Replayed bool
}

func receiptFor(o *order.Order, replayed bool) *Receipt {
	return &Receipt{
		OrderID:   o.ID,
		ItemIDs:   o.ItemIDs(),
		Discount:  o.Discount,
		TotalPaid: o.TotalPrice,
		Replayed:  replayed,
	}
}

// Confirmation is the content of an order confirmation message.
type Confirmation struct {
	OrderID     uuid.UUID
	Email       string
	Address     string
	Items       []order.Item
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	ShippingFee decimal.Decimal
	TotalPaid   decimal.Decimal
}

// Coupons resolves coupon codes and re-fetches selected coupons.
type Coupons interface {
	ResolveUsable(ctx context.Context, code string) (*coupon.Coupon, error)
	Current(ctx context.Context, id *int64) (*coupon.Coupon, error)
}

// SessionStore keeps the coupon selection of a client session.
type SessionStore interface {
	// CouponID returns the selected coupon, nil when none is selected or the
	// session is unknown.
	CouponID(ctx context.Context, sessionKey string) (*int64, error)
	// SetCoupon stores the selection. A nil id clears it.
	SetCoupon(ctx context.Context, sessionKey string, couponID *int64) error
}

// CartStore clears server-side carts after checkout.
type CartStore interface {
	Clear(ctx context.Context, userID *int64, sessionKey string) error
}

// Notifier delivers order confirmations. Delivery is best effort.
type Notifier interface {
	OrderConfirmed(ctx context.Context, c Confirmation) error
}
