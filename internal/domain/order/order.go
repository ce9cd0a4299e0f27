package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no order matches the lookup.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicatePaymentRef is returned by Repository.Create when an order
	// for the same payment reference already exists.
	ErrDuplicatePaymentRef = errors.New("order for payment reference already exists")
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Order is a persisted checkout. TotalPrice is the server-computed total at
// completion time, rounded to cents.
type Order struct {
	ID          uuid.UUID
	UserID      *int64
	Email       string
	Address     string
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	ShippingFee decimal.Decimal
	TotalPrice  decimal.Decimal
	CouponID    *int64
	PaymentRef  string
	Status      Status
	CreatedAt   time.Time
	Items       []Item
}

// OwnedBy reports whether the order belongs to userID.
func (o *Order) OwnedBy(userID int64) bool {
	return o.UserID != nil && *o.UserID == userID
}

// HasItemNamed reports whether any line carries the given product name.
func (o *Order) HasItemNamed(name string) bool {
	for _, it := range o.Items {
		if it.Name == name {
			return true
		}
	}
	return false
}

// ItemIDs returns the ids of the order's items in insertion order.
func (o *Order) ItemIDs() []int64 {
	ids := make([]int64, len(o.Items))
	for i, it := range o.Items {
		ids[i] = it.ID
	}
	return ids
}

// Item is a purchase-time snapshot of a cart line. ProductID is nil when the
// catalog product was not found or was deleted later.
type Item struct {
	ID          int64
	ProductID   *int64
	Name        string
	Brand       string
	Category    string
	Price       decimal.Decimal
	Quantity    int
	PriceSource string
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create stores o and all of o.Items in one transaction and fills in the
	// generated item ids and creation time. Nothing is stored on error.
	Create(ctx context.Context, o *Order) error
	FindByPaymentRef(ctx context.Context, ref string) (*Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// FindCompletedWithProduct returns the most recent completed order of
	// userID containing an item named productName.
	FindCompletedWithProduct(ctx context.Context, userID int64, productName string) (*Order, error)
}
