// Package pricing computes authoritative checkout totals from cart lines and
// an optional coupon.
package pricing

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/IT-Gio/ShopElec/internal/domain/coupon"
)

// ErrInvalidCart is returned for an empty cart or a malformed line.
var ErrInvalidCart = errors.New("invalid cart")

var (
	hundred           = decimal.NewFromInt(100)
	freeShippingFloor = decimal.NewFromInt(300)
	shippingRate      = decimal.RequireFromString("0.10")
)

// MaxQuantity bounds a single line's quantity.
const MaxQuantity = 10_000

// PriceSource records where a line's unit price came from.
type PriceSource string

const (
	SourceCatalog PriceSource = "catalog"
	SourceClient  PriceSource = "client"
)

// Line is a single cart entry.
type Line struct {
	ProductID   *int64
	Name        string
	Brand       string
	Category    string
	UnitPrice   decimal.Decimal
	Quantity    int
	PriceSource PriceSource
}

// Total returns UnitPrice × Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Result is a pricing breakdown. Values are exact; use Rounded before
// presenting or persisting them.
type Result struct {
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	AfterDiscount decimal.Decimal
	ShippingFee   decimal.Decimal
	FinalTotal    decimal.Decimal
	// CouponApplied is false when no coupon was given or it was not usable.
	CouponApplied bool
	// FreeOrder is true when FinalTotal rounds to zero.
	FreeOrder bool
}

// Rounded returns a copy with every amount rounded half away from zero to
// two decimal places.
func (r Result) Rounded() Result {
	r.Subtotal = r.Subtotal.Round(2)
	r.Discount = r.Discount.Round(2)
	r.AfterDiscount = r.AfterDiscount.Round(2)
	r.ShippingFee = r.ShippingFee.Round(2)
	r.FinalTotal = r.FinalTotal.Round(2)
	return r
}

// AmountMinor returns the rounded final total in minor currency units.
func (r Result) AmountMinor() int64 {
	return r.FinalTotal.Round(2).Shift(2).IntPart()
}

// Price computes the breakdown for lines with the optional coupon evaluated
// at now. A coupon that is inactive or outside its window contributes no
// discount.
func Price(lines []Line, c *coupon.Coupon, now time.Time) (Result, error) {
	if len(lines) == 0 {
		return Result{}, errors.Wrap(ErrInvalidCart, "cart is empty")
	}

	subtotal := decimal.Zero
	for i, l := range lines {
		if l.Quantity < 1 {
			return Result{}, errors.Wrapf(ErrInvalidCart, "line %d: quantity must be at least 1", i)
		}
		if l.Quantity > MaxQuantity {
			return Result{}, errors.Wrapf(ErrInvalidCart, "line %d: quantity must be at most %d", i, MaxQuantity)
		}
		if l.UnitPrice.IsNegative() {
			return Result{}, errors.Wrapf(ErrInvalidCart, "line %d: negative price", i)
		}
		subtotal = subtotal.Add(l.Total())
	}

	var res Result
	res.Subtotal = subtotal
	res.Discount = decimal.Zero
	if coupon.IsUsable(c, now) {
		res.Discount = subtotal.Mul(c.Percent).Div(hundred)
		res.CouponApplied = true
	}

	res.AfterDiscount = decimal.Max(decimal.Zero, subtotal.Sub(res.Discount))
	res.ShippingFee = decimal.Zero
	if res.AfterDiscount.LessThan(freeShippingFloor) {
		res.ShippingFee = res.AfterDiscount.Mul(shippingRate)
	}
	res.FinalTotal = decimal.Max(decimal.Zero, res.AfterDiscount.Add(res.ShippingFee))
	res.FreeOrder = res.FinalTotal.Round(2).IsZero()

	return res, nil
}
