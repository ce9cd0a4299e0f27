package checkout

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/IT-Gio/ShopElec/internal/domain"
	"github.com/IT-Gio/ShopElec/internal/domain/order"
	"github.com/IT-Gio/ShopElec/internal/domain/payment"
	"github.com/IT-Gio/ShopElec/internal/domain/pricing"
	"github.com/IT-Gio/ShopElec/internal/domain/product"
)

// FreeHandlePrefix starts the payment handle issued for free orders.
const FreeHandlePrefix = "free_"

// Dependencies holds the collaborators of Service.
type Dependencies struct {
	Coupons  Coupons
	Catalog  product.Catalog
	Orders   order.Repository
	Gateway  payment.Gateway
	Sessions SessionStore
	Carts    CartStore
	Notifier Notifier
	// Currency is the ISO code payments are reserved in.
	Currency       string
	TracerProvider trace.TracerProvider
}

// Service runs the checkout workflow.
type Service struct {
	coupons  Coupons
	catalog  product.Catalog
	orders   order.Repository
	gateway  payment.Gateway
	sessions SessionStore
	carts    CartStore
	notifier Notifier
	currency string
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService creates a checkout Service.
func NewService(d Dependencies) *Service {
	tp := d.TracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	currency := d.Currency
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		coupons:  d.Coupons,
		catalog:  d.Catalog,
		orders:   d.Orders,
		gateway:  d.Gateway,
		sessions: d.Sessions,
		carts:    d.Carts,
		notifier: d.Notifier,
		currency: strings.ToLower(currency),
		tracer:   tp.Tracer("github.com/IT-Gio/ShopElec/internal/domain/checkout"),
		now:      time.Now,
	}
}

// Reserve prices lines with the session's current coupon and reserves the
// payment. Free orders get no reservation.
func (s *Service) Reserve(ctx context.Context, lines []CartLine, sel Selection) (_ *Quote, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Reserve")
	defer func() { endSpan(span, rerr) }()

	if len(lines) == 0 {
		return nil, errors.Wrap(ErrInvalidRequest, "cart is empty")
	}

	priced, err := s.price(ctx, lines, sel)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("checkout.total", priced.Rounded().FinalTotal.StringFixed(2)),
		attribute.Bool("checkout.free", priced.FreeOrder),
	)

	quote := &Quote{Pricing: priced.Rounded()}
	if priced.FreeOrder {
		quote.PaymentHandle = FreeHandlePrefix + uuid.NewString()
		return quote, nil
	}

	res, err := s.gateway.Reserve(ctx, priced.AmountMinor(), s.currency)
	if err != nil {
		return nil, errors.Wrap(err, "reserve payment")
	}
	quote.PaymentHandle = res.Handle
	quote.ClientSecret = res.ClientSecret

	return quote, nil
}

// Complete re-prices the cart, verifies the payment and persists the order
// with its items. Completing the same payment handle twice returns the
// order stored the first time.
func (s *Service) Complete(ctx context.Context, req CompleteRequest) (_ *Receipt, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Complete")
	defer func() { endSpan(span, rerr) }()

	email := strings.TrimSpace(req.Requester.Email)
	if email == "" {
		email = strings.TrimSpace(req.Email)
	}
	handle := strings.TrimSpace(req.PaymentHandle)
	switch {
	case len(req.Lines) == 0:
		return nil, errors.Wrap(ErrInvalidRequest, "cart is empty")
	case email == "":
		return nil, errors.Wrap(ErrInvalidRequest, "email is required")
	case handle == "":
		return nil, errors.Wrap(ErrInvalidRequest, "payment handle is required")
	}
	span.SetAttributes(attribute.String("checkout.payment_ref", handle))

	existing, err := s.orders.FindByPaymentRef(ctx, handle)
	switch {
	case err == nil:
		zctx.From(ctx).Info("Replaying completed checkout",
			zap.String("payment_ref", handle),
			zap.Stringer("order_id", existing.ID),
		)
		return receiptFor(existing, true), nil
	case !errors.Is(err, order.ErrNotFound):
		return nil, domain.Storage("find order by payment ref", err)
	}

	po, err := s.priceForOrder(ctx, req.Lines, req.Selection)
	if err != nil {
		return nil, err
	}
	priced := po.result
	total := priced.Rounded()

	if !priced.FreeOrder {
		if err := s.verifyPayment(ctx, handle, po.acceptedMinor()); err != nil {
			return nil, err
		}
	}

	o := &order.Order{
		ID:          uuid.New(),
		UserID:      req.Requester.UserID,
		Email:       email,
		Address:     strings.TrimSpace(req.Address),
		Subtotal:    total.Subtotal,
		Discount:    total.Discount,
		ShippingFee: total.ShippingFee,
		TotalPrice:  total.FinalTotal,
		CouponID:    po.couponID,
		PaymentRef:  handle,
		Status:      order.StatusCompleted,
		Items:       po.items,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		if !errors.Is(err, order.ErrDuplicatePaymentRef) {
			return nil, domain.Storage("create order", err)
		}
		// Lost a race with a concurrent submit of the same payment.
		winner, err := s.orders.FindByPaymentRef(ctx, handle)
		if err != nil {
			return nil, domain.Storage("find concurrent order", err)
		}
		return receiptFor(winner, true), nil
	}
	span.SetAttributes(attribute.String("checkout.order_id", o.ID.String()))

	s.afterCompletion(ctx, o, req)

	return receiptFor(o, false), nil
}

// verifyPayment checks that handle is confirmed, in the service currency,
// for one of the accepted amounts.
func (s *Service) verifyPayment(ctx context.Context, handle string, accepted []int64) error {
	intent, err := s.gateway.Verify(ctx, handle)
	if err != nil {
		return errors.Wrap(err, "verify payment")
	}
	if !intent.Status.Confirmed() {
		return errors.Wrapf(payment.ErrGateway, "payment %s is %s", handle, intent.Status)
	}
	if !strings.EqualFold(intent.Currency, s.currency) {
		return errors.Wrapf(payment.ErrGateway, "payment %s is in %q, want %q", handle, intent.Currency, s.currency)
	}
	if !slices.Contains(accepted, intent.AmountMinor) {
		zctx.From(ctx).Warn("Payment amount does not match order total",
			zap.String("payment_ref", handle),
			zap.Int64("paid_minor", intent.AmountMinor),
			zap.Int64s("accepted_minor", accepted),
		)
		return errors.Wrapf(payment.ErrGateway, "payment %s amount %d does not match order total", handle, intent.AmountMinor)
	}
	return nil
}

// afterCompletion runs the post-commit side effects. Failures are logged.
func (s *Service) afterCompletion(ctx context.Context, o *order.Order, req CompleteRequest) {
	lg := zctx.From(ctx).With(zap.Stringer("order_id", o.ID))

	if s.notifier != nil {
		err := s.notifier.OrderConfirmed(ctx, Confirmation{
			OrderID:     o.ID,
			Email:       o.Email,
			Address:     o.Address,
			Items:       o.Items,
			Subtotal:    o.Subtotal,
			Discount:    o.Discount,
			ShippingFee: o.ShippingFee,
			TotalPaid:   o.TotalPrice,
		})
		if err != nil {
			lg.Warn("Order confirmation failed", zap.Error(err))
		}
	}

	if s.carts != nil {
		if err := s.carts.Clear(ctx, req.Requester.UserID, req.Selection.SessionKey); err != nil {
			lg.Warn("Cart clearing failed", zap.Error(err))
		}
	}

	if s.sessions != nil && req.Selection.SessionKey != "" {
		if err := s.sessions.SetCoupon(ctx, req.Selection.SessionKey, nil); err != nil {
			lg.Warn("Coupon selection reset failed", zap.Error(err))
		}
	}
}

// price resolves lines against the catalog and prices them with the coupon
// currently selected in sel.
func (s *Service) price(ctx context.Context, lines []CartLine, sel Selection) (pricing.Result, error) {
	po, err := s.priceForOrder(ctx, lines, sel)
	if err != nil {
		return pricing.Result{}, err
	}
	return po.result, nil
}

// pricedOrder is a cart priced for completion.
type pricedOrder struct {
	result   pricing.Result
	items    []order.Item
	couponID *int64
	// lapsed is the price with the selected coupon applied when the coupon
	// is no longer usable, nil otherwise.
	lapsed *pricing.Result
}

// acceptedMinor lists the payment amounts that may complete the order: the
// current total, and the total the payment was reserved for if the selected
// coupon lapsed since.
func (p pricedOrder) acceptedMinor() []int64 {
	accepted := []int64{p.result.AmountMinor()}
	if p.lapsed != nil {
		accepted = append(accepted, p.lapsed.AmountMinor())
	}
	return accepted
}

func (s *Service) priceForOrder(ctx context.Context, lines []CartLine, sel Selection) (pricedOrder, error) {
	resolved, err := s.resolveLines(ctx, lines)
	if err != nil {
		return pricedOrder{}, err
	}

	c, err := s.coupons.Current(ctx, sel.CouponID)
	if err != nil {
		return pricedOrder{}, domain.Storage("load selected coupon", err)
	}

	res, err := pricing.Price(resolved, c, s.now())
	if err != nil {
		return pricedOrder{}, err
	}

	po := pricedOrder{result: res}
	if res.CouponApplied {
		id := c.ID
		po.couponID = &id
	} else if c != nil {
		live := *c
		live.Active = true
		lapsed, err := pricing.Price(resolved, &live, live.ValidFrom)
		if err != nil {
			return pricedOrder{}, err
		}
		po.lapsed = &lapsed
	}

	po.items = make([]order.Item, len(resolved))
	for i, l := range resolved {
		po.items[i] = order.Item{
			ProductID:   l.ProductID,
			Name:        l.Name,
			Brand:       l.Brand,
			Category:    l.Category,
			Price:       l.UnitPrice.Round(2),
			Quantity:    l.Quantity,
			PriceSource: string(l.PriceSource),
		}
	}

	return po, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
