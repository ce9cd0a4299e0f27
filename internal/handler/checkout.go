package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/IT-Gio/ShopElec/internal/domain/checkout"
)

// createPaymentIntent prices the cart with the session's coupon and reserves
// the payment.
func (h *Handler) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var lines []checkout.CartLine
	if err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		if key != "cart" {
			return d.Skip()
		}
		var err error
		lines, err = decodeCart(d)
		return err
	}); err != nil {
		h.writeError(w, r, err)
		return
	}

	sel, err := h.checkout.LoadSelection(ctx, sessionKey(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	quote, err := h.checkout.Reserve(ctx, lines, sel)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p := quote.Pricing
	h.metrics.reservations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("free", p.FreeOrder)))

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("freeOrder")
		e.Bool(p.FreeOrder)
		e.FieldStart("subtotal")
		money(e, p.Subtotal)
		e.FieldStart("discount")
		money(e, p.Discount)
		e.FieldStart("shippingFee")
		money(e, p.ShippingFee)
		e.FieldStart("finalTotal")
		money(e, p.FinalTotal)
		e.FieldStart("couponApplied")
		e.Bool(p.CouponApplied)
		e.FieldStart("paymentHandle")
		e.Str(quote.PaymentHandle)
		if quote.ClientSecret != "" {
			e.FieldStart("clientSecret")
			e.Str(quote.ClientSecret)
		}
		e.ObjEnd()
	})
}

// completeCheckout turns a confirmed payment into an order. Resubmitting a
// completed payment returns the stored order with 200 instead of 201.
func (h *Handler) completeCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkout.CompleteRequest
	if err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "cart":
			req.Lines, err = decodeCart(d)
		case "address":
			req.Address, err = d.Str()
		case "paymentHandle", "paymentIntentId":
			req.PaymentHandle, err = d.Str()
		case "email":
			req.Email, err = d.Str()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	}); err != nil {
		h.writeError(w, r, err)
		return
	}

	sel, err := h.checkout.LoadSelection(ctx, sessionKey(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Selection = sel
	req.Requester = requester(ctx)

	receipt, err := h.checkout.Complete(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	} else {
		paid, _ := receipt.TotalPaid.Float64()
		h.metrics.revenue.Add(ctx, paid)
	}
	h.metrics.orders.Add(ctx, 1, metric.WithAttributes(attribute.Bool("replayed", receipt.Replayed)))

	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("orderId")
		e.Str(receipt.OrderID.String())
		e.FieldStart("orderItemIds")
		e.ArrStart()
		for _, id := range receipt.ItemIDs {
			e.Int64(id)
		}
		e.ArrEnd()
		e.FieldStart("discount")
		money(e, receipt.Discount)
		e.FieldStart("totalPaid")
		money(e, receipt.TotalPaid)
		e.FieldStart("replayed")
		e.Bool(receipt.Replayed)
		e.ObjEnd()
	})
}

// applyCoupon selects a coupon for the session. The discount itself is only
// revealed by the next payment intent.
func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var code string
	if err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		var err error
		code, err = d.Str()
		return err
	}); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(code) == "" {
		h.writeError(w, r, errors.Wrap(checkout.ErrInvalidRequest, "coupon code is required"))
		return
	}

	applied, err := h.checkout.ApplyCoupon(r.Context(), h.ensureSession(w, r), code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCouponState(w, true, applied, "Coupon applied.")
}

func (h *Handler) clearCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.ClearCoupon(r.Context(), sessionKey(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeCouponState(w, false, "", "Coupon removed.")
}

func writeCouponState(w http.ResponseWriter, applied bool, code, message string) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("applied")
		e.Bool(applied)
		if code != "" {
			e.FieldStart("code")
			e.Str(code)
		}
		e.FieldStart("message")
		e.Str(message)
		e.ObjEnd()
	})
}
