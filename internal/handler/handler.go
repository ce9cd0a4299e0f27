// Package handler exposes checkout and reviews over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/IT-Gio/ShopElec/internal/domain/checkout"
	"github.com/IT-Gio/ShopElec/internal/domain/review"
	"github.com/IT-Gio/ShopElec/internal/identity"
	"github.com/IT-Gio/ShopElec/pkg/httpmiddleware"
)

// Checkout is the checkout workflow served by the handler.
type Checkout interface {
	LoadSelection(ctx context.Context, sessionKey string) (checkout.Selection, error)
	Reserve(ctx context.Context, lines []checkout.CartLine, sel checkout.Selection) (*checkout.Quote, error)
	Complete(ctx context.Context, req checkout.CompleteRequest) (*checkout.Receipt, error)
	ApplyCoupon(ctx context.Context, sessionKey, code string) (string, error)
	ClearCoupon(ctx context.Context, sessionKey string) error
}

// Reviews is the review workflow served by the handler.
type Reviews interface {
	Attach(ctx context.Context, req review.AttachRequest) (*review.Review, bool, error)
	LatestPurchase(ctx context.Context, userID, productID int64) (uuid.UUID, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// SessionTTL is the lifetime of the checkout session cookie.
	SessionTTL time.Duration
	// SecureCookies marks issued cookies Secure. Enable behind TLS.
	SecureCookies bool
	// CheckoutLimit guards the checkout endpoints, if set.
	CheckoutLimit httpmiddleware.Middleware
}

// Handler serves the storefront API.
type Handler struct {
	checkout Checkout
	reviews  Reviews
	verifier *identity.Verifier
	metrics  *metrics

	sessionTTL    time.Duration
	secureCookies bool
	checkoutLimit httpmiddleware.Middleware
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	checkoutSvc Checkout,
	reviewSvc Reviews,
	verifier *identity.Verifier,
	mp metric.MeterProvider,
) (*Handler, error) {
	m, err := newMetrics(mp)
	if err != nil {
		return nil, err
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	return &Handler{
		checkout:      checkoutSvc,
		reviews:       reviewSvc,
		verifier:      verifier,
		metrics:       m,
		sessionTTL:    cfg.SessionTTL,
		secureCookies: cfg.SecureCookies,
		checkoutLimit: cfg.CheckoutLimit,
	}, nil
}

// Router returns the API routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(identity.Middleware(h.verifier, h.writeError))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, errMethodNotAllowed)
	})

	r.Route("/api/checkout", func(r chi.Router) {
		if h.checkoutLimit != nil {
			r.Use(h.checkoutLimit)
		}
		r.Post("/payment-intent", h.createPaymentIntent)
		r.Post("/complete", h.completeCheckout)
		r.Post("/coupon", h.applyCoupon)
		r.Delete("/coupon", h.clearCoupon)
	})
	r.Post("/api/reviews", h.createReview)
	r.Post("/products/{productID}/reviews/{orderID}", h.submitReviewForm)

	return r
}

// requester describes the authenticated user, or a guest.
func requester(ctx context.Context) checkout.Requester {
	u, ok := identity.FromContext(ctx)
	if !ok {
		return checkout.Requester{}
	}
	id := u.ID
	return checkout.Requester{UserID: &id, Email: u.Email}
}
