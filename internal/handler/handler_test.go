package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/IT-Gio/ShopElec/internal/domain"
	"github.com/IT-Gio/ShopElec/internal/domain/checkout"
	"github.com/IT-Gio/ShopElec/internal/domain/coupon"
	"github.com/IT-Gio/ShopElec/internal/domain/payment"
	"github.com/IT-Gio/ShopElec/internal/domain/pricing"
	"github.com/IT-Gio/ShopElec/internal/domain/review"
	"github.com/IT-Gio/ShopElec/internal/identity"
)

type fakeCheckout struct {
	loadedKey string
	selection checkout.Selection

	reserved   []checkout.CartLine
	quote      *checkout.Quote
	reserveErr error

	completed   checkout.CompleteRequest
	receipt     *checkout.Receipt
	completeErr error

	appliedKey string
	applyErr   error
	clearedKey string
}

func (f *fakeCheckout) LoadSelection(_ context.Context, key string) (checkout.Selection, error) {
	f.loadedKey = key
	sel := f.selection
	sel.SessionKey = key
	return sel, nil
}

func (f *fakeCheckout) Reserve(_ context.Context, lines []checkout.CartLine, _ checkout.Selection) (*checkout.Quote, error) {
	f.reserved = lines
	return f.quote, f.reserveErr
}

func (f *fakeCheckout) Complete(_ context.Context, req checkout.CompleteRequest) (*checkout.Receipt, error) {
	f.completed = req
	return f.receipt, f.completeErr
}

func (f *fakeCheckout) ApplyCoupon(_ context.Context, key, code string) (string, error) {
	f.appliedKey = key
	if f.applyErr != nil {
		return "", f.applyErr
	}
	return strings.ToUpper(code), nil
}

func (f *fakeCheckout) ClearCoupon(_ context.Context, key string) error {
	f.clearedKey = key
	return nil
}

type fakeReviews struct {
	attached  review.AttachRequest
	created   bool
	err       error
	latest    uuid.UUID
	latestErr error
}

func (f *fakeReviews) Attach(_ context.Context, req review.AttachRequest) (*review.Review, bool, error) {
	f.attached = req
	if f.err != nil {
		return nil, false, f.err
	}
	return &review.Review{ID: 42, Rating: req.Rating}, f.created, nil
}

func (f *fakeReviews) LatestPurchase(context.Context, int64, int64) (uuid.UUID, error) {
	return f.latest, f.latestErr
}

const testSecret = "test-secret"

type fixture struct {
	checkout *fakeCheckout
	reviews  *fakeReviews
	verifier *identity.Verifier
	router   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		checkout: &fakeCheckout{},
		reviews:  &fakeReviews{},
		verifier: identity.NewVerifier(testSecret),
	}
	h, err := NewHandler(Config{SessionTTL: time.Hour}, f.checkout, f.reviews, f.verifier, noop.NewMeterProvider())
	require.NoError(t, err)
	f.router = h.Router()
	return f
}

func (f *fixture) token(t *testing.T, id int64) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, identity.Claims{
		Email: "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestCreatePaymentIntent(t *testing.T) {
	f := newFixture(t)
	f.checkout.quote = &checkout.Quote{
		Pricing: pricing.Result{
			Subtotal:    decimal.RequireFromString("145.48"),
			Discount:    decimal.Zero,
			ShippingFee: decimal.RequireFromString("14.55"),
			FinalTotal:  decimal.RequireFromString("160.03"),
		},
		PaymentHandle: "pi_123",
		ClientSecret:  "pi_123_secret",
	}

	req := jsonRequest(http.MethodPost, "/api/checkout/payment-intent",
		`{"cart":[{"name":"Mouse","brand":"Acme","category":"Input","price":49.99,"quantity":2},{"name":"Pad","price":"45.50"}]}`)
	req.Header.Set(SessionHeader, "sess-1")
	w := f.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"freeOrder": false,
		"subtotal": 145.48,
		"discount": 0.00,
		"shippingFee": 14.55,
		"finalTotal": 160.03,
		"couponApplied": false,
		"paymentHandle": "pi_123",
		"clientSecret": "pi_123_secret"
	}`, w.Body.String())

	assert.Equal(t, "sess-1", f.checkout.loadedKey)
	require.Len(t, f.checkout.reserved, 2)
	assert.Equal(t, "Mouse", f.checkout.reserved[0].Name)
	assert.Equal(t, 2, f.checkout.reserved[0].Quantity)
	assert.True(t, decimal.RequireFromString("49.99").Equal(f.checkout.reserved[0].Price))
	assert.Equal(t, 1, f.checkout.reserved[1].Quantity, "quantity defaults to one")
	assert.True(t, decimal.RequireFromString("45.5").Equal(f.checkout.reserved[1].Price))
}

func TestCreatePaymentIntent_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{name: "malformed json", body: `{"cart":[`, wantStatus: http.StatusBadRequest, wantKind: kindInvalidRequest},
		{name: "price not a number", body: `{"cart":[{"name":"A","price":true}]}`, wantStatus: http.StatusBadRequest, wantKind: kindInvalidRequest},
		{name: "invalid cart", body: `{"cart":[]}`, err: errors.Wrap(pricing.ErrInvalidCart, "cart is empty"), wantStatus: http.StatusBadRequest, wantKind: kindInvalidRequest},
		{name: "gateway down", body: `{"cart":[{"name":"A","price":1}]}`, err: errors.Wrap(payment.ErrGateway, "stripe: 500"), wantStatus: http.StatusBadGateway, wantKind: kindGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.checkout.reserveErr = tt.err
			w := f.do(jsonRequest(http.MethodPost, "/api/checkout/payment-intent", tt.body))

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			body := decodeBody(t, w)
			assert.Equal(t, float64(tt.wantStatus), body["code"])
			assert.Equal(t, tt.wantKind, body["error"])
		})
	}
}

func TestCompleteCheckout(t *testing.T) {
	orderID := uuid.New()
	tests := []struct {
		name       string
		replayed   bool
		wantStatus int
	}{
		{name: "new order", wantStatus: http.StatusCreated},
		{name: "replay", replayed: true, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.checkout.selection = checkout.Selection{CouponID: new(int64)}
			f.checkout.receipt = &checkout.Receipt{
				OrderID:   orderID,
				ItemIDs:   []int64{7, 8},
				Discount:  decimal.RequireFromString("10"),
				TotalPaid: decimal.RequireFromString("99"),
				Replayed:  tt.replayed,
			}

			req := jsonRequest(http.MethodPost, "/api/checkout/complete",
				`{"cart":[{"name":"Mouse","price":50,"quantity":2}],"address":"1 Main St","paymentIntentId":"pi_1","email":"guest@example.com"}`)
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "sess-2"})
			req.Header.Set("Authorization", "Bearer "+f.token(t, 5))
			w := f.do(req)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			body := decodeBody(t, w)
			assert.Equal(t, orderID.String(), body["orderId"])
			assert.Equal(t, []any{float64(7), float64(8)}, body["orderItemIds"])
			assert.Equal(t, 99.0, body["totalPaid"])
			assert.Equal(t, tt.replayed, body["replayed"])

			got := f.checkout.completed
			assert.Equal(t, "pi_1", got.PaymentHandle)
			assert.Equal(t, "1 Main St", got.Address)
			assert.Equal(t, "guest@example.com", got.Email)
			assert.Equal(t, "sess-2", got.Selection.SessionKey)
			require.NotNil(t, got.Selection.CouponID)
			require.NotNil(t, got.Requester.UserID)
			assert.Equal(t, int64(5), *got.Requester.UserID)
			assert.Equal(t, "user@example.com", got.Requester.Email)
		})
	}
}

func TestCompleteCheckout_Guest(t *testing.T) {
	f := newFixture(t)
	f.checkout.receipt = &checkout.Receipt{OrderID: uuid.New()}

	w := f.do(jsonRequest(http.MethodPost, "/api/checkout/complete",
		`{"cart":[{"name":"A","price":1}],"paymentHandle":"free_x","email":"g@example.com"}`))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, f.checkout.completed.Requester.UserID)
	assert.Equal(t, "free_x", f.checkout.completed.PaymentHandle)
}

func TestCompleteCheckout_StorageError(t *testing.T) {
	f := newFixture(t)
	f.checkout.completeErr = domain.Storage("create order", errors.New("connection reset"))

	w := f.do(jsonRequest(http.MethodPost, "/api/checkout/complete", `{"cart":[]}`))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, kindPersistence, body["error"])
	assert.NotContains(t, body["message"], "connection reset")
}

func TestInvalidToken(t *testing.T) {
	f := newFixture(t)
	req := jsonRequest(http.MethodPost, "/api/checkout/complete", `{}`)
	req.Header.Set("Authorization", "Bearer forged")
	w := f.do(req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, kindUnauthorized, decodeBody(t, w)["error"])
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	w := f.do(httptest.NewRequest(http.MethodGet, "/api/checkout/complete", nil))

	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, kindMethodNotAllowed, decodeBody(t, w)["error"])
}

func TestApplyCoupon(t *testing.T) {
	f := newFixture(t)
	w := f.do(jsonRequest(http.MethodPost, "/api/checkout/coupon", `{"code":"save10"}`))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"applied":true,"code":"SAVE10","message":"Coupon applied."}`, w.Body.String())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, cookies[0].Value, f.checkout.appliedKey)
}

func TestApplyCoupon_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "missing code", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "unknown", body: `{"code":"NOPE"}`, err: coupon.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "expired", body: `{"code":"OLD"}`, err: coupon.ErrNotUsable, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.checkout.applyErr = tt.err
			req := jsonRequest(http.MethodPost, "/api/checkout/coupon", tt.body)
			req.Header.Set(SessionHeader, "sess-3")
			w := f.do(req)

			require.Equal(t, tt.wantStatus, w.Code)
			assert.Empty(t, w.Result().Cookies(), "existing session is reused")
		})
	}
}

func TestClearCoupon(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/checkout/coupon", nil)
	req.Header.Set(SessionHeader, "sess-4")
	w := f.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sess-4", f.checkout.clearedKey)
	assert.Equal(t, false, decodeBody(t, w)["applied"])
}

func TestCreateReview(t *testing.T) {
	orderID := uuid.New()
	body := `{"orderId":"` + orderID.String() + `","productId":10,"rating":9,"comment":"great"}`

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(jsonRequest(http.MethodPost, "/api/reviews", body))
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, kindUnauthorized, decodeBody(t, w)["error"])
	})

	t.Run("created", func(t *testing.T) {
		f := newFixture(t)
		f.reviews.created = true
		req := jsonRequest(http.MethodPost, "/api/reviews", body)
		req.Header.Set("Authorization", "Bearer "+f.token(t, 3))
		w := f.do(req)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.JSONEq(t, `{"success":true,"reviewId":42,"created":true,"rating":9}`, w.Body.String())
		assert.Equal(t, review.AttachRequest{
			UserID: 3, ProductID: 10, OrderID: orderID, Rating: 9, Comment: "great",
		}, f.reviews.attached)
	})

	errCases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "invalid rating", err: review.ErrInvalidRating, wantStatus: http.StatusBadRequest},
		{name: "comment too long", err: review.ErrCommentTooLong, wantStatus: http.StatusBadRequest},
		{name: "not in order", err: review.ErrProductNotInOrder, wantStatus: http.StatusBadRequest},
		{name: "unknown product", err: review.ErrProductNotFound, wantStatus: http.StatusNotFound},
		{name: "unknown order", err: review.ErrOrderNotFound, wantStatus: http.StatusNotFound},
		{name: "foreign order", err: review.ErrUnauthorized, wantStatus: http.StatusForbidden},
		{name: "storage", err: domain.Storage("upsert review", errors.New("boom")), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.reviews.err = tt.err
			req := jsonRequest(http.MethodPost, "/api/reviews", body)
			req.Header.Set("Authorization", "Bearer "+f.token(t, 3))
			w := f.do(req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	t.Run("missing ids", func(t *testing.T) {
		f := newFixture(t)
		req := jsonRequest(http.MethodPost, "/api/reviews", `{"rating":5}`)
		req.Header.Set("Authorization", "Bearer "+f.token(t, 3))
		assert.Equal(t, http.StatusBadRequest, f.do(req).Code)
	})
}

func TestSubmitReviewForm(t *testing.T) {
	orderID := uuid.New()
	tests := []struct {
		name        string
		path        string
		form        url.Values
		anonymous   bool
		created     bool
		err         error
		wantOutcome string
	}{
		{name: "created", path: "/products/10/reviews/" + orderID.String(), form: url.Values{"rating": {"8"}}, created: true, wantOutcome: "created"},
		{name: "updated", path: "/products/10/reviews/" + orderID.String(), form: url.Values{"rating": {"8"}}, wantOutcome: "updated"},
		{name: "latest order", path: "/products/10/reviews/latest", form: url.Values{"rating": {"8"}}, created: true, wantOutcome: "created"},
		{name: "login required", path: "/products/10/reviews/latest", form: url.Values{"rating": {"8"}}, anonymous: true, wantOutcome: "login_required"},
		{name: "rating not a number", path: "/products/10/reviews/latest", form: url.Values{"rating": {"ten"}}, wantOutcome: "invalid_rating"},
		{name: "bad order id", path: "/products/10/reviews/nope", form: url.Values{"rating": {"8"}}, wantOutcome: "not_found"},
		{name: "too long", path: "/products/10/reviews/latest", form: url.Values{"rating": {"8"}}, err: review.ErrCommentTooLong, wantOutcome: "comment_too_long"},
		{name: "not purchased", path: "/products/10/reviews/latest", form: url.Values{"rating": {"8"}}, err: review.ErrProductNotInOrder, wantOutcome: "not_purchased"},
		{name: "foreign order", path: "/products/10/reviews/latest", form: url.Values{"rating": {"8"}}, err: review.ErrUnauthorized, wantOutcome: "forbidden"},
		{name: "storage", path: "/products/10/reviews/latest", form: url.Values{"rating": {"8"}}, err: domain.Storage("upsert", errors.New("boom")), wantOutcome: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.reviews.created = tt.created
			f.reviews.err = tt.err
			f.reviews.latest = orderID

			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if !tt.anonymous {
				req.AddCookie(&http.Cookie{Name: identity.TokenCookie, Value: f.token(t, 3)})
			}
			w := f.do(req)

			require.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, "/products/10?review="+tt.wantOutcome, w.Header().Get("Location"))
			if tt.wantOutcome == "created" || tt.wantOutcome == "updated" {
				assert.Equal(t, orderID, f.reviews.attached.OrderID)
				assert.Equal(t, 8, f.reviews.attached.Rating)
			}
		})
	}
}
