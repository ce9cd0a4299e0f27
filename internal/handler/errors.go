package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/IT-Gio/ShopElec/internal/domain"
	"github.com/IT-Gio/ShopElec/internal/domain/checkout"
	"github.com/IT-Gio/ShopElec/internal/domain/coupon"
	"github.com/IT-Gio/ShopElec/internal/domain/payment"
	"github.com/IT-Gio/ShopElec/internal/domain/pricing"
	"github.com/IT-Gio/ShopElec/internal/domain/review"
	"github.com/IT-Gio/ShopElec/internal/identity"
)

// Error kinds reported in the "error" field.
const (
	kindInvalidRequest   = "invalid_request"
	kindNotFound         = "not_found"
	kindUnauthorized     = "unauthorized"
	kindMethodNotAllowed = "method_not_allowed"
	kindGateway          = "gateway_error"
	kindPersistence      = "persistence_error"
	kindInternal         = "internal"
)

var (
	errBadBody          = errors.New("malformed request body")
	errAuthRequired     = errors.New("authentication required")
	errRouteNotFound    = errors.New("route not found")
	errMethodNotAllowed = errors.New("method not allowed")
)

// apiError is the {"code","error","message"} response body.
type apiError struct {
	Code    int
	Kind    string
	Message string
}

// mapError converts domain errors to API errors. Client errors carry the
// precise cause; gateway and storage errors get a generic message.
func mapError(err error) apiError {
	invalid := func(msg string) apiError {
		return apiError{Code: http.StatusBadRequest, Kind: kindInvalidRequest, Message: msg}
	}
	notFound := func(msg string) apiError {
		return apiError{Code: http.StatusNotFound, Kind: kindNotFound, Message: msg}
	}

	var storageErr *domain.StorageError
	switch {
	case errors.Is(err, errBadBody),
		errors.Is(err, checkout.ErrInvalidRequest),
		errors.Is(err, pricing.ErrInvalidCart):
		return invalid(err.Error())
	case errors.Is(err, coupon.ErrNotUsable):
		return invalid("coupon is not active or expired")
	case errors.Is(err, coupon.ErrNotFound):
		return notFound("coupon not found")
	case errors.Is(err, review.ErrInvalidRating):
		return invalid(review.ErrInvalidRating.Error())
	case errors.Is(err, review.ErrCommentTooLong):
		return invalid(review.ErrCommentTooLong.Error())
	case errors.Is(err, review.ErrProductNotInOrder):
		return invalid(review.ErrProductNotInOrder.Error())
	case errors.Is(err, review.ErrProductNotFound):
		return notFound(review.ErrProductNotFound.Error())
	case errors.Is(err, review.ErrOrderNotFound):
		return notFound(review.ErrOrderNotFound.Error())
	case errors.Is(err, errRouteNotFound):
		return notFound(errRouteNotFound.Error())
	case errors.Is(err, review.ErrUnauthorized):
		return apiError{Code: http.StatusForbidden, Kind: kindUnauthorized, Message: review.ErrUnauthorized.Error()}
	case errors.Is(err, errAuthRequired):
		return apiError{Code: http.StatusForbidden, Kind: kindUnauthorized, Message: errAuthRequired.Error()}
	case errors.Is(err, identity.ErrInvalidToken):
		return apiError{Code: http.StatusUnauthorized, Kind: kindUnauthorized, Message: "invalid or expired token"}
	case errors.Is(err, errMethodNotAllowed):
		return apiError{Code: http.StatusMethodNotAllowed, Kind: kindMethodNotAllowed, Message: errMethodNotAllowed.Error()}
	case errors.Is(err, payment.ErrGateway):
		return apiError{Code: http.StatusBadGateway, Kind: kindGateway, Message: "payment could not be processed"}
	case errors.As(err, &storageErr):
		return apiError{Code: http.StatusInternalServerError, Kind: kindPersistence, Message: "internal error"}
	default:
		return apiError{Code: http.StatusInternalServerError, Kind: kindInternal, Message: "internal error"}
	}
}

// writeError maps err, logs server-side failures and writes the error body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	apiErr := mapError(err)
	if apiErr.Code >= http.StatusInternalServerError {
		zctx.From(ctx).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("kind", apiErr.Kind),
			zap.Error(err),
		)
	}
	h.metrics.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", apiErr.Kind)))

	writeJSON(w, apiErr.Code, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(apiErr.Code)
		e.FieldStart("error")
		e.Str(apiErr.Kind)
		e.FieldStart("message")
		e.Str(apiErr.Message)
		e.ObjEnd()
	})
}
