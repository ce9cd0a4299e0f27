package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/IT-Gio/ShopElec/internal/domain/review"
	"github.com/IT-Gio/ShopElec/internal/identity"
)

// latestOrder in the form route picks the user's most recent completed order
// containing the product.
const latestOrder = "latest"

// createReview stores a review from a JSON body.
func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, ok := identity.FromContext(ctx)
	if !ok {
		h.writeError(w, r, errAuthRequired)
		return
	}

	req := review.AttachRequest{UserID: u.ID}
	if err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "orderId":
			var s string
			if s, err = d.Str(); err == nil {
				req.OrderID, err = uuid.Parse(s)
			}
		case "productId":
			req.ProductID, err = d.Int64()
		case "rating":
			req.Rating, err = d.Int()
		case "comment":
			req.Comment, err = d.Str()
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
	if req.OrderID == uuid.Nil || req.ProductID <= 0 {
		h.writeError(w, r, errors.Wrap(errBadBody, "orderId and productId are required"))
		return
	}

	rv, created, err := h.reviews.Attach(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.metrics.reviews.Add(ctx, 1, metric.WithAttributes(attribute.Bool("created", created)))

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("reviewId")
		e.Int64(rv.ID)
		e.FieldStart("created")
		e.Bool(created)
		e.FieldStart("rating")
		e.Int(rv.Rating)
		e.ObjEnd()
	})
}

// submitReviewForm stores a review posted from the product page and
// redirects back to it with ?review=<outcome>.
func (h *Handler) submitReviewForm(w http.ResponseWriter, r *http.Request) {
	rawProduct := chi.URLParam(r, "productID")
	back := func(outcome string) {
		target := "/products/" + url.PathEscape(rawProduct) + "?review=" + url.QueryEscape(outcome)
		http.Redirect(w, r, target, http.StatusSeeOther)
	}

	outcome, err := h.attachFromForm(r, rawProduct)
	if err != nil {
		h.metrics.errors.Add(r.Context(), 1, metric.WithAttributes(attribute.String("kind", outcome)))
		if outcome == "error" {
			zctx.From(r.Context()).Error("Review form failed", zap.Error(err))
		}
	}
	back(outcome)
}

func (h *Handler) attachFromForm(r *http.Request, rawProduct string) (string, error) {
	ctx := r.Context()
	u, ok := identity.FromContext(ctx)
	if !ok {
		return "login_required", errAuthRequired
	}
	productID, err := strconv.ParseInt(rawProduct, 10, 64)
	if err != nil {
		return "not_found", review.ErrProductNotFound
	}
	if err := r.ParseForm(); err != nil {
		return "invalid", errors.Wrap(errBadBody, err.Error())
	}
	rating, err := strconv.Atoi(strings.TrimSpace(r.PostForm.Get("rating")))
	if err != nil {
		return "invalid_rating", review.ErrInvalidRating
	}

	var orderID uuid.UUID
	if raw := chi.URLParam(r, "orderID"); raw == latestOrder {
		orderID, err = h.reviews.LatestPurchase(ctx, u.ID, productID)
	} else {
		orderID, err = uuid.Parse(raw)
		if err != nil {
			err = review.ErrOrderNotFound
		}
	}
	if err != nil {
		return formOutcome(err), err
	}

	rv, created, err := h.reviews.Attach(ctx, review.AttachRequest{
		UserID:    u.ID,
		ProductID: productID,
		OrderID:   orderID,
		Rating:    rating,
		Comment:   r.PostForm.Get("comment"),
	})
	if err != nil {
		return formOutcome(err), err
	}
	h.metrics.reviews.Add(ctx, 1, metric.WithAttributes(attribute.Bool("created", created)))
	zctx.From(ctx).Debug("Review stored", zap.Int64("review_id", rv.ID), zap.Bool("created", created))

	if created {
		return "created", nil
	}
	return "updated", nil
}

func formOutcome(err error) string {
	switch {
	case errors.Is(err, review.ErrInvalidRating):
		return "invalid_rating"
	case errors.Is(err, review.ErrCommentTooLong):
		return "comment_too_long"
	case errors.Is(err, review.ErrProductNotFound), errors.Is(err, review.ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, review.ErrUnauthorized):
		return "forbidden"
	case errors.Is(err, review.ErrProductNotInOrder):
		return "not_purchased"
	default:
		return "error"
	}
}
