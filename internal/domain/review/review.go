// Package review attaches ratings to purchased products.
package review

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/IT-Gio/ShopElec/internal/domain"
	"github.com/IT-Gio/ShopElec/internal/domain/order"
	"github.com/IT-Gio/ShopElec/internal/domain/product"
)

const (
	MinRating        = 1
	MaxRating        = 10
	MaxCommentLength = 300
)

var (
	ErrInvalidRating     = errors.New("rating must be between 1 and 10")
	ErrCommentTooLong    = errors.New("comment must be at most 300 characters")
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrUnauthorized      = errors.New("order does not belong to user or is not completed")
	ErrProductNotInOrder = errors.New("product not in order")
)

// Review is a user's rating of a product bought in a specific order.
type Review struct {
	ID        int64
	UserID    int64
	ProductID int64
	OrderID   uuid.UUID
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository persists reviews.
type Repository interface {
	// Upsert creates the review or, when one exists for the same user,
	// product and order, replaces its rating and comment. It fills in the id
	// and timestamps and reports whether a row was created.
	Upsert(ctx context.Context, r *Review) (created bool, err error)
}

// AttachRequest is the input of Attach.
type AttachRequest struct {
	UserID    int64
	ProductID int64
	OrderID   uuid.UUID
	Rating    int
	Comment   string
}

// Service attaches reviews.
type Service struct {
	catalog product.Catalog
	orders  order.Repository
	reviews Repository
}

func NewService(catalog product.Catalog, orders order.Repository, reviews Repository) *Service {
	return &Service{catalog: catalog, orders: orders, reviews: reviews}
}

// Attach stores the user's review of a product from one of their completed
// orders. A second review for the same product and order updates the first.
func (s *Service) Attach(ctx context.Context, req AttachRequest) (*Review, bool, error) {
	if req.Rating < MinRating || req.Rating > MaxRating {
		return nil, false, ErrInvalidRating
	}
	if utf8.RuneCountInString(req.Comment) > MaxCommentLength {
		return nil, false, ErrCommentTooLong
	}

	p, err := s.catalog.GetByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, false, ErrProductNotFound
		}
		return nil, false, domain.Storage("get product", err)
	}

	o, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil, false, ErrOrderNotFound
		}
		return nil, false, domain.Storage("get order", err)
	}
	if !o.OwnedBy(req.UserID) || o.Status != order.StatusCompleted {
		return nil, false, ErrUnauthorized
	}
	if !o.HasItemNamed(p.Name) {
		return nil, false, ErrProductNotInOrder
	}

	r := &Review{
		UserID:    req.UserID,
		ProductID: p.ID,
		OrderID:   o.ID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	created, err := s.reviews.Upsert(ctx, r)
	if err != nil {
		return nil, false, domain.Storage("upsert review", err)
	}
	return r, created, nil
}

// LatestPurchase returns the most recent completed order of userID that
// contains productID.
func (s *Service) LatestPurchase(ctx context.Context, userID, productID int64) (uuid.UUID, error) {
	p, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return uuid.Nil, ErrProductNotFound
		}
		return uuid.Nil, domain.Storage("get product", err)
	}

	o, err := s.orders.FindCompletedWithProduct(ctx, userID, p.Name)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return uuid.Nil, ErrOrderNotFound
		}
		return uuid.Nil, domain.Storage("find purchase", err)
	}
	return o.ID, nil
}
