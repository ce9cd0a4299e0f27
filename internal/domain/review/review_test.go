package review

import (
	"context"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IT-Gio/ShopElec/internal/domain"
	"github.com/IT-Gio/ShopElec/internal/domain/order"
	"github.com/IT-Gio/ShopElec/internal/domain/product"
)

type mockCatalog struct {
	byID map[int64]*product.Product
	err  error
}

func (m *mockCatalog) GetByID(_ context.Context, id int64) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockCatalog) FindByNames(context.Context, []string) (map[string]product.Product, error) {
	return nil, nil
}

type mockOrders struct {
	byID map[uuid.UUID]*order.Order
}

func (m *mockOrders) Create(context.Context, *order.Order) error { return nil }

func (m *mockOrders) FindByPaymentRef(context.Context, string) (*order.Order, error) {
	return nil, order.ErrNotFound
}

func (m *mockOrders) GetByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrders) FindCompletedWithProduct(_ context.Context, userID int64, name string) (*order.Order, error) {
	for _, o := range m.byID {
		if o.OwnedBy(userID) && o.Status == order.StatusCompleted && o.HasItemNamed(name) {
			return o, nil
		}
	}
	return nil, order.ErrNotFound
}

type reviewKey struct {
	user, product int64
	order         uuid.UUID
}

// mockReviews keys rows like the unique constraint does.
type mockReviews struct {
	rows   map[reviewKey]*Review
	nextID int64
	err    error
}

func (m *mockReviews) Upsert(_ context.Context, r *Review) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	key := reviewKey{user: r.UserID, product: r.ProductID, order: r.OrderID}
	if existing, ok := m.rows[key]; ok {
		existing.Rating = r.Rating
		existing.Comment = r.Comment
		r.ID = existing.ID
		return false, nil
	}
	m.nextID++
	r.ID = m.nextID
	stored := *r
	m.rows[key] = &stored
	return true, nil
}

type fixture struct {
	svc       *Service
	reviews   *mockReviews
	orderID   uuid.UUID
	guestID   uuid.UUID
	pendingID uuid.UUID
}

func newFixture() *fixture {
	owner := int64(1)
	orderID, guestID, pendingID := uuid.New(), uuid.New(), uuid.New()
	items := []order.Item{{ID: 1, Name: "Headphones"}}

	catalog := &mockCatalog{byID: map[int64]*product.Product{
		10: {ID: 10, Name: "Headphones"},
		11: {ID: 11, Name: "Cable"},
	}}
	orders := &mockOrders{byID: map[uuid.UUID]*order.Order{
		orderID:   {ID: orderID, UserID: &owner, Status: order.StatusCompleted, Items: items},
		guestID:   {ID: guestID, Status: order.StatusCompleted, Items: items},
		pendingID: {ID: pendingID, UserID: &owner, Status: order.StatusPending, Items: items},
	}}
	reviews := &mockReviews{rows: make(map[reviewKey]*Review)}

	return &fixture{
		svc:       NewService(catalog, orders, reviews),
		reviews:   reviews,
		orderID:   orderID,
		guestID:   guestID,
		pendingID: pendingID,
	}
}

func TestAttach(t *testing.T) {
	f := newFixture()

	r, created, err := f.svc.Attach(context.Background(), AttachRequest{
		UserID: 1, ProductID: 10, OrderID: f.orderID, Rating: 9, Comment: "great",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, 9, r.Rating)
}

func TestAttach_SecondReviewUpdatesFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := AttachRequest{UserID: 1, ProductID: 10, OrderID: f.orderID, Rating: 4, Comment: "meh"}

	first, created, err := f.svc.Attach(ctx, req)
	require.NoError(t, err)
	require.True(t, created)

	req.Rating, req.Comment = 8, "grew on me"
	second, created, err := f.svc.Attach(ctx, req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	require.Len(t, f.reviews.rows, 1)
	for _, row := range f.reviews.rows {
		assert.Equal(t, 8, row.Rating)
		assert.Equal(t, "grew on me", row.Comment)
	}
}

func TestAttach_Errors(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name    string
		req     AttachRequest
		wantErr error
	}{
		{
			name:    "rating too low",
			req:     AttachRequest{UserID: 1, ProductID: 10, OrderID: f.orderID, Rating: 0},
			wantErr: ErrInvalidRating,
		},
		{
			name:    "rating too high",
			req:     AttachRequest{UserID: 1, ProductID: 10, OrderID: f.orderID, Rating: 11},
			wantErr: ErrInvalidRating,
		},
		{
			name: "comment too long",
			req: AttachRequest{
				UserID: 1, ProductID: 10, OrderID: f.orderID, Rating: 5,
				Comment: strings.Repeat("x", MaxCommentLength+1),
			},
			wantErr: ErrCommentTooLong,
		},
		{
			name:    "unknown product",
			req:     AttachRequest{UserID: 1, ProductID: 99, OrderID: f.orderID, Rating: 5},
			wantErr: ErrProductNotFound,
		},
		{
			name:    "unknown order",
			req:     AttachRequest{UserID: 1, ProductID: 10, OrderID: uuid.New(), Rating: 5},
			wantErr: ErrOrderNotFound,
		},
		{
			name:    "someone else's order",
			req:     AttachRequest{UserID: 2, ProductID: 10, OrderID: f.orderID, Rating: 5},
			wantErr: ErrUnauthorized,
		},
		{
			name:    "guest order",
			req:     AttachRequest{UserID: 1, ProductID: 10, OrderID: f.guestID, Rating: 5},
			wantErr: ErrUnauthorized,
		},
		{
			name:    "order not completed",
			req:     AttachRequest{UserID: 1, ProductID: 10, OrderID: f.pendingID, Rating: 5},
			wantErr: ErrUnauthorized,
		},
		{
			name:    "product not in order",
			req:     AttachRequest{UserID: 1, ProductID: 11, OrderID: f.orderID, Rating: 5},
			wantErr: ErrProductNotInOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.Attach(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, f.reviews.rows)
}

func TestAttach_CommentAtLimit(t *testing.T) {
	f := newFixture()

	// Multi-byte runes count as one character each.
	comment := strings.Repeat("é", MaxCommentLength)
	_, _, err := f.svc.Attach(context.Background(), AttachRequest{
		UserID: 1, ProductID: 10, OrderID: f.orderID, Rating: 7, Comment: comment,
	})
	require.NoError(t, err)
}

func TestAttach_StorageFailure(t *testing.T) {
	f := newFixture()
	f.reviews.err = errors.New("deadlock detected")

	_, _, err := f.svc.Attach(context.Background(), AttachRequest{
		UserID: 1, ProductID: 10, OrderID: f.orderID, Rating: 7,
	})
	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
}

func TestLatestPurchase(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	id, err := f.svc.LatestPurchase(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, f.orderID, id)

	_, err = f.svc.LatestPurchase(ctx, 1, 11)
	require.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.svc.LatestPurchase(ctx, 1, 99)
	require.ErrorIs(t, err, ErrProductNotFound)
}
