package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog entry. Price is nil for products listed without a
// price.
type Product struct {
	ID          int64
	Name        string
	Description string
	Brand       string
	Category    string
	Subcategory string
	Price       *decimal.Decimal
	Stock       *int
}

// Catalog defines read operations on the product catalog.
type Catalog interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	// FindByNames returns the first product for each distinct name found.
	// Names without a product are absent from the map.
	FindByNames(ctx context.Context, names []string) (map[string]Product, error)
}
