package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IT-Gio/ShopElec/internal/domain/product"
)

const (
	productColumns = `id, name, description, brand, category, subcategory, price, stock`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	// The lowest id wins when several products share a name.
	findProductsByNamesSQL = `SELECT DISTINCT ON (name) ` + productColumns + `
		FROM products WHERE name = ANY($1) ORDER BY name, id`
)

var _ product.Catalog = (*ProductRepository)(nil)

// ProductRepository implements product.Catalog backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// FindByNames returns products keyed by name.
func (r *ProductRepository) FindByNames(ctx context.Context, names []string) (map[string]product.Product, error) {
	rows, err := r.pool.Query(ctx, findProductsByNamesSQL, names)
	if err != nil {
		return nil, fmt.Errorf("finding products by name: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("finding products by name: %w", err)
	}

	byName := make(map[string]product.Product, len(products))
	for _, p := range products {
		byName[p.Name] = p
	}
	return byName, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Brand, &p.Category, &p.Subcategory,
		&p.Price, &p.Stock,
	)
	return p, err
}
