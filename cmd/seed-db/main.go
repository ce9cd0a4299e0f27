package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/IT-Gio/ShopElec/internal/domain/coupon"
	"github.com/IT-Gio/ShopElec/internal/domain/product"
	"github.com/IT-Gio/ShopElec/internal/storage/postgres"
)

type productJSON struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Brand       string           `json:"brand"`
	Category    string           `json:"category"`
	Subcategory string           `json:"subcategory"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
}

type couponJSON struct {
	Code      string          `json:"code"`
	Discount  decimal.Decimal `json:"discount"`
	ValidFrom time.Time       `json:"valid_from"`
	ValidTo   time.Time       `json:"valid_to"`
	Active    *bool           `json:"active"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		couponsFile  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&couponsFile, "coupons-file", "db/seed/coupons.json", "path to coupons JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, couponsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, couponsFile string) error {
	products, err := readProducts(productsFile)
	if err != nil {
		return err
	}
	coupons, err := readCoupons(couponsFile)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))
	if err := postgres.NewProductRepository(pool).Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "seed products")
	}

	slog.Info("upserting coupons", slog.Int("count", len(coupons)))
	if err := postgres.NewCouponRepository(pool).Upsert(ctx, coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func readProducts(path string) ([]product.Product, error) {
	slog.Info("reading products file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}
	var raw []productJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}

	products := make([]product.Product, 0, len(raw))
	for i, p := range raw {
		if p.Name == "" {
			return nil, errors.Errorf("product %d: name is required", i)
		}
		products = append(products, product.Product{
			Name:        p.Name,
			Description: p.Description,
			Brand:       p.Brand,
			Category:    p.Category,
			Subcategory: p.Subcategory,
			Price:       p.Price,
			Stock:       p.Stock,
		})
	}
	return products, nil
}

func readCoupons(path string) ([]coupon.Coupon, error) {
	slog.Info("reading coupons file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read coupons file")
	}
	var raw []couponJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse coupons JSON")
	}

	coupons := make([]coupon.Coupon, 0, len(raw))
	for _, c := range raw {
		if c.Code == "" || c.ValidTo.Before(c.ValidFrom) {
			return nil, errors.Errorf("coupon %q: code and a valid window are required", c.Code)
		}
		active := c.Active == nil || *c.Active
		coupons = append(coupons, coupon.Coupon{
			Code:      c.Code,
			Percent:   c.Discount,
			ValidFrom: c.ValidFrom,
			ValidTo:   c.ValidTo,
			Active:    active,
		})
	}
	return coupons, nil
}
