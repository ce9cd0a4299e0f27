package checkout

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/IT-Gio/ShopElec/internal/domain"
	"github.com/IT-Gio/ShopElec/internal/domain/pricing"
)

// resolveLines re-derives unit prices from the catalog. Lines whose product
// is missing or unpriced keep the client price, rounded to cents, and are
// flagged as such.
func (s *Service) resolveLines(ctx context.Context, lines []CartLine) ([]pricing.Line, error) {
	names := make([]string, 0, len(lines))
	for i, l := range lines {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			return nil, errors.Wrapf(ErrInvalidRequest, "line %d: product name is required", i)
		}
		names = append(names, name)
	}

	products, err := s.catalog.FindByNames(ctx, names)
	if err != nil {
		return nil, domain.Storage("find products by name", err)
	}

	lg := zctx.From(ctx)
	out := make([]pricing.Line, len(lines))
	for i, l := range lines {
		line := pricing.Line{
			Name:        names[i],
			Brand:       l.Brand,
			Category:    l.Category,
			UnitPrice:   l.Price.Round(2),
			Quantity:    l.Quantity,
			PriceSource: pricing.SourceClient,
		}

		p, ok := products[line.Name]
		if ok {
			line.ProductID = &p.ID
			line.Brand = firstNonEmpty(line.Brand, p.Brand)
			line.Category = firstNonEmpty(line.Category, p.Category)
		}
		if ok && p.Price != nil {
			line.UnitPrice = *p.Price
			line.PriceSource = pricing.SourceCatalog
		} else {
			lg.Warn("Using client price for cart line",
				zap.String("name", line.Name),
				zap.Bool("in_catalog", ok),
				zap.Stringer("client_price", l.Price),
			)
		}
		out[i] = line
	}

	return out, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
