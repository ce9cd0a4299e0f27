package handler

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	reservations metric.Int64Counter
	orders       metric.Int64Counter
	revenue      metric.Float64Counter
	reviews      metric.Int64Counter
	errors       metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter("github.com/IT-Gio/ShopElec/internal/handler")

	var (
		m   metrics
		err error
	)
	if m.reservations, err = meter.Int64Counter("shop.checkout.reservations",
		metric.WithDescription("Payment reservations created, by free order flag."),
	); err != nil {
		return nil, errors.Wrap(err, "reservations counter")
	}
	if m.orders, err = meter.Int64Counter("shop.checkout.orders",
		metric.WithDescription("Completed checkouts, by replay flag."),
	); err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	if m.revenue, err = meter.Float64Counter("shop.checkout.revenue",
		metric.WithDescription("Total paid for newly completed orders."),
	); err != nil {
		return nil, errors.Wrap(err, "revenue counter")
	}
	if m.reviews, err = meter.Int64Counter("shop.reviews",
		metric.WithDescription("Stored reviews, by created flag."),
	); err != nil {
		return nil, errors.Wrap(err, "reviews counter")
	}
	if m.errors, err = meter.Int64Counter("shop.api.errors",
		metric.WithDescription("Error responses, by kind."),
	); err != nil {
		return nil, errors.Wrap(err, "errors counter")
	}
	return &m, nil
}
