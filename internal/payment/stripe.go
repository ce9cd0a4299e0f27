// Package payment contains payment.Gateway adapters.
package payment

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/IT-Gio/ShopElec/internal/domain/payment"
)

var _ payment.Gateway = (*StripeGateway)(nil)

// StripeConfig configures StripeGateway.
type StripeConfig struct {
	SecretKey string
	// Timeout bounds every call to the Stripe API.
	Timeout time.Duration
	// BaseURL overrides the Stripe API endpoint. Empty means production.
	BaseURL string
}

// StripeGateway reserves payments as Stripe PaymentIntents.
type StripeGateway struct {
	api     *client.API
	timeout time.Duration
}

// NewStripeGateway creates a StripeGateway. Network retries are disabled:
// a retried create may reserve twice.
func NewStripeGateway(cfg StripeConfig, lg *zap.Logger) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.Timeout,
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     lg.Sugar(),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}

	return &StripeGateway{
		api:     client.New(cfg.SecretKey, backends),
		timeout: cfg.Timeout,
	}, nil
}

// Reserve creates a PaymentIntent for amountMinor in currency.
func (g *StripeGateway) Reserve(ctx context.Context, amountMinor int64, currency string) (payment.Reservation, error) {
	if amountMinor <= 0 {
		return payment.Reservation{}, errors.Errorf("reserve non-positive amount %d", amountMinor)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return payment.Reservation{}, gatewayError(err, "create payment intent")
	}

	return payment.Reservation{
		Handle:       pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// Verify fetches the PaymentIntent behind handle.
func (g *StripeGateway) Verify(ctx context.Context, handle string) (payment.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(handle, params)
	if err != nil {
		return payment.Intent{}, gatewayError(err, "get payment intent")
	}

	return payment.Intent{
		Handle:      pi.ID,
		Status:      payment.Status(pi.Status),
		AmountMinor: pi.Amount,
		Currency:    string(pi.Currency),
	}, nil
}

func gatewayError(err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return errors.Wrapf(payment.ErrGateway, "%s: %s (%s, status %d)",
			op, stripeErr.Msg, stripeErr.Code, stripeErr.HTTPStatusCode)
	}
	return errors.Wrapf(payment.ErrGateway, "%s: %v", op, err)
}
