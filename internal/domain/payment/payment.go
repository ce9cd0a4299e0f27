// Package payment defines the contract the checkout flow needs from a payment
// provider.
package payment

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrGateway is returned when the provider fails, times out or reports a
// payment that cannot be used to complete an order.
var ErrGateway = errors.New("payment gateway error")

// Status of a payment intent as reported by the provider.
type Status string

const (
	StatusRequiresPayment Status = "requires_payment_method"
	StatusProcessing      Status = "processing"
	StatusRequiresCapture Status = "requires_capture"
	StatusSucceeded       Status = "succeeded"
	StatusCanceled        Status = "canceled"
)

// Confirmed reports whether funds are secured for the intent.
func (s Status) Confirmed() bool {
	return s == StatusSucceeded || s == StatusRequiresCapture
}

// Reservation is the result of Reserve. Handle identifies the payment for
// the rest of the checkout, ClientSecret is passed to the client to confirm it.
type Reservation struct {
	Handle       string
	ClientSecret string
}

// Intent is the provider's current view of a reserved payment.
type Intent struct {
	Handle      string
	Status      Status
	AmountMinor int64
	Currency    string
}

// Gateway reserves and inspects payments.
//
// Implementations must not retry Reserve: a retry may reserve twice.
type Gateway interface {
	Reserve(ctx context.Context, amountMinor int64, currency string) (Reservation, error)
	Verify(ctx context.Context, handle string) (Intent, error)
}
