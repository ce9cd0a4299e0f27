package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/IT-Gio/ShopElec/internal/domain/payment"
)

var _ payment.Gateway = (*Sandbox)(nil)

// Sandbox is an in-memory gateway for local development. Every reservation
// is treated as confirmed by the client.
type Sandbox struct {
	mu      sync.Mutex
	intents map[string]payment.Intent
}

// NewSandbox creates an empty Sandbox.
func NewSandbox() *Sandbox {
	return &Sandbox{intents: make(map[string]payment.Intent)}
}

func (s *Sandbox) Reserve(ctx context.Context, amountMinor int64, currency string) (payment.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return payment.Reservation{}, errors.Wrapf(payment.ErrGateway, "reserve: %v", err)
	}
	if amountMinor <= 0 {
		return payment.Reservation{}, errors.Errorf("reserve non-positive amount %d", amountMinor)
	}

	handle := "pi_sandbox_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.mu.Lock()
	s.intents[handle] = payment.Intent{
		Handle:      handle,
		Status:      payment.StatusSucceeded,
		AmountMinor: amountMinor,
		Currency:    currency,
	}
	s.mu.Unlock()

	return payment.Reservation{
		Handle:       handle,
		ClientSecret: handle + "_secret_" + uuid.NewString()[:8],
	}, nil
}

func (s *Sandbox) Verify(ctx context.Context, handle string) (payment.Intent, error) {
	if err := ctx.Err(); err != nil {
		return payment.Intent{}, errors.Wrapf(payment.ErrGateway, "verify: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[handle]
	if !ok {
		return payment.Intent{}, errors.Wrapf(payment.ErrGateway, "unknown payment handle %q", handle)
	}
	return intent, nil
}
