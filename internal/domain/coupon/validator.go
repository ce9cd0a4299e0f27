package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// IsUsable reports whether c can be applied at now: the coupon must be active
// and now must fall inside [ValidFrom, ValidTo], both bounds inclusive. All
// instants are normalized to UTC before comparison.
func IsUsable(c *Coupon, now time.Time) bool {
	if c == nil || !c.Active {
		return false
	}
	now = now.UTC()
	return !now.Before(c.ValidFrom.UTC()) && !now.After(c.ValidTo.UTC())
}

// Validator resolves coupon codes and identities against a Repository.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by the given Repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Resolve finds the coupon matching code (case-insensitive exact match).
func (v *Validator) Resolve(ctx context.Context, code string) (*Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}

	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	return c, nil
}

// ResolveUsable resolves code and checks that the coupon is usable right now.
func (v *Validator) ResolveUsable(ctx context.Context, code string) (*Coupon, error) {
	c, err := v.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	if !IsUsable(c, v.now()) {
		return nil, ErrNotUsable
	}
	return c, nil
}

// Current re-fetches the coupon selected earlier by identity. A nil id or a
// coupon deleted since selection yields (nil, nil): checkout then prices
// without a discount. Usability is not checked here, the pricing engine
// re-validates against its own evaluation time.
func (v *Validator) Current(ctx context.Context, id *int64) (*Coupon, error) {
	if id == nil {
		return nil, nil
	}

	c, err := v.repo.GetByID(ctx, *id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get coupon %d", *id)
	}
	return c, nil
}
