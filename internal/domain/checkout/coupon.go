package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/IT-Gio/ShopElec/internal/domain"
	"github.com/IT-Gio/ShopElec/internal/domain/coupon"
)

// LoadSelection returns the checkout selection stored for sessionKey.
func (s *Service) LoadSelection(ctx context.Context, sessionKey string) (Selection, error) {
	sel := Selection{SessionKey: sessionKey}
	if sessionKey == "" {
		return sel, nil
	}

	id, err := s.sessions.CouponID(ctx, sessionKey)
	if err != nil {
		return sel, domain.Storage("load coupon selection", err)
	}
	sel.CouponID = id
	return sel, nil
}

// ApplyCoupon selects the coupon matching code for the session. An unknown
// or unusable code clears any earlier selection and returns
// coupon.ErrNotFound or coupon.ErrNotUsable. The returned code is the
// coupon's canonical spelling.
func (s *Service) ApplyCoupon(ctx context.Context, sessionKey, code string) (string, error) {
	if sessionKey == "" {
		return "", errors.Wrap(ErrInvalidRequest, "session is required")
	}

	c, err := s.coupons.ResolveUsable(ctx, code)
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) || errors.Is(err, coupon.ErrNotUsable) {
			if clearErr := s.sessions.SetCoupon(ctx, sessionKey, nil); clearErr != nil {
				zctx.From(ctx).Warn("Coupon selection reset failed", zap.Error(clearErr))
			}
			return "", err
		}
		return "", domain.Storage("resolve coupon", err)
	}

	if err := s.sessions.SetCoupon(ctx, sessionKey, &c.ID); err != nil {
		return "", domain.Storage("store coupon selection", err)
	}
	return c.Code, nil
}

// ClearCoupon removes the session's coupon selection.
func (s *Service) ClearCoupon(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		return nil
	}
	if err := s.sessions.SetCoupon(ctx, sessionKey, nil); err != nil {
		return domain.Storage("clear coupon selection", err)
	}
	return nil
}
