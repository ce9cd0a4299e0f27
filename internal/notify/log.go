package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/IT-Gio/ShopElec/internal/domain/checkout"
)

var _ checkout.Notifier = (*LogNotifier)(nil)

// LogNotifier writes confirmations to the log instead of sending them. Used
// when no broker is configured.
type LogNotifier struct {
	lg   *zap.Logger
	from string
}

func NewLogNotifier(lg *zap.Logger, from string) *LogNotifier {
	return &LogNotifier{lg: lg, from: from}
}

func (n *LogNotifier) OrderConfirmed(_ context.Context, c checkout.Confirmation) error {
	msg := Confirmation(c, n.from)
	n.lg.Info("Order confirmation",
		zap.String("order_id", msg.OrderID),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
