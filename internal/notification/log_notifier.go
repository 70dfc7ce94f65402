package notification

import (
	"context"
	"log/slog"

	"github.com/nikolayk812/shopcore/internal/domain"
	"github.com/nikolayk812/shopcore/internal/port"
)

// LogNotifier is a stand-in for deployments without a broker.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

var _ port.Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) OrderConfirmed(_ context.Context, order domain.Order) error {
	n.logger.Info("order confirmed", "number", order.Number, "total", order.Total().String())
	return nil
}

func (n *LogNotifier) OrderShipped(_ context.Context, order domain.Order) error {
	n.logger.Info("order shipped", "number", order.Number)
	return nil
}

func (n *LogNotifier) OrderDelivered(_ context.Context, order domain.Order) error {
	n.logger.Info("order delivered", "number", order.Number)
	return nil
}
