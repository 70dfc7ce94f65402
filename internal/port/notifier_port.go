package port

import (
	"context"

	"github.com/nikolayk812/shopcore/internal/domain"
)

// Notifier hooks are fire-and-forget: failures are logged by the caller and
// never roll back the order transition that triggered them.
type Notifier interface {
	OrderConfirmed(ctx context.Context, order domain.Order) error
	OrderShipped(ctx context.Context, order domain.Order) error
	OrderDelivered(ctx context.Context, order domain.Order) error
}
