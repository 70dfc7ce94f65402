package port

import (
	"context"

	"github.com/nikolayk812/shopcore/internal/domain"
)

type OrderRepository interface {
	GetOrder(ctx context.Context, orderID int64) (domain.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (domain.Order, error)

	SearchOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)

	InsertOrder(ctx context.Context, order domain.Order) (int64, error)

	// UpdateOrder persists mutable fields: statuses, milestone dates,
	// tracking info and notes. Items are immutable after insert.
	UpdateOrder(ctx context.Context, order domain.Order) error
}
