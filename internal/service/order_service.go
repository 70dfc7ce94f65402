package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nikolayk812/shopcore/internal/domain"
	"github.com/nikolayk812/shopcore/internal/port"
)

// OrderService drives the order state machine over an injected repository
// and releases or commits stock through the inventory ledger.
type OrderService struct {
	orders   port.OrderRepository
	ledger   port.InventoryLedger
	carts    *CartService
	notifier port.Notifier
	logger   *slog.Logger
}

func NewOrderService(orders port.OrderRepository, ledger port.InventoryLedger,
	carts *CartService, notifier port.Notifier, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	return &OrderService{
		orders:   orders,
		ledger:   ledger,
		carts:    carts,
		notifier: notifier,
		logger:   logger,
	}
}

type noopNotifier struct{}

func (noopNotifier) OrderConfirmed(context.Context, domain.Order) error { return nil }
func (noopNotifier) OrderShipped(context.Context, domain.Order) error   { return nil }
func (noopNotifier) OrderDelivered(context.Context, domain.Order) error { return nil }

// CreateFromCart converts a cart into a persisted order: snapshot the lines,
// reserve stock per line, insert the order and clear the cart. Reservations
// are taken in sorted product key order so concurrent checkouts cannot
// deadlock. If any step fails, quantities already reserved in this attempt
// are released before the error surfaces: a partial order is never persisted.
func (s *OrderService) CreateFromCart(ctx context.Context, cartKey string, order domain.Order) (domain.Order, error) {
	var o domain.Order

	if order.Number == "" {
		order.Number = domain.NewOrderNumber()
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = domain.PaymentStatusPending
	}
	if order.OrderDate.IsZero() {
		order.OrderDate = domain.NewOrder().OrderDate
	}

	if err := s.carts.Checkout(ctx, cartKey, &order); err != nil {
		return o, fmt.Errorf("carts.Checkout: %w", err)
	}

	items := make([]domain.OrderItem, len(order.Items))
	copy(items, order.Items)
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID.String() < items[j].ProductID.String()
	})

	var reserved []domain.OrderItem

	for _, item := range items {
		if err := s.ledger.Reserve(ctx, item.ProductID, item.Quantity); err != nil {
			s.releaseReservations(ctx, reserved)
			return o, fmt.Errorf("ledger.Reserve product[%s]: %w", item.ProductID, err)
		}
		reserved = append(reserved, item)
	}

	orderID, err := s.orders.InsertOrder(ctx, order)
	if err != nil {
		s.releaseReservations(ctx, reserved)
		return o, fmt.Errorf("orders.InsertOrder: %w", err)
	}
	order.ID = orderID

	// The order exists, a leftover cart is recoverable by the caller.
	if err := s.carts.Clear(ctx, cartKey); err != nil {
		s.logger.Warn("clearing cart after checkout failed", "cart", cartKey, "error", err)
	}

	s.logger.Info("order created",
		"number", order.Number, "total", order.Total().String(), "lines", len(order.Items))

	s.notify(ctx, "order confirmed", order, s.notifier.OrderConfirmed)

	return order, nil
}

// releaseReservations hands quantities back to the ledger, logging failures
// instead of propagating them: by the time it runs the order's fate is
// already decided.
func (s *OrderService) releaseReservations(ctx context.Context, reserved []domain.OrderItem) {
	for _, item := range reserved {
		if err := s.ledger.Release(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.Error("compensating release failed",
				"product", item.ProductID, "quantity", item.Quantity, "error", err)
		}
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("orders.GetOrder: %w", err)
	}
	return order, nil
}

// Process moves a pending order into fulfillment.
func (s *OrderService) Process(ctx context.Context, orderID int64) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("orders.GetOrder: %w", err)
	}

	if err := order.Process(); err != nil {
		return err
	}

	if err := s.orders.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("orders.UpdateOrder: %w", err)
	}

	s.logger.Info("order processing", "number", order.Number)
	return nil
}

func (s *OrderService) Ship(ctx context.Context, orderID int64, trackingNumber, shippingProvider string) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("orders.GetOrder: %w", err)
	}

	if err := order.Ship(trackingNumber, shippingProvider); err != nil {
		return err
	}

	if err := s.orders.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("orders.UpdateOrder: %w", err)
	}

	s.logger.Info("order shipped", "number", order.Number, "tracking", trackingNumber)
	s.notify(ctx, "order shipped", order, s.notifier.OrderShipped)

	return nil
}

func (s *OrderService) Deliver(ctx context.Context, orderID int64) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("orders.GetOrder: %w", err)
	}

	if err := order.Deliver(); err != nil {
		return err
	}

	if err := s.orders.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("orders.UpdateOrder: %w", err)
	}

	s.logger.Info("order delivered", "number", order.Number)
	s.notify(ctx, "order delivered", order, s.notifier.OrderDelivered)

	return nil
}

// Cancel records the terminal status first and only then releases the lines'
// reserved quantities back to the ledger. Persisting first keeps the
// invariants one-sided: if the update fails nothing was released, and a
// retried Cancel after success finds a cancelled order and releases nothing
// again. Allowed only while the order is pending or processing. A paid order
// is not refunded automatically, that policy belongs to the caller.
func (s *OrderService) Cancel(ctx context.Context, orderID int64, reason string) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("orders.GetOrder: %w", err)
	}

	if !order.CanBeCancelled() {
		return fmt.Errorf("order %s in status %s: %w",
			order.Number, order.Status, domain.ErrOrderNotCancellable)
	}

	if err := order.Cancel(reason); err != nil {
		return err
	}

	if err := s.orders.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("orders.UpdateOrder: %w", err)
	}

	items := make([]domain.OrderItem, len(order.Items))
	copy(items, order.Items)
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID.String() < items[j].ProductID.String()
	})

	s.releaseReservations(ctx, items)

	s.logger.Info("order cancelled", "number", order.Number, "reason", reason)
	return nil
}

// UpdatePaymentStatus is the entry point for the payment collaborator.
// Payment status never drives fulfillment transitions.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID int64, status domain.PaymentStatus) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("orders.GetOrder: %w", err)
	}

	if err := order.SetPaymentStatus(status); err != nil {
		return err
	}

	if err := s.orders.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("orders.UpdateOrder: %w", err)
	}

	return nil
}

// notify dispatches a fire-and-forget hook: failures are logged, never
// propagated, and never roll back the transition that triggered them.
func (s *OrderService) notify(ctx context.Context, event string, order domain.Order,
	fn func(context.Context, domain.Order) error) {
	if err := fn(ctx, order); err != nil {
		s.logger.Warn("notification failed", "event", event, "number", order.Number, "error", err)
	}
}
