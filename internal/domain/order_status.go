package domain

import "errors"

type OrderStatus string

// remember to add new statuses to the validOrderStatuses map
const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRefunded        OrderStatus = "refunded"
	OrderStatusOnHold          OrderStatus = "on_hold"
)

var validOrderStatuses = map[OrderStatus]struct{}{
	OrderStatusPending:         {},
	OrderStatusProcessing:      {},
	OrderStatusAwaitingPayment: {},
	OrderStatusPaid:            {},
	OrderStatusShipped:         {},
	OrderStatusDelivered:       {},
	OrderStatusCancelled:       {},
	OrderStatusRefunded:        {},
	OrderStatusOnHold:          {},
}

func ToOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := validOrderStatuses[status]; ok {
		return status, nil
	}

	return "", errors.New("invalid order status")
}

func OrderStatuses() []OrderStatus {
	result := make([]OrderStatus, 0, len(validOrderStatuses))
	for status := range validOrderStatuses {
		result = append(result, status)
	}
	return result
}

// IsTerminal reports whether no further fulfillment transition is defined.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}
