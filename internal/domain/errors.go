package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")

	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrProductUnavailable = errors.New("product is unavailable")

	ErrEmptyCart        = errors.New("cart is empty")
	ErrCartInvalid      = errors.New("cart contains unavailable items")
	ErrCartExpired      = errors.New("cart has expired")
	ErrCurrencyMismatch = errors.New("cart lines must share one currency")

	ErrOrderNotCancellable = errors.New("order can no longer be cancelled")
)

// InsufficientStockError reports how much was requested against how much
// the ledger could actually provide.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// InvalidTransitionError carries the order number and both statuses for diagnostics.
type InvalidTransitionError struct {
	OrderNumber string
	Current     OrderStatus
	Target      OrderStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: invalid transition from %s to %s",
		e.OrderNumber, e.Current, e.Target)
}
