package port

import (
	"context"

	"github.com/google/uuid"
)

// InventoryLedger serializes reservation decisions per product key:
// the read-check-decrement sequence is atomic.
type InventoryLedger interface {
	// Reserve fails with domain.InsufficientStockError when quantity exceeds
	// the available amount, otherwise decrements it atomically.
	Reserve(ctx context.Context, productID uuid.UUID, quantity int) error

	// Release increments the available amount atomically. There is no upper
	// cap, over-release is a caller discipline issue.
	Release(ctx context.Context, productID uuid.UUID, quantity int) error
}
