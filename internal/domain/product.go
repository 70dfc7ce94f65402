package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product is owned by the catalog subsystem, the core only reads it and
// adjusts AvailableQuantity through the inventory ledger.
type Product struct {
	ID       uuid.UUID
	Name     string
	SKU      string
	Price    Money
	OldPrice *Money

	AvailableQuantity int
	MinThreshold      int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Product) IsAvailable() bool {
	return p.AvailableQuantity > 0
}

func (p Product) IsLowStock() bool {
	return p.AvailableQuantity > 0 && p.AvailableQuantity <= p.MinThreshold
}

func (p Product) IsOnSale() bool {
	return p.OldPrice != nil
}
