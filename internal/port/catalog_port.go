package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikolayk812/shopcore/internal/domain"
)

// CatalogStore is owned by the catalog subsystem, the core only reads from it.
type CatalogStore interface {
	// GetProduct returns domain.ErrProductNotFound when the key is unknown.
	GetProduct(ctx context.Context, productID uuid.UUID) (domain.Product, error)
}

// ProductStore is the full product surface: catalog reads plus the stock
// ledger backed by the same rows, and inserts for seeding.
type ProductStore interface {
	CatalogStore
	InventoryLedger

	InsertProduct(ctx context.Context, product domain.Product) error
}
