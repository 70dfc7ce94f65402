package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/shopcore/internal/domain"
	"github.com/nikolayk812/shopcore/internal/port"
)

// Ledger is an in-memory arena of per-product stock counters with per-key
// locking, so concurrent reservations against the same product cannot both
// observe a stale quantity. Different products proceed in parallel.
//
// The Postgres-backed ledger in the repository package is the durable
// implementation, this one serves embedded and test setups.
type Ledger struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
}

type entry struct {
	mu        sync.Mutex
	available int
}

func NewLedger() *Ledger {
	return &Ledger{
		entries: make(map[uuid.UUID]*entry),
	}
}

var _ port.InventoryLedger = (*Ledger)(nil)

// SetStock seeds or overwrites the available quantity for a product.
func (l *Ledger) SetStock(productID uuid.UUID, quantity int) {
	e := l.entry(productID)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.available = quantity
}

func (l *Ledger) Available(productID uuid.UUID) int {
	l.mu.RLock()
	e, ok := l.entries[productID]
	l.mu.RUnlock()

	if !ok {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.available
}

func (l *Ledger) Reserve(_ context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity[%d]: %w", quantity, domain.ErrInvalidQuantity)
	}

	e := l.entry(productID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if quantity > e.available {
		return domain.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: e.available,
		}
	}

	e.available -= quantity
	return nil
}

// Release has no upper cap: preventing double-release inflation is the
// caller's discipline.
func (l *Ledger) Release(_ context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity[%d]: %w", quantity, domain.ErrInvalidQuantity)
	}

	e := l.entry(productID)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.available += quantity
	return nil
}

func (l *Ledger) entry(productID uuid.UUID) *entry {
	l.mu.RLock()
	e, ok := l.entries[productID]
	l.mu.RUnlock()

	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok = l.entries[productID]; ok {
		return e
	}

	e = &entry{}
	l.entries[productID] = e
	return e
}
