package service_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/shopcore/internal/domain"
	"github.com/nikolayk812/shopcore/internal/inventory"
	"github.com/nikolayk812/shopcore/internal/port"
)

// memCartRepo is a map-backed port.CartRepository.
type memCartRepo struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: make(map[string]domain.Cart)}
}

func (r *memCartRepo) GetCart(_ context.Context, cartKey string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[cartKey]
	if !ok {
		return domain.Cart{}, fmt.Errorf("cart[%s]: %w", cartKey, domain.ErrCartNotFound)
	}
	return copyCart(cart), nil
}

func (r *memCartRepo) FindUserCart(_ context.Context, userID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cart := range r.carts {
		if cart.UserID != nil && *cart.UserID == userID && !cart.IsExpired() {
			return copyCart(cart), nil
		}
	}
	return domain.Cart{}, fmt.Errorf("user[%s]: %w", userID, domain.ErrCartNotFound)
}

func (r *memCartRepo) SaveCart(_ context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[cart.Key] = copyCart(cart)
	return nil
}

// MutateCart holds the repo mutex across the whole read-modify-write cycle,
// the in-memory analogue of the row lock the Postgres store takes.
func (r *memCartRepo) MutateCart(_ context.Context, cartKey string, fn func(cart *domain.Cart) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[cartKey]
	if !ok {
		return fmt.Errorf("cart[%s]: %w", cartKey, domain.ErrCartNotFound)
	}

	mutated := copyCart(cart)
	if err := fn(&mutated); err != nil {
		return err
	}

	r.carts[cartKey] = copyCart(mutated)
	return nil
}

func (r *memCartRepo) DeleteCart(_ context.Context, cartKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, cartKey)
	return nil
}

func (r *memCartRepo) has(cartKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.carts[cartKey]
	return ok
}

func copyCart(cart domain.Cart) domain.Cart {
	items := make([]domain.CartItem, len(cart.Items))
	copy(items, cart.Items)
	cart.Items = items
	return cart
}

// fakeCatalog serves products whose availability is read live from the
// ledger, the way the Postgres store backs both from the same rows.
type fakeCatalog struct {
	mu       sync.Mutex
	products map[uuid.UUID]domain.Product
	ledger   *inventory.Ledger
}

func newFakeCatalog(ledger *inventory.Ledger) *fakeCatalog {
	return &fakeCatalog{
		products: make(map[uuid.UUID]domain.Product),
		ledger:   ledger,
	}
}

func (c *fakeCatalog) add(product domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products[product.ID] = product
	c.ledger.SetStock(product.ID, product.AvailableQuantity)
}

func (c *fakeCatalog) remove(productID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.products, productID)
}

func (c *fakeCatalog) GetProduct(_ context.Context, productID uuid.UUID) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	product, ok := c.products[productID]
	if !ok {
		return domain.Product{}, fmt.Errorf("product[%s]: %w", productID, domain.ErrProductNotFound)
	}

	product.AvailableQuantity = c.ledger.Available(productID)
	return product, nil
}

// memOrderRepo is a map-backed port.OrderRepository. Setting updateErr makes
// every UpdateOrder fail, simulating a store outage mid-transition.
type memOrderRepo struct {
	mu        sync.Mutex
	orders    map[int64]domain.Order
	nextID    int64
	updateErr error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[int64]domain.Order)}
}

func (r *memOrderRepo) GetOrder(_ context.Context, orderID int64) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("order[%d]: %w", orderID, domain.ErrOrderNotFound)
	}
	return order, nil
}

func (r *memOrderRepo) GetOrderByNumber(_ context.Context, number string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, order := range r.orders {
		if order.Number == number {
			return order, nil
		}
	}
	return domain.Order{}, fmt.Errorf("order[%s]: %w", number, domain.ErrOrderNotFound)
}

func (r *memOrderRepo) SearchOrders(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.Order
	for _, order := range r.orders {
		if len(filter.Statuses) > 0 {
			match := false
			for _, status := range filter.Statuses {
				if order.Status == status {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		result = append(result, order)
	}
	return result, nil
}

func (r *memOrderRepo) InsertOrder(_ context.Context, order domain.Order) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	order.ID = r.nextID
	r.orders[order.ID] = order
	return order.ID, nil
}

func (r *memOrderRepo) UpdateOrder(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updateErr != nil {
		return r.updateErr
	}

	if _, ok := r.orders[order.ID]; !ok {
		return fmt.Errorf("order[%d]: %w", order.ID, domain.ErrOrderNotFound)
	}
	r.orders[order.ID] = order
	return nil
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.orders)
}

// failingLedger wraps a real ledger, failing reservations for one product to
// simulate a concurrent checkout stealing the stock mid-flight.
type failingLedger struct {
	port.InventoryLedger
	failOn uuid.UUID
}

func (l failingLedger) Reserve(ctx context.Context, productID uuid.UUID, quantity int) error {
	if productID == l.failOn {
		return domain.InsufficientStockError{ProductID: productID, Requested: quantity}
	}
	return l.InventoryLedger.Reserve(ctx, productID, quantity)
}

// recordingNotifier captures events and optionally fails every hook.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (n *recordingNotifier) record(event string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) OrderConfirmed(context.Context, domain.Order) error {
	return n.record("confirmed")
}

func (n *recordingNotifier) OrderShipped(context.Context, domain.Order) error {
	return n.record("shipped")
}

func (n *recordingNotifier) OrderDelivered(context.Context, domain.Order) error {
	return n.record("delivered")
}

func (n *recordingNotifier) recorded() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.events...)
}
