package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// CartExpiration is the default lifetime of a cart, counted from creation.
	CartExpiration = 30 * 24 * time.Hour

	// MaxItemQuantity is advisory for callers, the core does not enforce it.
	MaxItemQuantity = 10
)

// Cart is keyed by an opaque token and optionally tagged with a user identity
// once the owner authenticates. Items keep insertion order and are unique per
// product: adding an already-present product sums quantities instead.
type Cart struct {
	Key    string
	UserID *string
	Items  []CartItem

	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

type CartItem struct {
	ProductID  uuid.UUID
	Price      Money // snapshot taken at add time
	Quantity   int
	Attributes *string

	AddedAt   time.Time
	UpdatedAt time.Time
}

func (i CartItem) Total() Money {
	return i.Price.Mul(i.Quantity)
}

func NewCart(key string, userID *string) Cart {
	now := time.Now()

	return Cart{
		Key:       key,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(CartExpiration),
	}
}

func (c *Cart) Item(productID uuid.UUID) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return CartItem{}, false
}

// AddItem sums quantities when a line for the product already exists,
// otherwise appends a new line. Invariant: one line per product.
func (c *Cart) AddItem(item CartItem) {
	now := time.Now()

	for idx := range c.Items {
		if c.Items[idx].ProductID == item.ProductID {
			c.Items[idx].Quantity += item.Quantity
			c.Items[idx].UpdatedAt = now
			c.UpdatedAt = now
			return
		}
	}

	item.AddedAt = now
	item.UpdatedAt = now
	c.Items = append(c.Items, item)
	c.UpdatedAt = now
}

// SetItemQuantity overwrites the quantity of an existing line, quantity 0
// removes the line. A line is never kept at quantity 0.
func (c *Cart) SetItemQuantity(productID uuid.UUID, quantity int) bool {
	if quantity == 0 {
		return c.RemoveItem(productID)
	}

	now := time.Now()

	for idx := range c.Items {
		if c.Items[idx].ProductID == productID {
			c.Items[idx].Quantity = quantity
			c.Items[idx].UpdatedAt = now
			c.UpdatedAt = now
			return true
		}
	}
	return false
}

func (c *Cart) RemoveItem(productID uuid.UUID) bool {
	for idx := range c.Items {
		if c.Items[idx].ProductID == productID {
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
			c.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

func (c *Cart) Clear() {
	c.Items = nil
	c.UpdatedAt = time.Now()
}

func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.Total().Amount)
	}
	return sum
}

// TotalItems is the sum of line quantities, UniqueItems the number of lines.
func (c Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

func (c Cart) UniqueItems() int {
	return len(c.Items)
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) IsExpired() bool {
	return !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(time.Now())
}
