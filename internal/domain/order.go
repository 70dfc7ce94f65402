package domain

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// OrderNumberPrefix starts every human-facing order number.
const OrderNumberPrefix = "DS"

// Order is created exactly once from a validated non-empty cart and mutated
// only through the transition methods below. It is never deleted in normal
// operation, cancellation is a terminal status.
type Order struct {
	ID     int64
	Number string

	UserID        *string
	CustomerEmail string
	CustomerPhone string
	CustomerName  string

	ShippingAddress    string
	ShippingCity       *string
	ShippingRegion     *string
	ShippingPostalCode *string
	ShippingCountry    *string
	ShippingNotes      *string

	Status        OrderStatus
	PaymentStatus PaymentStatus

	Currency       currency.Unit
	Subtotal       decimal.Decimal
	ShippingCost   decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal

	TrackingNumber   *string
	ShippingProvider *string

	AdminNotes    *string
	CustomerNotes *string

	OrderDate      time.Time
	PaymentDate    *time.Time
	ProcessingDate *time.Time
	ShippedDate    *time.Time
	DeliveredDate  *time.Time
	CancelledDate  *time.Time

	Items []OrderItem
}

// OrderItem is an immutable snapshot of a cart line frozen at checkout time,
// it never references the live product record.
type OrderItem struct {
	ProductID     uuid.UUID
	ProductName   string
	ProductSKU    *string
	UnitPrice     Money
	OriginalPrice *Money
	Quantity      int
	Attributes    *string
}

func (i OrderItem) Total() Money {
	return i.UnitPrice.Mul(i.Quantity)
}

func (i OrderItem) DiscountAmount() decimal.Decimal {
	if i.OriginalPrice == nil {
		return decimal.Zero
	}

	perUnit := i.OriginalPrice.Amount.Sub(i.UnitPrice.Amount)
	return perUnit.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NewOrderNumber builds a human-facing number: fixed prefix, date stamp and
// a 5-digit random suffix. Global uniqueness is backed by a unique constraint
// in the store.
func NewOrderNumber() string {
	datePart := time.Now().UTC().Format("20060102")
	randomPart := 10000 + rand.IntN(90000)

	return fmt.Sprintf("%s%s%d", OrderNumberPrefix, datePart, randomPart)
}

func NewOrder() Order {
	return Order{
		Number:        NewOrderNumber(),
		Status:        OrderStatusPending,
		PaymentStatus: PaymentStatusPending,
		OrderDate:     time.Now(),
	}
}

// Total is always derived, never stored independently.
func (o Order) Total() decimal.Decimal {
	return o.Subtotal.Add(o.ShippingCost).Add(o.TaxAmount).Sub(o.DiscountAmount)
}

func (o Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}

func (o Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

func (o Order) RequiresPayment() bool {
	return o.PaymentStatus == PaymentStatusPending
}

func (o Order) invalidTransition(target OrderStatus) error {
	return InvalidTransitionError{
		OrderNumber: o.Number,
		Current:     o.Status,
		Target:      target,
	}
}

// Process moves the order into fulfillment. Allowed only from pending.
func (o *Order) Process() error {
	if o.Status != OrderStatusPending {
		return o.invalidTransition(OrderStatusProcessing)
	}

	o.Status = OrderStatusProcessing
	if o.ProcessingDate == nil {
		now := time.Now()
		o.ProcessingDate = &now
	}

	return nil
}

// Ship requires a tracking number and provider. Allowed only from processing.
func (o *Order) Ship(trackingNumber, shippingProvider string) error {
	if o.Status != OrderStatusProcessing {
		return o.invalidTransition(OrderStatusShipped)
	}

	if trackingNumber == "" || shippingProvider == "" {
		return fmt.Errorf("order %s: tracking number and shipping provider are required", o.Number)
	}

	o.Status = OrderStatusShipped
	o.TrackingNumber = &trackingNumber
	o.ShippingProvider = &shippingProvider
	if o.ShippedDate == nil {
		now := time.Now()
		o.ShippedDate = &now
	}

	return nil
}

// Deliver is allowed only from shipped. Delivered is terminal.
func (o *Order) Deliver() error {
	if o.Status != OrderStatusShipped {
		return o.invalidTransition(OrderStatusDelivered)
	}

	o.Status = OrderStatusDelivered
	if o.DeliveredDate == nil {
		now := time.Now()
		o.DeliveredDate = &now
	}

	return nil
}

// Cancel is allowed only while CanBeCancelled holds. Releasing reserved stock
// is the caller's responsibility, the aggregate only changes status.
func (o *Order) Cancel(reason string) error {
	if !o.CanBeCancelled() {
		return fmt.Errorf("order %s in status %s: %w", o.Number, o.Status, ErrOrderNotCancellable)
	}

	o.Status = OrderStatusCancelled
	if o.CancelledDate == nil {
		now := time.Now()
		o.CancelledDate = &now
	}

	if reason != "" {
		note := fmt.Sprintf("cancelled: %s", reason)
		if o.AdminNotes != nil && *o.AdminNotes != "" {
			note = note + "\n" + *o.AdminNotes
		}
		o.AdminNotes = &note
	}

	return nil
}

// SetPaymentStatus records the outcome reported by the payment collaborator.
// Payment status never drives fulfillment transitions.
func (o *Order) SetPaymentStatus(status PaymentStatus) error {
	if _, err := ToPaymentStatus(string(status)); err != nil {
		return fmt.Errorf("order %s: %w", o.Number, err)
	}

	o.PaymentStatus = status
	if status == PaymentStatusPaid && o.PaymentDate == nil {
		now := time.Now()
		o.PaymentDate = &now
	}

	return nil
}
