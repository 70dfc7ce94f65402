package domain

import (
	"errors"
	"fmt"
	"time"
)

// OrderFilter has AND semantics across fields, OR semantics within each field slice
type OrderFilter struct {
	IDs             []int64
	Numbers         []string
	UserIDs         []string
	CustomerEmails  []string
	Statuses        []OrderStatus
	PaymentStatuses []PaymentStatus
	OrderDate       *TimeRange
}

func (f OrderFilter) Validate() error {
	if len(f.IDs) == 0 && len(f.Numbers) == 0 && len(f.UserIDs) == 0 &&
		len(f.CustomerEmails) == 0 && len(f.Statuses) == 0 &&
		len(f.PaymentStatuses) == 0 && f.OrderDate == nil {
		return errors.New("all fields are empty")
	}

	if f.OrderDate != nil {
		if err := f.OrderDate.Validate(); err != nil {
			return fmt.Errorf("orderDate: %w", err)
		}
	}

	return nil
}

type TimeRange struct {
	Before *time.Time
	After  *time.Time
}

func (t TimeRange) Validate() error {
	if t.Before == nil && t.After == nil {
		return errors.New("both Before and After are nil")
	}

	if t.Before != nil && t.After != nil {
		if t.Before.Before(*t.After) {
			return fmt.Errorf("before is before After")
		}
	}

	return nil
}
