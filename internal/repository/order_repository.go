package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/shopcore/internal/domain"
	"github.com/nikolayk812/shopcore/internal/port"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const orderColumns = `id, number, user_id, customer_email, customer_phone, customer_name,
	shipping_address, shipping_city, shipping_region, shipping_postal_code, shipping_country,
	shipping_notes, status, payment_status, currency,
	subtotal, shipping_cost, tax_amount, discount_amount,
	tracking_number, shipping_provider, admin_notes, customer_notes,
	order_date, payment_date, processing_date, shipped_date, delivered_date, cancelled_date`

type orderRepository struct {
	db DBTX
}

func NewOrder(pool *pgxpool.Pool) port.OrderRepository {
	return &orderRepository{db: pool}
}

func NewOrderWithTx(tx pgx.Tx) port.OrderRepository {
	return &orderRepository{db: tx}
}

func (r *orderRepository) GetOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	return r.getOrder(ctx, `WHERE id = $1`, orderID)
}

func (r *orderRepository) GetOrderByNumber(ctx context.Context, number string) (domain.Order, error) {
	return r.getOrder(ctx, `WHERE number = $1`, number)
}

func (r *orderRepository) getOrder(ctx context.Context, where string, arg any) (domain.Order, error) {
	var o domain.Order

	order, err := withTx(ctx, r.db, func(q DBTX) (domain.Order, error) {
		row := q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders `+where, arg)

		order, err := scanOrder(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return o, fmt.Errorf("order[%v]: %w", arg, domain.ErrOrderNotFound)
			}
			return o, fmt.Errorf("scanOrder: %w", err)
		}

		items, err := getOrderItems(ctx, q, order.ID)
		if err != nil {
			return o, fmt.Errorf("getOrderItems: %w", err)
		}
		order.Items = items

		return order, nil
	})
	if err != nil {
		return o, fmt.Errorf("withTx: %w", err)
	}

	return order, nil
}

func (r *orderRepository) InsertOrder(ctx context.Context, order domain.Order) (int64, error) {
	if len(order.Items) == 0 {
		return 0, errors.New("no items in order")
	}

	orderID, err := withTx(ctx, r.db, func(q DBTX) (int64, error) {
		var orderID int64

		err := q.QueryRow(ctx, `
			INSERT INTO orders (number, user_id, customer_email, customer_phone, customer_name,
				shipping_address, shipping_city, shipping_region, shipping_postal_code,
				shipping_country, shipping_notes, status, payment_status, currency,
				subtotal, shipping_cost, tax_amount, discount_amount,
				tracking_number, shipping_provider, admin_notes, customer_notes,
				order_date, payment_date, processing_date, shipped_date, delivered_date, cancelled_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
			RETURNING id`,
			order.Number, order.UserID, order.CustomerEmail, order.CustomerPhone, order.CustomerName,
			order.ShippingAddress, order.ShippingCity, order.ShippingRegion, order.ShippingPostalCode,
			order.ShippingCountry, order.ShippingNotes, string(order.Status), string(order.PaymentStatus),
			order.Currency.String(),
			order.Subtotal, order.ShippingCost, order.TaxAmount, order.DiscountAmount,
			order.TrackingNumber, order.ShippingProvider, order.AdminNotes, order.CustomerNotes,
			order.OrderDate, order.PaymentDate, order.ProcessingDate, order.ShippedDate,
			order.DeliveredDate, order.CancelledDate).Scan(&orderID)
		if err != nil {
			return 0, fmt.Errorf("insert order: %w", err)
		}

		// TODO: batch with pgx.Batch
		for _, item := range order.Items {
			var originalPrice *decimal.Decimal
			if item.OriginalPrice != nil {
				originalPrice = lo.ToPtr(item.OriginalPrice.Amount)
			}

			_, err := q.Exec(ctx, `
				INSERT INTO order_items (order_id, product_id, product_name, product_sku,
					unit_price_amount, unit_price_currency, original_price_amount,
					quantity, attributes)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				orderID, item.ProductID, item.ProductName, item.ProductSKU,
				item.UnitPrice.Amount, item.UnitPrice.Currency.String(), originalPrice,
				item.Quantity, item.Attributes)
			if err != nil {
				return 0, fmt.Errorf("insert order_item: %w", err)
			}
		}

		return orderID, nil
	})
	if err != nil {
		return 0, fmt.Errorf("withTx: %w", err)
	}

	return orderID, nil
}

// UpdateOrder persists mutable order fields only. Items are immutable
// snapshots and are never touched after insert.
func (r *orderRepository) UpdateOrder(ctx context.Context, order domain.Order) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET user_id = $2, status = $3, payment_status = $4,
		    tracking_number = $5, shipping_provider = $6,
		    admin_notes = $7, customer_notes = $8,
		    payment_date = $9, processing_date = $10, shipped_date = $11,
		    delivered_date = $12, cancelled_date = $13,
		    updated_at = now()
		WHERE id = $1`,
		order.ID, order.UserID, string(order.Status), string(order.PaymentStatus),
		order.TrackingNumber, order.ShippingProvider,
		order.AdminNotes, order.CustomerNotes,
		order.PaymentDate, order.ProcessingDate, order.ShippedDate,
		order.DeliveredDate, order.CancelledDate)
	if err != nil {
		return fmt.Errorf("db.Exec: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("order[%d]: %w", order.ID, domain.ErrOrderNotFound)
	}

	return nil
}

func (r *orderRepository) SearchOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter.Validate: %w", err)
	}

	where, args := buildOrderFilter(filter)

	orders, err := withTx(ctx, r.db, func(q DBTX) ([]domain.Order, error) {
		rows, err := q.Query(ctx, `SELECT `+orderColumns+` FROM orders `+where+` ORDER BY order_date DESC`, args...)
		if err != nil {
			return nil, fmt.Errorf("db.Query: %w", err)
		}
		defer rows.Close()

		var orders []domain.Order
		for rows.Next() {
			order, err := scanOrder(rows)
			if err != nil {
				return nil, fmt.Errorf("scanOrder: %w", err)
			}
			orders = append(orders, order)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("rows.Err: %w", err)
		}

		for i := range orders {
			items, err := getOrderItems(ctx, q, orders[i].ID)
			if err != nil {
				return nil, fmt.Errorf("getOrderItems: %w", err)
			}
			orders[i].Items = items
		}

		return orders, nil
	})
	if err != nil {
		return nil, fmt.Errorf("withTx: %w", err)
	}

	return orders, nil
}

func buildOrderFilter(filter domain.OrderFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if len(filter.IDs) > 0 {
		add("id = ANY($%d)", filter.IDs)
	}
	if len(filter.Numbers) > 0 {
		add("number = ANY($%d)", filter.Numbers)
	}
	if len(filter.UserIDs) > 0 {
		add("user_id = ANY($%d)", filter.UserIDs)
	}
	if len(filter.CustomerEmails) > 0 {
		add("customer_email = ANY($%d)", filter.CustomerEmails)
	}
	if len(filter.Statuses) > 0 {
		statuses := lo.Map(filter.Statuses, func(s domain.OrderStatus, _ int) string {
			return string(s)
		})
		add("status = ANY($%d)", statuses)
	}
	if len(filter.PaymentStatuses) > 0 {
		statuses := lo.Map(filter.PaymentStatuses, func(s domain.PaymentStatus, _ int) string {
			return string(s)
		})
		add("payment_status = ANY($%d)", statuses)
	}
	if filter.OrderDate != nil {
		if filter.OrderDate.After != nil {
			add("order_date >= $%d", *filter.OrderDate.After)
		}
		if filter.OrderDate.Before != nil {
			add("order_date <= $%d", *filter.OrderDate.Before)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o             domain.Order
		status        string
		paymentStatus string
		currencyCode  string
	)

	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.CustomerEmail, &o.CustomerPhone, &o.CustomerName,
		&o.ShippingAddress, &o.ShippingCity, &o.ShippingRegion, &o.ShippingPostalCode,
		&o.ShippingCountry, &o.ShippingNotes, &status, &paymentStatus, &currencyCode,
		&o.Subtotal, &o.ShippingCost, &o.TaxAmount, &o.DiscountAmount,
		&o.TrackingNumber, &o.ShippingProvider, &o.AdminNotes, &o.CustomerNotes,
		&o.OrderDate, &o.PaymentDate, &o.ProcessingDate, &o.ShippedDate,
		&o.DeliveredDate, &o.CancelledDate)
	if err != nil {
		return o, err
	}

	o.Status, err = domain.ToOrderStatus(status)
	if err != nil {
		return o, fmt.Errorf("domain.ToOrderStatus[%s]: %w", status, err)
	}

	o.PaymentStatus, err = domain.ToPaymentStatus(paymentStatus)
	if err != nil {
		return o, fmt.Errorf("domain.ToPaymentStatus[%s]: %w", paymentStatus, err)
	}

	o.Currency, err = currency.ParseISO(currencyCode)
	if err != nil {
		return o, fmt.Errorf("currency[%s] is not valid: %w", currencyCode, err)
	}

	return o, nil
}

func getOrderItems(ctx context.Context, q DBTX, orderID int64) ([]domain.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, product_name, product_sku, unit_price_amount, unit_price_currency,
		       original_price_amount, quantity, attributes
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("db.Query: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem

	for rows.Next() {
		var (
			item          domain.OrderItem
			priceAmount   decimal.Decimal
			priceCurrency string
			originalPrice *decimal.Decimal
		)

		err := rows.Scan(&item.ProductID, &item.ProductName, &item.ProductSKU,
			&priceAmount, &priceCurrency, &originalPrice, &item.Quantity, &item.Attributes)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		parsedCurrency, err := currency.ParseISO(priceCurrency)
		if err != nil {
			return nil, fmt.Errorf("currency[%s] is not valid: %w", priceCurrency, err)
		}

		item.UnitPrice = domain.Money{Amount: priceAmount, Currency: parsedCurrency}
		if originalPrice != nil {
			item.OriginalPrice = lo.ToPtr(domain.Money{Amount: *originalPrice, Currency: parsedCurrency})
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return items, nil
}
