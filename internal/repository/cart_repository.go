package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/shopcore/internal/domain"
	"github.com/nikolayk812/shopcore/internal/port"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type cartRepository struct {
	db DBTX
}

func NewCart(pool *pgxpool.Pool) port.CartRepository {
	return &cartRepository{db: pool}
}

func NewCartWithTx(tx pgx.Tx) port.CartRepository {
	return &cartRepository{db: tx}
}

func (r *cartRepository) GetCart(ctx context.Context, cartKey string) (domain.Cart, error) {
	var c domain.Cart

	row := r.db.QueryRow(ctx, `
		SELECT cart_key, user_id, created_at, updated_at, expires_at
		FROM carts
		WHERE cart_key = $1`, cartKey)

	err := row.Scan(&c.Key, &c.UserID, &c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, fmt.Errorf("cart[%s]: %w", cartKey, domain.ErrCartNotFound)
		}
		return c, fmt.Errorf("row.Scan: %w", err)
	}

	items, err := getCartItems(ctx, r.db, cartKey)
	if err != nil {
		return c, fmt.Errorf("getCartItems: %w", err)
	}
	c.Items = items

	return c, nil
}

func (r *cartRepository) FindUserCart(ctx context.Context, userID string) (domain.Cart, error) {
	var cartKey string

	err := r.db.QueryRow(ctx, `
		SELECT cart_key
		FROM carts
		WHERE user_id = $1 AND expires_at > now()
		ORDER BY updated_at DESC
		LIMIT 1`, userID).Scan(&cartKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Cart{}, fmt.Errorf("user[%s]: %w", userID, domain.ErrCartNotFound)
		}
		return domain.Cart{}, fmt.Errorf("row.Scan: %w", err)
	}

	return r.GetCart(ctx, cartKey)
}

// SaveCart replaces the whole aggregate: the cart row is upserted and the
// item rows rewritten in one transaction. Concurrent saves of the same cart
// serialize on the row lock, different carts proceed in parallel.
func (r *cartRepository) SaveCart(ctx context.Context, cart domain.Cart) error {
	_, err := withTx(ctx, r.db, func(q DBTX) (struct{}, error) {
		_, err := q.Exec(ctx, `SELECT 1 FROM carts WHERE cart_key = $1 FOR UPDATE`, cart.Key)
		if err != nil {
			return struct{}{}, fmt.Errorf("lock cart: %w", err)
		}

		return struct{}{}, saveCart(ctx, q, cart)
	})
	if err != nil {
		return fmt.Errorf("withTx: %w", err)
	}

	return nil
}

// MutateCart reads the cart with the row locked, so the whole
// read-modify-write cycle holds the lock and a concurrent mutation of the
// same cart cannot interleave between the read and the write.
func (r *cartRepository) MutateCart(ctx context.Context, cartKey string, fn func(cart *domain.Cart) error) error {
	_, err := withTx(ctx, r.db, func(q DBTX) (struct{}, error) {
		var c domain.Cart

		row := q.QueryRow(ctx, `
			SELECT cart_key, user_id, created_at, updated_at, expires_at
			FROM carts
			WHERE cart_key = $1
			FOR UPDATE`, cartKey)

		err := row.Scan(&c.Key, &c.UserID, &c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return struct{}{}, fmt.Errorf("cart[%s]: %w", cartKey, domain.ErrCartNotFound)
			}
			return struct{}{}, fmt.Errorf("row.Scan: %w", err)
		}

		items, err := getCartItems(ctx, q, cartKey)
		if err != nil {
			return struct{}{}, fmt.Errorf("getCartItems: %w", err)
		}
		c.Items = items

		if err := fn(&c); err != nil {
			return struct{}{}, err
		}

		return struct{}{}, saveCart(ctx, q, c)
	})
	if err != nil {
		return fmt.Errorf("withTx: %w", err)
	}

	return nil
}

func (r *cartRepository) DeleteCart(ctx context.Context, cartKey string) error {
	_, err := withTx(ctx, r.db, func(q DBTX) (struct{}, error) {
		if _, err := q.Exec(ctx, `DELETE FROM cart_items WHERE cart_key = $1`, cartKey); err != nil {
			return struct{}{}, fmt.Errorf("delete cart_items: %w", err)
		}

		if _, err := q.Exec(ctx, `DELETE FROM carts WHERE cart_key = $1`, cartKey); err != nil {
			return struct{}{}, fmt.Errorf("delete cart: %w", err)
		}

		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("withTx: %w", err)
	}

	return nil
}

func saveCart(ctx context.Context, q DBTX, cart domain.Cart) error {
	_, err := q.Exec(ctx, `
		INSERT INTO carts (cart_key, user_id, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_key) DO UPDATE
		SET user_id = EXCLUDED.user_id, updated_at = EXCLUDED.updated_at,
		    expires_at = EXCLUDED.expires_at`,
		cart.Key, cart.UserID, cart.CreatedAt, cart.UpdatedAt, cart.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}

	_, err = q.Exec(ctx, `DELETE FROM cart_items WHERE cart_key = $1`, cart.Key)
	if err != nil {
		return fmt.Errorf("delete cart_items: %w", err)
	}

	for _, item := range cart.Items {
		_, err = q.Exec(ctx, `
			INSERT INTO cart_items (cart_key, product_id, price_amount, price_currency,
			                        quantity, attributes, added_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			cart.Key, item.ProductID, item.Price.Amount, item.Price.Currency.String(),
			item.Quantity, item.Attributes, item.AddedAt, item.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert cart_item: %w", err)
		}
	}

	return nil
}

func getCartItems(ctx context.Context, q DBTX, cartKey string) ([]domain.CartItem, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, price_amount, price_currency, quantity, attributes, added_at, updated_at
		FROM cart_items
		WHERE cart_key = $1
		ORDER BY added_at, product_id`, cartKey)
	if err != nil {
		return nil, fmt.Errorf("db.Query: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem

	for rows.Next() {
		var (
			item          domain.CartItem
			priceAmount   decimal.Decimal
			priceCurrency string
		)

		err := rows.Scan(&item.ProductID, &priceAmount, &priceCurrency,
			&item.Quantity, &item.Attributes, &item.AddedAt, &item.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		parsedCurrency, err := currency.ParseISO(priceCurrency)
		if err != nil {
			return nil, fmt.Errorf("currency[%s] is not valid: %w", priceCurrency, err)
		}

		item.Price = domain.Money{Amount: priceAmount, Currency: parsedCurrency}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return items, nil
}
