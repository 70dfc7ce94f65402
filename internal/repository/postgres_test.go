package repository_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	sku TEXT NOT NULL DEFAULT '',
	price_amount NUMERIC NOT NULL,
	price_currency TEXT NOT NULL,
	old_price_amount NUMERIC,
	available_quantity INT NOT NULL DEFAULT 0 CHECK (available_quantity >= 0),
	min_threshold INT NOT NULL DEFAULT 5,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS carts (
	cart_key TEXT PRIMARY KEY,
	user_id TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS cart_items (
	cart_key TEXT NOT NULL REFERENCES carts(cart_key) ON DELETE CASCADE,
	product_id UUID NOT NULL,
	price_amount NUMERIC NOT NULL,
	price_currency TEXT NOT NULL,
	quantity INT NOT NULL CHECK (quantity >= 1),
	attributes TEXT,
	added_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (cart_key, product_id)
);

CREATE TABLE IF NOT EXISTS orders (
	id BIGSERIAL PRIMARY KEY,
	number TEXT NOT NULL UNIQUE,
	user_id TEXT,
	customer_email TEXT NOT NULL DEFAULT '',
	customer_phone TEXT NOT NULL DEFAULT '',
	customer_name TEXT NOT NULL DEFAULT '',
	shipping_address TEXT NOT NULL DEFAULT '',
	shipping_city TEXT,
	shipping_region TEXT,
	shipping_postal_code TEXT,
	shipping_country TEXT,
	shipping_notes TEXT,
	status TEXT NOT NULL,
	payment_status TEXT NOT NULL,
	currency TEXT NOT NULL,
	subtotal NUMERIC NOT NULL DEFAULT 0,
	shipping_cost NUMERIC NOT NULL DEFAULT 0,
	tax_amount NUMERIC NOT NULL DEFAULT 0,
	discount_amount NUMERIC NOT NULL DEFAULT 0,
	tracking_number TEXT,
	shipping_provider TEXT,
	admin_notes TEXT,
	customer_notes TEXT,
	order_date TIMESTAMPTZ NOT NULL,
	payment_date TIMESTAMPTZ,
	processing_date TIMESTAMPTZ,
	shipped_date TIMESTAMPTZ,
	delivered_date TIMESTAMPTZ,
	cancelled_date TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS order_items (
	id BIGSERIAL PRIMARY KEY,
	order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	product_id UUID NOT NULL,
	product_name TEXT NOT NULL,
	product_sku TEXT,
	unit_price_amount NUMERIC NOT NULL,
	unit_price_currency TEXT NOT NULL,
	original_price_amount NUMERIC,
	quantity INT NOT NULL CHECK (quantity >= 1),
	attributes TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("shopcore"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return container, "", fmt.Errorf("container.ConnectionString: %w", err)
	}

	return container, connStr, nil
}

func createSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}
	return nil
}
