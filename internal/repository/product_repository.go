package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/shopcore/internal/domain"
	"github.com/nikolayk812/shopcore/internal/port"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type productRepository struct {
	db DBTX
}

func NewProduct(pool *pgxpool.Pool) port.ProductStore {
	return &productRepository{db: pool}
}

func NewProductWithTx(tx pgx.Tx) port.ProductStore {
	return &productRepository{db: tx}
}

func (r *productRepository) GetProduct(ctx context.Context, productID uuid.UUID) (domain.Product, error) {
	var p domain.Product

	row := r.db.QueryRow(ctx, `
		SELECT id, name, sku, price_amount, price_currency, old_price_amount,
		       available_quantity, min_threshold, created_at, updated_at
		FROM products
		WHERE id = $1`, productID)

	var (
		priceAmount    decimal.Decimal
		priceCurrency  string
		oldPriceAmount *decimal.Decimal
	)

	err := row.Scan(&p.ID, &p.Name, &p.SKU, &priceAmount, &priceCurrency, &oldPriceAmount,
		&p.AvailableQuantity, &p.MinThreshold, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, fmt.Errorf("product[%s]: %w", productID, domain.ErrProductNotFound)
		}
		return p, fmt.Errorf("row.Scan: %w", err)
	}

	parsedCurrency, err := currency.ParseISO(priceCurrency)
	if err != nil {
		return p, fmt.Errorf("currency[%s] is not valid: %w", priceCurrency, err)
	}

	p.Price = domain.Money{Amount: priceAmount, Currency: parsedCurrency}
	if oldPriceAmount != nil {
		p.OldPrice = lo.ToPtr(domain.Money{Amount: *oldPriceAmount, Currency: parsedCurrency})
	}

	return p, nil
}

func (r *productRepository) InsertProduct(ctx context.Context, product domain.Product) error {
	var oldPriceAmount *decimal.Decimal
	if product.OldPrice != nil {
		oldPriceAmount = lo.ToPtr(product.OldPrice.Amount)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO products (id, name, sku, price_amount, price_currency, old_price_amount,
		                      available_quantity, min_threshold)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		product.ID, product.Name, product.SKU,
		product.Price.Amount, product.Price.Currency.String(), oldPriceAmount,
		product.AvailableQuantity, product.MinThreshold)
	if err != nil {
		return fmt.Errorf("db.Exec: %w", err)
	}

	return nil
}

// Reserve decrements available stock in a single conditional UPDATE, so the
// read-check-decrement sequence is atomic under Postgres row locking.
func (r *productRepository) Reserve(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity[%d]: %w", quantity, domain.ErrInvalidQuantity)
	}

	cmdTag, err := r.db.Exec(ctx, `
		UPDATE products
		SET available_quantity = available_quantity - $2, updated_at = now()
		WHERE id = $1 AND available_quantity >= $2`, productID, quantity)
	if err != nil {
		return fmt.Errorf("db.Exec: %w", err)
	}

	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	// Either the product is unknown or there was not enough stock.
	var available int
	err = r.db.QueryRow(ctx, `SELECT available_quantity FROM products WHERE id = $1`, productID).
		Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product[%s]: %w", productID, domain.ErrProductNotFound)
		}
		return fmt.Errorf("row.Scan: %w", err)
	}

	return domain.InsufficientStockError{
		ProductID: productID,
		Requested: quantity,
		Available: available,
	}
}

// Release puts quantity back without an upper cap, see the ledger contract.
func (r *productRepository) Release(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity[%d]: %w", quantity, domain.ErrInvalidQuantity)
	}

	cmdTag, err := r.db.Exec(ctx, `
		UPDATE products
		SET available_quantity = available_quantity + $2, updated_at = now()
		WHERE id = $1`, productID, quantity)
	if err != nil {
		return fmt.Errorf("db.Exec: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("product[%s]: %w", productID, domain.ErrProductNotFound)
	}

	return nil
}
