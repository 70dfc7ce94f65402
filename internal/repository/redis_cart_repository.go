package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/shopcore/internal/domain"
	"github.com/nikolayk812/shopcore/internal/port"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// redisCartRepository keeps carts as JSON blobs whose key TTL mirrors the
// cart expiration, so Redis purges abandoned carts on its own.
type redisCartRepository struct {
	client *redis.Client
}

func NewCartRedis(client *redis.Client) port.CartRepository {
	return &redisCartRepository{client: client}
}

func cartKey(key string) string {
	return "cart:" + key
}

func userCartKey(userID string) string {
	return "cart:user:" + userID
}

type redisCart struct {
	Key       string          `json:"key"`
	UserID    *string         `json:"user_id,omitempty"`
	Items     []redisCartItem `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type redisCartItem struct {
	ProductID     uuid.UUID       `json:"product_id"`
	PriceAmount   decimal.Decimal `json:"price_amount"`
	PriceCurrency string          `json:"price_currency"`
	Quantity      int             `json:"quantity"`
	Attributes    *string         `json:"attributes,omitempty"`
	AddedAt       time.Time       `json:"added_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (r *redisCartRepository) GetCart(ctx context.Context, key string) (domain.Cart, error) {
	var c domain.Cart

	payload, err := r.client.Get(ctx, cartKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return c, fmt.Errorf("cart[%s]: %w", key, domain.ErrCartNotFound)
		}
		return c, fmt.Errorf("client.Get: %w", err)
	}

	var doc redisCart
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return c, fmt.Errorf("json.Unmarshal: %w", err)
	}

	return mapRedisCartToDomain(doc)
}

func (r *redisCartRepository) FindUserCart(ctx context.Context, userID string) (domain.Cart, error) {
	key, err := r.client.Get(ctx, userCartKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Cart{}, fmt.Errorf("user[%s]: %w", userID, domain.ErrCartNotFound)
		}
		return domain.Cart{}, fmt.Errorf("client.Get: %w", err)
	}

	return r.GetCart(ctx, key)
}

func (r *redisCartRepository) SaveCart(ctx context.Context, cart domain.Cart) error {
	ttl := time.Until(cart.ExpiresAt)
	if ttl <= 0 {
		// Already expired, persisting would be immediately invisible anyway.
		return r.DeleteCart(ctx, cart.Key)
	}

	payload, err := json.Marshal(mapDomainCartToRedis(cart))
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, cartKey(cart.Key), payload, ttl)
	if cart.UserID != nil {
		pipe.Set(ctx, userCartKey(*cart.UserID), cart.Key, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipe.Exec: %w", err)
	}

	return nil
}

// watchRetries bounds the optimistic retry loop in MutateCart, generous
// enough for bursts of concurrent writers on one cart.
const watchRetries = 100

// MutateCart serializes via WATCH: the cart key is watched while fn runs and
// the write aborts when a concurrent writer touched it first, in which case
// the whole cycle reloads and retries.
func (r *redisCartRepository) MutateCart(ctx context.Context, key string, fn func(cart *domain.Cart) error) error {
	txf := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, cartKey(key)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("cart[%s]: %w", key, domain.ErrCartNotFound)
			}
			return fmt.Errorf("tx.Get: %w", err)
		}

		var doc redisCart
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			return fmt.Errorf("json.Unmarshal: %w", err)
		}

		cart, err := mapRedisCartToDomain(doc)
		if err != nil {
			return fmt.Errorf("mapRedisCartToDomain: %w", err)
		}

		if err := fn(&cart); err != nil {
			return err
		}

		out, err := json.Marshal(mapDomainCartToRedis(cart))
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}

		ttl := time.Until(cart.ExpiresAt)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if ttl <= 0 {
				pipe.Del(ctx, cartKey(key))
				if cart.UserID != nil {
					pipe.Del(ctx, userCartKey(*cart.UserID))
				}
				return nil
			}

			pipe.Set(ctx, cartKey(key), out, ttl)
			if cart.UserID != nil {
				pipe.Set(ctx, userCartKey(*cart.UserID), key, ttl)
			}
			return nil
		})
		return err
	}

	for range watchRetries {
		err := r.client.Watch(ctx, txf, cartKey(key))
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // a concurrent writer got there first, reload and retry
		}
		return fmt.Errorf("client.Watch: %w", err)
	}

	return fmt.Errorf("cart[%s]: too many concurrent updates", key)
}

func (r *redisCartRepository) DeleteCart(ctx context.Context, key string) error {
	// Look up the owner first to drop the user index together with the cart.
	var ownerKey string

	payload, err := r.client.Get(ctx, cartKey(key)).Result()
	if err == nil {
		var doc redisCart
		if err := json.Unmarshal([]byte(payload), &doc); err == nil && doc.UserID != nil {
			ownerKey = userCartKey(*doc.UserID)
		}
	} else if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("client.Get: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, cartKey(key))
	if ownerKey != "" {
		pipe.Del(ctx, ownerKey)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipe.Exec: %w", err)
	}

	return nil
}

func mapDomainCartToRedis(cart domain.Cart) redisCart {
	doc := redisCart{
		Key:       cart.Key,
		UserID:    cart.UserID,
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
		ExpiresAt: cart.ExpiresAt,
	}

	for _, item := range cart.Items {
		doc.Items = append(doc.Items, redisCartItem{
			ProductID:     item.ProductID,
			PriceAmount:   item.Price.Amount,
			PriceCurrency: item.Price.Currency.String(),
			Quantity:      item.Quantity,
			Attributes:    item.Attributes,
			AddedAt:       item.AddedAt,
			UpdatedAt:     item.UpdatedAt,
		})
	}

	return doc
}

func mapRedisCartToDomain(doc redisCart) (domain.Cart, error) {
	cart := domain.Cart{
		Key:       doc.Key,
		UserID:    doc.UserID,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		ExpiresAt: doc.ExpiresAt,
	}

	for _, item := range doc.Items {
		parsedCurrency, err := currency.ParseISO(item.PriceCurrency)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("currency[%s] is not valid: %w", item.PriceCurrency, err)
		}

		cart.Items = append(cart.Items, domain.CartItem{
			ProductID:  item.ProductID,
			Price:      domain.Money{Amount: item.PriceAmount, Currency: parsedCurrency},
			Quantity:   item.Quantity,
			Attributes: item.Attributes,
			AddedAt:    item.AddedAt,
			UpdatedAt:  item.UpdatedAt,
		})
	}

	return cart, nil
}
