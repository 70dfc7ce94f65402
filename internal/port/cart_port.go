package port

import (
	"context"

	"github.com/nikolayk812/shopcore/internal/domain"
)

type CartRepository interface {
	// GetCart returns domain.ErrCartNotFound when the key is unknown.
	// Expiration is not checked here, that is the service's concern.
	GetCart(ctx context.Context, cartKey string) (domain.Cart, error)

	// FindUserCart returns the newest non-expired cart owned by the user.
	FindUserCart(ctx context.Context, userID string) (domain.Cart, error)

	// SaveCart upserts the whole aggregate, items included.
	SaveCart(ctx context.Context, cart domain.Cart) error

	// MutateCart loads the cart under an exclusive per-key lock, applies fn
	// and persists the result atomically: concurrent mutations of the same
	// cart serialize, none is silently lost. An error from fn aborts the
	// mutation without persisting anything.
	MutateCart(ctx context.Context, cartKey string, fn func(cart *domain.Cart) error) error

	DeleteCart(ctx context.Context, cartKey string) error
}
