package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nikolayk812/shopcore/internal/domain"
	"github.com/nikolayk812/shopcore/internal/port"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CartService orchestrates cart mutations against the catalog. Stock is only
// checked against availability here, reservation happens at checkout. Every
// mutation runs through the repository's locked read-modify-write cycle, so
// concurrent mutations of the same cart serialize instead of losing updates.
type CartService struct {
	carts   port.CartRepository
	catalog port.CatalogStore
	logger  *slog.Logger
}

func NewCartService(carts port.CartRepository, catalog port.CatalogStore, logger *slog.Logger) *CartService {
	if logger == nil {
		logger = slog.Default()
	}

	return &CartService{
		carts:   carts,
		catalog: catalog,
		logger:  logger,
	}
}

// GetCart returns a live cart. An expired cart is purged and reported as
// domain.ErrCartExpired: past expiration it is non-existent for reads.
func (s *CartService) GetCart(ctx context.Context, cartKey string) (domain.Cart, error) {
	cart, err := s.carts.GetCart(ctx, cartKey)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("carts.GetCart: %w", err)
	}

	if cart.IsExpired() {
		if err := s.carts.DeleteCart(ctx, cartKey); err != nil {
			return domain.Cart{}, fmt.Errorf("carts.DeleteCart: %w", err)
		}
		return domain.Cart{}, fmt.Errorf("cart[%s]: %w", cartKey, domain.ErrCartExpired)
	}

	return cart, nil
}

// GetOrCreate returns the existing non-expired cart or issues a fresh one.
// An empty cartKey asks for a new key.
func (s *CartService) GetOrCreate(ctx context.Context, cartKey string, userID *string) (domain.Cart, error) {
	if cartKey != "" {
		cart, err := s.GetCart(ctx, cartKey)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, domain.ErrCartNotFound) && !errors.Is(err, domain.ErrCartExpired) {
			return domain.Cart{}, err
		}
	}

	if cartKey == "" {
		cartKey = uuid.NewString()
	}

	cart := domain.NewCart(cartKey, userID)
	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return domain.Cart{}, fmt.Errorf("carts.SaveCart: %w", err)
	}

	return cart, nil
}

// mutate wraps the repository's locked cycle with the expiration guard the
// read path applies.
func (s *CartService) mutate(ctx context.Context, cartKey string, fn func(cart *domain.Cart) error) error {
	return s.carts.MutateCart(ctx, cartKey, func(cart *domain.Cart) error {
		if cart.IsExpired() {
			return fmt.Errorf("cart[%s]: %w", cartKey, domain.ErrCartExpired)
		}
		return fn(cart)
	})
}

func (s *CartService) AddItem(ctx context.Context, cartKey string, productID uuid.UUID, quantity int, attributes *string) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity[%d]: %w", quantity, domain.ErrInvalidQuantity)
	}

	cart, err := s.GetOrCreate(ctx, cartKey, nil)
	if err != nil {
		return fmt.Errorf("s.GetOrCreate: %w", err)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("catalog.GetProduct: %w", err)
	}

	if !product.IsAvailable() {
		return fmt.Errorf("product[%s]: %w", productID, domain.ErrProductUnavailable)
	}

	err = s.mutate(ctx, cart.Key, func(c *domain.Cart) error {
		if len(c.Items) > 0 && product.Price.Currency != c.Items[0].Price.Currency {
			return fmt.Errorf("product[%s] is priced in %s, cart[%s] in %s: %w",
				productID, product.Price.Currency, c.Key, c.Items[0].Price.Currency,
				domain.ErrCurrencyMismatch)
		}

		// The check is against available stock, not a reservation: stock is
		// committed only at checkout.
		requested := quantity
		if existing, ok := c.Item(productID); ok {
			requested += existing.Quantity
		}

		if requested > product.AvailableQuantity {
			return domain.InsufficientStockError{
				ProductID: productID,
				Requested: requested,
				Available: product.AvailableQuantity,
			}
		}

		c.AddItem(domain.CartItem{
			ProductID:  productID,
			Price:      product.Price, // snapshot, not a live reference
			Quantity:   quantity,
			Attributes: attributes,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("carts.MutateCart: %w", err)
	}

	return nil
}

func (s *CartService) UpdateItemQuantity(ctx context.Context, cartKey string, productID uuid.UUID, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("quantity[%d]: %w", quantity, domain.ErrInvalidQuantity)
	}

	if quantity == 0 {
		return s.RemoveItem(ctx, cartKey, productID)
	}

	err := s.mutate(ctx, cartKey, func(c *domain.Cart) error {
		if _, ok := c.Item(productID); !ok {
			return fmt.Errorf("product[%s] not in cart[%s]: %w", productID, cartKey, domain.ErrProductNotFound)
		}

		product, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			return fmt.Errorf("catalog.GetProduct: %w", err)
		}

		if quantity > product.AvailableQuantity {
			return domain.InsufficientStockError{
				ProductID: productID,
				Requested: quantity,
				Available: product.AvailableQuantity,
			}
		}

		c.SetItemQuantity(productID, quantity)
		return nil
	})
	if err != nil {
		return fmt.Errorf("carts.MutateCart: %w", err)
	}

	return nil
}

// RemoveItem is a no-op when the line does not exist.
func (s *CartService) RemoveItem(ctx context.Context, cartKey string, productID uuid.UUID) error {
	err := s.mutate(ctx, cartKey, func(c *domain.Cart) error {
		c.RemoveItem(productID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("carts.MutateCart: %w", err)
	}

	return nil
}

// Clear empties all lines. A missing or expired cart counts as cleared.
func (s *CartService) Clear(ctx context.Context, cartKey string) error {
	err := s.mutate(ctx, cartKey, func(c *domain.Cart) error {
		c.Clear()
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrCartNotFound) || errors.Is(err, domain.ErrCartExpired) {
			return nil
		}
		return fmt.Errorf("carts.MutateCart: %w", err)
	}

	return nil
}

// Merge folds the source cart into the target, then destroys the source.
// Colliding lines are clamped to available stock silently: merge follows a
// login event, where failing the flow is worse than losing excess quantity.
// Lines priced in a different currency than the target cart are skipped for
// the same reason. Each line's merge is independently total.
func (s *CartService) Merge(ctx context.Context, sourceCartKey, targetCartKey string) error {
	source, err := s.GetCart(ctx, sourceCartKey)
	if err != nil {
		return fmt.Errorf("s.GetCart source: %w", err)
	}

	if _, err := s.GetOrCreate(ctx, targetCartKey, nil); err != nil {
		return fmt.Errorf("s.GetOrCreate target: %w", err)
	}

	err = s.mutate(ctx, targetCartKey, func(target *domain.Cart) error {
		for _, sourceItem := range source.Items {
			if targetItem, ok := target.Item(sourceItem.ProductID); ok {
				product, err := s.catalog.GetProduct(ctx, sourceItem.ProductID)
				if err != nil {
					if errors.Is(err, domain.ErrProductNotFound) {
						continue // keep the target line as it is
					}
					return fmt.Errorf("catalog.GetProduct: %w", err)
				}

				merged := min(targetItem.Quantity+sourceItem.Quantity, product.AvailableQuantity)
				target.SetItemQuantity(sourceItem.ProductID, merged)
				continue
			}

			if len(target.Items) > 0 && sourceItem.Price.Currency != target.Items[0].Price.Currency {
				continue // a mixed-currency cart could never check out
			}

			// The source line keeps its own price snapshot and attributes.
			target.AddItem(domain.CartItem{
				ProductID:  sourceItem.ProductID,
				Price:      sourceItem.Price,
				Quantity:   sourceItem.Quantity,
				Attributes: sourceItem.Attributes,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("carts.MutateCart: %w", err)
	}

	if err := s.carts.DeleteCart(ctx, sourceCartKey); err != nil {
		return fmt.Errorf("carts.DeleteCart: %w", err)
	}

	s.logger.Info("carts merged", "source", sourceCartKey, "target", targetCartKey)

	return nil
}

// TransferToUser re-tags an anonymous cart after login. When the user already
// owns a different cart the anonymous one is merged into it instead.
func (s *CartService) TransferToUser(ctx context.Context, cartKey, userID string) error {
	if _, err := s.GetCart(ctx, cartKey); err != nil {
		return fmt.Errorf("s.GetCart: %w", err)
	}

	userCart, err := s.carts.FindUserCart(ctx, userID)
	if err == nil && userCart.Key != cartKey && !userCart.IsExpired() {
		return s.Merge(ctx, cartKey, userCart.Key)
	}
	if err != nil && !errors.Is(err, domain.ErrCartNotFound) {
		return fmt.Errorf("carts.FindUserCart: %w", err)
	}

	err = s.mutate(ctx, cartKey, func(c *domain.Cart) error {
		c.UserID = lo.ToPtr(userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("carts.MutateCart: %w", err)
	}

	return nil
}

// Validate is the checkout precondition: false when any line's product is
// gone, unavailable, or has less stock than the line's quantity.
func (s *CartService) Validate(ctx context.Context, cartKey string) (bool, error) {
	cart, err := s.GetCart(ctx, cartKey)
	if err != nil {
		return false, fmt.Errorf("s.GetCart: %w", err)
	}

	return s.validateCart(ctx, cart)
}

func (s *CartService) validateCart(ctx context.Context, cart domain.Cart) (bool, error) {
	for _, item := range cart.Items {
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("catalog.GetProduct: %w", err)
		}

		if !product.IsAvailable() || item.Quantity > product.AvailableQuantity {
			return false, nil
		}
	}

	return true, nil
}

// Checkout snapshots the cart lines into the order skeleton. The cart itself
// is left intact: reserving stock, persisting the order and clearing the cart
// on success are the order subsystem's half of the transaction, so a failed
// checkout never loses the cart contents.
func (s *CartService) Checkout(ctx context.Context, cartKey string, order *domain.Order) error {
	cart, err := s.GetCart(ctx, cartKey)
	if err != nil {
		return fmt.Errorf("s.GetCart: %w", err)
	}

	if cart.IsEmpty() {
		return fmt.Errorf("cart[%s]: %w", cartKey, domain.ErrEmptyCart)
	}

	currencyUnit := cart.Items[0].Price.Currency
	for _, item := range cart.Items[1:] {
		if item.Price.Currency != currencyUnit {
			return fmt.Errorf("cart[%s]: %w", cartKey, domain.ErrCurrencyMismatch)
		}
	}

	valid, err := s.validateCart(ctx, cart)
	if err != nil {
		return fmt.Errorf("s.validateCart: %w", err)
	}
	if !valid {
		return fmt.Errorf("cart[%s]: %w", cartKey, domain.ErrCartInvalid)
	}

	order.Items = order.Items[:0]
	for _, item := range cart.Items {
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("catalog.GetProduct: %w", err)
		}

		order.Items = append(order.Items, domain.OrderItem{
			ProductID:     item.ProductID,
			ProductName:   product.Name,
			ProductSKU:    lo.ToPtr(product.SKU),
			UnitPrice:     item.Price, // cart snapshot, not the current price
			OriginalPrice: product.OldPrice,
			Quantity:      item.Quantity,
			Attributes:    item.Attributes,
		})
	}

	order.Subtotal = cart.Subtotal()
	order.Currency = currencyUnit
	order.UserID = cart.UserID

	return nil
}

// ItemCount is the sum of line quantities in the cart.
func (s *CartService) ItemCount(ctx context.Context, cartKey string) (int, error) {
	cart, err := s.GetOrCreate(ctx, cartKey, nil)
	if err != nil {
		return 0, fmt.Errorf("s.GetOrCreate: %w", err)
	}

	return cart.TotalItems(), nil
}

func (s *CartService) CartTotal(ctx context.Context, cartKey string) (decimal.Decimal, error) {
	cart, err := s.GetOrCreate(ctx, cartKey, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("s.GetOrCreate: %w", err)
	}

	return cart.Subtotal(), nil
}
