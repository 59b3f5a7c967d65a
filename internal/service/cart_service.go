package service

import (
	"context"
	"fmt"

	"furniture-store/internal/models"
	"furniture-store/internal/util"

	"go.uber.org/zap"
)

// CartService manages the customer's basket
type CartService struct {
	carts    CartRepository
	products ProductRepository
	logger   *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(carts CartRepository, products ProductRepository) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		logger:   util.GetLogger(),
	}
}

func requireCustomer(actor models.Actor) error {
	if actor.Role != models.RoleCustomer {
		util.ForbiddenAttemptsTotal.WithLabelValues(string(actor.Role), "cart").Inc()
		return fmt.Errorf("%w: only customers have a cart", ErrForbidden)
	}
	return nil
}

// GetCart returns the actor's cart priced at current product prices
func (s *CartService) GetCart(ctx context.Context, actor models.Actor) (*models.Cart, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}

	items, err := s.carts.GetCartItems(ctx, actor.UserID)
	if err != nil {
		return nil, storeErr(err, "load cart")
	}
	return &models.Cart{
		UserID: actor.UserID,
		Items:  items,
		Total:  CartTotal(items),
	}, nil
}

// AddItem puts quantity of a product in the cart, merging with an
// existing line for the same product
func (s *CartService) AddItem(ctx context.Context, actor models.Actor, productID int64, quantity int) (*models.Cart, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, validationErr("quantity must be at least 1")
	}
	if _, err := s.products.GetProductByID(ctx, productID); err != nil {
		return nil, storeErr(err, "get product")
	}

	if _, err := s.carts.AddCartItem(ctx, actor.UserID, productID, quantity); err != nil {
		return nil, storeErr(err, "add cart item")
	}

	s.logger.Debug("Cart item added",
		zap.Int64("user_id", actor.UserID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity))
	return s.GetCart(ctx, actor)
}

// UpdateItem sets the quantity of one of the actor's cart lines
func (s *CartService) UpdateItem(ctx context.Context, actor models.Actor, itemID int64, quantity int) (*models.Cart, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, validationErr("quantity must be at least 1")
	}
	if err := s.carts.UpdateCartItemQuantity(ctx, actor.UserID, itemID, quantity); err != nil {
		return nil, storeErr(err, "update cart item")
	}
	return s.GetCart(ctx, actor)
}

// RemoveItem deletes one of the actor's cart lines
func (s *CartService) RemoveItem(ctx context.Context, actor models.Actor, itemID int64) (*models.Cart, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}
	if err := s.carts.RemoveCartItem(ctx, actor.UserID, itemID); err != nil {
		return nil, storeErr(err, "remove cart item")
	}
	return s.GetCart(ctx, actor)
}
