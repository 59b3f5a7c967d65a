package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"furniture-store/internal/models"
)

type cartItemRow struct {
	models.CartItem
	P models.Product `db:"product"`
}

// GetCartItems loads a customer's cart lines joined with the current product row
func (s *Store) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	query := `
		SELECT ci.id, ci.user_id, ci.product_id, ci.quantity,
		       p.id          AS "product.id",
		       p.name        AS "product.name",
		       p.type        AS "product.type",
		       p.color       AS "product.color",
		       p.size        AS "product.size",
		       p.description AS "product.description",
		       p.price       AS "product.price",
		       p.quantity    AS "product.quantity",
		       p.images      AS "product.images",
		       p.created_at  AS "product.created_at"
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.id`

	var rows []cartItemRow
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	items := make([]models.CartItem, 0, len(rows))
	for i := range rows {
		item := rows[i].CartItem
		product := rows[i].P
		item.Product = &product
		items = append(items, item)
	}
	return items, nil
}

// AddCartItem adds quantity of a product to the cart, merging with an existing line
func (s *Store) AddCartItem(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error) {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, user_id, product_id, quantity`

	var item models.CartItem
	err := s.db.GetContext(ctx, &item, query, userID, productID, quantity)
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetCartItem retrieves a single cart line owned by the user
func (s *Store) GetCartItem(ctx context.Context, userID, itemID int64) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item,
		"SELECT id, user_id, product_id, quantity FROM cart_items WHERE id = $1 AND user_id = $2",
		itemID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: cart item %d", ErrNotFound, itemID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateCartItemQuantity sets the quantity of a cart line owned by the user
func (s *Store) UpdateCartItemQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE id = $2 AND user_id = $3",
		quantity, itemID, userID)
	if err != nil {
		return err
	}
	return expectRow(result, "cart item", itemID)
}

// RemoveCartItem deletes a cart line owned by the user
func (s *Store) RemoveCartItem(ctx context.Context, userID, itemID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $1 AND user_id = $2", itemID, userID)
	if err != nil {
		return err
	}
	return expectRow(result, "cart item", itemID)
}

// ClearCart removes every line of the user's cart
func (s *Store) ClearCart(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	return err
}
