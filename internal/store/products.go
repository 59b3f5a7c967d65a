package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"furniture-store/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateProduct inserts a catalog product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, type, color, size, description, price, quantity, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		product.Name, product.Type, product.Color, product.Size, product.Description,
		product.Price, product.Quantity, product.Images,
	).Scan(&product.ID, &product.CreatedAt)
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves products matching the filter, newest first
func (s *Store) GetProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Type != "" {
		args = append(args, filter.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	query := "SELECT * FROM products"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// UpdateProduct overwrites the mutable catalog fields of a product
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, type = $2, color = $3, size = $4, description = $5,
		    price = $6, quantity = $7, images = $8
		WHERE id = $9`,
		product.Name, product.Type, product.Color, product.Size, product.Description,
		product.Price, product.Quantity, product.Images, product.ID)
	if err != nil {
		return err
	}
	return expectRow(result, "product", product.ID)
}

// DeleteProduct removes a product; cart lines referencing it cascade
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectRow(result, "product", id)
}

// DecrementStock subtracts quantity in a single row update.
// The counter is allowed to go negative.
func (s *Store) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE products SET quantity = quantity - $1 WHERE id = $2",
		quantity, productID)
	if err != nil {
		return err
	}
	return expectRow(result, "product", productID)
}

// DecrementStockIfAvailable subtracts quantity only when enough stock remains
func (s *Store) DecrementStockIfAvailable(ctx context.Context, productID int64, quantity int) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE products SET quantity = quantity - $1 WHERE id = $2 AND quantity >= $1",
		quantity, productID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	if _, err := s.GetProductByID(ctx, productID); err != nil {
		return err
	}
	return fmt.Errorf("%w: product %d", ErrInsufficientStock, productID)
}
