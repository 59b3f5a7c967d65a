package service

import (
	"context"
	"strings"

	"furniture-store/internal/models"
	"furniture-store/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductService exposes the catalog
type ProductService struct {
	products ProductRepository
	logger   *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(products ProductRepository) *ProductService {
	return &ProductService{
		products: products,
		logger:   util.GetLogger(),
	}
}

// ProductRequest is the admin payload for creating or replacing a product
type ProductRequest struct {
	Name        string           `json:"name" binding:"required"`
	Type        string           `json:"type" binding:"required"`
	Color       string           `json:"color"`
	Size        string           `json:"size"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	Quantity    int              `json:"quantity" binding:"min=0"`
	Images      []string         `json:"images"`
}

func (r ProductRequest) toProduct() (*models.Product, error) {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Type) == "" || r.Price == nil {
		return nil, validationErr("name, type and price are required")
	}
	if r.Price.IsNegative() {
		return nil, validationErr("price must not be negative")
	}
	if r.Quantity < 0 {
		return nil, validationErr("quantity must not be negative")
	}

	images := models.StringList{}
	for _, img := range r.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}

	return &models.Product{
		Name:        strings.TrimSpace(r.Name),
		Type:        strings.TrimSpace(r.Type),
		Color:       r.Color,
		Size:        r.Size,
		Description: r.Description,
		Price:       r.Price.Round(2),
		Quantity:    r.Quantity,
		Images:      images,
	}, nil
}

// ListProducts returns products matching the filter, newest first
func (s *ProductService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	products, err := s.products.GetProducts(ctx, filter)
	if err != nil {
		return nil, storeErr(err, "list products")
	}
	return products, nil
}

// GetProduct returns one product
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "get product")
	}
	return product, nil
}

// CreateProduct adds a product to the catalog
func (s *ProductService) CreateProduct(ctx context.Context, actor models.Actor, req ProductRequest) (*models.Product, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	product, err := req.toProduct()
	if err != nil {
		return nil, err
	}
	if err := s.products.CreateProduct(ctx, product); err != nil {
		return nil, storeErr(err, "create product")
	}

	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// UpdateProduct replaces the catalog fields of a product. Past orders
// keep their snapshot prices.
func (s *ProductService) UpdateProduct(ctx context.Context, actor models.Actor, id int64, req ProductRequest) (*models.Product, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	product, err := req.toProduct()
	if err != nil {
		return nil, err
	}
	product.ID = id
	if err := s.products.UpdateProduct(ctx, product); err != nil {
		return nil, storeErr(err, "update product")
	}

	s.logger.Info("Product updated", zap.Int64("product_id", id))
	return s.GetProduct(ctx, id)
}

// DeleteProduct removes a product from the catalog
func (s *ProductService) DeleteProduct(ctx context.Context, actor models.Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return storeErr(err, "delete product")
	}
	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}
