package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"furniture-store/internal/models"
	"furniture-store/internal/service"
	"furniture-store/internal/store"
	"furniture-store/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const notFoundMarker = "notfound"

// loadTimeout bounds a shared load, which outlives any single caller
const loadTimeout = 5 * time.Second

// Cache is the key/value backend the product cache writes through
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// CachedProductRepository serves single-product reads from the cache and
// invalidates on every write, stock changes included. Listings always go
// to the underlying repository.
type CachedProductRepository struct {
	realRepo    service.ProductRepository
	cache       Cache
	ttl         time.Duration
	notFoundTTL time.Duration
	group       singleflight.Group
	logger      *zap.Logger
}

// NewCachedProductRepository wraps realRepo with a read-through cache
func NewCachedProductRepository(realRepo service.ProductRepository, cache Cache, ttl time.Duration) *CachedProductRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProductRepository{
		realRepo:    realRepo,
		cache:       cache,
		ttl:         ttl,
		notFoundTTL: time.Minute,
		logger:      util.GetLogger(),
	}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

// GetProductByID returns the cached product or loads it once per key
// across concurrent callers
func (c *CachedProductRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	key := productKey(id)

	data, found, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("Cache read failed, continuing with DB", zap.String("key", key), zap.Error(err))
	case found && string(data) == notFoundMarker:
		util.ProductCacheRequests.WithLabelValues("hit").Inc()
		return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, id)
	case found:
		var product models.Product
		if err := json.Unmarshal(data, &product); err == nil {
			util.ProductCacheRequests.WithLabelValues("hit").Inc()
			return &product, nil
		}
		c.logger.Warn("Failed to unmarshal cached product, continuing with DB", zap.String("key", key))
	}

	util.ProductCacheRequests.WithLabelValues("miss").Inc()
	ch := c.group.DoChan(strconv.FormatInt(id, 10), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return c.load(loadCtx, id)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		product := *res.Val.(*models.Product)
		return &product, nil
	}
}

func (c *CachedProductRepository) load(ctx context.Context, id int64) (*models.Product, error) {
	key := productKey(id)

	product, err := c.realRepo.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		if setErr := c.cache.Set(ctx, key, []byte(notFoundMarker), c.notFoundTTL); setErr != nil {
			c.logger.Warn("Failed to cache notfound", zap.String("key", key), zap.Error(setErr))
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(product)
	if err != nil {
		c.logger.Warn("Failed to marshal product", zap.Int64("product_id", id), zap.Error(err))
		return product, nil
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache product", zap.String("key", key), zap.Error(err))
	}
	return product, nil
}

func (c *CachedProductRepository) invalidate(ctx context.Context, id int64) {
	if err := c.cache.Del(ctx, productKey(id)); err != nil {
		c.logger.Warn("Failed to delete product cache", zap.Int64("product_id", id), zap.Error(err))
	}
}

// CreateProduct inserts and clears any stale notfound marker for the new id
func (c *CachedProductRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := c.realRepo.CreateProduct(ctx, product); err != nil {
		return err
	}
	c.invalidate(ctx, product.ID)
	return nil
}

func (c *CachedProductRepository) GetProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	return c.realRepo.GetProducts(ctx, filter)
}

func (c *CachedProductRepository) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	return c.realRepo.GetProductsByIDs(ctx, ids)
}

func (c *CachedProductRepository) UpdateProduct(ctx context.Context, product *models.Product) error {
	defer c.invalidate(ctx, product.ID)
	return c.realRepo.UpdateProduct(ctx, product)
}

func (c *CachedProductRepository) DeleteProduct(ctx context.Context, id int64) error {
	defer c.invalidate(ctx, id)
	return c.realRepo.DeleteProduct(ctx, id)
}

func (c *CachedProductRepository) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	defer c.invalidate(ctx, productID)
	return c.realRepo.DecrementStock(ctx, productID, quantity)
}

func (c *CachedProductRepository) DecrementStockIfAvailable(ctx context.Context, productID int64, quantity int) error {
	defer c.invalidate(ctx, productID)
	return c.realRepo.DecrementStockIfAvailable(ctx, productID, quantity)
}
