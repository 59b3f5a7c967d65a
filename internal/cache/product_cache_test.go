package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"furniture-store/internal/models"
	"furniture-store/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return nil, false, errors.New("connection refused")
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeCache) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeCache) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func TestGetProductByID_ReadThrough(t *testing.T) {
	mem := store.NewMemoryStore()
	fc := newFakeCache()
	repo := NewCachedProductRepository(mem, fc, time.Minute)
	ctx := context.Background()

	p := &models.Product{Name: "Sofa", Type: "sofa", Price: decimal.RequireFromString("499.90"), Quantity: 4}
	require.NoError(t, repo.CreateProduct(ctx, p))

	got, err := repo.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sofa", got.Name)
	assert.True(t, fc.has(productKey(p.ID)))

	// served from cache even after the row changes underneath
	require.NoError(t, mem.DecrementStock(ctx, p.ID, 1))
	got, err = repo.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("499.90")))
}

func TestDecrementInvalidates(t *testing.T) {
	mem := store.NewMemoryStore()
	fc := newFakeCache()
	repo := NewCachedProductRepository(mem, fc, time.Minute)
	ctx := context.Background()

	p := &models.Product{Name: "Desk", Price: decimal.NewFromInt(120), Quantity: 2}
	require.NoError(t, repo.CreateProduct(ctx, p))
	_, err := repo.GetProductByID(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, repo.DecrementStock(ctx, p.ID, 2))
	assert.False(t, fc.has(productKey(p.ID)))

	got, err := repo.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
}

func TestNotFoundIsCached(t *testing.T) {
	mem := store.NewMemoryStore()
	fc := newFakeCache()
	repo := NewCachedProductRepository(mem, fc, time.Minute)
	ctx := context.Background()

	_, err := repo.GetProductByID(ctx, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, notFoundMarker, string(fc.data[productKey(42)]))

	_, err = repo.GetProductByID(ctx, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCacheFailureFallsBackToRepository(t *testing.T) {
	mem := store.NewMemoryStore()
	fc := newFakeCache()
	fc.failGet = true
	repo := NewCachedProductRepository(mem, fc, time.Minute)
	ctx := context.Background()

	p := &models.Product{Name: "Lamp", Price: decimal.NewFromInt(30), Quantity: 1}
	require.NoError(t, mem.CreateProduct(ctx, p))

	got, err := repo.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", got.Name)
}

// blockingRepo holds product reads until release is closed
type blockingRepo struct {
	*store.MemoryStore
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (b *blockingRepo) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.MemoryStore.GetProductByID(ctx, id)
}

func TestCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	mem := store.NewMemoryStore()
	p := &models.Product{Name: "Bench", Price: decimal.NewFromInt(75), Quantity: 3}
	require.NoError(t, mem.CreateProduct(context.Background(), p))

	slow := &blockingRepo{MemoryStore: mem, started: make(chan struct{}), release: make(chan struct{})}
	fc := newFakeCache()
	repo := NewCachedProductRepository(slow, fc, time.Minute)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := repo.GetProductByID(firstCtx, p.ID)
		firstErr <- err
	}()
	<-slow.started

	secondDone := make(chan *models.Product, 1)
	secondErr := make(chan error, 1)
	go func() {
		got, err := repo.GetProductByID(context.Background(), p.ID)
		secondErr <- err
		secondDone <- got
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(slow.release)
	require.NoError(t, <-secondErr)
	got := <-secondDone
	assert.Equal(t, "Bench", got.Name)
	assert.True(t, fc.has(productKey(p.ID)))
}
