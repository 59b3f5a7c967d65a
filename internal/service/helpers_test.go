package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"furniture-store/internal/models"
	"furniture-store/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	placed   []*models.OrderPlacedEvent
	assigned []*models.OrderAssignedEvent
	updated  []*models.OrderUpdatedEvent
	// sequence holds every event in publish order
	sequence []interface{}
}

func (p *recordingPublisher) PublishOrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, e)
	p.sequence = append(p.sequence, e)
	return nil
}

func (p *recordingPublisher) PublishOrderAssigned(ctx context.Context, e *models.OrderAssignedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assigned = append(p.assigned, e)
	p.sequence = append(p.sequence, e)
	return nil
}

func (p *recordingPublisher) PublishOrderUpdated(ctx context.Context, e *models.OrderUpdatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updated = append(p.updated, e)
	p.sequence = append(p.sequence, e)
	return nil
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Compare(hash, password string) bool { return hash == "hashed:"+password }

// memLocker is a process-local Locker
type memLocker struct {
	mu    sync.Mutex
	held  map[string]string
	calls int
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]string)}
}

func (l *memLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	token := key + "-token"
	l.held[key] = token
	return token, true, nil
}

func (l *memLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

type fixture struct {
	repo     *store.MemoryStore
	pub      *recordingPublisher
	locker   *memLocker
	assigner *Assigner
	orders   *OrderService
	carts    *CartService
	products *ProductService
	users    *UserService
	history  *HistoryService
	seq      int
}

func newFixture(t *testing.T, opts OrderOptions) *fixture {
	t.Helper()
	repo := store.NewMemoryStore()
	pub := &recordingPublisher{}
	locker := newMemLocker()
	assigner := NewAssigner(repo, pub)
	orders := NewOrderService(repo, repo, repo, repo, assigner, pub, locker, opts)
	return &fixture{
		repo:     repo,
		pub:      pub,
		locker:   locker,
		assigner: assigner,
		orders:   orders,
		carts:    NewCartService(repo, repo),
		products: NewProductService(repo),
		users:    NewUserService(repo, repo, plainHasher{}, "SETUP-CODE"),
		history:  NewHistoryService(repo, orders),
	}
}

func (f *fixture) user(t *testing.T, role models.Role, active bool) *models.User {
	t.Helper()
	f.seq++
	u := &models.User{
		Email:    fmt.Sprintf("%s-%d@example.com", strings.ToLower(string(role)), f.seq),
		Name:     string(role),
		Role:     role,
		IsActive: active,
	}
	require.NoError(t, f.repo.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) product(t *testing.T, name, price string, quantity int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:     name,
		Type:     "chair",
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
	}
	require.NoError(t, f.repo.CreateProduct(context.Background(), p))
	return p
}

func (f *fixture) addToCart(t *testing.T, customer *models.User, product *models.Product, quantity int) {
	t.Helper()
	_, err := f.repo.AddCartItem(context.Background(), customer.ID, product.ID, quantity)
	require.NoError(t, err)
}

// seedOrder writes an order straight to the store, bypassing checkout
func (f *fixture) seedOrder(t *testing.T, customerID int64, operatorID *int64, status string) *models.Order {
	t.Helper()
	o := &models.Order{
		CustomerID:    customerID,
		OperatorID:    operatorID,
		Status:        status,
		PaymentStatus: models.PaymentStatusUnpaid,
		TotalAmount:   decimal.NewFromInt(10),
	}
	require.NoError(t, f.repo.CreateOrder(context.Background(), o))
	return o
}

func actorOf(u *models.User) models.Actor {
	return models.Actor{UserID: u.ID, Role: u.Role}
}

func ptr[T any](v T) *T {
	return &v
}
