package service

import (
	"context"
	"time"

	"furniture-store/internal/models"
)

// UserRepository is the user directory
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)
	ListActiveOperators(ctx context.Context) ([]models.User, error)
	AdminExists(ctx context.Context) (bool, error)
	SetUserActive(ctx context.Context, id int64, active bool) error
	DeleteUser(ctx context.Context, id int64) error
}

// ProductRepository is the product catalog
type ProductRepository interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	DecrementStockIfAvailable(ctx context.Context, productID int64, quantity int) error
}

// CartRepository stores per-customer carts
type CartRepository interface {
	GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error)
	AddCartItem(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error)
	GetCartItem(ctx context.Context, userID, itemID int64) (*models.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, userID, itemID int64, quantity int) error
	RemoveCartItem(ctx context.Context, userID, itemID int64) error
	ClearCart(ctx context.Context, userID int64) error
}

// OrderRepository stores orders and their item snapshots
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, customerID int64, key string) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	UpdateOrder(ctx context.Context, orderID int64, changes models.OrderChanges) error
	CountOrdersByOperator(ctx context.Context, operatorID int64, statuses []string) (int, error)
}

// EventRepository stores the order history
type EventRepository interface {
	RecordOrderEvent(ctx context.Context, event *models.OrderEvent) (bool, error)
	GetOrderEvents(ctx context.Context, orderID int64) ([]models.OrderEvent, error)
}

// Repository is everything the services need from the durable store
type Repository interface {
	UserRepository
	ProductRepository
	CartRepository
	OrderRepository
	EventRepository
}

// EventPublisher publishes order lifecycle events
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderAssigned(ctx context.Context, event *models.OrderAssignedEvent) error
	PublishOrderUpdated(ctx context.Context, event *models.OrderUpdatedEvent) error
}

// Locker hands out short-lived named locks. AcquireLock returns a token
// that must be passed back to ReleaseLock.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// PasswordHasher hashes and verifies account passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}
