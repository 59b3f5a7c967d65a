package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"furniture-store/internal/models"
)

// MemoryStore keeps every table in process memory. It mirrors the
// behavior of Store, including per-row atomic counters, and is used for
// local development and tests.
type MemoryStore struct {
	mu sync.RWMutex

	users     map[int64]models.User
	products  map[int64]models.Product
	cartItems map[int64]models.CartItem
	orders    map[int64]models.Order
	items     map[int64][]models.OrderItem
	events    map[int64][]models.OrderEvent
	eventIDs  map[string]bool

	nextID int64
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[int64]models.User),
		products:  make(map[int64]models.Product),
		cartItems: make(map[int64]models.CartItem),
		orders:    make(map[int64]models.Order),
		items:     make(map[int64][]models.OrderItem),
		events:    make(map[int64][]models.OrderEvent),
		eventIDs:  make(map[string]bool),
		now:       time.Now,
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// ---- users ----

// CreateUser inserts a user
func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: email %s", ErrDuplicate, user.Email)
		}
	}
	user.ID = m.id()
	user.CreatedAt = m.now()
	m.users[user.ID] = *user
	return nil
}

// GetUserByID retrieves a user by ID
func (m *MemoryStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by normalized email
func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", ErrNotFound, email)
}

// ListUsersByRole returns every user with the role, newest first
func (m *MemoryStore) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := []models.User{}
	for _, u := range m.users {
		if u.Role == role {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

// ListActiveOperators returns active operators in ascending id order
func (m *MemoryStore) ListActiveOperators(ctx context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := []models.User{}
	for _, u := range m.users {
		if u.Role == models.RoleOperator && u.IsActive {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// AdminExists reports whether any ADMIN account exists
func (m *MemoryStore) AdminExists(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Role == models.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

// SetUserActive flips the active flag of a single user
func (m *MemoryStore) SetUserActive(ctx context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	u.IsActive = active
	m.users[id] = u
	return nil
}

// DeleteUser hard-deletes a user and their cart, unassigning their orders
func (m *MemoryStore) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	delete(m.users, id)
	for itemID, ci := range m.cartItems {
		if ci.UserID == id {
			delete(m.cartItems, itemID)
		}
	}
	for orderID, o := range m.orders {
		if o.OperatorID != nil && *o.OperatorID == id {
			o.OperatorID = nil
			m.orders[orderID] = o
		}
	}
	return nil
}

// ---- products ----

// CreateProduct inserts a catalog product
func (m *MemoryStore) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	product.ID = m.id()
	product.CreatedAt = m.now()
	if product.Images == nil {
		product.Images = models.StringList{}
	}
	m.products[product.ID] = *product
	return nil
}

// GetProductByID retrieves a product by ID
func (m *MemoryStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	return &p, nil
}

// GetProducts retrieves products matching the filter, newest first
func (m *MemoryStore) GetProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	products := []models.Product{}
	for _, p := range m.products {
		if filter.Type != "" && p.Type != filter.Type {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID > products[j].ID })
	return products, nil
}

// GetProductsByIDs retrieves multiple products by IDs; unknown ids are skipped
func (m *MemoryStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	products := []models.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

// UpdateProduct overwrites the mutable catalog fields of a product
func (m *MemoryStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.products[product.ID]
	if !ok {
		return fmt.Errorf("%w: product %d", ErrNotFound, product.ID)
	}
	product.CreatedAt = existing.CreatedAt
	m.products[product.ID] = *product
	return nil
}

// DeleteProduct removes a product and the cart lines referencing it
func (m *MemoryStore) DeleteProduct(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	delete(m.products, id)
	for itemID, ci := range m.cartItems {
		if ci.ProductID == id {
			delete(m.cartItems, itemID)
		}
	}
	return nil
}

// DecrementStock subtracts quantity; the counter may go negative
func (m *MemoryStore) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	p.Quantity -= quantity
	m.products[productID] = p
	return nil
}

// DecrementStockIfAvailable subtracts quantity only when enough stock remains
func (m *MemoryStore) DecrementStockIfAvailable(ctx context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	if p.Quantity < quantity {
		return fmt.Errorf("%w: product %d", ErrInsufficientStock, productID)
	}
	p.Quantity -= quantity
	m.products[productID] = p
	return nil
}

// ---- carts ----

// GetCartItems loads a customer's cart lines with the current product
func (m *MemoryStore) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := []models.CartItem{}
	for _, ci := range m.cartItems {
		if ci.UserID != userID {
			continue
		}
		p, ok := m.products[ci.ProductID]
		if !ok {
			continue
		}
		ci.Product = &p
		items = append(items, ci)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// AddCartItem adds quantity of a product, merging with an existing line
func (m *MemoryStore) AddCartItem(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[productID]; !ok {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	for id, ci := range m.cartItems {
		if ci.UserID == userID && ci.ProductID == productID {
			ci.Quantity += quantity
			m.cartItems[id] = ci
			return &ci, nil
		}
	}

	ci := models.CartItem{ID: m.id(), UserID: userID, ProductID: productID, Quantity: quantity}
	m.cartItems[ci.ID] = ci
	return &ci, nil
}

// GetCartItem retrieves a single cart line owned by the user
func (m *MemoryStore) GetCartItem(ctx context.Context, userID, itemID int64) (*models.CartItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ci, ok := m.cartItems[itemID]
	if !ok || ci.UserID != userID {
		return nil, fmt.Errorf("%w: cart item %d", ErrNotFound, itemID)
	}
	return &ci, nil
}

// UpdateCartItemQuantity sets the quantity of a cart line owned by the user
func (m *MemoryStore) UpdateCartItemQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ci, ok := m.cartItems[itemID]
	if !ok || ci.UserID != userID {
		return fmt.Errorf("%w: cart item %d", ErrNotFound, itemID)
	}
	ci.Quantity = quantity
	m.cartItems[itemID] = ci
	return nil
}

// RemoveCartItem deletes a cart line owned by the user
func (m *MemoryStore) RemoveCartItem(ctx context.Context, userID, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ci, ok := m.cartItems[itemID]
	if !ok || ci.UserID != userID {
		return fmt.Errorf("%w: cart item %d", ErrNotFound, itemID)
	}
	delete(m.cartItems, itemID)
	return nil
}

// ClearCart removes every line of the user's cart
func (m *MemoryStore) ClearCart(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, ci := range m.cartItems {
		if ci.UserID == userID {
			delete(m.cartItems, id)
		}
	}
	return nil
}

// ---- orders ----

// CreateOrder stores the order and its item snapshots atomically
func (m *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.IdempotencyKey != nil {
		for _, o := range m.orders {
			if o.CustomerID == order.CustomerID && o.IdempotencyKey != nil &&
				*o.IdempotencyKey == *order.IdempotencyKey {
				return fmt.Errorf("%w: idempotency key", ErrDuplicate)
			}
		}
	}

	now := m.now()
	order.ID = m.id()
	order.CreatedAt = now
	order.UpdatedAt = now

	items := make([]models.OrderItem, len(order.Items))
	for i := range order.Items {
		order.Items[i].ID = m.id()
		order.Items[i].OrderID = order.ID
		items[i] = order.Items[i]
		items[i].Product = nil
	}

	row := *order
	row.Items = nil
	m.orders[order.ID] = row
	m.items[order.ID] = items
	return nil
}

func (m *MemoryStore) loadOrder(o models.Order) models.Order {
	o.OperatorID = copyInt64(o.OperatorID)
	o.TrackingCode = copyString(o.TrackingCode)
	o.Items = append([]models.OrderItem{}, m.items[o.ID]...)
	return o
}

// GetOrderByID retrieves an order with its items
func (m *MemoryStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	o = m.loadOrder(o)
	return &o, nil
}

// GetOrderByIdempotencyKey returns nil, nil when no order has the key
func (m *MemoryStore) GetOrderByIdempotencyKey(ctx context.Context, customerID int64, key string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, o := range m.orders {
		if o.CustomerID == customerID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			o = m.loadOrder(o)
			return &o, nil
		}
	}
	return nil, nil
}

// ListOrders retrieves orders matching the filter, newest first
func (m *MemoryStore) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := []models.Order{}
	for _, o := range m.orders {
		if filter.CustomerID != 0 && o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.OperatorID != 0 && (o.OperatorID == nil || *o.OperatorID != filter.OperatorID) {
			continue
		}
		orders = append(orders, m.loadOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders, nil
}

// UpdateOrder applies the column changes to one order
func (m *MemoryStore) UpdateOrder(ctx context.Context, orderID int64, changes models.OrderChanges) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if changes.Empty() {
		return nil
	}

	if changes.Status != nil {
		o.Status = *changes.Status
	}
	if changes.PaymentStatus != nil {
		o.PaymentStatus = *changes.PaymentStatus
	}
	if changes.ClearTrackingCode {
		o.TrackingCode = nil
	} else if changes.TrackingCode != nil {
		o.TrackingCode = copyString(changes.TrackingCode)
	}
	if changes.ClearOperator {
		o.OperatorID = nil
	} else if changes.OperatorID != nil {
		o.OperatorID = copyInt64(changes.OperatorID)
	}
	o.UpdatedAt = m.now()
	m.orders[orderID] = o
	return nil
}

// CountOrdersByOperator counts orders assigned to the operator with one of the statuses
func (m *MemoryStore) CountOrdersByOperator(ctx context.Context, operatorID int64, statuses []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, o := range m.orders {
		if o.OperatorID == nil || *o.OperatorID != operatorID {
			continue
		}
		for _, s := range statuses {
			if o.Status == s {
				count++
				break
			}
		}
	}
	return count, nil
}

// ---- events ----

// RecordOrderEvent appends an event; false when the event id was seen before
func (m *MemoryStore) RecordOrderEvent(ctx context.Context, event *models.OrderEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.eventIDs[event.EventID] {
		return false, nil
	}
	if _, ok := m.orders[event.OrderID]; !ok {
		return false, fmt.Errorf("%w: order %d", ErrNotFound, event.OrderID)
	}

	ev := *event
	ev.ID = m.id()
	ev.Payload = append(json.RawMessage{}, event.Payload...)
	m.events[event.OrderID] = append(m.events[event.OrderID], ev)
	m.eventIDs[event.EventID] = true
	event.ID = ev.ID
	return true, nil
}

// GetOrderEvents returns an order's history, oldest first
func (m *MemoryStore) GetOrderEvents(ctx context.Context, orderID int64) ([]models.OrderEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := append([]models.OrderEvent{}, m.events[orderID]...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OccurredAt.Before(events[j].OccurredAt)
	})
	return events, nil
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
