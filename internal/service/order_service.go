package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"furniture-store/internal/models"
	"furniture-store/internal/store"
	"furniture-store/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderOptions tunes checkout behavior
type OrderOptions struct {
	// StockGuard rejects checkouts that would drive stock below zero
	StockGuard bool
	// CheckoutLockTTL bounds how long a per-customer checkout lock is held
	CheckoutLockTTL time.Duration
}

// OrderService handles order business logic
type OrderService struct {
	orders    OrderRepository
	carts     CartRepository
	products  ProductRepository
	users     UserRepository
	assigner  *Assigner
	publisher EventPublisher
	locker    Locker
	opts      OrderOptions
	logger    *zap.Logger
}

// NewOrderService creates a new order service. locker may be nil, in
// which case concurrent checkouts of one customer are not serialized.
func NewOrderService(
	orders OrderRepository,
	carts CartRepository,
	products ProductRepository,
	users UserRepository,
	assigner *Assigner,
	publisher EventPublisher,
	locker Locker,
	opts OrderOptions,
) *OrderService {
	if opts.CheckoutLockTTL <= 0 {
		opts.CheckoutLockTTL = 30 * time.Second
	}
	return &OrderService{
		orders:    orders,
		carts:     carts,
		products:  products,
		users:     users,
		assigner:  assigner,
		publisher: publisher,
		locker:    locker,
		opts:      opts,
		logger:    util.GetLogger(),
	}
}

// PlaceOrder turns the customer's cart into an order.
//
// The steps after the order row is written (assign, decrement stock,
// clear cart) run one after another without rollback. If one fails the
// order stays as it is and the error is returned.
func (s *OrderService) PlaceOrder(ctx context.Context, actor models.Actor, idempotencyKey string) (order *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer func() { util.EndSpan(span, err) }()

	if actor.Role != models.RoleCustomer {
		util.ForbiddenAttemptsTotal.WithLabelValues(string(actor.Role), "checkout").Inc()
		return nil, fmt.Errorf("%w: only customers can place orders", ErrForbidden)
	}
	customerID := actor.UserID
	idempotencyKey = strings.TrimSpace(idempotencyKey)

	if idempotencyKey != "" {
		existing, err := s.orders.GetOrderByIdempotencyKey(ctx, customerID, idempotencyKey)
		if err != nil {
			return nil, storeErr(err, "check idempotency")
		}
		if existing != nil {
			s.logger.Info("Duplicate checkout request detected",
				zap.String("idempotency_key", idempotencyKey),
				zap.Int64("order_id", existing.ID))
			return s.loadOrder(ctx, existing)
		}
	}

	release, err := s.lockCheckout(ctx, customerID)
	if err != nil {
		return nil, err
	}
	defer release()

	cartItems, err := s.carts.GetCartItems(ctx, customerID)
	if err != nil {
		return nil, storeErr(err, "load cart")
	}
	if len(cartItems) == 0 {
		util.CheckoutFailuresTotal.WithLabelValues("empty_cart").Inc()
		return nil, ErrEmptyCart
	}

	if s.opts.StockGuard {
		for _, item := range cartItems {
			if item.Product.Quantity < item.Quantity {
				util.CheckoutFailuresTotal.WithLabelValues("insufficient_stock").Inc()
				return nil, fmt.Errorf("%w: product %d has %d left, %d requested",
					ErrInsufficientStock, item.ProductID, item.Product.Quantity, item.Quantity)
			}
		}
	}

	order = &models.Order{
		CustomerID:    customerID,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
		TotalAmount:   CartTotal(cartItems),
		Items:         snapshotItems(cartItems),
	}
	if idempotencyKey != "" {
		order.IdempotencyKey = &idempotencyKey
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, store.ErrDuplicate) && idempotencyKey != "" {
			existing, getErr := s.orders.GetOrderByIdempotencyKey(ctx, customerID, idempotencyKey)
			if getErr == nil && existing != nil {
				return s.loadOrder(ctx, existing)
			}
		}
		util.CheckoutFailuresTotal.WithLabelValues("db_error").Inc()
		return nil, storeErr(err, "create order")
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", customerID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))

	s.publishPlaced(ctx, order)

	operatorID, err := s.assigner.Assign(ctx, order.ID)
	if err != nil {
		s.logger.Error("Operator assignment failed, order left unassigned",
			zap.Int64("order_id", order.ID), zap.Error(err))
	}
	if operatorID == nil {
		util.OrdersUnassignedTotal.Inc()
	}
	order.OperatorID = operatorID

	if err := s.decrementStock(ctx, order); err != nil {
		return nil, err
	}

	if err := s.carts.ClearCart(ctx, customerID); err != nil {
		return nil, storeErr(err, "clear cart")
	}

	return s.GetOrder(ctx, models.Actor{UserID: customerID, Role: models.RoleCustomer}, order.ID)
}

// CartTotal sums price times quantity over the cart's current prices
func CartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func snapshotItems(cartItems []models.CartItem) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(cartItems))
	for _, ci := range cartItems {
		items = append(items, models.OrderItem{
			ProductID: ci.ProductID,
			Quantity:  ci.Quantity,
			Price:     ci.Product.Price,
		})
	}
	return items
}

func (s *OrderService) lockCheckout(ctx context.Context, customerID int64) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	key := fmt.Sprintf("checkout:%d", customerID)
	token, ok, err := s.locker.AcquireLock(ctx, key, s.opts.CheckoutLockTTL)
	if err != nil {
		s.logger.Warn("Checkout lock unavailable, continuing without it",
			zap.Int64("customer_id", customerID), zap.Error(err))
		return noop, nil
	}
	if !ok {
		util.CheckoutFailuresTotal.WithLabelValues("concurrent_checkout").Inc()
		return nil, fmt.Errorf("%w: a checkout is already in progress", ErrConflict)
	}

	return func() {
		if err := s.locker.ReleaseLock(context.Background(), key, token); err != nil {
			s.logger.Warn("Failed to release checkout lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// decrementStock subtracts every item quantity from its product. The
// first failure stops the loop; decrements already done stay applied.
func (s *OrderService) decrementStock(ctx context.Context, order *models.Order) error {
	for _, item := range order.Items {
		var err error
		if s.opts.StockGuard {
			err = s.products.DecrementStockIfAvailable(ctx, item.ProductID, item.Quantity)
		} else {
			err = s.products.DecrementStock(ctx, item.ProductID, item.Quantity)
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, store.ErrNotFound):
			util.StockDecrementFailures.WithLabelValues("product_gone").Inc()
			s.logger.Warn("Product removed before stock decrement",
				zap.Int64("order_id", order.ID), zap.Int64("product_id", item.ProductID))
			continue
		case errors.Is(err, store.ErrInsufficientStock):
			util.StockDecrementFailures.WithLabelValues("insufficient_stock").Inc()
		default:
			util.StockDecrementFailures.WithLabelValues("db_error").Inc()
		}

		s.logger.Error("Stock decrement failed, order kept",
			zap.Int64("order_id", order.ID),
			zap.Int64("product_id", item.ProductID),
			zap.Error(err))
		return storeErr(err, "decrement stock")
	}
	return nil
}

func (s *OrderService) publishPlaced(ctx context.Context, order *models.Order) {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price.StringFixed(2),
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			OrderID:   order.ID,
			Timestamp: time.Now(),
		},
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount.StringFixed(2),
		Items:       items,
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}
}

// UpdateOrder applies the fields of patch the actor is allowed to set.
// Fields outside the actor's permissions are ignored.
func (s *OrderService) UpdateOrder(ctx context.Context, actor models.Actor, orderID int64, patch models.OrderPatch) (order *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrder")
	defer func() { util.EndSpan(span, err) }()

	current, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "get order")
	}

	if !mayUpdateAnything(actor.Role) {
		util.ForbiddenAttemptsTotal.WithLabelValues(string(actor.Role), "update").Inc()
		return nil, fmt.Errorf("%w: role %s cannot update orders", ErrForbidden, actor.Role)
	}
	if actor.Role == models.RoleOperator && !isAssignedTo(current, actor.UserID) {
		util.ForbiddenAttemptsTotal.WithLabelValues(string(actor.Role), "update").Inc()
		return nil, fmt.Errorf("%w: order %d is not assigned to you", ErrForbidden, orderID)
	}

	changes, fields, err := s.buildChanges(ctx, actor.Role, patch)
	if err != nil {
		return nil, err
	}

	if changes.Empty() {
		return s.loadOrder(ctx, current)
	}

	if err := s.orders.UpdateOrder(ctx, orderID, changes); err != nil {
		return nil, storeErr(err, "update order")
	}

	util.OrderUpdatesTotal.WithLabelValues(string(actor.Role)).Inc()
	s.logger.Info("Order updated",
		zap.Int64("order_id", orderID),
		zap.Int64("actor_id", actor.UserID),
		zap.String("actor_role", string(actor.Role)),
		zap.Strings("fields", fields))

	updated, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "reload order")
	}

	event := &models.OrderUpdatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderUpdated,
			OrderID:   orderID,
			Timestamp: time.Now(),
		},
		ActorID:       actor.UserID,
		ActorRole:     actor.Role,
		Status:        updated.Status,
		PaymentStatus: updated.PaymentStatus,
		TrackingCode:  updated.TrackingCode,
		OperatorID:    updated.OperatorID,
		Fields:        fields,
	}
	if err := s.publisher.PublishOrderUpdated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderUpdated event", zap.Error(err))
	}

	return s.loadOrder(ctx, updated)
}

// buildChanges consults the permission table once per field and
// validates only the values that will be applied.
func (s *OrderService) buildChanges(ctx context.Context, role models.Role, patch models.OrderPatch) (models.OrderChanges, []string, error) {
	var (
		changes models.OrderChanges
		fields  []string
	)

	if patch.Status != "" && CanUpdate(role, FieldStatus) {
		status := strings.ToUpper(strings.TrimSpace(patch.Status))
		if !models.ValidOrderStatus(status) {
			return changes, nil, validationErr("unknown order status %q", patch.Status)
		}
		changes.Status = &status
		fields = append(fields, string(FieldStatus))
	}

	if patch.PaymentStatus != "" && CanUpdate(role, FieldPaymentStatus) {
		payment := strings.ToUpper(strings.TrimSpace(patch.PaymentStatus))
		if !models.ValidPaymentStatus(payment) {
			return changes, nil, validationErr("unknown payment status %q", patch.PaymentStatus)
		}
		changes.PaymentStatus = &payment
		fields = append(fields, string(FieldPaymentStatus))
	}

	if patch.TrackingCode.Set && CanUpdate(role, FieldTrackingCode) {
		if patch.TrackingCode.Value == nil || strings.TrimSpace(*patch.TrackingCode.Value) == "" {
			changes.ClearTrackingCode = true
		} else {
			code := strings.TrimSpace(*patch.TrackingCode.Value)
			changes.TrackingCode = &code
		}
		fields = append(fields, string(FieldTrackingCode))
	}

	if patch.OperatorID.Set && CanUpdate(role, FieldOperatorID) {
		if patch.OperatorID.Value == nil {
			changes.ClearOperator = true
		} else {
			operatorID := *patch.OperatorID.Value
			user, err := s.users.GetUserByID(ctx, operatorID)
			if errors.Is(err, store.ErrNotFound) {
				return changes, nil, validationErr("operator %d does not exist", operatorID)
			}
			if err != nil {
				return changes, nil, storeErr(err, "get operator")
			}
			if user.Role != models.RoleOperator {
				return changes, nil, validationErr("user %d is not an operator", operatorID)
			}
			changes.OperatorID = &operatorID
		}
		fields = append(fields, string(FieldOperatorID))
	}

	return changes, fields, nil
}

// GetOrder returns one order if the actor may read it
func (s *OrderService) GetOrder(ctx context.Context, actor models.Actor, orderID int64) (order *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer func() { util.EndSpan(span, err) }()

	order, err = s.readableOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	return s.loadOrder(ctx, order)
}

// readableOrder fetches the order and applies the read rule.
// Existence is checked before access.
func (s *OrderService) readableOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "get order")
	}
	if !canRead(actor, order) {
		util.ForbiddenAttemptsTotal.WithLabelValues(string(actor.Role), "read").Inc()
		return nil, fmt.Errorf("%w: order %d", ErrForbidden, orderID)
	}
	return order, nil
}

// ListOrders returns the orders visible to the actor, newest first
func (s *OrderService) ListOrders(ctx context.Context, actor models.Actor) (orders []models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer func() { util.EndSpan(span, err) }()

	var filter models.OrderFilter
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleOperator:
		filter.OperatorID = actor.UserID
	case models.RoleCustomer:
		filter.CustomerID = actor.UserID
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrForbidden, actor.Role)
	}

	orders, err = s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, storeErr(err, "list orders")
	}
	if err := s.attachRelations(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *OrderService) loadOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	orders := []models.Order{*order}
	if err := s.attachRelations(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// attachRelations fills customer, operator and live product details.
// Users or products deleted since the order was placed are left nil.
func (s *OrderService) attachRelations(ctx context.Context, orders []models.Order) error {
	users := make(map[int64]*models.UserSummary)
	lookupUser := func(id int64) (*models.UserSummary, error) {
		if summary, ok := users[id]; ok {
			return summary, nil
		}
		user, err := s.users.GetUserByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			users[id] = nil
			return nil, nil
		}
		if err != nil {
			return nil, storeErr(err, "load user")
		}
		users[id] = user.Summary()
		return users[id], nil
	}

	seen := make(map[int64]bool)
	var productIDs []int64
	for i := range orders {
		for _, item := range orders[i].Items {
			if !seen[item.ProductID] {
				seen[item.ProductID] = true
				productIDs = append(productIDs, item.ProductID)
			}
		}
	}

	products := make(map[int64]*models.Product)
	if len(productIDs) > 0 {
		list, err := s.products.GetProductsByIDs(ctx, productIDs)
		if err != nil {
			return storeErr(err, "load products")
		}
		for i := range list {
			products[list[i].ID] = &list[i]
		}
	}

	for i := range orders {
		o := &orders[i]
		customer, err := lookupUser(o.CustomerID)
		if err != nil {
			return err
		}
		o.Customer = customer

		if o.OperatorID != nil {
			operator, err := lookupUser(*o.OperatorID)
			if err != nil {
				return err
			}
			o.Operator = operator
		}

		if o.Items == nil {
			o.Items = []models.OrderItem{}
		}
		for j := range o.Items {
			o.Items[j].Product = products[o.Items[j].ProductID]
		}
	}
	return nil
}
