package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"furniture-store/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// CreateOrder inserts the order row and its item snapshots in one transaction
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (customer_id, operator_id, status, payment_status, total_amount, tracking_code, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.CustomerID, order.OperatorID, order.Status, order.PaymentStatus,
		order.TotalAmount, order.TrackingCode, order.IdempotencyKey,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: idempotency key", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			item.OrderID, item.ProductID, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	orders := []models.Order{order}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// GetOrderByIdempotencyKey retrieves a customer's order by idempotency key.
// Returns nil, nil when no such order exists.
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, customerID int64, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE customer_id = $1 AND idempotency_key = $2", customerID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	orders := []models.Order{order}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListOrders retrieves orders matching the filter, newest first
func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.CustomerID != 0 {
		args = append(args, filter.CustomerID)
		conds = append(conds, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if filter.OperatorID != 0 {
		args = append(args, filter.OperatorID)
		conds = append(conds, fmt.Sprintf("operator_id = $%d", len(args)))
	}

	query := "SELECT * FROM orders"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads item snapshots for all given orders in one query
func (s *Store) attachItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []models.OrderItem{}
	}

	query, args, err := sqlx.In("SELECT * FROM order_items WHERE order_id IN (?) ORDER BY id", ids)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}

	for _, item := range items {
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return nil
}

// UpdateOrder applies the given column changes to one order row
func (s *Store) UpdateOrder(ctx context.Context, orderID int64, changes models.OrderChanges) error {
	if changes.Empty() {
		return nil
	}

	var (
		sets []string
		args []interface{}
	)
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if changes.Status != nil {
		set("status", *changes.Status)
	}
	if changes.PaymentStatus != nil {
		set("payment_status", *changes.PaymentStatus)
	}
	if changes.ClearTrackingCode {
		sets = append(sets, "tracking_code = NULL")
	} else if changes.TrackingCode != nil {
		set("tracking_code", *changes.TrackingCode)
	}
	if changes.ClearOperator {
		sets = append(sets, "operator_id = NULL")
	} else if changes.OperatorID != nil {
		set("operator_id", *changes.OperatorID)
	}

	args = append(args, orderID)
	query := fmt.Sprintf("UPDATE orders SET %s, updated_at = NOW() WHERE id = $%d",
		strings.Join(sets, ", "), len(args))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return expectRow(result, "order", orderID)
}

// CountOrdersByOperator counts orders assigned to the operator with one of the statuses
func (s *Store) CountOrdersByOperator(ctx context.Context, operatorID int64, statuses []string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM orders WHERE operator_id = $1 AND status = ANY($2)",
		operatorID, pq.Array(statuses))
	return count, err
}
