package store

import (
	"context"
	"fmt"

	"furniture-store/internal/models"
)

// RecordOrderEvent appends an event to the order history.
// Returns false when the event id was already recorded.
func (s *Store) RecordOrderEvent(ctx context.Context, event *models.OrderEvent) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO order_events (event_id, order_id, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING`,
		event.EventID, event.OrderID, event.EventType, string(event.Payload), event.OccurredAt)
	if isForeignKeyViolation(err) {
		return false, fmt.Errorf("%w: order %d", ErrNotFound, event.OrderID)
	}
	if err != nil {
		return false, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetOrderEvents returns an order's history, oldest first
func (s *Store) GetOrderEvents(ctx context.Context, orderID int64) ([]models.OrderEvent, error) {
	events := []models.OrderEvent{}
	err := s.db.SelectContext(ctx, &events,
		"SELECT * FROM order_events WHERE order_id = $1 ORDER BY occurred_at, id", orderID)
	return events, err
}
