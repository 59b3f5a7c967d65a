package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"furniture-store/internal/models"
	"furniture-store/internal/util"

	"go.uber.org/zap"
)

// HistoryService records consumed order events and serves them back
type HistoryService struct {
	events EventRepository
	orders *OrderService
	logger *zap.Logger
}

// NewHistoryService creates a new history service
func NewHistoryService(events EventRepository, orders *OrderService) *HistoryService {
	return &HistoryService{
		events: events,
		orders: orders,
		logger: util.GetLogger(),
	}
}

// RecordEvent appends one lifecycle event to the order's history.
// Redelivered events are recognized by id and skipped.
func (h *HistoryService) RecordEvent(ctx context.Context, base models.BaseEvent, payload []byte) error {
	ctx, span := util.StartSpan(ctx, "HistoryService.RecordEvent")
	defer span.End()

	if base.EventID == "" || base.OrderID == 0 {
		util.OrderEventsRecorded.WithLabelValues(base.EventType, "invalid").Inc()
		return fmt.Errorf("%w: event without id or order", ErrValidation)
	}
	if !json.Valid(payload) {
		util.OrderEventsRecorded.WithLabelValues(base.EventType, "invalid").Inc()
		return fmt.Errorf("%w: event %s payload is not JSON", ErrValidation, base.EventID)
	}

	occurredAt := base.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	inserted, err := h.events.RecordOrderEvent(ctx, &models.OrderEvent{
		EventID:    base.EventID,
		OrderID:    base.OrderID,
		EventType:  base.EventType,
		Payload:    json.RawMessage(payload),
		OccurredAt: occurredAt,
	})
	if err != nil {
		util.OrderEventsRecorded.WithLabelValues(base.EventType, "error").Inc()
		return storeErr(err, "record order event")
	}

	if !inserted {
		util.OrderEventsRecorded.WithLabelValues(base.EventType, "duplicate").Inc()
		h.logger.Info("Event already processed", zap.String("event_id", base.EventID))
		return nil
	}

	util.OrderEventsRecorded.WithLabelValues(base.EventType, "recorded").Inc()
	h.logger.Debug("Order event recorded",
		zap.String("event_id", base.EventID),
		zap.String("event_type", base.EventType),
		zap.Int64("order_id", base.OrderID))
	return nil
}

// OrderHistory returns the recorded events of an order, oldest first.
// The order read rule applies.
func (h *HistoryService) OrderHistory(ctx context.Context, actor models.Actor, orderID int64) (events []models.OrderEvent, err error) {
	ctx, span := util.StartSpan(ctx, "HistoryService.OrderHistory")
	defer func() { util.EndSpan(span, err) }()

	if _, err := h.orders.readableOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}

	events, err = h.events.GetOrderEvents(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, "get order events")
	}
	return events, nil
}
