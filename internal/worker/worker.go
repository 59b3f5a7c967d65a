package worker

import (
	"context"
	"errors"
	"fmt"

	"furniture-store/internal/broker"
	"furniture-store/internal/models"
	"furniture-store/internal/service"
	"furniture-store/internal/util"

	"go.uber.org/zap"
)

// EventRecorder appends a consumed event to an order's history
type EventRecorder interface {
	RecordEvent(ctx context.Context, base models.BaseEvent, payload []byte) error
}

// HistoryWorker consumes order events and records them as order history
type HistoryWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewHistoryWorker creates a new history worker
func NewHistoryWorker(consumer *broker.Consumer, recorder EventRecorder) *HistoryWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderEvents(recordHandler(recorder))

	return &HistoryWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// recordHandler turns permanent failures into skips so one bad event
// does not stall the partition
func recordHandler(recorder EventRecorder) broker.OrderEventFunc {
	return func(ctx context.Context, base models.BaseEvent, payload []byte) error {
		err := recorder.RecordEvent(ctx, base, payload)
		if errors.Is(err, service.ErrValidation) || errors.Is(err, service.ErrNotFound) {
			return fmt.Errorf("%w: %v", broker.ErrSkipMessage, err)
		}
		return err
	}
}

// Start starts the worker
func (w *HistoryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting history worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *HistoryWorker) Stop() error {
	w.logger.Info("Stopping history worker")
	return w.consumer.Close()
}
