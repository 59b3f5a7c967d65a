package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"furniture-store/internal/models"
	"furniture-store/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderAssigned publishes OrderAssigned event
func (ep *EventPublisher) PublishOrderAssigned(ctx context.Context, event *models.OrderAssignedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderUpdated publishes OrderUpdated event
func (ep *EventPublisher) PublishOrderUpdated(ctx context.Context, event *models.OrderUpdatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// NopPublisher drops events; used when no broker is configured
type NopPublisher struct{}

func (NopPublisher) PublishOrderPlaced(context.Context, *models.OrderPlacedEvent) error {
	return nil
}

func (NopPublisher) PublishOrderAssigned(context.Context, *models.OrderAssignedEvent) error {
	return nil
}

func (NopPublisher) PublishOrderUpdated(context.Context, *models.OrderUpdatedEvent) error {
	return nil
}

// OrderEventFunc receives a decoded event header with the raw message body
type OrderEventFunc func(ctx context.Context, base models.BaseEvent, payload []byte) error

// EventHandler handles incoming events
type EventHandler struct {
	handlers map[string]OrderEventFunc
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{
		handlers: make(map[string]OrderEventFunc),
		logger:   util.GetLogger(),
	}
}

// On registers a handler for one event type
func (eh *EventHandler) On(eventType string, handler OrderEventFunc) {
	eh.handlers[eventType] = handler
}

// OnOrderEvents registers handler for every order lifecycle event type
func (eh *EventHandler) OnOrderEvents(handler OrderEventFunc) {
	for _, t := range []string{
		models.EventTypeOrderPlaced,
		models.EventTypeOrderAssigned,
		models.EventTypeOrderUpdated,
	} {
		eh.On(t, handler)
	}
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("%w: failed to unmarshal base event: %v", ErrSkipMessage, err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	handler, ok := eh.handlers[baseEvent.EventType]
	if !ok {
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
		return nil
	}
	return handler(ctx, baseEvent, msg.Value)
}
