package models

import "time"

// Event types
const (
	EventTypeOrderPlaced   = "ORDER_PLACED"
	EventTypeOrderAssigned = "ORDER_ASSIGNED"
	EventTypeOrderUpdated  = "ORDER_UPDATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	OrderID   int64     `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when a checkout produced an order. It always
// precedes the order's OrderAssignedEvent.
type OrderPlacedEvent struct {
	BaseEvent
	CustomerID  int64           `json:"customer_id"`
	TotalAmount string          `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderAssignedEvent published when an operator takes ownership of an order
type OrderAssignedEvent struct {
	BaseEvent
	OperatorID  int64 `json:"operator_id"`
	PendingLoad int   `json:"pending_load"`
}

// OrderUpdatedEvent published after an actor changed an order
type OrderUpdatedEvent struct {
	BaseEvent
	ActorID       int64    `json:"actor_id"`
	ActorRole     Role     `json:"actor_role"`
	Status        string   `json:"status"`
	PaymentStatus string   `json:"payment_status"`
	TrackingCode  *string  `json:"tracking_code,omitempty"`
	OperatorID    *int64   `json:"operator_id,omitempty"`
	Fields        []string `json:"fields"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}
