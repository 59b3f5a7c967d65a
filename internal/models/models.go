package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies what an authenticated user is allowed to do
type Role string

// User roles
const (
	RoleCustomer Role = "CUSTOMER"
	RoleOperator Role = "OPERATOR"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleOperator, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated identity performing an operation
type Actor struct {
	UserID int64 `json:"userId"`
	Role   Role  `json:"role"`
}

// User represents an account of any role
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Contact      string    `db:"contact" json:"contact,omitempty"`
	Address      string    `db:"address" json:"address,omitempty"`
	Role         Role      `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Summary returns the public view of the user embedded in orders
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Email: u.Email, Name: u.Name}
}

// UserSummary is the part of a user exposed alongside an order
type UserSummary struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Product represents a sellable catalog item
type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Type        string          `db:"type" json:"type"`
	Color       string          `db:"color" json:"color,omitempty"`
	Size        string          `db:"size" json:"size,omitempty"`
	Description string          `db:"description" json:"description,omitempty"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Images      StringList      `db:"images" json:"images"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// CartItem is one product line in a customer's cart
type CartItem struct {
	ID        int64    `db:"id" json:"id"`
	UserID    int64    `db:"user_id" json:"userId"`
	ProductID int64    `db:"product_id" json:"productId"`
	Quantity  int      `db:"quantity" json:"quantity"`
	Product   *Product `db:"-" json:"product,omitempty"`
}

// Cart is the mutable basket owned by a single customer
type Cart struct {
	UserID int64           `json:"userId"`
	Items  []CartItem      `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

// Order represents a customer order
type Order struct {
	ID             int64           `db:"id" json:"id"`
	CustomerID     int64           `db:"customer_id" json:"customerId"`
	OperatorID     *int64          `db:"operator_id" json:"operatorId"`
	Status         string          `db:"status" json:"status"`
	PaymentStatus  string          `db:"payment_status" json:"paymentStatus"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"totalAmount"`
	TrackingCode   *string         `db:"tracking_code" json:"trackingCode"`
	IdempotencyKey *string         `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`

	Items    []OrderItem  `db:"-" json:"items"`
	Customer *UserSummary `db:"-" json:"customer,omitempty"`
	Operator *UserSummary `db:"-" json:"operator,omitempty"`
}

// OrderItem is the line-item snapshot taken when the order was placed.
// Price never follows later catalog changes.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"orderId"`
	ProductID int64           `db:"product_id" json:"productId"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Product   *Product        `db:"-" json:"product,omitempty"`
}

// Order statuses
const (
	OrderStatusPending   = "PENDING"
	OrderStatusAccepted  = "ACCEPTED"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// Payment statuses
const (
	PaymentStatusUnpaid = "UNPAID"
	PaymentStatusPaid   = "PAID"
)

var (
	// PendingLoadStatuses are the statuses counted as operator workload
	PendingLoadStatuses = []string{OrderStatusPending, OrderStatusAccepted}

	// OpenStatuses are the non-terminal statuses
	OpenStatuses = []string{OrderStatusPending, OrderStatusAccepted, OrderStatusShipped}
)

// ValidOrderStatus reports whether s is a known order status
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether s is a known payment status
func ValidPaymentStatus(s string) bool {
	return s == PaymentStatusUnpaid || s == PaymentStatusPaid
}

// OrderFilter scopes an order listing. Zero fields match everything.
type OrderFilter struct {
	CustomerID int64
	OperatorID int64
}

// OrderChanges is the set of column updates applied to an order row.
// Nil pointers are left untouched; the Clear flags write NULL.
type OrderChanges struct {
	Status            *string
	PaymentStatus     *string
	TrackingCode      *string
	ClearTrackingCode bool
	OperatorID        *int64
	ClearOperator     bool
}

// Empty reports whether the changes would touch no column
func (c OrderChanges) Empty() bool {
	return c.Status == nil && c.PaymentStatus == nil &&
		c.TrackingCode == nil && !c.ClearTrackingCode &&
		c.OperatorID == nil && !c.ClearOperator
}

// ProductFilter narrows a catalog listing
type ProductFilter struct {
	Type   string
	Search string
}

// OrderEvent is one recorded step in an order's history
type OrderEvent struct {
	ID         int64           `db:"id" json:"id"`
	EventID    string          `db:"event_id" json:"eventId"`
	OrderID    int64           `db:"order_id" json:"orderId"`
	EventType  string          `db:"event_type" json:"eventType"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	OccurredAt time.Time       `db:"occurred_at" json:"occurredAt"`
}

