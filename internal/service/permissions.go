package service

import "furniture-store/internal/models"

// OrderField is a mutable order attribute named in an update patch
type OrderField string

// Patchable order fields
const (
	FieldStatus        OrderField = "status"
	FieldPaymentStatus OrderField = "paymentStatus"
	FieldTrackingCode  OrderField = "trackingCode"
	FieldOperatorID    OrderField = "operatorId"
)

// orderFieldPermissions is the role x field table for order updates.
// Operators are additionally restricted to orders assigned to them.
var orderFieldPermissions = map[models.Role]map[OrderField]bool{
	models.RoleCustomer: {},
	models.RoleOperator: {
		FieldStatus:       true,
		FieldTrackingCode: true,
	},
	models.RoleAdmin: {
		FieldStatus:        true,
		FieldPaymentStatus: true,
		FieldTrackingCode:  true,
		FieldOperatorID:    true,
	},
}

// CanUpdate reports whether role may set field on an order it has access to
func CanUpdate(role models.Role, field OrderField) bool {
	return orderFieldPermissions[role][field]
}

// mayUpdateAnything reports whether role has at least one writable field
func mayUpdateAnything(role models.Role) bool {
	for _, allowed := range orderFieldPermissions[role] {
		if allowed {
			return true
		}
	}
	return false
}

// canRead is the order read rule shared by get and history
func canRead(actor models.Actor, order *models.Order) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCustomer:
		return order.CustomerID == actor.UserID
	case models.RoleOperator:
		return isAssignedTo(order, actor.UserID)
	}
	return false
}

func isAssignedTo(order *models.Order, operatorID int64) bool {
	return order.OperatorID != nil && *order.OperatorID == operatorID
}
