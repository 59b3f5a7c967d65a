package service

import (
	"context"
	"testing"

	"furniture-store/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanUpdate(t *testing.T) {
	tests := []struct {
		role  models.Role
		field OrderField
		want  bool
	}{
		{models.RoleCustomer, FieldStatus, false},
		{models.RoleCustomer, FieldPaymentStatus, false},
		{models.RoleCustomer, FieldTrackingCode, false},
		{models.RoleCustomer, FieldOperatorID, false},
		{models.RoleOperator, FieldStatus, true},
		{models.RoleOperator, FieldPaymentStatus, false},
		{models.RoleOperator, FieldTrackingCode, true},
		{models.RoleOperator, FieldOperatorID, false},
		{models.RoleAdmin, FieldStatus, true},
		{models.RoleAdmin, FieldPaymentStatus, true},
		{models.RoleAdmin, FieldTrackingCode, true},
		{models.RoleAdmin, FieldOperatorID, true},
		{models.Role("GUEST"), FieldStatus, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.field), func(t *testing.T) {
			assert.Equal(t, tt.want, CanUpdate(tt.role, tt.field))
		})
	}
}

// fullPatch touches every patchable field
func fullPatch(operatorID int64) models.OrderPatch {
	return models.OrderPatch{
		Status:        models.OrderStatusShipped,
		PaymentStatus: models.PaymentStatusPaid,
		TrackingCode:  models.OptionalString{Set: true, Value: ptr("TRK-42")},
		OperatorID:    models.OptionalID{Set: true, Value: ptr(operatorID)},
	}
}

func TestUpdateOrder_AppliesOnlyPermittedFields(t *testing.T) {
	for _, role := range []models.Role{models.RoleOperator, models.RoleAdmin} {
		t.Run(string(role), func(t *testing.T) {
			f := newFixture(t, OrderOptions{})
			ctx := context.Background()
			customer := f.user(t, models.RoleCustomer, true)
			assigned := f.user(t, models.RoleOperator, true)
			target := f.user(t, models.RoleOperator, true)
			order := f.seedOrder(t, customer.ID, &assigned.ID, models.OrderStatusPending)

			actor := actorOf(assigned)
			if role == models.RoleAdmin {
				actor = actorOf(f.user(t, models.RoleAdmin, true))
			}

			_, err := f.orders.UpdateOrder(ctx, actor, order.ID, fullPatch(target.ID))
			require.NoError(t, err)

			stored, err := f.repo.GetOrderByID(ctx, order.ID)
			require.NoError(t, err)

			if CanUpdate(role, FieldStatus) {
				assert.Equal(t, models.OrderStatusShipped, stored.Status)
			} else {
				assert.Equal(t, models.OrderStatusPending, stored.Status)
			}
			if CanUpdate(role, FieldPaymentStatus) {
				assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
			} else {
				assert.Equal(t, models.PaymentStatusUnpaid, stored.PaymentStatus)
			}
			if CanUpdate(role, FieldTrackingCode) {
				require.NotNil(t, stored.TrackingCode)
				assert.Equal(t, "TRK-42", *stored.TrackingCode)
			} else {
				assert.Nil(t, stored.TrackingCode)
			}
			require.NotNil(t, stored.OperatorID)
			if CanUpdate(role, FieldOperatorID) {
				assert.Equal(t, target.ID, *stored.OperatorID)
			} else {
				assert.Equal(t, assigned.ID, *stored.OperatorID)
			}

			require.Len(t, f.pub.updated, 1)
			var want []string
			for _, field := range []OrderField{FieldStatus, FieldPaymentStatus, FieldTrackingCode, FieldOperatorID} {
				if CanUpdate(role, field) {
					want = append(want, string(field))
				}
			}
			assert.Equal(t, want, f.pub.updated[0].Fields)
			assert.Equal(t, role, f.pub.updated[0].ActorRole)
		})
	}
}

func TestUpdateOrder_CustomerForbidden(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	customer := f.user(t, models.RoleCustomer, true)
	order := f.seedOrder(t, customer.ID, nil, models.OrderStatusPending)

	_, err := f.orders.UpdateOrder(context.Background(), actorOf(customer), order.ID,
		models.OrderPatch{Status: models.OrderStatusCancelled})
	assert.ErrorIs(t, err, ErrForbidden)

	stored, err := f.repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	assert.Empty(t, f.pub.updated)
}

func TestUpdateOrder_UnassignedOperatorForbidden(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	customer := f.user(t, models.RoleCustomer, true)
	opX := f.user(t, models.RoleOperator, true)
	opY := f.user(t, models.RoleOperator, true)
	order := f.seedOrder(t, customer.ID, &opX.ID, models.OrderStatusPending)
	unassigned := f.seedOrder(t, customer.ID, nil, models.OrderStatusPending)

	_, err := f.orders.UpdateOrder(context.Background(), actorOf(opY), order.ID,
		models.OrderPatch{Status: models.OrderStatusAccepted})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.orders.UpdateOrder(context.Background(), actorOf(opY), unassigned.ID,
		models.OrderPatch{Status: models.OrderStatusAccepted})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.orders.UpdateOrder(context.Background(), actorOf(opX), order.ID,
		models.OrderPatch{Status: models.OrderStatusAccepted})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAccepted, updated.Status)
}

func TestUpdateOrder_MissingOrder(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	customer := f.user(t, models.RoleCustomer, true)

	_, err := f.orders.UpdateOrder(context.Background(), actorOf(customer), 4242,
		models.OrderPatch{Status: models.OrderStatusShipped})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateOrder_AdminReassignGrantsAccess(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	ctx := context.Background()
	customer := f.user(t, models.RoleCustomer, true)
	admin := f.user(t, models.RoleAdmin, true)
	opX := f.user(t, models.RoleOperator, true)
	opY := f.user(t, models.RoleOperator, true)
	order := f.seedOrder(t, customer.ID, &opX.ID, models.OrderStatusPending)

	_, err := f.orders.GetOrder(ctx, actorOf(opY), order.ID)
	require.ErrorIs(t, err, ErrForbidden)

	updated, err := f.orders.UpdateOrder(ctx, actorOf(admin), order.ID,
		models.OrderPatch{OperatorID: models.OptionalID{Set: true, Value: ptr(opY.ID)}})
	require.NoError(t, err)
	require.NotNil(t, updated.OperatorID)
	assert.Equal(t, opY.ID, *updated.OperatorID)
	require.NotNil(t, updated.Operator)
	assert.Equal(t, opY.ID, updated.Operator.ID)

	got, err := f.orders.GetOrder(ctx, actorOf(opY), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = f.orders.GetOrder(ctx, actorOf(opX), order.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateOrder_AdminClearsFields(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	ctx := context.Background()
	customer := f.user(t, models.RoleCustomer, true)
	admin := f.user(t, models.RoleAdmin, true)
	op := f.user(t, models.RoleOperator, true)
	order := f.seedOrder(t, customer.ID, &op.ID, models.OrderStatusShipped)
	require.NoError(t, f.repo.UpdateOrder(ctx, order.ID, models.OrderChanges{TrackingCode: ptr("TRK-1")}))

	updated, err := f.orders.UpdateOrder(ctx, actorOf(admin), order.ID, models.OrderPatch{
		TrackingCode: models.OptionalString{Set: true, Value: ptr("  ")},
		OperatorID:   models.OptionalID{Set: true},
	})
	require.NoError(t, err)
	assert.Nil(t, updated.TrackingCode)
	assert.Nil(t, updated.OperatorID)
	assert.Nil(t, updated.Operator)
}

func TestUpdateOrder_Validation(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	customer := f.user(t, models.RoleCustomer, true)
	admin := f.user(t, models.RoleAdmin, true)
	op := f.user(t, models.RoleOperator, true)
	order := f.seedOrder(t, customer.ID, &op.ID, models.OrderStatusPending)

	tests := []struct {
		name  string
		actor models.Actor
		patch models.OrderPatch
	}{
		{"unknown status", actorOf(admin), models.OrderPatch{Status: "LOST"}},
		{"unknown payment status", actorOf(admin), models.OrderPatch{PaymentStatus: "REFUNDED"}},
		{"operator id is a customer", actorOf(admin),
			models.OrderPatch{OperatorID: models.OptionalID{Set: true, Value: ptr(customer.ID)}}},
		{"operator id does not exist", actorOf(admin),
			models.OrderPatch{OperatorID: models.OptionalID{Set: true, Value: ptr(int64(9999))}}},
		{"operator sends unknown status", actorOf(op), models.OrderPatch{Status: "teleported"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.UpdateOrder(context.Background(), tt.actor, order.ID, tt.patch)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	stored, err := f.repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	assert.Equal(t, op.ID, *stored.OperatorID)
	assert.Empty(t, f.pub.updated)
}

func TestUpdateOrder_OperatorIgnoredFieldsSkipValidation(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	customer := f.user(t, models.RoleCustomer, true)
	op := f.user(t, models.RoleOperator, true)
	order := f.seedOrder(t, customer.ID, &op.ID, models.OrderStatusPending)

	got, err := f.orders.UpdateOrder(context.Background(), actorOf(op), order.ID,
		models.OrderPatch{PaymentStatus: "bogus"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusUnpaid, got.PaymentStatus)
	assert.Empty(t, f.pub.updated)
}

func TestUpdateOrder_StatusIsNormalized(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	customer := f.user(t, models.RoleCustomer, true)
	op := f.user(t, models.RoleOperator, true)
	order := f.seedOrder(t, customer.ID, &op.ID, models.OrderStatusPending)

	got, err := f.orders.UpdateOrder(context.Background(), actorOf(op), order.ID,
		models.OrderPatch{Status: " delivered "})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)
}
