package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"furniture-store/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEvent(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	ctx := context.Background()
	customer := f.user(t, models.RoleCustomer, true)
	order := f.seedOrder(t, customer.ID, nil, models.OrderStatusPending)

	placedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	base := models.BaseEvent{
		EventID:   "evt-1",
		EventType: models.EventTypeOrderPlaced,
		OrderID:   order.ID,
		Timestamp: placedAt,
	}
	payload := []byte(`{"totalAmount":"10.00"}`)

	require.NoError(t, f.history.RecordEvent(ctx, base, payload))
	require.NoError(t, f.history.RecordEvent(ctx, base, payload))

	events, err := f.history.OrderHistory(ctx, actorOf(customer), order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].EventID)
	assert.Equal(t, models.EventTypeOrderPlaced, events[0].EventType)
	assert.True(t, placedAt.Equal(events[0].OccurredAt))
	assert.JSONEq(t, string(payload), string(events[0].Payload))
}

func TestOrderHistory_CheckoutEventsInPublishOrder(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	ctx := context.Background()
	customer := f.user(t, models.RoleCustomer, true)
	f.user(t, models.RoleOperator, true)
	f.addToCart(t, customer, f.product(t, "Wardrobe", "540.00", 2), 1)

	order, err := f.orders.PlaceOrder(ctx, actorOf(customer), "")
	require.NoError(t, err)
	require.NotNil(t, order.OperatorID)

	require.Len(t, f.pub.sequence, 2)
	for _, published := range f.pub.sequence {
		payload, err := json.Marshal(published)
		require.NoError(t, err)
		var base models.BaseEvent
		require.NoError(t, json.Unmarshal(payload, &base))
		require.NoError(t, f.history.RecordEvent(ctx, base, payload))
	}

	events, err := f.history.OrderHistory(ctx, actorOf(customer), order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventTypeOrderPlaced, events[0].EventType)
	assert.Equal(t, models.EventTypeOrderAssigned, events[1].EventType)
	assert.False(t, events[1].OccurredAt.Before(events[0].OccurredAt))
}

func TestRecordEvent_Rejects(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	ctx := context.Background()
	customer := f.user(t, models.RoleCustomer, true)
	order := f.seedOrder(t, customer.ID, nil, models.OrderStatusPending)

	tests := []struct {
		name    string
		base    models.BaseEvent
		payload string
		wantErr error
	}{
		{"missing id", models.BaseEvent{OrderID: order.ID}, `{}`, ErrValidation},
		{"missing order id", models.BaseEvent{EventID: "e"}, `{}`, ErrValidation},
		{"bad payload", models.BaseEvent{EventID: "e", OrderID: order.ID}, `{oops`, ErrValidation},
		{"unknown order", models.BaseEvent{EventID: "e", OrderID: 777}, `{}`, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.history.RecordEvent(ctx, tt.base, []byte(tt.payload))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOrderHistory_ReadRule(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	ctx := context.Background()
	owner := f.user(t, models.RoleCustomer, true)
	stranger := f.user(t, models.RoleCustomer, true)
	op := f.user(t, models.RoleOperator, true)
	otherOp := f.user(t, models.RoleOperator, true)
	order := f.seedOrder(t, owner.ID, &op.ID, models.OrderStatusPending)

	first := models.BaseEvent{EventID: "a", EventType: models.EventTypeOrderPlaced, OrderID: order.ID,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	second := models.BaseEvent{EventID: "b", EventType: models.EventTypeOrderAssigned, OrderID: order.ID,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)}
	require.NoError(t, f.history.RecordEvent(ctx, second, []byte(`{}`)))
	require.NoError(t, f.history.RecordEvent(ctx, first, []byte(`{}`)))

	events, err := f.history.OrderHistory(ctx, actorOf(op), order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].EventID)
	assert.Equal(t, "b", events[1].EventID)

	_, err = f.history.OrderHistory(ctx, actorOf(stranger), order.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.history.OrderHistory(ctx, actorOf(otherOp), order.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.history.OrderHistory(ctx, actorOf(owner), order.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}
