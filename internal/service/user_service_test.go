package service

import (
	"context"
	"testing"

	"furniture-store/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customerSignup(email string) SignupRequest {
	return SignupRequest{
		Name:     "Ana",
		Email:    email,
		Password: "secret123",
		Contact:  "+55 11 99999-0000",
		Address:  "Rua das Flores, 10",
	}
}

func TestSignup_Customer(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	ctx := context.Background()

	user, err := f.users.Signup(ctx, customerSignup("  Ana@Example.COM "))
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.True(t, user.IsActive)
	assert.Equal(t, "hashed:secret123", user.PasswordHash)

	_, err = f.users.Signup(ctx, customerSignup("ana@example.com"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t, OrderOptions{})

	noAddress := customerSignup("a@example.com")
	noAddress.Address = " "
	_, err := f.users.Signup(context.Background(), noAddress)
	assert.ErrorIs(t, err, ErrValidation)

	shortPassword := customerSignup("b@example.com")
	shortPassword.Password = "abc"
	_, err = f.users.Signup(context.Background(), shortPassword)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSignup_Admin(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	ctx := context.Background()

	wrong := SignupRequest{Name: "Root", Email: "root@example.com", Password: "secret123", AdminCode: "nope"}
	_, err := f.users.Signup(ctx, wrong)
	assert.ErrorIs(t, err, ErrForbidden)

	exists, err := f.users.AdminExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	req := wrong
	req.AdminCode = "SETUP-CODE"
	admin, err := f.users.Signup(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	exists, err = f.users.AdminExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	req.Email = "second@example.com"
	_, err = f.users.Signup(ctx, req)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSignup_AdminDisabledWithoutCode(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	users := NewUserService(f.repo, f.repo, plainHasher{}, "")

	_, err := users.Signup(context.Background(),
		SignupRequest{Name: "Root", Email: "root@example.com", Password: "secret123", AdminCode: "anything"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	ctx := context.Background()
	_, err := f.users.Signup(ctx, customerSignup("login@example.com"))
	require.NoError(t, err)

	user, err := f.users.Authenticate(ctx, "LOGIN@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "login@example.com", user.Email)

	_, err = f.users.Authenticate(ctx, "login@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.users.Authenticate(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, f.repo.SetUserActive(ctx, user.ID, false))
	_, err = f.users.Authenticate(ctx, "login@example.com", "secret123")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestOperatorManagement(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	ctx := context.Background()
	admin := actorOf(f.user(t, models.RoleAdmin, true))
	customer := f.user(t, models.RoleCustomer, true)

	_, err := f.users.CreateOperator(ctx, actorOf(customer),
		OperatorRequest{Name: "Op", Email: "op@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrForbidden)

	op, err := f.users.CreateOperator(ctx, admin,
		OperatorRequest{Name: "Op", Email: "OP@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleOperator, op.Role)
	assert.True(t, op.IsActive)

	operators, err := f.users.ListOperators(ctx, admin)
	require.NoError(t, err)
	require.Len(t, operators, 1)
	assert.Equal(t, op.ID, operators[0].ID)

	deactivated, err := f.users.SetOperatorActive(ctx, admin, op.ID, false)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	loads, err := f.assigner.PendingLoads(ctx)
	require.NoError(t, err)
	assert.Empty(t, loads)

	_, err = f.users.SetOperatorActive(ctx, admin, customer.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteOperator(t *testing.T) {
	f := newFixture(t, OrderOptions{})
	ctx := context.Background()
	admin := actorOf(f.user(t, models.RoleAdmin, true))
	customer := f.user(t, models.RoleCustomer, true)
	op := f.user(t, models.RoleOperator, true)
	open := f.seedOrder(t, customer.ID, &op.ID, models.OrderStatusShipped)
	done := f.seedOrder(t, customer.ID, &op.ID, models.OrderStatusDelivered)

	err := f.users.DeleteOperator(ctx, admin, op.ID)
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, f.repo.UpdateOrder(ctx, open.ID, models.OrderChanges{Status: ptr(models.OrderStatusCancelled)}))
	require.NoError(t, f.users.DeleteOperator(ctx, admin, op.ID))

	_, err = f.users.GetUser(ctx, op.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	kept, err := f.orders.GetOrder(ctx, admin, done.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.OperatorID)
	assert.Nil(t, kept.Operator)

	err = f.users.DeleteOperator(ctx, admin, customer.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
