package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"furniture-store/internal/models"
	"furniture-store/internal/store"
	"furniture-store/internal/util"

	"go.uber.org/zap"
)

const minPasswordLength = 6

// UserService manages accounts, credentials and operators
type UserService struct {
	users     UserRepository
	orders    OrderRepository
	hasher    PasswordHasher
	adminCode string
	logger    *zap.Logger
}

// NewUserService creates a new user service. An empty adminCode
// disables admin self-signup.
func NewUserService(users UserRepository, orders OrderRepository, hasher PasswordHasher, adminCode string) *UserService {
	return &UserService{
		users:     users,
		orders:    orders,
		hasher:    hasher,
		adminCode: adminCode,
		logger:    util.GetLogger(),
	}
}

// SignupRequest is the self-service account creation payload
type SignupRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	Contact   string `json:"contact"`
	Address   string `json:"address"`
	AdminCode string `json:"adminCode"`
}

// OperatorRequest is the admin payload for creating an operator
type OperatorRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// NormalizeEmail trims and lower-cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates a customer account, or the single admin account when a
// valid admin code is given and no admin exists yet.
func (s *UserService) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Signup")
	defer span.End()

	user := &models.User{
		Email:    NormalizeEmail(req.Email),
		Name:     strings.TrimSpace(req.Name),
		Contact:  strings.TrimSpace(req.Contact),
		Address:  strings.TrimSpace(req.Address),
		Role:     models.RoleCustomer,
		IsActive: true,
	}

	if req.AdminCode != "" {
		exists, err := s.users.AdminExists(ctx)
		if err != nil {
			return nil, storeErr(err, "check admin")
		}
		if exists {
			return nil, fmt.Errorf("%w: admin account already exists", ErrForbidden)
		}
		if s.adminCode == "" || subtle.ConstantTimeCompare([]byte(req.AdminCode), []byte(s.adminCode)) != 1 {
			return nil, fmt.Errorf("%w: invalid admin signup code", ErrForbidden)
		}
		user.Role = models.RoleAdmin
		user.Contact = ""
		user.Address = ""
	} else if user.Contact == "" || user.Address == "" {
		return nil, validationErr("contact and address are required for customer signup")
	}

	if err := s.create(ctx, user, req.Password); err != nil {
		return nil, err
	}

	s.logger.Info("Account created",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)))
	return user, nil
}

func (s *UserService) create(ctx context.Context, user *models.User, password string) error {
	if user.Name == "" || user.Email == "" {
		return validationErr("name and email are required")
	}
	if len(password) < minPasswordLength {
		return validationErr("password must be at least %d characters", minPasswordLength)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("%w: user with this email already exists", ErrConflict)
		}
		return storeErr(err, "create user")
	}
	return nil
}

// Authenticate verifies credentials. Unknown email and wrong password
// produce the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Authenticate")
	defer span.End()

	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
	}
	if err != nil {
		return nil, storeErr(err, "get user")
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is deactivated", ErrForbidden)
	}
	return user, nil
}

// GetUser returns an account by id
func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "get user")
	}
	return user, nil
}

// AdminExists reports whether the admin account was already created
func (s *UserService) AdminExists(ctx context.Context) (bool, error) {
	exists, err := s.users.AdminExists(ctx)
	if err != nil {
		return false, storeErr(err, "check admin")
	}
	return exists, nil
}

func requireAdmin(actor models.Actor) error {
	if actor.Role != models.RoleAdmin {
		util.ForbiddenAttemptsTotal.WithLabelValues(string(actor.Role), "admin").Inc()
		return fmt.Errorf("%w: admin only", ErrForbidden)
	}
	return nil
}

// ListOperators returns every operator, newest first
func (s *UserService) ListOperators(ctx context.Context, actor models.Actor) ([]models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsersByRole(ctx, models.RoleOperator)
	if err != nil {
		return nil, storeErr(err, "list operators")
	}
	return users, nil
}

// CreateOperator adds an active operator account
func (s *UserService) CreateOperator(ctx context.Context, actor models.Actor, req OperatorRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.CreateOperator")
	defer span.End()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	user := &models.User{
		Email:    NormalizeEmail(req.Email),
		Name:     strings.TrimSpace(req.Name),
		Role:     models.RoleOperator,
		IsActive: true,
	}
	if err := s.create(ctx, user, req.Password); err != nil {
		return nil, err
	}

	s.logger.Info("Operator created", zap.Int64("operator_id", user.ID), zap.Int64("admin_id", actor.UserID))
	return user, nil
}

// getOperator loads a user and checks it is an operator
func (s *UserService) getOperator(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "get operator")
	}
	if user.Role != models.RoleOperator {
		return nil, fmt.Errorf("%w: operator %d", ErrNotFound, id)
	}
	return user, nil
}

// SetOperatorActive activates or deactivates an operator. Inactive
// operators keep their orders but get no new assignments.
func (s *UserService) SetOperatorActive(ctx context.Context, actor models.Actor, id int64, active bool) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.getOperator(ctx, id); err != nil {
		return nil, err
	}
	if err := s.users.SetUserActive(ctx, id, active); err != nil {
		return nil, storeErr(err, "set operator active")
	}

	s.logger.Info("Operator status changed", zap.Int64("operator_id", id), zap.Bool("active", active))
	return s.getOperator(ctx, id)
}

// DeleteOperator removes an operator with no open orders
func (s *UserService) DeleteOperator(ctx context.Context, actor models.Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if _, err := s.getOperator(ctx, id); err != nil {
		return err
	}

	open, err := s.orders.CountOrdersByOperator(ctx, id, models.OpenStatuses)
	if err != nil {
		return storeErr(err, "count open orders")
	}
	if open > 0 {
		return fmt.Errorf("%w: operator %d still has %d open orders", ErrConflict, id, open)
	}

	if err := s.users.DeleteUser(ctx, id); err != nil {
		return storeErr(err, "delete operator")
	}
	s.logger.Info("Operator deleted", zap.Int64("operator_id", id), zap.Int64("admin_id", actor.UserID))
	return nil
}
