package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"furniture-store/internal/models"
)

// CreateUser inserts a user. Email uniqueness violations return ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, name, password_hash, contact, address, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := s.db.QueryRowxContext(ctx, query,
		user.Email, user.Name, user.PasswordHash, user.Contact, user.Address,
		user.Role, user.IsActive,
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email %s", ErrDuplicate, user.Email)
	}
	return err
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by normalized email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE email = $1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, email)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsersByRole returns every user with the role, newest first
func (s *Store) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	users := []models.User{}
	err := s.db.SelectContext(ctx, &users,
		"SELECT * FROM users WHERE role = $1 ORDER BY created_at DESC, id DESC", role)
	return users, err
}

// ListActiveOperators returns active operators in ascending id order.
// The order is stable so assignment tie-breaks are deterministic.
func (s *Store) ListActiveOperators(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := s.db.SelectContext(ctx, &users,
		"SELECT * FROM users WHERE role = $1 AND is_active = TRUE ORDER BY id",
		models.RoleOperator)
	return users, err
}

// AdminExists reports whether any ADMIN account exists
func (s *Store) AdminExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM users WHERE role = $1)", models.RoleAdmin)
	return exists, err
}

// SetUserActive flips the active flag of a single user row
func (s *Store) SetUserActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET is_active = $1 WHERE id = $2", active, id)
	if err != nil {
		return err
	}
	return expectRow(result, "user", id)
}

// DeleteUser hard-deletes a user
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectRow(result, "user", id)
}

func expectRow(result sql.Result, kind string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
	}
	return nil
}
