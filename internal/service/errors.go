package service

import (
	"errors"
	"fmt"

	"furniture-store/internal/store"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrPersistence       = errors.New("persistence failure")
)

// storeErr translates a repository error into the service taxonomy.
// Anything the store does not classify becomes ErrPersistence.
func storeErr(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w: %v", op, ErrNotFound, err)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	case errors.Is(err, store.ErrInsufficientStock):
		return fmt.Errorf("%s: %w: %v", op, ErrInsufficientStock, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrPersistence, err)
	}
}

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
