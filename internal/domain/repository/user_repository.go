package repository

import (
	"context"
	"errors"

	"github.com/platformlab/auth-service/internal/domain/entity"
)

// ErrDuplicateEmail is returned by Create when the (case-normalized) email
// already exists.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// UserRepository defines the persistence contract for users.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

// AuditRepository records authentication actions.
type AuditRepository interface {
	Insert(ctx context.Context, a *entity.AuditLog) error
}
