package repository

import (
	"context"
	"fmt"

	"credential-lifecycle/backend/internal/platform/fault"
	"credential-lifecycle/backend/internal/user/domain"
)

// ErrDuplicate is returned by Create when the username or email is already taken.
var ErrDuplicate = fmt.Errorf("%w: user already exists", fault.ErrConflict)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}
