package repository

import (
	"context"
	"fmt"

	"credential-lifecycle/backend/internal/identity/domain"
	"credential-lifecycle/backend/internal/platform/fault"
)

// ErrDuplicate is returned by Create when the username, email or user id is already taken.
var ErrDuplicate = fmt.Errorf("%w: identity already exists", fault.ErrConflict)

// Repository defines persistence for auth-side credential records.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByUsername(ctx context.Context, username string) (*domain.Identity, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
}
