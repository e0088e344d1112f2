package repository

import (
	"context"
	"database/sql"
	"errors"

	"credential-lifecycle/backend/internal/db"
	"credential-lifecycle/backend/internal/identity/domain"
)

const identityColumns = `id, user_id, username, email, hashed_password, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an identity repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the identity for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.getOne(ctx, `SELECT `+identityColumns+` FROM auth_users WHERE id = $1`, id)
}

// GetByUsername returns the identity with the given username, or nil if not found.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return r.getOne(ctx, `SELECT `+identityColumns+` FROM auth_users WHERE username = $1`, username)
}

// GetByUserID returns the identity bound to the account id userID, or nil if not found.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*domain.Identity, error) {
	return r.getOne(ctx, `SELECT `+identityColumns+` FROM auth_users WHERE user_id = $1`, userID)
}

// Create persists the identity. The identity must have ID and UserID set.
// A unique violation on any key returns ErrDuplicate.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Identity) error {
	if err := i.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_users (`+identityColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		i.ID, i.UserID, i.Username, i.Email, i.PasswordHash, i.CreatedAt,
	)
	if db.IsUniqueViolation(err, "") {
		return ErrDuplicate
	}
	return err
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*domain.Identity, error) {
	var i domain.Identity
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&i.ID, &i.UserID, &i.Username, &i.Email, &i.PasswordHash, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}
