// Package migrate runs database migrations from embedded SQL files using golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"credential-lifecycle/backend/internal/db"
)

// Schemas that can be migrated. Each owns its own version table so both can share a database.
const (
	SchemaAuth    = "auth"
	SchemaAccount = "account"
)

// ErrNoChange is returned when Up/Down has nothing to do (already at target version).
var ErrNoChange = migrate.ErrNoChange

// Run applies the migrations of schema in direction ("up" or "down") against dsn.
// Already being at the target version is not an error.
func Run(dsn, schema, direction string) error {
	if strings.TrimSpace(dsn) == "" {
		return errors.New("database URL is not set; set DATABASE_URL or ACCOUNT_DATABASE_URL")
	}
	if schema != SchemaAuth && schema != SchemaAccount {
		return fmt.Errorf("schema must be %s or %s, got %q", SchemaAuth, SchemaAccount, schema)
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}
	target, err := withMigrationsTable(dsn, schema)
	if err != nil {
		return fmt.Errorf("migrate dsn: %w", err)
	}

	sourceDriver, err := iofs.New(db.MigrationFS, "migrations/"+schema)
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, target)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// withMigrationsTable sets x-migrations-table so each schema tracks its own version.
func withMigrationsTable(dsn, schema string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("not a URL: %q", dsn)
	}
	q := u.Query()
	if q.Get("x-migrations-table") == "" {
		q.Set("x-migrations-table", "schema_migrations_"+schema)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
