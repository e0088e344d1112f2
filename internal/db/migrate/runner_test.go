package migrate

import (
	"errors"
	"net/url"
	"os"
	"strings"
	"testing"
)

func TestRun_RejectsBadArguments(t *testing.T) {
	tests := []struct {
		name, dsn, schema, direction, wantErr string
	}{
		{"empty dsn", "", SchemaAuth, "up", "not set"},
		{"whitespace dsn", "   ", SchemaAuth, "up", "not set"},
		{"unknown schema", "postgres://localhost/db", "billing", "up", "schema"},
		{"bad direction", "postgres://localhost/db", SchemaAuth, "UP", "direction"},
		{"empty direction", "postgres://localhost/db", SchemaAccount, "", "direction"},
		{"not a url", "invalid-dsn", SchemaAuth, "up", "dsn"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Run(tc.dsn, tc.schema, tc.direction)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Run = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestWithMigrationsTable(t *testing.T) {
	got, err := withMigrationsTable("postgres://u:p@localhost:5432/auth?sslmode=disable", SchemaAuth)
	if err != nil {
		t.Fatalf("withMigrationsTable: %v", err)
	}
	u, _ := url.Parse(got)
	if u.Query().Get("x-migrations-table") != "schema_migrations_auth" || u.Query().Get("sslmode") != "disable" {
		t.Errorf("query = %v", u.Query())
	}

	kept, err := withMigrationsTable("postgres://localhost/db?x-migrations-table=custom", SchemaAccount)
	if err != nil {
		t.Fatalf("withMigrationsTable: %v", err)
	}
	if u, _ := url.Parse(kept); u.Query().Get("x-migrations-table") != "custom" {
		t.Errorf("explicit table overwritten: %s", kept)
	}
}

func TestRun_UpDown(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	for _, schema := range []string{SchemaAuth, SchemaAccount} {
		if err := Run(dsn, schema, "up"); err != nil {
			t.Fatalf("up %s: %v", schema, err)
		}
		if err := Run(dsn, schema, "up"); err != nil {
			t.Errorf("second up %s should be a no-op: %v", schema, err)
		}
		if err := Run(dsn, schema, "down"); err != nil && !errors.Is(err, ErrNoChange) {
			t.Errorf("down %s: %v", schema, err)
		}
	}
}
