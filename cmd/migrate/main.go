// migrate runs DB migrations from embedded SQL; go run ./cmd/migrate -schema auth -direction up.
// -schema auth migrates DATABASE_URL, -schema account migrates ACCOUNT_DATABASE_URL.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"credential-lifecycle/backend/internal/config"
	"credential-lifecycle/backend/internal/db/migrate"
)

func main() {
	schema := flag.String("schema", migrate.SchemaAuth, "Schema to migrate: auth or account")
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	dsn := cfg.DatabaseURL
	if *schema == migrate.SchemaAccount {
		dsn = cfg.AccountDatabaseURL
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "database URL is not set; set DATABASE_URL (auth) or ACCOUNT_DATABASE_URL (account)")
		os.Exit(1)
	}

	if err := migrate.Run(dsn, *schema, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			// Already at target version; success.
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
