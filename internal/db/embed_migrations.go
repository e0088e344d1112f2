package db

import "embed"

// MigrationFS embeds the SQL migrations of both services. migrations/auth holds the auth service
// schema (auth_users); migrations/account holds the account service schema (users).
//
//go:embed migrations/auth/*.sql migrations/account/*.sql
var MigrationFS embed.FS
