package db

import "embed"

// MigrationFS holds the schema migrations (users, verification_tokens, sessions, audit_logs)
// applied by cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
