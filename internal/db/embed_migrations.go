package db

import "embed"

// MigrationFS embeds the SQL migration files. The migrate runner applies
// them via cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
