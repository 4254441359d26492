// Package db carries the embedded SQL migrations and the runner that
// applies them with golang-migrate.
package db

import "embed"

// MigrationFS embeds the SQL migration files under migrations/.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
