package subscription

import "embed"

// Migrations holds the goose migrations for PostgresStore, rooted at MigrationsDir.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that holds the SQL files.
const MigrationsDir = "migrations"

// PostgresTable is the table Migrations creates; readiness probes require it.
const PostgresTable = "subscriptions"
