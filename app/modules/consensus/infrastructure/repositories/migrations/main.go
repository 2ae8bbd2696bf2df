package consensusmigrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the consensus module migrations.
var Migrations = migrate.NewMigrations()
