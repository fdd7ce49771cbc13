// Package db manages the PostgreSQL connection pool built on
// [github.com/jackc/pgx/v5] with goose migrations.
//
// Connect dials with linear-backoff retry so the application survives the
// database coming up after it. Database wraps the pool in the plugin
// lifecycle: connect and migrate on Setup, ping on Health, close on
// Teardown.
//
//	//go:embed migrations/*.sql
//	var migrations embed.FS
//
//	database := db.NewDatabase(db.WithMigrations(migrations))
//
// WithTx runs a function inside a transaction with rollback on error or
// panic.
package db
