// Package db owns the database schema. Migrations are embedded into the
// binary so a deployment needs no migration files on disk: the runner is
// invoked once at startup, after the connection pool is verified, and the
// process refuses to serve if the schema cannot be brought up to date.
package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// RunMigrations applies all pending migrations to the given database.
// A database that is already up to date is not an error.
func RunMigrations(dbConn *sql.DB) error {
	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	dbDriver, err := postgres.WithInstance(dbConn, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	// m is not closed here: closing it would close the shared db connection.
	return nil
}
