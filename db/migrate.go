// Package db holds the schema migrations and applies them with golang-migrate.
package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func newMigrate(conn *sql.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := migratepgx.WithInstance(conn, &migratepgx.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// Migrate applies every pending migration against dbURL and returns the
// resulting schema version. A database left dirty by an interrupted run is
// reported, not forced.
func Migrate(dbURL string) (uint, error) {
	conn, err := sql.Open("pgx", dbURL)
	if err != nil {
		return 0, fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	m, err := newMigrate(conn)
	if err != nil {
		return 0, err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("database is dirty at version %d; fix it and force the version before migrating", version)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Printf("[migrate] schema up to date at version %d", version)
			return version, nil
		}
		return version, fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to get updated migration version: %w", err)
	}
	log.Printf("[migrate] migrated from version %d to %d", version, newVersion)
	return newVersion, nil
}

// Rollback reverts the last steps migrations. Used by cmd/migrate only; the
// server never migrates down.
func Rollback(dbURL string, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be > 0, got %d", steps)
	}
	conn, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	m, err := newMigrate(conn)
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil {
		return fmt.Errorf("failed to roll back %d migration(s): %w", steps, err)
	}
	log.Printf("[migrate] rolled back %d migration(s)", steps)
	return nil
}
