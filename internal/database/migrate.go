package database

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// newMigrator builds a migrate instance from DATABASE_URL and the migrations
// directory (MIGRATIONS_PATH, defaulting to ./migrations). Callers own Close.
func newMigrator() (*migrate.Migrate, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	source := "file://migrations"
	if p := os.Getenv("MIGRATIONS_PATH"); p != "" {
		source = "file://" + p
	}

	m, err := migrate.New(source, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations applies all pending migrations at startup.
//
// A dirty schema version is an error, not something to force past: it means
// a previous run died mid-migration and the schema needs a human look before
// the server may touch it.
func RunMigrations() error {
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema is dirty at version %d; resolve manually before starting", version)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Printf("✅ Schema up to date at version %d", version)
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, _ = m.Version()
	log.Printf("✅ Migrations applied, schema now at version %d", version)
	return nil
}

// MigrationVersion reports the current schema version and dirty flag.
func MigrationVersion() (uint, bool, error) {
	m, err := newMigrator()
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	return m.Version()
}

// RollbackMigration undoes the most recent migration. Operator tooling only;
// the server never calls this.
func RollbackMigration() error {
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	version, _, _ := m.Version()
	log.Printf("✅ Rolled back, schema now at version %d", version)
	return nil
}
