package exports

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/file"
)

// migrationsDir resolves the migrations directory relative to this
// source file, so it's found regardless of the process's working
// directory.
func migrationsDir() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "migrations")
}

// runPostgresMigrations applies every pending migration to db. SQLite
// uses a single inline CREATE TABLE IF NOT EXISTS instead of migrate
// here: golang-migrate's sqlite3 driver binds to the cgo mattn/go-sqlite3
// driver, which would pull in a second, cgo-requiring SQLite
// implementation alongside the pure-Go modernc.org/sqlite driver already
// used for the database/sql registration.
func runPostgresMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres migration driver: %w", err)
	}

	sourceURL := fmt.Sprintf("file://%s", migrationsDir())
	sourceInstance, err := (&file.File{}).Open(sourceURL)
	if err != nil {
		return fmt.Errorf("open migrations source: %w", err)
	}

	m, err := migrate.NewWithInstance("file", sourceInstance, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run export registry migrations: %w", err)
	}
	return nil
}
