// Package migrations holds the audit database schema and applies it with
// golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var files embed.FS

// ErrNoSchema is returned by Check for a database that was never migrated.
var ErrNoSchema = errors.New("audit database has no schema version (needs migration)")

// Up applies all pending migrations. An up-to-date database is not an error.
// The caller keeps ownership of db.
func Up(db *sql.DB) error {
	m, err := open(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating audit database: %w", err)
	}
	return nil
}

// Check verifies that db is clean and at the newest embedded version.
func Check(db *sql.DB) error {
	m, err := open(db)
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return ErrNoSchema
		}
		return fmt.Errorf("reading audit schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("audit database is dirty at version %d", version)
	}

	src, err := iofs.New(files, "files")
	if err != nil {
		return fmt.Errorf("reading embedded migrations: %w", err)
	}
	defer src.Close()

	latest, err := latestVersion(src)
	if err != nil {
		return fmt.Errorf("finding latest migration: %w", err)
	}
	if version != latest {
		return fmt.Errorf("audit database is at version %d, binary expects %d", version, latest)
	}
	return nil
}

// open builds a migrate instance over db. It is never closed because closing
// it would close db.
func open(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(files, "files")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

func latestVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}
