package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// newMigrator opens its own connection: closing the migrator closes the
// database handle it was built on.
func newMigrator(dbPath string) (*migrate.Migrate, error) {
	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		migrateDB.Close()
		return nil, fmt.Errorf("create sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// RunMigrations brings the ledger schema up to date and returns the
// resulting schema version.
func RunMigrations(dbPath string) (uint, error) {
	m, err := newMigrator(dbPath)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	before, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("run migrations: %w", err)
	}

	after, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return after, fmt.Errorf("schema version %d is dirty", after)
	}

	if after != before {
		slog.Info("Ledger schema migrated", "from_version", before, "to_version", after, "path", dbPath)
	}
	return after, nil
}

// SchemaVersion reports the applied schema version without migrating.
func SchemaVersion(dbPath string) (uint, bool, error) {
	m, err := newMigrator(dbPath)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}
