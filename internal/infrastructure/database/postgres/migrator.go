package postgres

import (
	"embed"
	stdliberrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationFiles holds the schema history compiled into the binary. A
// non-empty sourceOverride (config postgres.migrations) switches to an
// on-disk directory instead, which is how development iterates on schema
// changes without rebuilding.
//
//go:embed migrations/*.sql
var migrationFiles embed.FS

// ─────────────────────────────────────────────────────────────────────────────
// Migration runner
// ─────────────────────────────────────────────────────────────────────────────

// newMigrate builds a migrate instance against the embedded migrations, or
// against sourceOverride when set.
func newMigrate(dbURL, sourceOverride string) (*migrate.Migrate, error) {
	if sourceOverride != "" {
		m, err := migrate.New("file://"+sourceOverride, dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create migrate instance: %w", err)
		}
		return m, nil
	}

	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// RunMigrations applies all pending migrations. Called on every service
// startup; a schema already at the latest version is not an error.
func RunMigrations(dbURL, sourceOverride string) error {
	m, err := newMigrate(dbURL, sourceOverride)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if stdliberrors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// RollbackMigration rolls the schema back by the given number of steps.
// Development and test use only.
func RollbackMigration(dbURL, sourceOverride string, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be greater than 0, got %d", steps)
	}

	m, err := newMigrate(dbURL, sourceOverride)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil {
		if stdliberrors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("no migrations to roll back")
		}
		return fmt.Errorf("failed to rollback %d step(s): %w", steps, err)
	}
	return nil
}

// MigrationStatus returns the applied version and whether the schema is
// dirty. A dirty schema means a migration failed partway and needs manual
// repair before anything else runs.
func MigrationStatus(dbURL, sourceOverride string) (version uint, dirty bool, err error) {
	m, err := newMigrate(dbURL, sourceOverride)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if err != nil {
		if stdliberrors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// ResetDatabase rolls back every migration and re-applies the full set.
// Destructive; development and test environments only.
func ResetDatabase(dbURL, sourceOverride string) error {
	m, err := newMigrate(dbURL, sourceOverride)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !stdliberrors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back all migrations: %w", err)
	}
	if err := m.Up(); err != nil && !stdliberrors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to re-apply migrations: %w", err)
	}
	return nil
}

// ForceMigrationVersion sets the recorded schema version without running
// migrations. Recovery tool for a dirty state; it can desynchronize the
// recorded version from the actual schema.
func ForceMigrationVersion(dbURL, sourceOverride string, version int) error {
	m, err := newMigrate(dbURL, sourceOverride)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}
