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
var migrationFiles embed.FS

// SchemaVersionProperty is the properties row written by the first migration.
const SchemaVersionProperty = "schemaVersion"

// ErrUnversionedStore is returned when an existing store carries no schema
// version. Such a store is corrupt or was not created by tagsink; it is never
// reset silently.
var ErrUnversionedStore = errors.New("store has tables but no schema version")

// Prepare brings the store behind db to the latest schema version.
// A fresh (empty) database is migrated from scratch. An existing database must
// already carry a version; it is migrated forward when behind, and rejected when
// dirty or ahead of this binary.
func Prepare(db *sql.DB) error {
	fresh, err := isFresh(db)
	if err != nil {
		return err
	}

	if !fresh {
		// Check before the migrate driver creates its version table.
		versioned, err := hasTable(db, "schema_migrations")
		if err != nil {
			return err
		}
		if !versioned {
			return ErrUnversionedStore
		}

		m, err := newMigrate(db)
		if err != nil {
			return fmt.Errorf("failed to create migrate instance: %w", err)
		}
		_, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				return ErrUnversionedStore
			}
			return fmt.Errorf("failed to get database version: %w", err)
		}
		if dirty {
			return CheckDBMigrationStatus(db)
		}
	}

	if err := MigrateUp(db); err != nil {
		return err
	}

	if err := CheckDBMigrationStatus(db); err != nil {
		return err
	}

	return checkSchemaVersionProperty(db)
}

// CheckDBMigrationStatus verifies that the database schema is up-to-date.
// Returns nil if the database is at the latest version.
// Returns an error describing any version mismatch or migration issues.
func CheckDBMigrationStatus(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: closing it would close the db connection owned by the caller.

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("database has no schema version (needs migration)")
		}
		return fmt.Errorf("failed to get database version: %w", err)
	}

	if dirty {
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", version)
	}

	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	defer sourceDriver.Close()

	latestVersion, err := getLatestVersion(sourceDriver)
	if err != nil {
		return fmt.Errorf("failed to determine latest version: %w", err)
	}

	if version < latestVersion {
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			version, latestVersion, latestVersion-version)
	}

	if version > latestVersion {
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)",
			version, latestVersion)
	}

	return nil
}

// MigrateUp runs all pending migrations to bring database to latest version.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// newMigrate creates a new migrate instance for the given database.
func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return m, nil
}

// getLatestVersion returns the highest version number available in the source.
func getLatestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}

	latestVersion := version
	for {
		nextVersion, err := src.Next(latestVersion)
		if err != nil {
			// Next fails once there are no more migrations.
			break
		}
		latestVersion = nextVersion
	}

	return latestVersion, nil
}

// isFresh reports whether the database contains no user tables yet.
func isFresh(db *sql.DB) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspecting database: %w", err)
	}
	return n == 0, nil
}

func hasTable(db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("inspecting database: %w", err)
	}
	return n > 0, nil
}

// checkSchemaVersionProperty verifies the version marker written by the first
// migration is still present.
func checkSchemaVersionProperty(db *sql.DB) error {
	var value string
	err := db.QueryRow(`SELECT value FROM properties WHERE name = ?`, SchemaVersionProperty).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUnversionedStore
	}
	if err != nil {
		return fmt.Errorf("reading schema version property: %w", err)
	}
	return nil
}
