package db

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"linkbio/pkg/config"
)

// Migrate applies all pending up migrations from migrationsPath (a
// golang-migrate source URL, e.g. "file://migrations"). A database already
// at the latest version is not an error.
func Migrate(migrationsPath string, cfg config.Config) error {
	m, err := migrate.New(migrationsPath, cfg.MigrationDSN())
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return err
	}
	return nil
}

// Rollback undoes the most recent migration. Dev tooling only.
func Rollback(migrationsPath string, cfg config.Config) error {
	m, err := migrate.New(migrationsPath, cfg.MigrationDSN())
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return err
	}
	return nil
}
