package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"firefly/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator runs the SQL migrations shipped with the binary.
type Migrator struct {
	db     *sql.DB
	logger logger.Logger
}

func NewMigrator(db *sql.DB, log logger.Logger) *Migrator {
	return &Migrator{db: db, logger: log}
}

func (m *Migrator) instance() (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("could not open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(m.db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("could not create migration driver: %w", err)
	}

	migration, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("could not create migration instance: %w", err)
	}
	return migration, nil
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	migration, err := m.instance()
	if err != nil {
		return err
	}

	if err := migration.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	version, _, _ := migration.Version()
	m.logger.Info("datastore schema is up to date", zap.Uint("version", version))
	return nil
}

// Version reports the current schema version and whether the last
// migration failed halfway.
func (m *Migrator) Version() (uint, bool, error) {
	migration, err := m.instance()
	if err != nil {
		return 0, false, err
	}
	return migration.Version()
}
