// Package database opens the datastore behind the model managers and
// keeps its schema up to date.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"firefly/internal/config"
	"firefly/internal/logger"
	"firefly/internal/models"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health(ctx context.Context) map[string]string

	// Models returns the model managers bound to the connection.
	Models() *models.DB

	// Migrate brings the schema to the latest version.
	Migrate(ctx context.Context) error

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error
}

type service struct {
	db     *models.DB
	sqlDB  *sql.DB
	engine string
	logger logger.Logger
}

// New connects to the datastore described by cfg.
func New(cfg config.DatastoreConfig, log logger.Logger) (Service, error) {
	var dialector gorm.Dialector
	switch cfg.Engine {
	case config.EnginePostgres:
		sqlDB, err := sql.Open("pgx", cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		dialector = postgres.New(postgres.Config{Conn: sqlDB})
	case config.EngineSQLite:
		dialector = sqlite.Open(cfg.URI)
	default:
		return nil, fmt.Errorf("unknown datastore engine: %s", cfg.Engine)
	}

	db, err := models.NewDB(dialector, NewGormLogger(log))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("could not get sql.DB from gorm: %w", err)
	}

	log.Info("connected to datastore", zap.String("engine", cfg.Engine))
	return &service{db: db, sqlDB: sqlDB, engine: cfg.Engine, logger: log}, nil
}

func (s *service) Models() *models.DB {
	return s.db
}

// Migrate runs the embedded SQL migrations on postgres and GORM
// auto-migration on sqlite.
func (s *service) Migrate(ctx context.Context) error {
	if s.engine == config.EngineSQLite {
		return s.db.WithContext(ctx).AutoMigrate(models.All()...)
	}
	return NewMigrator(s.sqlDB, s.logger).Up()
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		s.logger.ErrorWithContext(ctx, "datastore ping failed", zap.Error(err))
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"
	stats["engine"] = s.engine

	dbStats := s.sqlDB.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.OpenConnections > 40 {
		stats["message"] = "The database is experiencing heavy load."
	}
	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	s.logger.Info("disconnected from datastore", zap.String("engine", s.engine))
	return s.sqlDB.Close()
}
