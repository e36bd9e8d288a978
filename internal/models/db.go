package models

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CommitHook runs after the enclosing transaction commits.
type CommitHook func(ctx context.Context)

// DB holds the database connection and all model managers
type DB struct {
	*gorm.DB
	Positions         *PositionManager
	Workers           *WorkerManager
	Teams             *TeamManager
	Projects          *ProjectManager
	TaskTypes         *TaskTypeManager
	Tags              *TagManager
	Tasks             *TaskManager
	NotificationTypes *NotificationTypeManager
	Notifications     *NotificationManager
	Attachments       *AttachmentManager

	// hooks is set only on a DB bound to a transaction.
	hooks *[]CommitHook
}

// NewDB opens a connection through dialector and initializes all managers.
func NewDB(dialector gorm.Dialector, gormLogger logger.Interface) (*DB, error) {
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newDB(gormDB, nil), nil
}

func newDB(gormDB *gorm.DB, hooks *[]CommitHook) *DB {
	return &DB{
		DB:                gormDB,
		Positions:         NewPositionManager(gormDB),
		Workers:           NewWorkerManager(gormDB),
		Teams:             NewTeamManager(gormDB),
		Projects:          NewProjectManager(gormDB),
		TaskTypes:         NewTaskTypeManager(gormDB),
		Tags:              NewTagManager(gormDB),
		Tasks:             NewTaskManager(gormDB),
		NotificationTypes: NewNotificationTypeManager(gormDB),
		Notifications:     NewNotificationManager(gormDB),
		Attachments:       NewAttachmentManager(gormDB),
		hooks:             hooks,
	}
}

// AutoMigrate runs GORM auto-migration for all models
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(All()...)
}

// InTransaction reports whether db is bound to an open transaction.
func (db *DB) InTransaction() bool {
	return db.hooks != nil
}

// Transaction runs fn inside a database transaction. Hooks registered through
// OnCommit on the transactional DB run after the outermost commit, in
// registration order, and are discarded on rollback. Nested calls use a
// savepoint and share the outer hook list.
func (db *DB) Transaction(ctx context.Context, fn func(tx *DB) error) error {
	if db.hooks != nil {
		mark := len(*db.hooks)
		err := db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(newDB(tx, db.hooks))
		})
		if err != nil {
			*db.hooks = (*db.hooks)[:mark]
		}
		return err
	}

	var hooks []CommitHook
	err := db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newDB(tx, &hooks))
	})
	if err != nil {
		return err
	}

	for _, hook := range hooks {
		hook(ctx)
	}
	return nil
}

// OnCommit schedules hook to run once the current transaction commits.
// Outside a transaction the hook runs immediately.
func (db *DB) OnCommit(ctx context.Context, hook CommitHook) {
	if db.hooks == nil {
		hook(ctx)
		return
	}
	*db.hooks = append(*db.hooks, hook)
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetObjectOr404 retrieves an object or returns ErrNotFound (similar to Django's get_object_or_404)
func GetObjectOr404[T any](db *gorm.DB, conditions ...interface{}) (*T, error) {
	var obj T
	err := db.First(&obj, conditions...).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &obj, nil
}

// Exists checks if a record exists (similar to Django's exists())
func Exists[T any](db *gorm.DB, query interface{}, args ...interface{}) (bool, error) {
	var count int64
	err := db.Model(new(T)).Where(query, args...).Count(&count).Error
	return count > 0, err
}

// Count returns the count of records (similar to Django's count())
func Count[T any](db *gorm.DB, conditions ...interface{}) (int64, error) {
	var count int64
	query := db.Model(new(T))
	if len(conditions) > 0 {
		query = query.Where(conditions[0], conditions[1:]...)
	}
	err := query.Count(&count).Error
	return count, err
}
