// Package scheduler runs the periodic maintenance jobs of the server.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"firefly/internal/logger"
	"firefly/internal/models"
)

// Scheduler wraps cron-based jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger logger.Logger
}

func New(log logger.Logger) *Scheduler {
	cl := cronLogger{log}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		logger: log,
	}
}

// Schedule registers job under a standard cron spec or a descriptor such
// as "@every 1h".
func (s *Scheduler) Schedule(spec string, job func()) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return id, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// NotificationCleanup deletes read notifications once they are older than
// the retention period.
type NotificationCleanup struct {
	db        *models.DB
	retention time.Duration
	logger    logger.Logger
	now       func() time.Time
}

func NewNotificationCleanup(db *models.DB, retention time.Duration, log logger.Logger) *NotificationCleanup {
	return &NotificationCleanup{db: db, retention: retention, logger: log, now: time.Now}
}

func (c *NotificationCleanup) Run(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.retention)
	n, err := c.db.Notifications.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete read notifications: %w", err)
	}
	if n > 0 {
		c.logger.InfoWithContext(ctx, "deleted read notifications",
			zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Register schedules the cleanup on s.
func (c *NotificationCleanup) Register(s *Scheduler, spec string) (cron.EntryID, error) {
	return s.Schedule(spec, func() {
		if _, err := c.Run(context.Background()); err != nil {
			c.logger.Error("notification cleanup failed", zap.Error(err))
		}
	})
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	logger logger.Logger
}

func fields(keysAndValues []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, zap.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return out
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(fields(keysAndValues), zap.Error(err))...)
}
