package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"firefly/internal/logger"
	"firefly/internal/models"
	"firefly/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	s := New(logger.NewNoopLogger())
	_, err := s.Schedule("every now and then", func() {})
	require.Error(t, err)
}

func TestJobsRunAndStop(t *testing.T) {
	s := New(logger.NewNoopLogger())

	var runs atomic.Int32
	_, err := s.Schedule("@every 1s", func() { runs.Add(1) })
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestPanickingJobIsRecovered(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	s := New(&logger.ZapLogger{Logger: zap.New(core)})

	_, err := s.Schedule("@every 1s", func() { panic("boom") })
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return logs.FilterMessage("cron: panic").Len() > 0 }, 5*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestNotificationCleanup(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	alice := testutil.Worker(t, db, "alice", "Alice", "Smith")
	bob := testutil.Worker(t, db, "bob", "Bob", "Jones")
	team := testutil.Team(t, db, "Flaming Testers", alice, alice, bob)
	task := testutil.Task(t, db, testutil.Project(t, db, team, "Test project"), alice, "Ship it", bob)

	nt, err := db.NotificationTypes.GetOrCreate(ctx, "task_created", `{{.Task.Name}}`)
	require.NoError(t, err)
	require.NoError(t, db.Notifications.CreateBatch(ctx, []models.Notification{
		{UserID: bob.ID, NotificationTypeID: nt.ID, TaskID: task.ID},
		{UserID: alice.ID, NotificationTypeID: nt.ID, TaskID: task.ID},
		{UserID: bob.ID, NotificationTypeID: nt.ID, TaskID: task.ID},
	}))
	all, err := db.Notifications.ForTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)

	old := time.Now().Add(-48 * time.Hour)
	// read and old, read and recent, unread and old
	require.NoError(t, db.Model(&models.Notification{}).Where("id = ?", all[0].ID).
		Updates(map[string]interface{}{"is_read": true, "sent_at": old}).Error)
	require.NoError(t, db.Notifications.MarkAsRead(ctx, &all[1]))
	require.NoError(t, db.Model(&models.Notification{}).Where("id = ?", all[2].ID).
		Update("sent_at", old).Error)

	cleanup := NewNotificationCleanup(db, 24*time.Hour, logger.NewNoopLogger())
	n, err := cleanup.Run(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	left, err := db.Notifications.ForTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, left, 2)

	s := New(logger.NewNoopLogger())
	_, err = cleanup.Register(s, "@daily")
	require.NoError(t, err)
}
