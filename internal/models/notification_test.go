package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firefly/internal/models"
	"firefly/internal/testutil"
)

func TestRenderMessage(t *testing.T) {
	task := &models.Task{
		Name:      "Ship it",
		Requester: models.Worker{FirstName: "Alice", LastName: "Smith"},
	}
	msg, err := models.RenderMessage(`{{.Requester.FirstName}} {{.Requester.LastName}} created a new task "{{.Task.Name}}"`, task)
	require.NoError(t, err)
	assert.Equal(t, `Alice Smith created a new task "Ship it"`, msg)

	_, err = models.RenderMessage(`{{.Nope`, task)
	require.Error(t, err)
}

func TestNotificationQueries(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	alice := testutil.Worker(t, db, "alice", "Alice", "Smith")
	bob := testutil.Worker(t, db, "bob", "Bob", "Jones")
	team := testutil.Team(t, db, "Flaming Testers", alice, alice, bob)
	other := testutil.Team(t, db, "Other Team", alice, alice, bob)
	project := testutil.Project(t, db, team, "Test project")
	otherProject := testutil.Project(t, db, other, "Other project")
	task := testutil.Task(t, db, project, alice, "Ship it", bob)
	otherTask := testutil.Task(t, db, otherProject, alice, "Elsewhere", bob)

	nt, err := db.NotificationTypes.GetOrCreate(ctx, "task_created",
		`{{.Requester.FirstName}} {{.Requester.LastName}} created a new task "{{.Task.Name}}"`)
	require.NoError(t, err)
	require.NoError(t, db.Notifications.CreateBatch(ctx, []models.Notification{
		{UserID: bob.ID, NotificationTypeID: nt.ID, TaskID: task.ID},
		{UserID: bob.ID, NotificationTypeID: nt.ID, TaskID: otherTask.ID},
		{UserID: alice.ID, NotificationTypeID: nt.ID, TaskID: task.ID},
	}))

	all, err := db.Notifications.Unread(ctx, bob.ID, models.NotificationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byTeam, err := db.Notifications.Unread(ctx, bob.ID, models.NotificationFilter{TeamID: team.ID})
	require.NoError(t, err)
	require.Len(t, byTeam, 1)
	assert.Equal(t, task.ID, byTeam[0].TaskID)

	msg, err := byTeam[0].Message()
	require.NoError(t, err)
	assert.Equal(t, `Alice Smith created a new task "Ship it"`, msg)
	assert.Equal(t, team.Slug, byTeam[0].Task.Project.Team.Slug)

	byProject, err := db.Notifications.Unread(ctx, bob.ID, models.NotificationFilter{ProjectID: otherProject.ID})
	require.NoError(t, err)
	require.Len(t, byProject, 1)
	assert.Equal(t, otherTask.ID, byProject[0].TaskID)

	page, err := db.Notifications.Page(ctx, bob.ID, models.NotificationFilter{}, "1", 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	alice := testutil.Worker(t, db, "alice", "Alice", "Smith")
	bob := testutil.Worker(t, db, "bob", "Bob", "Jones")
	team := testutil.Team(t, db, "Flaming Testers", alice, alice, bob)
	project := testutil.Project(t, db, team, "Test project")
	task := testutil.Task(t, db, project, alice, "Ship it", bob)

	nt, err := db.NotificationTypes.GetOrCreate(ctx, "task_created", "x")
	require.NoError(t, err)
	require.NoError(t, db.Notifications.CreateBatch(ctx, []models.Notification{
		{UserID: bob.ID, NotificationTypeID: nt.ID, TaskID: task.ID},
	}))

	unread, err := db.Notifications.Unread(ctx, bob.ID, models.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	n := &unread[0]

	require.NoError(t, db.Notifications.MarkAsRead(ctx, n))
	require.NoError(t, db.Notifications.MarkAsRead(ctx, n))
	assert.True(t, n.IsRead)

	reloaded, err := db.Notifications.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsRead)

	unread, err = db.Notifications.Unread(ctx, bob.ID, models.NotificationFilter{})
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestDeleteReadBefore(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	alice := testutil.Worker(t, db, "alice", "Alice", "Smith")
	bob := testutil.Worker(t, db, "bob", "Bob", "Jones")
	team := testutil.Team(t, db, "Flaming Testers", alice, alice, bob)
	project := testutil.Project(t, db, team, "Test project")
	task := testutil.Task(t, db, project, alice, "Ship it", bob)

	nt, err := db.NotificationTypes.GetOrCreate(ctx, "task_created", "x")
	require.NoError(t, err)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.Notifications.CreateBatch(ctx, []models.Notification{
		{UserID: bob.ID, NotificationTypeID: nt.ID, TaskID: task.ID, SentAt: old, IsRead: true},
		{UserID: bob.ID, NotificationTypeID: nt.ID, TaskID: task.ID, SentAt: old},
		{UserID: bob.ID, NotificationTypeID: nt.ID, TaskID: task.ID, IsRead: true},
	}))

	deleted, err := db.Notifications.DeleteReadBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	left, err := db.Notifications.ForTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, left, 2)
}
