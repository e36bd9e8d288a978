package models_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firefly/internal/models"
	"firefly/internal/testutil"
)

func TestDeleteWorkerPromotesFirstRemainingMember(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	alice := testutil.Worker(t, db, "alice", "Alice", "Smith")
	bob := testutil.Worker(t, db, "bob", "Bob", "Jones")
	carol := testutil.Worker(t, db, "carol", "Carol", "White")
	team := testutil.Team(t, db, "Flaming Testers", alice, alice, carol, bob)

	require.NoError(t, db.Workers.Delete(ctx, alice.ID))

	reloaded, err := db.Teams.GetBySlug(ctx, team.Slug)
	require.NoError(t, err)
	require.NotNil(t, reloaded.FounderID)
	assert.Equal(t, bob.ID, *reloaded.FounderID)
	assert.False(t, reloaded.HasMember(alice.ID))
}

func TestDeleteWorkerDeletesTeamWithoutOtherMembers(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	alice := testutil.Worker(t, db, "alice", "Alice", "Smith")
	team := testutil.Team(t, db, "Solo", alice, alice)
	project := testutil.Project(t, db, team, "Lonely project")
	task := testutil.Task(t, db, project, alice, "Nobody cares")

	require.NoError(t, db.Workers.Delete(ctx, alice.ID))

	_, err := db.Teams.Get(ctx, team.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = db.Projects.Get(ctx, project.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = db.Tasks.Get(ctx, task.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteWorkerHandsRequestedTasksToDeletedUser(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	alice := testutil.Worker(t, db, "alice", "Alice", "Smith")
	bob := testutil.Worker(t, db, "bob", "Bob", "Jones")
	team := testutil.Team(t, db, "Flaming Testers", alice, alice, bob)
	project := testutil.Project(t, db, team, "Test project")
	task := testutil.Task(t, db, project, bob, "Ship it", alice)

	require.NoError(t, db.Workers.Delete(ctx, bob.ID))

	reloaded, err := db.Tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeletedUsername, reloaded.Requester.Username)
	assert.Equal(t, "Deleted", reloaded.Requester.FirstName)
	assert.Equal(t, "User", reloaded.Requester.LastName)
}

func TestDeleteWorkerDetachesAssignmentsAndNotifications(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	alice := testutil.Worker(t, db, "alice", "Alice", "Smith")
	bob := testutil.Worker(t, db, "bob", "Bob", "Jones")
	team := testutil.Team(t, db, "Flaming Testers", alice, alice, bob)
	project := testutil.Project(t, db, team, "Test project")
	task := testutil.Task(t, db, project, alice, "Ship it", bob)

	nt, err := db.NotificationTypes.GetOrCreate(ctx, "task_created", "created")
	require.NoError(t, err)
	require.NoError(t, db.Notifications.CreateBatch(ctx, []models.Notification{
		{UserID: bob.ID, NotificationTypeID: nt.ID, TaskID: task.ID},
	}))

	require.NoError(t, db.Workers.Delete(ctx, bob.ID))

	reloaded, err := db.Tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Assignees)

	left, err := db.Notifications.ForTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = db.Workers.Get(ctx, bob.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeletedUserIsStableAndProtected(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	first, err := db.Workers.DeletedUser(ctx)
	require.NoError(t, err)
	second, err := db.Workers.DeletedUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.IsDeletedUser())

	err = db.Workers.Delete(ctx, first.ID)
	require.ErrorIs(t, err, models.ErrProtected)
}

func TestWorkerGetOrCreateFromProvider(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	w, created, err := db.Workers.GetOrCreate(ctx, "github", "42", models.Worker{Username: "octo"})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := db.Workers.GetOrCreate(ctx, "github", "42", models.Worker{Username: "other"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, w.ID, again.ID)
	assert.Equal(t, "octo", again.Username)
}

func TestUsernameConflict(t *testing.T) {
	db := testutil.NewDB(t)

	testutil.Worker(t, db, "alice", "Alice", "Smith")
	err := db.Workers.Create(context.Background(), &models.Worker{Username: "alice"})
	require.ErrorIs(t, err, models.ErrConflict)
}

func TestFullName(t *testing.T) {
	tests := []struct {
		name   string
		worker models.Worker
		want   string
	}{
		{"both names", models.Worker{Username: "a", FirstName: "Alice", LastName: "Smith"}, "Alice Smith"},
		{"first only", models.Worker{Username: "a", FirstName: "Alice"}, "Alice"},
		{"no names", models.Worker{Username: "a"}, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.worker.FullName())
		})
	}
}
