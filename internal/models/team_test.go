package models_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firefly/internal/models"
	"firefly/internal/testutil"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Flaming Testers", "flaming-testers"},
		{"  Test   project ", "test-project"},
		{"Crème brûlée!", "creme-brulee"},
		{"already-slugged", "already-slugged"},
		{"snake_case name", "snake_case-name"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, models.Slugify(tt.in))
		})
	}
}

func TestTeamSlugIsDerivedAndImmutable(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	alice := testutil.Worker(t, db, "alice", "Alice", "Smith")
	team := testutil.Team(t, db, "Flaming Testers", alice, alice)
	assert.Equal(t, "flaming-testers", team.Slug)

	require.NoError(t, db.Teams.Update(ctx, team, "Cold Testers", nil, []models.Worker{*alice}))

	reloaded, err := db.Teams.GetBySlug(ctx, "flaming-testers")
	require.NoError(t, err)
	assert.Equal(t, "Cold Testers", reloaded.Name)
}

func TestTeamNameConflict(t *testing.T) {
	db := testutil.NewDB(t)

	alice := testutil.Worker(t, db, "alice", "Alice", "Smith")
	testutil.Team(t, db, "Flaming Testers", alice)

	err := db.Teams.Create(context.Background(), &models.Team{Name: "Flaming Testers"}, alice, nil)
	require.ErrorIs(t, err, models.ErrConflict)
}

func TestTeamUpdateFounderMustBeMember(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	alice := testutil.Worker(t, db, "alice", "Alice", "Smith")
	bob := testutil.Worker(t, db, "bob", "Bob", "Jones")
	team := testutil.Team(t, db, "Flaming Testers", alice, alice)

	err := db.Teams.Update(ctx, team, team.Name, &bob.ID, []models.Worker{*alice})
	require.ErrorIs(t, err, models.ErrInvalid)

	require.NoError(t, db.Teams.Update(ctx, team, team.Name, &bob.ID, []models.Worker{*alice, *bob}))
	reloaded, err := db.Teams.Get(ctx, team.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsFounder(bob.ID))
	assert.Len(t, reloaded.Members, 2)
}

func TestTeamMembership(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	alice := testutil.Worker(t, db, "alice", "Alice", "Smith")
	bob := testutil.Worker(t, db, "bob", "Bob", "Jones")
	team := testutil.Team(t, db, "Flaming Testers", alice, alice)

	require.NoError(t, db.Teams.AddMember(ctx, team, bob))
	require.NoError(t, db.Teams.AddMember(ctx, team, bob))

	reloaded, err := db.Teams.Get(ctx, team.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.HasMember(bob.ID))
	assert.Len(t, reloaded.Members, 2)

	involved, err := db.Teams.Involving(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, involved, 1)

	require.NoError(t, db.Teams.RemoveMember(ctx, reloaded, bob))
	err = db.Teams.RemoveMember(ctx, reloaded, bob)
	require.ErrorIs(t, err, models.ErrNotFound)

	founded, err := db.Teams.FoundedBy(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, founded, 1)

	visible, err := db.Teams.MemberOrFounderOf(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestTeamDeleteCascades(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	alice := testutil.Worker(t, db, "alice", "Alice", "Smith")
	bob := testutil.Worker(t, db, "bob", "Bob", "Jones")
	team := testutil.Team(t, db, "Flaming Testers", alice, alice, bob)
	project := testutil.Project(t, db, team, "Test project")
	task := testutil.Task(t, db, project, alice, "Ship it", bob)

	require.NoError(t, db.Teams.Delete(ctx, team.ID))

	_, err := db.Projects.Get(ctx, project.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = db.Tasks.Get(ctx, task.ID)
	require.ErrorIs(t, err, models.ErrNotFound)

	// The workers survive.
	_, err = db.Workers.Get(ctx, bob.ID)
	require.NoError(t, err)
}

func TestProjectSlugScopedToTeam(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	alice := testutil.Worker(t, db, "alice", "Alice", "Smith")
	team := testutil.Team(t, db, "Flaming Testers", alice, alice)
	other := testutil.Team(t, db, "Other Team", alice, alice)
	project := testutil.Project(t, db, team, "Test project")
	assert.Equal(t, "test-project", project.Slug)

	_, err := db.Projects.GetInTeam(ctx, other.ID, "test-project")
	require.ErrorIs(t, err, models.ErrNotFound)

	project.Name = "Renamed"
	project.Description = "new"
	require.NoError(t, db.Projects.Update(ctx, project))
	reloaded, err := db.Projects.GetInTeam(ctx, team.ID, "test-project")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", reloaded.Name)
}
