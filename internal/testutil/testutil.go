// Package testutil builds throwaway databases and fixtures for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"firefly/internal/models"
)

// NewDB returns a migrated SQLite database in a temporary directory.
func NewDB(tb testing.TB) *models.DB {
	tb.Helper()

	dsn := filepath.Join(tb.TempDir(), "firefly.db") + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := models.NewDB(sqlite.Open(dsn), nil)
	require.NoError(tb, err)
	require.NoError(tb, db.AutoMigrate())

	tb.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// Worker creates a worker with the given username and names.
func Worker(tb testing.TB, db *models.DB, username, firstName, lastName string) *models.Worker {
	tb.Helper()

	w := &models.Worker{
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		Email:     username + "@example.com",
	}
	require.NoError(tb, db.Workers.Create(context.Background(), w))
	return w
}

// Team creates a team founded by founder with the given members.
func Team(tb testing.TB, db *models.DB, name string, founder *models.Worker, members ...*models.Worker) *models.Team {
	tb.Helper()

	ws := make([]models.Worker, 0, len(members))
	for _, m := range members {
		ws = append(ws, *m)
	}
	team := &models.Team{Name: name}
	require.NoError(tb, db.Teams.Create(context.Background(), team, founder, ws))
	return team
}

// Project creates a project owned by team.
func Project(tb testing.TB, db *models.DB, team *models.Team, name string) *models.Project {
	tb.Helper()

	p := &models.Project{Name: name, TeamID: team.ID}
	require.NoError(tb, db.Projects.Create(context.Background(), p))
	return p
}

// Task creates a task directly through the manager, discarding its events.
func Task(tb testing.TB, db *models.DB, project *models.Project, requester *models.Worker, name string, assignees ...*models.Worker) *models.Task {
	tb.Helper()

	ids := make([]uint, 0, len(assignees))
	for _, a := range assignees {
		ids = append(ids, a.ID)
	}
	task := &models.Task{
		Name:        name,
		Deadline:    time.Now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour),
		Priority:    models.PriorityMiddle,
		ProjectID:   project.ID,
		RequesterID: requester.ID,
	}
	_, err := db.Tasks.Create(context.Background(), task, ids, nil)
	require.NoError(tb, err)

	loaded, err := db.Tasks.Get(context.Background(), task.ID)
	require.NoError(tb, err)
	return loaded
}
