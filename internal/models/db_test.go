package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"firefly/internal/models"
	"firefly/internal/testutil"
)

func TestTransactionRunsHooksAfterCommit(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	var order []string
	err := db.Transaction(ctx, func(tx *models.DB) error {
		assert.True(t, tx.InTransaction())
		tx.OnCommit(ctx, func(context.Context) { order = append(order, "first") })
		tx.OnCommit(ctx, func(context.Context) { order = append(order, "second") })
		assert.Empty(t, order)
		return tx.Positions.Create(ctx, &models.Position{Name: "QA"})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestTransactionDropsHooksOnRollback(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	ran := false
	boom := errors.New("boom")
	err := db.Transaction(ctx, func(tx *models.DB) error {
		tx.OnCommit(ctx, func(context.Context) { ran = true })
		if err := tx.Positions.Create(ctx, &models.Position{Name: "QA"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, ran)

	_, err = db.Positions.GetByName(ctx, "QA")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestNestedTransactionRollbackKeepsOuterHooks(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	var ran []string
	err := db.Transaction(ctx, func(tx *models.DB) error {
		tx.OnCommit(ctx, func(context.Context) { ran = append(ran, "outer") })
		inner := tx.Transaction(ctx, func(inner *models.DB) error {
			inner.OnCommit(ctx, func(context.Context) { ran = append(ran, "inner") })
			return errors.New("inner failed")
		})
		require.Error(t, inner)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer"}, ran)
}

func TestOnCommitOutsideTransactionRunsImmediately(t *testing.T) {
	db := testutil.NewDB(t)

	ran := false
	db.OnCommit(context.Background(), func(context.Context) { ran = true })
	assert.True(t, ran)
	assert.False(t, db.InTransaction())
}

// A concurrent creator inserting the same notification type between our
// lookup and our insert must not surface as an error.
func TestNotificationTypeGetOrCreateRace(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	racer := db.DB.Session(&gorm.Session{NewDB: true})
	fired := false
	err := db.Callback().Create().Before("gorm:create").Register("test:race", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "notification_types" {
			return
		}
		fired = true
		require.NoError(t, racer.Exec(
			"INSERT INTO notification_types (name, message_template) VALUES (?, ?)",
			"task_created", "from the racer").Error)
	})
	require.NoError(t, err)

	nt, err := db.NotificationTypes.GetOrCreate(ctx, "task_created", "from us")
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, "from the racer", nt.MessageTemplate)

	count, err := models.Count[models.NotificationType](db.DB, "name = ?", "task_created")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
