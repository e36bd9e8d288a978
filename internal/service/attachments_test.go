package service_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firefly/internal/logger"
	"firefly/internal/models"
	"firefly/internal/service"
	"firefly/internal/storage"
	"firefly/internal/testutil"
)

func bytesReader(s string) io.Reader { return strings.NewReader(s) }

func TestAttachmentLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := service.NewAttachmentService(f.db, f.store, logger.NewNoopLogger())
	task := testutil.Task(t, f.db, f.project, f.alice, "Ship it", f.bob)

	a, err := svc.Upload(ctx, f.bob, task, "notes.txt", "text/plain", bytesReader("hello"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, a.Size)
	require.NotNil(t, a.UploaderID)
	assert.Equal(t, f.bob.ID, *a.UploaderID)

	list, err := svc.List(ctx, task)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "notes.txt", list[0].FileName)
	require.NotNil(t, list[0].Uploader)
	assert.Equal(t, "bob", list[0].Uploader.Username)

	url, err := svc.URL(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/"+a.S3Key, url)

	require.NoError(t, svc.Delete(ctx, a))
	assert.Zero(t, f.store.len())
	_, err = f.db.Attachments.GetForTask(ctx, task.ID, a.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestAttachmentURLMissingObject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := service.NewAttachmentService(f.db, f.store, logger.NewNoopLogger())
	task := testutil.Task(t, f.db, f.project, f.alice, "Ship it")

	a, err := svc.Upload(ctx, f.alice, task, "notes.txt", "", bytesReader("hello"))
	require.NoError(t, err)
	require.NoError(t, f.store.DeleteFile(ctx, a.S3Key))

	_, err = svc.URL(ctx, a)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestAttachmentsDisabled(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := service.NewAttachmentService(f.db, nil, logger.NewNoopLogger())
	task := testutil.Task(t, f.db, f.project, f.alice, "Ship it")

	_, err := svc.Upload(ctx, f.alice, task, "notes.txt", "", bytesReader("hello"))
	require.ErrorIs(t, err, storage.ErrDisabled)

	list, err := svc.List(ctx, task)
	require.NoError(t, err)
	assert.Empty(t, list)
}
