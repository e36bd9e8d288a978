package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"firefly/internal/logger"
	"firefly/internal/models"
	"firefly/internal/storage"
)

const downloadURLExpiry = 15 * time.Minute

// AttachmentService keeps attachment rows and stored objects in step.
type AttachmentService struct {
	db     *models.DB
	store  storage.ObjectStore
	logger logger.Logger
}

// NewAttachmentService wires attachments. With a nil store every operation
// but List fails with storage.ErrDisabled.
func NewAttachmentService(db *models.DB, store storage.ObjectStore, log logger.Logger) *AttachmentService {
	return &AttachmentService{db: db, store: store, logger: log}
}

func (s *AttachmentService) Upload(ctx context.Context, actor *models.Worker, task *models.Task, fileName, contentType string, body io.Reader) (*models.Attachment, error) {
	if s.store == nil {
		return nil, storage.ErrDisabled
	}
	if fileName == "" {
		return nil, fmt.Errorf("%w: file name is required", models.ErrInvalid)
	}

	res, err := s.store.UploadAttachment(ctx, task.ID, fileName, contentType, body)
	if err != nil {
		return nil, err
	}

	uploader := actor.ID
	a := &models.Attachment{
		TaskID:      task.ID,
		UploaderID:  &uploader,
		FileName:    fileName,
		ContentType: res.MimeType,
		Size:        res.FileSize,
		FileHash:    res.FileHash,
		S3Key:       res.S3Key,
	}
	if err := s.db.Attachments.Create(ctx, a); err != nil {
		purge(ctx, s.store, s.logger, res.S3Key)
		return nil, err
	}

	s.logger.InfoWithContext(ctx, "attachment uploaded",
		zap.Uint("task_id", task.ID), zap.String("attachment_id", a.ID.String()), zap.Int64("size", a.Size))
	return a, nil
}

func (s *AttachmentService) List(ctx context.Context, task *models.Task) ([]models.Attachment, error) {
	return s.db.Attachments.ForTask(ctx, task.ID)
}

// URL returns a short lived download link for a.
func (s *AttachmentService) URL(ctx context.Context, a *models.Attachment) (string, error) {
	if s.store == nil {
		return "", storage.ErrDisabled
	}
	ok, err := s.store.CheckFileExists(ctx, a.S3Key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: stored file of attachment %s", models.ErrNotFound, a.ID)
	}
	return s.store.GeneratePresignedURL(ctx, a.S3Key, downloadURLExpiry)
}

func (s *AttachmentService) Delete(ctx context.Context, a *models.Attachment) error {
	if s.store == nil {
		return storage.ErrDisabled
	}
	if err := s.db.Attachments.Delete(ctx, a.ID); err != nil {
		return err
	}
	purge(ctx, s.store, s.logger, a.S3Key)
	return nil
}

// purge deletes stored objects, logging failures. A nil store is a no-op.
func purge(ctx context.Context, store storage.ObjectStore, log logger.Logger, keys ...string) {
	if store == nil {
		return
	}
	for _, key := range keys {
		if err := store.DeleteFile(ctx, key); err != nil {
			log.WarnWithContext(ctx, "failed to delete attachment object",
				zap.String("key", key), zap.Error(err))
		}
	}
}
