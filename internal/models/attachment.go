package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attachment records a file stored in object storage for a task.
type Attachment struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	TaskID      uint      `gorm:"column:task_id;not null;index" json:"task_id"`
	Task        Task      `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	UploaderID  *uint     `gorm:"column:uploader_id;index" json:"uploader_id"`
	Uploader    *Worker   `gorm:"foreignKey:UploaderID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"uploader,omitempty"`
	FileName    string    `gorm:"column:file_name;size:255;not null" json:"file_name"`
	ContentType string    `gorm:"column:content_type;size:255" json:"content_type"`
	Size        int64     `gorm:"column:size;not null" json:"size"`
	FileHash    string    `gorm:"column:file_hash;size:64" json:"file_hash"`
	S3Key       string    `gorm:"column:s3_key;size:1024;not null" json:"-"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Attachment) TableName() string {
	return "attachments"
}

// BeforeCreate hook for UUID generation
func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type AttachmentManager struct {
	db *gorm.DB
}

func NewAttachmentManager(db *gorm.DB) *AttachmentManager {
	return &AttachmentManager{db: db}
}

func (m *AttachmentManager) Create(ctx context.Context, a *Attachment) error {
	return translate(m.db.WithContext(ctx).Omit("Task", "Uploader").Create(a).Error)
}

func (m *AttachmentManager) ForTask(ctx context.Context, taskID uint) ([]Attachment, error) {
	var attachments []Attachment
	err := m.db.WithContext(ctx).Preload("Uploader").
		Where("task_id = ?", taskID).Order("created_at, id").Find(&attachments).Error
	return attachments, err
}

// KeysForTask returns the storage keys of every attachment of taskID.
func (m *AttachmentManager) KeysForTask(ctx context.Context, taskID uint) ([]string, error) {
	var keys []string
	err := m.db.WithContext(ctx).Model(&Attachment{}).Where("task_id = ?", taskID).Pluck("s3_key", &keys).Error
	return keys, err
}

// KeysForProject returns the storage keys of every attachment in projectID.
func (m *AttachmentManager) KeysForProject(ctx context.Context, projectID uint) ([]string, error) {
	var keys []string
	err := m.db.WithContext(ctx).Model(&Attachment{}).
		Where("task_id IN (?)", m.db.Table("tasks").Select("id").Where("project_id = ?", projectID)).
		Pluck("s3_key", &keys).Error
	return keys, err
}

// KeysForTeam returns the storage keys of every attachment in teamID.
func (m *AttachmentManager) KeysForTeam(ctx context.Context, teamID uint) ([]string, error) {
	var keys []string
	projects := m.db.Table("projects").Select("id").Where("team_id = ?", teamID)
	err := m.db.WithContext(ctx).Model(&Attachment{}).
		Where("task_id IN (?)", m.db.Table("tasks").Select("id").Where("project_id IN (?)", projects)).
		Pluck("s3_key", &keys).Error
	return keys, err
}

// GetForTask loads one attachment, scoped to taskID.
func (m *AttachmentManager) GetForTask(ctx context.Context, taskID uint, id uuid.UUID) (*Attachment, error) {
	return GetObjectOr404[Attachment](m.db.WithContext(ctx).Preload("Uploader"), "task_id = ? AND id = ?", taskID, id)
}

func (m *AttachmentManager) Delete(ctx context.Context, id uuid.UUID) error {
	return m.db.WithContext(ctx).Where("id = ?", id).Delete(&Attachment{}).Error
}
