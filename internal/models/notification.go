package models

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"gorm.io/gorm"
)

// NotificationType is keyed by event name and carries the message template
// rendered for each notification of that type.
type NotificationType struct {
	ID              uint   `gorm:"primaryKey;column:id" json:"id"`
	Name            string `gorm:"column:name;size:255;uniqueIndex;not null" json:"name"`
	MessageTemplate string `gorm:"column:message_template;type:text;not null" json:"message_template"`
}

func (NotificationType) TableName() string {
	return "notification_types"
}

// Notification tells a worker that something happened to a task.
type Notification struct {
	ID                 uint             `gorm:"primaryKey;column:id" json:"id"`
	UserID             uint             `gorm:"column:user_id;not null;index" json:"user_id"`
	User               Worker           `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	NotificationTypeID uint             `gorm:"column:notification_type_id;not null;index" json:"notification_type_id"`
	NotificationType   NotificationType `gorm:"foreignKey:NotificationTypeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"notification_type"`
	TaskID             uint             `gorm:"column:task_id;not null;index" json:"task_id"`
	Task               Task             `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	SentAt             time.Time        `gorm:"column:sent_at;autoCreateTime;index" json:"sent_at"`
	IsRead             bool             `gorm:"column:is_read;not null;default:false" json:"is_read"`
}

func (Notification) TableName() string {
	return "notifications"
}

// MessageData is the value message templates are executed against.
type MessageData struct {
	Task      *Task
	Requester *Worker
}

// RenderMessage executes a notification template for task.
func RenderMessage(text string, task *Task) (string, error) {
	tmpl, err := template.New("message").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse message template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, MessageData{Task: task, Requester: &task.Requester}); err != nil {
		return "", fmt.Errorf("failed to render message: %w", err)
	}
	return buf.String(), nil
}

// Message renders the notification text. NotificationType, Task and
// Task.Requester must be loaded.
func (n *Notification) Message() (string, error) {
	return RenderMessage(n.NotificationType.MessageTemplate, &n.Task)
}

type NotificationTypeManager struct {
	db *gorm.DB
}

func NewNotificationTypeManager(db *gorm.DB) *NotificationTypeManager {
	return &NotificationTypeManager{db: db}
}

// GetOrCreate returns the type called name, creating it with messageTemplate.
// Two first events racing on the same name both end up with the single row.
func (m *NotificationTypeManager) GetOrCreate(ctx context.Context, name, messageTemplate string) (*NotificationType, error) {
	nt, _, err := getOrCreate(m.db.WithContext(ctx),
		&NotificationType{Name: name, MessageTemplate: messageTemplate}, "name = ?", name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve notification type %q: %w", name, err)
	}
	return nt, nil
}

func (m *NotificationTypeManager) GetByName(ctx context.Context, name string) (*NotificationType, error) {
	return GetObjectOr404[NotificationType](m.db.WithContext(ctx), "name = ?", name)
}

// NotificationFilter narrows notification listings. Zero fields match all.
type NotificationFilter struct {
	TeamID    uint
	ProjectID uint
	TaskID    uint
}

type NotificationManager struct {
	db *gorm.DB
}

func NewNotificationManager(db *gorm.DB) *NotificationManager {
	return &NotificationManager{db: db}
}

func (m *NotificationManager) CreateBatch(ctx context.Context, notifications []Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return m.db.WithContext(ctx).Omit("User", "NotificationType", "Task").Create(&notifications).Error
}

// Query returns the notifications of userID matching filter, newest first.
func (m *NotificationManager) Query(ctx context.Context, userID uint, filter NotificationFilter) *gorm.DB {
	q := m.db.WithContext(ctx).Model(&Notification{}).Where("notifications.user_id = ?", userID)
	if filter.TaskID != 0 {
		q = q.Where("notifications.task_id = ?", filter.TaskID)
	}
	if filter.ProjectID != 0 || filter.TeamID != 0 {
		tasks := m.db.Table("tasks").Select("tasks.id")
		if filter.ProjectID != 0 {
			tasks = tasks.Where("tasks.project_id = ?", filter.ProjectID)
		}
		if filter.TeamID != 0 {
			tasks = tasks.Joins("JOIN projects ON projects.id = tasks.project_id").
				Where("projects.team_id = ?", filter.TeamID)
		}
		q = q.Where("notifications.task_id IN (?)", tasks)
	}
	return q.Order("notifications.sent_at DESC, notifications.id DESC")
}

// Preloads needed to render and link a notification.
var NotificationPreloads = []string{"NotificationType", "Task.Requester", "Task.Project.Team"}

// Unread lists unread notifications of userID matching filter.
func (m *NotificationManager) Unread(ctx context.Context, userID uint, filter NotificationFilter) ([]Notification, error) {
	q := m.Query(ctx, userID, filter).Where("notifications.is_read = ?", false)
	for _, p := range NotificationPreloads {
		q = q.Preload(p)
	}
	var notifications []Notification
	err := q.Find(&notifications).Error
	return notifications, err
}

// Page lists the notifications of userID matching filter, perPage at a time.
func (m *NotificationManager) Page(ctx context.Context, userID uint, filter NotificationFilter, raw string, perPage int) (*Page[Notification], error) {
	return Paginate[Notification](m.Query(ctx, userID, filter), raw, perPage, NotificationPreloads...)
}

func (m *NotificationManager) Get(ctx context.Context, id uint) (*Notification, error) {
	q := m.db.WithContext(ctx)
	for _, p := range NotificationPreloads {
		q = q.Preload(p)
	}
	return GetObjectOr404[Notification](q, id)
}

// ForTask lists every notification raised for taskID.
func (m *NotificationManager) ForTask(ctx context.Context, taskID uint) ([]Notification, error) {
	var notifications []Notification
	err := m.db.WithContext(ctx).Preload("NotificationType").
		Where("task_id = ?", taskID).Order("id").Find(&notifications).Error
	return notifications, err
}

// MarkAsRead flags the notification as read. Marking it twice is harmless.
func (m *NotificationManager) MarkAsRead(ctx context.Context, n *Notification) error {
	if err := m.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ?", n.ID).Update("is_read", true).Error; err != nil {
		return err
	}
	n.IsRead = true
	return nil
}

// DeleteReadBefore removes read notifications sent before cutoff.
func (m *NotificationManager) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := m.db.WithContext(ctx).
		Where("is_read = ? AND sent_at < ?", true, cutoff).
		Delete(&Notification{})
	return res.RowsAffected, res.Error
}
