package models

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// DeletedUsername identifies the sentinel worker that inherits requested
// tasks of deleted accounts.
const DeletedUsername = "deleted.user"

// Worker is a user of the system.
type Worker struct {
	ID         uint     `gorm:"primaryKey;column:id" json:"id"`
	Username   string   `gorm:"column:username;size:150;uniqueIndex;not null" json:"username"`
	FirstName  string   `gorm:"column:first_name;size:150" json:"first_name"`
	LastName   string   `gorm:"column:last_name;size:150" json:"last_name"`
	Email      string   `gorm:"column:email;size:254" json:"email"`
	Provider   string   `gorm:"column:provider;index:idx_workers_provider" json:"provider,omitempty"`
	ProviderID string   `gorm:"column:provider_id;index:idx_workers_provider" json:"-"`
	AvatarURL  string   `gorm:"column:avatar_url" json:"avatar_url,omitempty"`
	PositionID uint     `gorm:"column:position_id;not null;index" json:"position_id"`
	Position   Position `gorm:"foreignKey:PositionID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"position"`
	BaseModel
}

func (Worker) TableName() string {
	return "workers"
}

// BeforeCreate attaches the default position when none was chosen.
func (w *Worker) BeforeCreate(tx *gorm.DB) error {
	if w.PositionID != 0 {
		return nil
	}
	pos, err := defaultPosition(tx.Session(&gorm.Session{NewDB: true}))
	if err != nil {
		return err
	}
	w.PositionID = pos.ID
	return nil
}

// FullName joins first and last name, falling back to the username.
func (w *Worker) FullName() string {
	name := strings.TrimSpace(w.FirstName + " " + w.LastName)
	if name == "" {
		return w.Username
	}
	return name
}

// IsDeletedUser reports whether w is the sentinel worker.
func (w *Worker) IsDeletedUser() bool {
	return w.Username == DeletedUsername
}

// WorkerManager provides Django-like ORM methods for Worker
type WorkerManager struct {
	db *gorm.DB
}

func NewWorkerManager(db *gorm.DB) *WorkerManager {
	return &WorkerManager{db: db}
}

func (m *WorkerManager) Create(ctx context.Context, worker *Worker) error {
	return translate(m.db.WithContext(ctx).Create(worker).Error)
}

// GetOrCreate returns the worker linked to an OAuth identity, creating it
// from defaults on first login.
func (m *WorkerManager) GetOrCreate(ctx context.Context, provider, providerID string, defaults Worker) (*Worker, bool, error) {
	defaults.Provider = provider
	defaults.ProviderID = providerID
	worker, created, err := getOrCreate(m.db.WithContext(ctx), &defaults,
		"provider = ? AND provider_id = ?", provider, providerID)
	if err != nil {
		return nil, false, translate(err)
	}
	return worker, created, nil
}

func (m *WorkerManager) Get(ctx context.Context, id uint) (*Worker, error) {
	return GetObjectOr404[Worker](m.db.WithContext(ctx).Preload("Position"), id)
}

func (m *WorkerManager) GetByUsername(ctx context.Context, username string) (*Worker, error) {
	return GetObjectOr404[Worker](m.db.WithContext(ctx).Preload("Position"), "username = ?", username)
}

func (m *WorkerManager) GetByProvider(ctx context.Context, provider, providerID string) (*Worker, error) {
	return GetObjectOr404[Worker](m.db.WithContext(ctx), "provider = ? AND provider_id = ?", provider, providerID)
}

// UsernameTaken reports whether username belongs to a worker other than exceptID.
func (m *WorkerManager) UsernameTaken(ctx context.Context, username string, exceptID uint) (bool, error) {
	return Exists[Worker](m.db.WithContext(ctx), "username = ? AND id <> ?", username, exceptID)
}

func (m *WorkerManager) All(ctx context.Context) ([]Worker, error) {
	var workers []Worker
	err := m.db.WithContext(ctx).Preload("Position").Order("username").Find(&workers).Error
	return workers, err
}

// ByUsernames returns the workers with the given usernames, failing with
// ErrNotFound if any of them is unknown.
func (m *WorkerManager) ByUsernames(ctx context.Context, usernames []string) ([]Worker, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	var workers []Worker
	if err := m.db.WithContext(ctx).Where("username IN ?", usernames).Order("id").Find(&workers).Error; err != nil {
		return nil, err
	}
	found := make(map[string]bool, len(workers))
	for _, w := range workers {
		found[w.Username] = true
	}
	for _, name := range usernames {
		if !found[name] {
			return nil, fmt.Errorf("%w: worker %q", ErrNotFound, name)
		}
	}
	return workers, nil
}

// UpdateProfile saves the editable profile fields of worker.
func (m *WorkerManager) UpdateProfile(ctx context.Context, worker *Worker) error {
	err := m.db.WithContext(ctx).Model(worker).
		Select("username", "first_name", "last_name", "email", "position_id").
		Updates(worker).Error
	return translate(err)
}

// DeletedUser returns the sentinel worker, creating it on first use.
func (m *WorkerManager) DeletedUser(ctx context.Context) (*Worker, error) {
	return deletedUser(m.db.WithContext(ctx))
}

func deletedUser(db *gorm.DB) (*Worker, error) {
	sentinel := &Worker{Username: DeletedUsername, FirstName: "Deleted", LastName: "User"}
	worker, _, err := getOrCreate(db, sentinel, "username = ?", DeletedUsername)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve deleted user: %w", err)
	}
	return worker, nil
}

// Delete removes a worker. Teams they founded pass to their first remaining
// member by id, or are deleted when nobody is left. Tasks they requested are
// handed to the sentinel worker. The sentinel itself cannot be deleted.
func (m *WorkerManager) Delete(ctx context.Context, id uint) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		worker, err := GetObjectOr404[Worker](tx, id)
		if err != nil {
			return err
		}
		if worker.IsDeletedUser() {
			return fmt.Errorf("%w: the deleted user cannot be deleted", ErrProtected)
		}

		var founded []Team
		if err := tx.Where("founder_id = ?", id).Order("id").Find(&founded).Error; err != nil {
			return err
		}
		for _, team := range founded {
			var successors []uint
			err := tx.Table("team_members").
				Where("team_id = ? AND worker_id <> ?", team.ID, id).
				Order("worker_id").Limit(1).
				Pluck("worker_id", &successors).Error
			if err != nil {
				return err
			}
			if len(successors) == 0 {
				if err := deleteTeam(tx, team.ID); err != nil {
					return fmt.Errorf("failed to delete orphaned team %q: %w", team.Slug, err)
				}
				continue
			}
			if err := tx.Model(&Team{}).Where("id = ?", team.ID).
				Update("founder_id", successors[0]).Error; err != nil {
				return fmt.Errorf("failed to promote founder of %q: %w", team.Slug, err)
			}
		}

		sentinel, err := deletedUser(tx)
		if err != nil {
			return err
		}
		if err := tx.Model(&Task{}).Where("requester_id = ?", id).
			Update("requester_id", sentinel.ID).Error; err != nil {
			return fmt.Errorf("failed to reassign requested tasks: %w", err)
		}

		for _, stmt := range []string{
			"DELETE FROM team_members WHERE worker_id = ?",
			"DELETE FROM task_assignees WHERE worker_id = ?",
			"DELETE FROM notifications WHERE user_id = ?",
		} {
			if err := tx.Exec(stmt, id).Error; err != nil {
				return fmt.Errorf("failed to detach worker: %w", err)
			}
		}
		if err := tx.Model(&Attachment{}).Where("uploader_id = ?", id).
			Update("uploader_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(&Worker{}, id).Error
	})
}
