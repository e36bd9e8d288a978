package models

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// TaskType classifies tasks ("Bug", "Feature", ...).
type TaskType struct {
	ID   uint   `gorm:"primaryKey;column:id" json:"id"`
	Name string `gorm:"column:name;size:255;uniqueIndex;not null" json:"name"`
}

func (TaskType) TableName() string {
	return "task_types"
}

// Tag is a free-form label attached to tasks.
type Tag struct {
	ID   uint   `gorm:"primaryKey;column:id" json:"id"`
	Name string `gorm:"column:name;size:255;uniqueIndex;not null" json:"name"`
}

func (Tag) TableName() string {
	return "tags"
}

type TaskTypeManager struct {
	db *gorm.DB
}

func NewTaskTypeManager(db *gorm.DB) *TaskTypeManager {
	return &TaskTypeManager{db: db}
}

func (m *TaskTypeManager) GetOrCreate(ctx context.Context, name string) (*TaskType, bool, error) {
	name = strings.TrimSpace(name)
	return getOrCreate(m.db.WithContext(ctx), &TaskType{Name: name}, "name = ?", name)
}

func (m *TaskTypeManager) All(ctx context.Context) ([]TaskType, error) {
	var types []TaskType
	err := m.db.WithContext(ctx).Order("name").Find(&types).Error
	return types, err
}

type TagManager struct {
	db *gorm.DB
}

func NewTagManager(db *gorm.DB) *TagManager {
	return &TagManager{db: db}
}

func (m *TagManager) GetOrCreate(ctx context.Context, name string) (*Tag, bool, error) {
	name = strings.TrimSpace(name)
	return getOrCreate(m.db.WithContext(ctx), &Tag{Name: name}, "name = ?", name)
}

// GetOrCreateAll resolves every name, skipping blanks and duplicates.
func (m *TagManager) GetOrCreateAll(ctx context.Context, names []string) ([]Tag, error) {
	seen := make(map[string]bool, len(names))
	tags := make([]Tag, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		tag, _, err := m.GetOrCreate(ctx, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	return tags, nil
}

func (m *TagManager) All(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	err := m.db.WithContext(ctx).Order("name").Find(&tags).Error
	return tags, err
}
