package models

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Project belongs to exactly one team and collects its tasks.
type Project struct {
	ID          uint   `gorm:"primaryKey;column:id" json:"id"`
	Name        string `gorm:"column:name;size:255;uniqueIndex;not null" json:"name"`
	Slug        string `gorm:"column:slug;size:255;uniqueIndex;not null" json:"slug"`
	Description string `gorm:"column:description;type:text" json:"description"`
	TeamID      uint   `gorm:"column:team_id;not null;index" json:"team_id"`
	Team        Team   `gorm:"foreignKey:TeamID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	BaseModel
}

func (Project) TableName() string {
	return "projects"
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	if p.Slug == "" {
		return fmt.Errorf("%w: project name %q has no slug form", ErrInvalid, p.Name)
	}
	return nil
}

// ProjectManager provides Django-like ORM methods for Project
type ProjectManager struct {
	db *gorm.DB
}

func NewProjectManager(db *gorm.DB) *ProjectManager {
	return &ProjectManager{db: db}
}

func (m *ProjectManager) Create(ctx context.Context, project *Project) error {
	return translate(m.db.WithContext(ctx).Omit("Team").Create(project).Error)
}

// GetInTeam looks a project up by slug, scoped to teamID.
func (m *ProjectManager) GetInTeam(ctx context.Context, teamID uint, slug string) (*Project, error) {
	return GetObjectOr404[Project](m.db.WithContext(ctx), "team_id = ? AND slug = ?", teamID, slug)
}

func (m *ProjectManager) GetBySlug(ctx context.Context, slug string) (*Project, error) {
	return GetObjectOr404[Project](m.db.WithContext(ctx), "slug = ?", slug)
}

func (m *ProjectManager) Get(ctx context.Context, id uint) (*Project, error) {
	return GetObjectOr404[Project](m.db.WithContext(ctx), id)
}

func (m *ProjectManager) ForTeam(ctx context.Context, teamID uint) ([]Project, error) {
	var projects []Project
	err := m.db.WithContext(ctx).Where("team_id = ?", teamID).Order("name").Find(&projects).Error
	return projects, err
}

// Update saves the name and description. The slug is fixed at creation.
func (m *ProjectManager) Update(ctx context.Context, project *Project) error {
	err := m.db.WithContext(ctx).Model(&Project{ID: project.ID}).
		Select("name", "description").
		Updates(project).Error
	return translate(err)
}

// Delete removes the project with its tasks.
func (m *ProjectManager) Delete(ctx context.Context, id uint) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteProject(tx, id)
	})
}

func deleteProject(tx *gorm.DB, projectID uint) error {
	var taskIDs []uint
	if err := tx.Model(&Task{}).Where("project_id = ?", projectID).Pluck("id", &taskIDs).Error; err != nil {
		return err
	}
	for _, id := range taskIDs {
		if err := deleteTask(tx, id); err != nil {
			return err
		}
	}
	return tx.Delete(&Project{}, projectID).Error
}
