package models

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Team is a group of workers led by a founder.
type Team struct {
	ID        uint     `gorm:"primaryKey;column:id" json:"id"`
	Name      string   `gorm:"column:name;size:255;uniqueIndex;not null" json:"name"`
	Slug      string   `gorm:"column:slug;size:255;uniqueIndex;not null" json:"slug"`
	FounderID *uint    `gorm:"column:founder_id;index" json:"founder_id"`
	Founder   *Worker  `gorm:"foreignKey:FounderID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"founder,omitempty"`
	Members   []Worker `gorm:"many2many:team_members;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"members,omitempty"`
	BaseModel
}

func (Team) TableName() string {
	return "teams"
}

// BeforeCreate derives the slug from the name when it is empty.
func (t *Team) BeforeCreate(tx *gorm.DB) error {
	if t.Slug == "" {
		t.Slug = Slugify(t.Name)
	}
	if t.Slug == "" {
		return fmt.Errorf("%w: team name %q has no slug form", ErrInvalid, t.Name)
	}
	return nil
}

// IsFounder reports whether workerID founded the team.
func (t *Team) IsFounder(workerID uint) bool {
	return t.FounderID != nil && *t.FounderID == workerID
}

// HasMember reports whether workerID is among the loaded members.
func (t *Team) HasMember(workerID uint) bool {
	for _, m := range t.Members {
		if m.ID == workerID {
			return true
		}
	}
	return false
}

// TeamManager provides Django-like ORM methods for Team
type TeamManager struct {
	db *gorm.DB
}

func NewTeamManager(db *gorm.DB) *TeamManager {
	return &TeamManager{db: db}
}

func (m *TeamManager) withRelations(ctx context.Context) *gorm.DB {
	return m.db.WithContext(ctx).
		Preload("Founder.Position").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("workers.id") }).
		Preload("Members.Position")
}

// Create stores team with founder as its founder and the given members.
// The founder is not added to the member set implicitly.
func (m *TeamManager) Create(ctx context.Context, team *Team, founder *Worker, members []Worker) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if founder != nil {
			team.FounderID = &founder.ID
		}
		team.Members = nil
		if err := tx.Omit("Founder", "Members").Create(team).Error; err != nil {
			return translate(err)
		}
		if err := teamMembers.add(tx, team.ID, dedupe(workerIDs(members))...); err != nil {
			return err
		}
		team.Founder = founder
		team.Members = members
		return nil
	})
}

func (m *TeamManager) Get(ctx context.Context, id uint) (*Team, error) {
	return GetObjectOr404[Team](m.withRelations(ctx), id)
}

func (m *TeamManager) GetBySlug(ctx context.Context, slug string) (*Team, error) {
	return GetObjectOr404[Team](m.withRelations(ctx), "slug = ?", slug)
}

// Involving returns the teams workerID is a member of.
func (m *TeamManager) Involving(ctx context.Context, workerID uint) ([]Team, error) {
	var teams []Team
	err := m.db.WithContext(ctx).
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.worker_id = ?", workerID).
		Preload("Founder").
		Order("teams.name").
		Find(&teams).Error
	return teams, err
}

// FoundedBy returns the teams workerID founded.
func (m *TeamManager) FoundedBy(ctx context.Context, workerID uint) ([]Team, error) {
	var teams []Team
	err := m.db.WithContext(ctx).Where("founder_id = ?", workerID).Order("name").Find(&teams).Error
	return teams, err
}

// MemberOrFounderOf returns the teams where workerID is a member or the founder.
func (m *TeamManager) MemberOrFounderOf(ctx context.Context, workerID uint) ([]Team, error) {
	var teams []Team
	err := m.db.WithContext(ctx).
		Where("founder_id = ? OR id IN (?)", workerID,
			m.db.Table("team_members").Select("team_id").Where("worker_id = ?", workerID)).
		Order("name").
		Find(&teams).Error
	return teams, err
}

// Update renames the team, replaces its members and moves the founder role.
// The slug never changes. A new founder must be one of the new members.
func (m *TeamManager) Update(ctx context.Context, team *Team, name string, founderID *uint, members []Worker) error {
	if founderID != nil && !team.IsFounder(*founderID) {
		ok := false
		for _, w := range members {
			if w.ID == *founderID {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: the founder must be a team member", ErrInvalid)
		}
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"name": name}
		if founderID != nil {
			updates["founder_id"] = *founderID
		}
		if err := tx.Model(&Team{ID: team.ID}).Updates(updates).Error; err != nil {
			return translate(err)
		}
		if err := teamMembers.replace(tx, team.ID, workerIDs(members)); err != nil {
			return err
		}
		team.Name = name
		if founderID != nil {
			team.FounderID = founderID
		}
		team.Members = members
		return nil
	})
}

// AddMember adds worker to the team; adding an existing member is a no-op.
func (m *TeamManager) AddMember(ctx context.Context, team *Team, worker *Worker) error {
	if team.HasMember(worker.ID) {
		return nil
	}
	if err := teamMembers.add(m.db.WithContext(ctx), team.ID, worker.ID); err != nil {
		return err
	}
	team.Members = append(team.Members, *worker)
	return nil
}

// RemoveMember kicks worker out of the team.
func (m *TeamManager) RemoveMember(ctx context.Context, team *Team, worker *Worker) error {
	if !team.HasMember(worker.ID) {
		return fmt.Errorf("%w: %s is not a member of %s", ErrNotFound, worker.Username, team.Slug)
	}
	if err := teamMembers.remove(m.db.WithContext(ctx), team.ID, worker.ID); err != nil {
		return err
	}
	kept := team.Members[:0]
	for _, w := range team.Members {
		if w.ID != worker.ID {
			kept = append(kept, w)
		}
	}
	team.Members = kept
	return nil
}

// Delete removes the team together with its projects, their tasks and
// everything hanging off those tasks.
func (m *TeamManager) Delete(ctx context.Context, id uint) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := GetObjectOr404[Team](tx, id); err != nil {
			return err
		}
		return deleteTeam(tx, id)
	})
}

func deleteTeam(tx *gorm.DB, teamID uint) error {
	var projectIDs []uint
	if err := tx.Model(&Project{}).Where("team_id = ?", teamID).Pluck("id", &projectIDs).Error; err != nil {
		return err
	}
	for _, id := range projectIDs {
		if err := deleteProject(tx, id); err != nil {
			return err
		}
	}
	if err := teamMembers.remove(tx, teamID); err != nil {
		return err
	}
	return tx.Delete(&Team{}, teamID).Error
}
