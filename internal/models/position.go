package models

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// DefaultPositionName is the position every worker falls back to.
const DefaultPositionName = "User"

// Position is a job title shared by workers.
type Position struct {
	ID   uint   `gorm:"primaryKey;column:id" json:"id"`
	Name string `gorm:"column:name;size:255;uniqueIndex;not null" json:"name"`
}

func (Position) TableName() string {
	return "positions"
}

// PositionManager provides Django-like ORM methods for Position
type PositionManager struct {
	db *gorm.DB
}

func NewPositionManager(db *gorm.DB) *PositionManager {
	return &PositionManager{db: db}
}

// Default returns the "User" position, creating it on first use.
func (m *PositionManager) Default(ctx context.Context) (*Position, error) {
	return defaultPosition(m.db.WithContext(ctx))
}

func defaultPosition(db *gorm.DB) (*Position, error) {
	pos, _, err := getOrCreate(db, &Position{Name: DefaultPositionName}, "name = ?", DefaultPositionName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default position: %w", err)
	}
	return pos, nil
}

func (m *PositionManager) Create(ctx context.Context, pos *Position) error {
	return translate(m.db.WithContext(ctx).Create(pos).Error)
}

// GetOrCreate returns the position called name.
func (m *PositionManager) GetOrCreate(ctx context.Context, name string) (*Position, bool, error) {
	return getOrCreate(m.db.WithContext(ctx), &Position{Name: name}, "name = ?", name)
}

func (m *PositionManager) Get(ctx context.Context, id uint) (*Position, error) {
	return GetObjectOr404[Position](m.db.WithContext(ctx), id)
}

func (m *PositionManager) GetByName(ctx context.Context, name string) (*Position, error) {
	return GetObjectOr404[Position](m.db.WithContext(ctx), "name = ?", name)
}

func (m *PositionManager) All(ctx context.Context) ([]Position, error) {
	var positions []Position
	err := m.db.WithContext(ctx).Order("name").Find(&positions).Error
	return positions, err
}

// Delete removes a position after moving its workers to the default one.
// The default position itself cannot be deleted.
func (m *PositionManager) Delete(ctx context.Context, id uint) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pos, err := GetObjectOr404[Position](tx, id)
		if err != nil {
			return err
		}
		if pos.Name == DefaultPositionName {
			return fmt.Errorf("%w: the default position cannot be deleted", ErrProtected)
		}

		fallback, err := defaultPosition(tx)
		if err != nil {
			return err
		}

		if err := tx.Model(&Worker{}).
			Where("position_id = ?", pos.ID).
			Update("position_id", fallback.ID).Error; err != nil {
			return fmt.Errorf("failed to reassign workers: %w", err)
		}

		return tx.Delete(&Position{}, pos.ID).Error
	})
}
