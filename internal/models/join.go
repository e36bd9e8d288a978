package models

import (
	"fmt"

	"gorm.io/gorm"
)

// joinTable writes the rows of a many-to-many table directly so that
// association changes never upsert the referenced rows.
type joinTable struct {
	name     string
	ownerCol string
	otherCol string
}

var (
	teamMembers   = joinTable{name: "team_members", ownerCol: "team_id", otherCol: "worker_id"}
	taskAssignees = joinTable{name: "task_assignees", ownerCol: "task_id", otherCol: "worker_id"}
	taskTags      = joinTable{name: "task_tags", ownerCol: "task_id", otherCol: "tag_id"}
)

func (j joinTable) add(tx *gorm.DB, ownerID uint, otherIDs ...uint) error {
	for _, id := range otherIDs {
		err := tx.Exec(fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)", j.name, j.ownerCol, j.otherCol),
			ownerID, id).Error
		if err != nil {
			return fmt.Errorf("failed to link %s: %w", j.name, translate(err))
		}
	}
	return nil
}

func (j joinTable) remove(tx *gorm.DB, ownerID uint, otherIDs ...uint) error {
	if len(otherIDs) == 0 {
		return tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", j.name, j.ownerCol), ownerID).Error
	}
	return tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s IN ?", j.name, j.ownerCol, j.otherCol),
		ownerID, otherIDs).Error
}

// replace makes otherIDs the exact set linked to ownerID.
func (j joinTable) replace(tx *gorm.DB, ownerID uint, otherIDs []uint) error {
	if err := j.remove(tx, ownerID); err != nil {
		return err
	}
	return j.add(tx, ownerID, dedupe(otherIDs)...)
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func workerIDs(workers []Worker) []uint {
	ids := make([]uint, len(workers))
	for i, w := range workers {
		ids[i] = w.ID
	}
	return ids
}
