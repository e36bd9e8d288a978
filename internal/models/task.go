package models

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"firefly/internal/events"
)

// Task is a unit of work inside a project, requested by one worker and
// assigned to any number of team members.
type Task struct {
	ID          uint      `gorm:"primaryKey;column:id" json:"id"`
	Name        string    `gorm:"column:name;size:255;not null" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	Deadline    time.Time `gorm:"column:deadline;type:date" json:"deadline"`
	IsCompleted bool      `gorm:"column:is_completed;not null;default:false" json:"is_completed"`
	Priority    Priority  `gorm:"column:priority;not null;default:0" json:"priority"`
	TaskTypeID  *uint     `gorm:"column:task_type_id;index" json:"task_type_id"`
	TaskType    *TaskType `gorm:"foreignKey:TaskTypeID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"task_type,omitempty"`
	ProjectID   uint      `gorm:"column:project_id;not null;index" json:"project_id"`
	Project     Project   `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	RequesterID uint      `gorm:"column:requester_id;not null;index" json:"requester_id"`
	Requester   Worker    `gorm:"foreignKey:RequesterID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"requester"`
	Assignees   []Worker  `gorm:"many2many:task_assignees;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignees"`
	Tags        []Tag     `gorm:"many2many:task_tags;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"tags"`
	BaseModel
}

func (Task) TableName() string {
	return "tasks"
}

// IsAssignee reports whether workerID is among the loaded assignees.
func (t *Task) IsAssignee(workerID uint) bool {
	for _, w := range t.Assignees {
		if w.ID == workerID {
			return true
		}
	}
	return false
}

// RequestReview builds the event an assignee raises to ask the requester
// for a review. It changes no state.
func RequestReview(task *Task, actorID uint) events.Event {
	return events.New(events.TaskReviewRequested, task.ID, actorID)
}

// TaskManager provides Django-like ORM methods for Task. Its commands
// return the events they produced; dispatching them is up to the caller.
type TaskManager struct {
	db *gorm.DB
}

func NewTaskManager(db *gorm.DB) *TaskManager {
	return &TaskManager{db: db}
}

func (m *TaskManager) withRelations(ctx context.Context) *gorm.DB {
	byID := func(db *gorm.DB) *gorm.DB { return db.Order("workers.id") }
	return m.db.WithContext(ctx).
		Preload("Requester").
		Preload("Assignees", byID).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name") }).
		Preload("TaskType").
		Preload("Project.Team.Founder").
		Preload("Project.Team.Members", byID)
}

// Create persists task with its assignees and tags.
func (m *TaskManager) Create(ctx context.Context, task *Task, assigneeIDs, tagIDs []uint) ([]events.Event, error) {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
			return translate(err)
		}
		if err := taskAssignees.add(tx, task.ID, dedupe(assigneeIDs)...); err != nil {
			return err
		}
		return taskTags.add(tx, task.ID, dedupe(tagIDs)...)
	})
	if err != nil {
		return nil, err
	}
	return []events.Event{events.New(events.TaskCreated, task.ID, task.RequesterID)}, nil
}

// Update saves the editable fields and replaces assignees and tags. Saving
// a completed task produces no event.
func (m *TaskManager) Update(ctx context.Context, task *Task, assigneeIDs, tagIDs []uint, actorID uint) ([]events.Event, error) {
	var completed bool
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&Task{ID: task.ID}).
			Select("name", "description", "deadline", "priority", "task_type_id").
			Updates(task).Error
		if err != nil {
			return translate(err)
		}
		if err := taskAssignees.replace(tx, task.ID, assigneeIDs); err != nil {
			return err
		}
		if err := taskTags.replace(tx, task.ID, tagIDs); err != nil {
			return err
		}
		var current Task
		if err := tx.Select("id", "is_completed").First(&current, task.ID).Error; err != nil {
			return translate(err)
		}
		completed = current.IsCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}
	task.IsCompleted = completed
	if completed {
		return nil, nil
	}
	return []events.Event{events.New(events.TaskUpdated, task.ID, actorID)}, nil
}

// Complete marks an incomplete task as completed. Completing a task that
// is already completed changes nothing and produces no event. task is not
// modified; callers set IsCompleted once their unit of work has committed.
func (m *TaskManager) Complete(ctx context.Context, task *Task, actorID uint) ([]events.Event, error) {
	res := m.db.WithContext(ctx).Model(&Task{}).
		Where("id = ? AND is_completed = ?", task.ID, false).
		Update("is_completed", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return []events.Event{events.New(events.TaskCompleted, task.ID, actorID)}, nil
}

// Get loads a task with requester, assignees, tags, type and the owning
// project and team.
func (m *TaskManager) Get(ctx context.Context, id uint) (*Task, error) {
	return GetObjectOr404[Task](m.withRelations(ctx), id)
}

// Requested returns a query over the tasks workerID requested in projectID.
func (m *TaskManager) Requested(ctx context.Context, workerID, projectID uint) *gorm.DB {
	return m.db.WithContext(ctx).Model(&Task{}).
		Where("requester_id = ? AND project_id = ?", workerID, projectID).
		Order("tasks.is_completed, tasks.priority DESC, tasks.deadline, tasks.id")
}

// Assigned returns a query over the tasks assigned to workerID in projectID.
func (m *TaskManager) Assigned(ctx context.Context, workerID, projectID uint) *gorm.DB {
	return m.db.WithContext(ctx).Model(&Task{}).
		Where("project_id = ? AND id IN (?)", projectID,
			m.db.Table("task_assignees").Select("task_id").Where("worker_id = ?", workerID)).
		Order("tasks.is_completed, tasks.priority DESC, tasks.deadline, tasks.id")
}

// ForProject lists every task of the project.
func (m *TaskManager) ForProject(ctx context.Context, projectID uint) ([]Task, error) {
	var tasks []Task
	err := m.db.WithContext(ctx).
		Preload("Requester").
		Preload("Assignees").
		Where("project_id = ?", projectID).
		Order("is_completed, priority DESC, deadline, id").
		Find(&tasks).Error
	return tasks, err
}

// Delete removes a task with its notifications, attachment rows and links.
func (m *TaskManager) Delete(ctx context.Context, id uint) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteTask(tx, id)
	})
}

func deleteTask(tx *gorm.DB, taskID uint) error {
	if err := tx.Where("task_id = ?", taskID).Delete(&Notification{}).Error; err != nil {
		return err
	}
	if err := tx.Where("task_id = ?", taskID).Delete(&Attachment{}).Error; err != nil {
		return err
	}
	if err := taskAssignees.remove(tx, taskID); err != nil {
		return err
	}
	if err := taskTags.remove(tx, taskID); err != nil {
		return err
	}
	return tx.Delete(&Task{}, taskID).Error
}
