package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"firefly/internal/events"
	"firefly/internal/logger"
	"firefly/internal/models"
	"firefly/internal/notify"
	"firefly/internal/storage"
)

// TaskInput carries the editable fields of a task.
type TaskInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Deadline    time.Time       `json:"deadline"`
	Priority    models.Priority `json:"priority"`
	TaskType    string          `json:"task_type"`
	Tags        []string        `json:"tags"`
	Assignees   []string        `json:"assignees"`
}

func (in TaskInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: task name is required", models.ErrInvalid)
	}
	if !in.Priority.Valid() {
		return fmt.Errorf("%w: priority %d is out of range", models.ErrInvalid, in.Priority)
	}
	return nil
}

// TaskService runs task commands in a unit of work and dispatches the
// events they produce once the work has committed.
type TaskService struct {
	db         *models.DB
	dispatcher *notify.Dispatcher
	store      storage.ObjectStore
	logger     logger.Logger
}

// NewTaskService wires the task commands. store may be nil when attachments
// are disabled.
func NewTaskService(db *models.DB, dispatcher *notify.Dispatcher, store storage.ObjectStore, log logger.Logger) *TaskService {
	return &TaskService{db: db, dispatcher: dispatcher, store: store, logger: log}
}

// resolve turns the names in in into ids, creating tags and the task type
// as needed. Assignees must be members of team.
func resolve(ctx context.Context, tx *models.DB, team *models.Team, in TaskInput) (assignees, tags []uint, taskType *uint, err error) {
	workers, err := tx.Workers.ByUsernames(ctx, in.Assignees)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	for _, w := range workers {
		if !team.HasMember(w.ID) {
			return nil, nil, nil, fmt.Errorf("%w: %s is not a member of %s", models.ErrInvalid, w.Username, team.Slug)
		}
		assignees = append(assignees, w.ID)
	}

	ts, err := tx.Tags.GetOrCreateAll(ctx, in.Tags)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, t := range ts {
		tags = append(tags, t.ID)
	}

	if name := strings.TrimSpace(in.TaskType); name != "" {
		tt, _, err := tx.TaskTypes.GetOrCreate(ctx, name)
		if err != nil {
			return nil, nil, nil, err
		}
		taskType = &tt.ID
	}
	return assignees, tags, taskType, nil
}

// Create adds a task to project with actor as its requester.
func (s *TaskService) Create(ctx context.Context, actor *models.Worker, project *models.Project, team *models.Team, in TaskInput) (*models.Task, []events.Event, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	task := &models.Task{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Deadline:    in.Deadline,
		Priority:    in.Priority,
		ProjectID:   project.ID,
		RequesterID: actor.ID,
	}

	var evs []events.Event
	err := s.db.Transaction(ctx, func(tx *models.DB) error {
		assignees, tags, taskType, err := resolve(ctx, tx, team, in)
		if err != nil {
			return err
		}
		task.TaskTypeID = taskType

		evs, err = tx.Tasks.Create(ctx, task, assignees, tags)
		if err != nil {
			return err
		}
		tx.OnCommit(ctx, s.dispatcher.AfterCommit(evs...))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	created, err := s.db.Tasks.Get(ctx, task.ID)
	return created, evs, err
}

// Update saves new field values on task.
func (s *TaskService) Update(ctx context.Context, actor *models.Worker, task *models.Task, in TaskInput) (*models.Task, []events.Event, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	var evs []events.Event
	err := s.db.Transaction(ctx, func(tx *models.DB) error {
		assignees, tags, taskType, err := resolve(ctx, tx, &task.Project.Team, in)
		if err != nil {
			return err
		}

		task.Name = strings.TrimSpace(in.Name)
		task.Description = in.Description
		task.Deadline = in.Deadline
		task.Priority = in.Priority
		task.TaskTypeID = taskType

		evs, err = tx.Tasks.Update(ctx, task, assignees, tags, actor.ID)
		if err != nil {
			return err
		}
		tx.OnCommit(ctx, s.dispatcher.AfterCommit(evs...))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	updated, err := s.db.Tasks.Get(ctx, task.ID)
	return updated, evs, err
}

// Complete marks task as completed. It is a no-op on a completed task.
func (s *TaskService) Complete(ctx context.Context, actor *models.Worker, task *models.Task) ([]events.Event, error) {
	var evs []events.Event
	err := s.db.Transaction(ctx, func(tx *models.DB) error {
		var err error
		evs, err = tx.Tasks.Complete(ctx, task, actor.ID)
		if err != nil {
			return err
		}
		tx.OnCommit(ctx, s.dispatcher.AfterCommit(evs...))
		return nil
	})
	if err != nil {
		return nil, err
	}
	task.IsCompleted = true
	return evs, nil
}

// RequestReview notifies the requester of task that actor wants a review.
// It is dispatched right away because nothing is written besides the
// notification itself.
func (s *TaskService) RequestReview(ctx context.Context, actor *models.Worker, task *models.Task) ([]events.Event, error) {
	ev := models.RequestReview(task, actor.ID)
	if _, err := s.dispatcher.Dispatch(ctx, ev); err != nil {
		return nil, err
	}
	return []events.Event{ev}, nil
}

// Assign creates a task in project assigned to a single worker.
func (s *TaskService) Assign(ctx context.Context, actor, assignee *models.Worker, project *models.Project, team *models.Team, in TaskInput) (*models.Task, []events.Event, error) {
	in.Assignees = []string{assignee.Username}
	return s.Create(ctx, actor, project, team, in)
}

// Delete removes task and, best effort, the stored files of its attachments.
func (s *TaskService) Delete(ctx context.Context, task *models.Task) error {
	keys, err := s.db.Attachments.KeysForTask(ctx, task.ID)
	if err != nil {
		return err
	}
	if err := s.db.Tasks.Delete(ctx, task.ID); err != nil {
		return err
	}
	purge(ctx, s.store, s.logger, keys...)
	return nil
}
