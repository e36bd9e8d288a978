package notify

import (
	"firefly/internal/events"
	"firefly/internal/models"
)

// Rule says who hears about an event and what they are told.
type Rule struct {
	Kind events.Kind
	// Template is a text/template executed against models.MessageData.
	Template string
	// When guards the rule against the task state at dispatch time.
	When func(task *models.Task) bool
	// Recipients picks the workers to notify.
	Recipients func(task *models.Task) []models.Worker
}

func assignees(task *models.Task) []models.Worker {
	return task.Assignees
}

func requester(task *models.Task) []models.Worker {
	return []models.Worker{task.Requester}
}

func always(*models.Task) bool { return true }

// DefaultRules is the rule set used by NewDispatcher.
var DefaultRules = []Rule{
	{
		Kind:       events.TaskCreated,
		Template:   `{{.Requester.FirstName}} {{.Requester.LastName}} created a new task "{{.Task.Name}}"`,
		When:       always,
		Recipients: assignees,
	},
	{
		Kind:       events.TaskUpdated,
		Template:   `{{.Requester.FirstName}} {{.Requester.LastName}} updated the task "{{.Task.Name}}"`,
		When:       func(task *models.Task) bool { return !task.IsCompleted },
		Recipients: assignees,
	},
	{
		Kind:       events.TaskCompleted,
		Template:   `{{.Requester.FirstName}} {{.Requester.LastName}} marked the task "{{.Task.Name}}" as completed`,
		When:       func(task *models.Task) bool { return task.IsCompleted },
		Recipients: assignees,
	},
	{
		Kind:       events.TaskReviewRequested,
		Template:   `Review requested for the task "{{.Task.Name}}"`,
		When:       always,
		Recipients: requester,
	},
}
