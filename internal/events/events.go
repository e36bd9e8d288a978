// Package events defines the domain events emitted by task commands.
package events

import "time"

// Kind names a task state change. The value doubles as the notification
// type name, so it must stay stable once persisted.
type Kind string

const (
	TaskCreated         Kind = "task_created"
	TaskUpdated         Kind = "task_updated"
	TaskCompleted       Kind = "task_completed"
	TaskReviewRequested Kind = "task_review_requested"
)

// Kinds lists every known kind in dispatch order.
var Kinds = []Kind{TaskCreated, TaskUpdated, TaskCompleted, TaskReviewRequested}

// Event is a value describing something that happened to a task.
type Event struct {
	Kind       Kind      `json:"kind"`
	TaskID     uint      `json:"task_id"`
	ActorID    uint      `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New stamps an event with the current UTC time.
func New(kind Kind, taskID, actorID uint) Event {
	return Event{
		Kind:       kind,
		TaskID:     taskID,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}

func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}
