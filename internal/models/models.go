// Package models provides GORM-based models with a Django ORM-like interface
// for managing positions, workers, teams, projects, tasks and notifications.
//
// Each entity has a manager (Workers, Teams, Tasks, ...) hanging off DB.
// Managers built from a transactional DB share that transaction, and
// DB.OnCommit defers work until the outermost transaction commits.
package models

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{
		&Position{},
		&Worker{},
		&Team{},
		&Project{},
		&TaskType{},
		&Tag{},
		&Task{},
		&NotificationType{},
		&Notification{},
		&Attachment{},
	}
}
