// Package notify turns task events into notifications for the workers
// concerned by them.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"firefly/internal/events"
	"firefly/internal/logger"
	"firefly/internal/models"
)

var ErrUnknownKind = errors.New("no rule for event kind")

var createdCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "firefly",
	Name:      "notifications_created_total",
	Help:      "The total number of notifications created, by notification type.",
}, []string{"type"})

// Dispatcher applies rules to events and stores the resulting notifications.
type Dispatcher struct {
	db     *models.DB
	logger logger.Logger
	rules  map[events.Kind]Rule
}

// NewDispatcher builds a dispatcher over db. Without rules it uses DefaultRules.
func NewDispatcher(db *models.DB, log logger.Logger, rules ...Rule) *Dispatcher {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	byKind := make(map[events.Kind]Rule, len(rules))
	for _, r := range rules {
		byKind[r.Kind] = r
	}
	return &Dispatcher{db: db, logger: log, rules: byKind}
}

// Dispatch handles every event in order and returns the notifications
// created. A failing event does not stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, evs ...events.Event) ([]models.Notification, error) {
	var (
		created []models.Notification
		errs    []error
	)
	for _, ev := range evs {
		ns, err := d.handle(ctx, ev)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s for task %d: %w", ev.Kind, ev.TaskID, err))
			continue
		}
		created = append(created, ns...)
	}
	return created, errors.Join(errs...)
}

// AfterCommit returns a hook that dispatches evs once the surrounding
// transaction has committed. Failures are logged.
func (d *Dispatcher) AfterCommit(evs ...events.Event) models.CommitHook {
	return func(ctx context.Context) {
		if _, err := d.Dispatch(ctx, evs...); err != nil {
			d.logger.ErrorWithContext(ctx, "failed to dispatch task events", zap.Error(err))
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev events.Event) ([]models.Notification, error) {
	rule, ok := d.rules[ev.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
	}

	task, err := d.db.Tasks.Get(ctx, ev.TaskID)
	if err != nil {
		return nil, err
	}
	if !rule.When(task) {
		d.logger.DebugWithContext(ctx, "notification rule skipped",
			zap.String("kind", string(ev.Kind)), zap.Uint("task_id", task.ID))
		return nil, nil
	}

	recipients := rule.Recipients(task)
	if len(recipients) == 0 {
		return nil, nil
	}

	nt, err := d.db.NotificationTypes.GetOrCreate(ctx, string(ev.Kind), rule.Template)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]bool, len(recipients))
	notifications := make([]models.Notification, 0, len(recipients))
	for _, w := range recipients {
		if seen[w.ID] {
			continue
		}
		seen[w.ID] = true
		notifications = append(notifications, models.Notification{
			UserID:             w.ID,
			NotificationTypeID: nt.ID,
			TaskID:             task.ID,
		})
	}

	if err := d.db.Notifications.CreateBatch(ctx, notifications); err != nil {
		return nil, fmt.Errorf("failed to store notifications: %w", err)
	}
	createdCounter.WithLabelValues(nt.Name).Add(float64(len(notifications)))

	d.logger.InfoWithContext(ctx, "notifications created",
		zap.String("kind", string(ev.Kind)),
		zap.Uint("task_id", task.ID),
		zap.Int("count", len(notifications)))
	return notifications, nil
}
