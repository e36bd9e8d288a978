// Package authz holds the per-request authorization predicates. Predicates
// are pure: they look only at the actor and the already loaded resource.
package authz

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firefly/internal/models"
)

var (
	ErrUnauthenticated  = errors.New("authentication required")
	ErrPermissionDenied = errors.New("permission denied")
)

const (
	RuleFounder         = "founder"
	RuleMemberOrFounder = "member_or_founder"
	RuleRequester       = "requester"
	RuleRequesterOnly   = "requester_only"
	RuleAssignee        = "assignee"
	RuleSelf            = "self"
	RuleRecipient       = "recipient"
	RuleUploader        = "uploader"
)

var deniedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "firefly",
	Name:      "authz_denied_total",
	Help:      "The total number of requests denied by an authorization rule.",
}, []string{"rule"})

// Decision is the outcome of a predicate. Rule names the predicate that
// decided it.
type Decision struct {
	Allowed bool
	Rule    string
}

// Predicate decides whether actor may proceed. actor is never nil when
// called through Authorize.
type Predicate func(actor *models.Worker) Decision

// DeniedError reports which rule refused the request.
type DeniedError struct {
	Rule string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: rule %q", ErrPermissionDenied, e.Rule)
}

func (e *DeniedError) Unwrap() error {
	return ErrPermissionDenied
}

// Authorize evaluates p for actor. A nil actor yields ErrUnauthenticated
// before p is consulted.
func Authorize(actor *models.Worker, p Predicate) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	d := p(actor)
	if d.Allowed {
		return nil
	}
	deniedCounter.WithLabelValues(d.Rule).Inc()
	return &DeniedError{Rule: d.Rule}
}

func decide(rule string, ok bool) Decision {
	return Decision{Allowed: ok, Rule: rule}
}

// IsSafeMethod reports whether method only reads.
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Founder grants the team founder.
func Founder(team *models.Team) Predicate {
	return func(actor *models.Worker) Decision {
		return decide(RuleFounder, actor != nil && team.IsFounder(actor.ID))
	}
}

// MemberOrFounder grants team members and the founder.
func MemberOrFounder(team *models.Team) Predicate {
	return func(actor *models.Worker) Decision {
		return decide(RuleMemberOrFounder,
			actor != nil && (team.IsFounder(actor.ID) || team.HasMember(actor.ID)))
	}
}

// Requester grants anyone on safe methods and only the task requester on
// anything else.
func Requester(task *models.Task, method string) Predicate {
	return func(actor *models.Worker) Decision {
		if IsSafeMethod(method) {
			return decide(RuleRequester, true)
		}
		return decide(RuleRequester, actor != nil && task.RequesterID == actor.ID)
	}
}

// RequesterOnly grants the task requester whatever the method.
func RequesterOnly(task *models.Task) Predicate {
	return func(actor *models.Worker) Decision {
		return decide(RuleRequesterOnly, actor != nil && task.RequesterID == actor.ID)
	}
}

// Assignee grants workers assigned to the task.
func Assignee(task *models.Task) Predicate {
	return func(actor *models.Worker) Decision {
		return decide(RuleAssignee, actor != nil && task.IsAssignee(actor.ID))
	}
}

// Self grants a worker acting on their own account.
func Self(worker *models.Worker) Predicate {
	return func(actor *models.Worker) Decision {
		return decide(RuleSelf, actor != nil && worker.ID == actor.ID)
	}
}

// Recipient grants the worker a notification was sent to.
func Recipient(n *models.Notification) Predicate {
	return func(actor *models.Worker) Decision {
		return decide(RuleRecipient, actor != nil && n.UserID == actor.ID)
	}
}

// Uploader grants the worker who uploaded the attachment.
func Uploader(a *models.Attachment) Predicate {
	return func(actor *models.Worker) Decision {
		return decide(RuleUploader, actor != nil && a.UploaderID != nil && *a.UploaderID == actor.ID)
	}
}

// AllOf grants when every predicate grants and reports the first denial.
func AllOf(ps ...Predicate) Predicate {
	return func(actor *models.Worker) Decision {
		rules := make([]string, 0, len(ps))
		for _, p := range ps {
			d := p(actor)
			if !d.Allowed {
				return d
			}
			rules = append(rules, d.Rule)
		}
		return decide(strings.Join(rules, "&"), true)
	}
}

// AnyOf grants when any predicate grants.
func AnyOf(ps ...Predicate) Predicate {
	return func(actor *models.Worker) Decision {
		rules := make([]string, 0, len(ps))
		for _, p := range ps {
			d := p(actor)
			if d.Allowed {
				return d
			}
			rules = append(rules, d.Rule)
		}
		return decide(strings.Join(rules, "|"), false)
	}
}
