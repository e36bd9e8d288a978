package authz

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"firefly/internal/models"
)

func ptr(v uint) *uint { return &v }

var (
	alice = &models.Worker{ID: 1, Username: "alice"}
	bob   = &models.Worker{ID: 2, Username: "bob"}
	carol = &models.Worker{ID: 3, Username: "carol"}

	team = &models.Team{ID: 10, FounderID: ptr(alice.ID), Members: []models.Worker{*alice, *bob}}
	task = &models.Task{ID: 20, RequesterID: alice.ID, Assignees: []models.Worker{*bob}}
	note = &models.Notification{ID: 30, UserID: bob.ID}
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		p     Predicate
		actor *models.Worker
		want  bool
	}{
		{"founder grants founder", Founder(team), alice, true},
		{"founder denies member", Founder(team), bob, false},
		{"founder denies stranger", Founder(team), carol, false},
		{"founder denies when team has no founder", Founder(&models.Team{}), alice, false},

		{"member or founder grants founder", MemberOrFounder(team), alice, true},
		{"member or founder grants member", MemberOrFounder(team), bob, true},
		{"member or founder denies stranger", MemberOrFounder(team), carol, false},

		{"requester lets anyone read", Requester(task, http.MethodGet), carol, true},
		{"requester lets anyone head", Requester(task, http.MethodHead), carol, true},
		{"requester lets anyone ask options", Requester(task, http.MethodOptions), carol, true},
		{"requester grants requester writes", Requester(task, http.MethodPut), alice, true},
		{"requester denies assignee writes", Requester(task, http.MethodPost), bob, false},
		{"requester denies stranger deletes", Requester(task, http.MethodDelete), carol, false},

		{"requester only grants requester", RequesterOnly(task), alice, true},
		{"requester only denies assignee", RequesterOnly(task), bob, false},

		{"assignee grants assignee", Assignee(task), bob, true},
		{"assignee denies requester", Assignee(task), alice, false},

		{"self grants self", Self(bob), bob, true},
		{"self denies others", Self(bob), alice, false},

		{"recipient grants recipient", Recipient(note), bob, true},
		{"recipient denies others", Recipient(note), alice, false},

		{"uploader grants uploader", Uploader(&models.Attachment{UploaderID: ptr(bob.ID)}), bob, true},
		{"uploader denies others", Uploader(&models.Attachment{UploaderID: ptr(bob.ID)}), alice, false},
		{"uploader denies when uploader is gone", Uploader(&models.Attachment{}), bob, false},

		{"nil actor is denied", MemberOrFounder(team), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.p(tt.actor).Allowed)
		})
	}
}

func TestCombinators(t *testing.T) {
	both := AllOf(MemberOrFounder(team), Assignee(task))
	require.True(t, both(bob).Allowed)

	d := both(alice)
	require.False(t, d.Allowed)
	require.Equal(t, RuleAssignee, d.Rule)

	either := AnyOf(RequesterOnly(task), Assignee(task))
	require.True(t, either(alice).Allowed)
	require.True(t, either(bob).Allowed)

	d = either(carol)
	require.False(t, d.Allowed)
	require.Equal(t, "requester_only|assignee", d.Rule)
}

func TestAuthorize(t *testing.T) {
	require.NoError(t, Authorize(alice, Founder(team)))

	err := Authorize(nil, Founder(team))
	require.ErrorIs(t, err, ErrUnauthenticated)

	before := testutil.ToFloat64(deniedCounter.WithLabelValues(RuleFounder))
	err = Authorize(bob, Founder(team))
	require.ErrorIs(t, err, ErrPermissionDenied)

	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	require.Equal(t, RuleFounder, denied.Rule)
	require.InDelta(t, before+1, testutil.ToFloat64(deniedCounter.WithLabelValues(RuleFounder)), 0)
}
