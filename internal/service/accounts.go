// Package service runs the use cases of the application on top of the
// model managers: units of work, event dispatch and object storage.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"firefly/internal/logger"
	"firefly/internal/models"
)

const maxUsernameLength = 150

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// Identity is what an OAuth provider tells us about a user.
type Identity struct {
	Provider   string
	ProviderID string
	NickName   string
	Email      string
	FirstName  string
	LastName   string
	Name       string
	AvatarURL  string
}

// ProfileInput carries the editable fields of a worker profile.
type ProfileInput struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Position  string `json:"position"`
}

type AccountService struct {
	db     *models.DB
	logger logger.Logger
}

func NewAccountService(db *models.DB, log logger.Logger) *AccountService {
	return &AccountService{db: db, logger: log}
}

// LoginFromProvider returns the worker linked to id, creating it on first
// login with a username derived from the nickname or email.
func (s *AccountService) LoginFromProvider(ctx context.Context, id Identity) (*models.Worker, bool, error) {
	if id.Provider == "" || id.ProviderID == "" {
		return nil, false, fmt.Errorf("%w: provider identity is incomplete", models.ErrInvalid)
	}

	existing, err := s.db.Workers.GetByProvider(ctx, id.Provider, id.ProviderID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	username, err := s.freeUsername(ctx, usernameBase(id))
	if err != nil {
		return nil, false, err
	}

	first, last := id.FirstName, id.LastName
	if first == "" && last == "" {
		first, last, _ = strings.Cut(strings.TrimSpace(id.Name), " ")
	}

	worker, created, err := s.db.Workers.GetOrCreate(ctx, id.Provider, id.ProviderID, models.Worker{
		Username:  username,
		FirstName: first,
		LastName:  strings.TrimSpace(last),
		Email:     id.Email,
		AvatarURL: id.AvatarURL,
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.InfoWithContext(ctx, "worker signed up",
			zap.String("username", worker.Username), zap.String("provider", id.Provider))
	}
	return worker, created, nil
}

func usernameBase(id Identity) string {
	candidates := []string{id.NickName, strings.SplitN(id.Email, "@", 2)[0], id.FirstName + "." + id.LastName}
	for _, c := range candidates {
		if base := sanitizeUsername(c); base != "" && base != "." {
			return base
		}
	}
	return "worker"
}

func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', strings.ContainsRune("_.@+-", r):
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('.')
		}
	}
	out := b.String()
	if len(out) > maxUsernameLength-8 {
		out = out[:maxUsernameLength-8]
	}
	return out
}

// freeUsername appends a counter to base until nobody uses it.
func (s *AccountService) freeUsername(ctx context.Context, base string) (string, error) {
	candidate := base
	for i := 2; ; i++ {
		if candidate != models.DeletedUsername {
			taken, err := s.db.Workers.UsernameTaken(ctx, candidate, 0)
			if err != nil {
				return "", err
			}
			if !taken {
				return candidate, nil
			}
		}
		candidate = base + strconv.Itoa(i)
	}
}

func (in ProfileInput) validate() error {
	if in.Username == "" || len(in.Username) > maxUsernameLength || !usernamePattern.MatchString(in.Username) {
		return fmt.Errorf("%w: username may contain only letters, digits and @/./+/-/_", models.ErrInvalid)
	}
	if in.Username == models.DeletedUsername {
		return fmt.Errorf("%w: username %q is reserved", models.ErrConflict, in.Username)
	}
	return nil
}

// UpdateProfile saves in on worker. An empty position keeps the current one.
func (s *AccountService) UpdateProfile(ctx context.Context, worker *models.Worker, in ProfileInput) (*models.Worker, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := in.validate(); err != nil {
		return nil, err
	}

	taken, err := s.db.Workers.UsernameTaken(ctx, in.Username, worker.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: username %q is taken", models.ErrConflict, in.Username)
	}

	if name := strings.TrimSpace(in.Position); name != "" {
		pos, err := s.db.Positions.GetByName(ctx, name)
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown position %q", models.ErrInvalid, name)
		}
		if err != nil {
			return nil, err
		}
		worker.PositionID = pos.ID
	}

	worker.Username = in.Username
	worker.FirstName = strings.TrimSpace(in.FirstName)
	worker.LastName = strings.TrimSpace(in.LastName)
	worker.Email = strings.TrimSpace(in.Email)
	if err := s.db.Workers.UpdateProfile(ctx, worker); err != nil {
		return nil, err
	}
	return s.db.Workers.Get(ctx, worker.ID)
}

// DeleteAccount removes worker, handing over what they founded or requested.
func (s *AccountService) DeleteAccount(ctx context.Context, worker *models.Worker) error {
	if err := s.db.Workers.Delete(ctx, worker.ID); err != nil {
		return err
	}
	s.logger.InfoWithContext(ctx, "worker deleted", zap.String("username", worker.Username))
	return nil
}
