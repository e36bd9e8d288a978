package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"firefly/internal/logger"
	"firefly/internal/models"
	"firefly/internal/storage"
)

// TeamInput carries the editable fields of a team. Founder is a username
// and may be left empty to keep the current founder.
type TeamInput struct {
	Name    string   `json:"name"`
	Founder string   `json:"founder"`
	Members []string `json:"members"`
}

type ProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type TeamService struct {
	db     *models.DB
	store  storage.ObjectStore
	logger logger.Logger
}

func NewTeamService(db *models.DB, store storage.ObjectStore, log logger.Logger) *TeamService {
	return &TeamService{db: db, store: store, logger: log}
}

func required(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", models.ErrInvalid, field)
	}
	return value, nil
}

func (s *TeamService) members(ctx context.Context, usernames []string) ([]models.Worker, error) {
	workers, err := s.db.Workers.ByUsernames(ctx, usernames)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	return workers, err
}

// Create founds a team. The founder always joins its members.
func (s *TeamService) Create(ctx context.Context, actor *models.Worker, in TeamInput) (*models.Team, error) {
	name, err := required("team name", in.Name)
	if err != nil {
		return nil, err
	}
	members, err := s.members(ctx, in.Members)
	if err != nil {
		return nil, err
	}

	if !containsWorker(members, actor.ID) {
		members = append([]models.Worker{*actor}, members...)
	}

	team := &models.Team{Name: name}
	if err := s.db.Teams.Create(ctx, team, actor, members); err != nil {
		return nil, err
	}
	s.logger.InfoWithContext(ctx, "team created", zap.String("team", team.Slug), zap.String("founder", actor.Username))
	return s.db.Teams.Get(ctx, team.ID)
}

// Update renames team, replaces its members and optionally hands the
// founder role to one of them. A founder who keeps the role stays a member.
func (s *TeamService) Update(ctx context.Context, team *models.Team, in TeamInput) (*models.Team, error) {
	name, err := required("team name", in.Name)
	if err != nil {
		return nil, err
	}
	members, err := s.members(ctx, in.Members)
	if err != nil {
		return nil, err
	}

	var founderID *uint
	if username := strings.TrimSpace(in.Founder); username != "" {
		founder, err := s.db.Workers.GetByUsername(ctx, username)
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown founder %q", models.ErrInvalid, username)
		}
		if err != nil {
			return nil, err
		}
		founderID = &founder.ID
	}

	if current := team.FounderID; current != nil && (founderID == nil || *founderID == *current) {
		if !containsWorker(members, *current) {
			founder, err := s.db.Workers.Get(ctx, *current)
			if err != nil {
				return nil, err
			}
			members = append([]models.Worker{*founder}, members...)
		}
	}

	if err := s.db.Teams.Update(ctx, team, name, founderID, members); err != nil {
		return nil, err
	}
	return s.db.Teams.Get(ctx, team.ID)
}

// Kick removes a member from team. The founder cannot be kicked.
func (s *TeamService) Kick(ctx context.Context, team *models.Team, username string) error {
	worker, err := s.db.Workers.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if team.IsFounder(worker.ID) {
		return fmt.Errorf("%w: the founder cannot be removed from %s", models.ErrInvalid, team.Slug)
	}
	return s.db.Teams.RemoveMember(ctx, team, worker)
}

func (s *TeamService) Delete(ctx context.Context, team *models.Team) error {
	keys, err := s.db.Attachments.KeysForTeam(ctx, team.ID)
	if err != nil {
		return err
	}
	if err := s.db.Teams.Delete(ctx, team.ID); err != nil {
		return err
	}
	purge(ctx, s.store, s.logger, keys...)
	s.logger.InfoWithContext(ctx, "team deleted", zap.String("team", team.Slug))
	return nil
}

func (s *TeamService) CreateProject(ctx context.Context, team *models.Team, in ProjectInput) (*models.Project, error) {
	name, err := required("project name", in.Name)
	if err != nil {
		return nil, err
	}
	project := &models.Project{Name: name, Description: in.Description, TeamID: team.ID}
	if err := s.db.Projects.Create(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *TeamService) UpdateProject(ctx context.Context, project *models.Project, in ProjectInput) (*models.Project, error) {
	name, err := required("project name", in.Name)
	if err != nil {
		return nil, err
	}
	project.Name = name
	project.Description = in.Description
	if err := s.db.Projects.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *TeamService) DeleteProject(ctx context.Context, project *models.Project) error {
	keys, err := s.db.Attachments.KeysForProject(ctx, project.ID)
	if err != nil {
		return err
	}
	if err := s.db.Projects.Delete(ctx, project.ID); err != nil {
		return err
	}
	purge(ctx, s.store, s.logger, keys...)
	return nil
}

func containsWorker(workers []models.Worker, id uint) bool {
	for _, w := range workers {
		if w.ID == id {
			return true
		}
	}
	return false
}
