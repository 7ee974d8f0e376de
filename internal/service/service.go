// Package service implements the TeamFlow use cases on top of the store and the
// authorization policy.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"teamflow/internal/apperr"
	"teamflow/internal/invite"
	"teamflow/internal/models"
	"teamflow/internal/policy"
	"teamflow/internal/storage/sqlite"
)

// Service wires the store, the invitation code generator and the policy together.
type Service struct {
	store    *sqlite.Store
	codes    *invite.Generator
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates a service. A nil generator uses a time-seeded one; a nil logger
// uses slog.Default().
func New(store *sqlite.Store, codes *invite.Generator, logger *slog.Logger) *Service {
	if codes == nil {
		codes = invite.NewGenerator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		codes:    codes,
		validate: validator.New(),
		logger:   logger,
	}
}

// Store exposes the underlying store for health checks.
func (s *Service) Store() *sqlite.Store {
	return s.store
}

func actorOf(u models.User) policy.Actor {
	return policy.Actor{ID: u.ID, OrganizationID: u.OrganizationID, Role: u.Role}
}

// projectSubject loads the actor's standing in a project.
func (s *Service) projectSubject(ctx context.Context, actor models.User, project models.Project) (policy.Subject, error) {
	member, ok, err := s.store.GetProjectMember(ctx, project.ID, actor.ID)
	if err != nil {
		return policy.Subject{}, err
	}
	return policy.Subject{
		Actor:                 actorOf(actor),
		ProjectOrganizationID: project.OrganizationID,
		Member:                ok,
		Label:                 member.Label,
		ProjectManager:        project.IsManagedBy(actor.ID),
	}, nil
}

// loadProject fetches a project and the actor's standing in it. A missing
// project is reported before any permission check.
func (s *Service) loadProject(ctx context.Context, actor models.User, projectID int64) (models.Project, policy.Subject, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return models.Project{}, policy.Subject{}, err
	}
	subject, err := s.projectSubject(ctx, actor, project)
	if err != nil {
		return models.Project{}, policy.Subject{}, err
	}
	return project, subject, nil
}

// loadTask fetches a task, its project and the actor's standing, including
// whether the actor is assigned to the task.
func (s *Service) loadTask(ctx context.Context, actor models.User, taskID int64) (models.Task, models.Project, policy.Subject, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, models.Project{}, policy.Subject{}, err
	}
	project, subject, err := s.loadProject(ctx, actor, task.ProjectID)
	if err != nil {
		return models.Task{}, models.Project{}, policy.Subject{}, err
	}
	if subject.Assignee, err = s.store.IsAssignee(ctx, task.ID, actor.ID); err != nil {
		return models.Task{}, models.Project{}, policy.Subject{}, err
	}
	return task, project, subject, nil
}

func requireText(value, field string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperr.Validation("%s must not be empty", field)
	}
	return value, nil
}

func (s *Service) validTheme(theme *string) error {
	if theme == nil {
		return nil
	}
	if err := s.validate.Var(*theme, "hexcolor"); err != nil {
		return apperr.Validation("theme must be a hex color such as #2563eb")
	}
	return nil
}
