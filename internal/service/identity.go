package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"teamflow/internal/apperr"
	"teamflow/internal/auth"
	"teamflow/internal/invite"
	"teamflow/internal/models"
	"teamflow/internal/policy"
)

// Registration is the input of Register.
type Registration struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
}

// Register creates an active account without an organization.
func (s *Service) Register(ctx context.Context, in Registration) (models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return models.User{}, apperr.Validation("a valid email address is required")
	}
	if len(in.Password) < auth.MinPasswordLength {
		return models.User{}, apperr.Validation("password must be at least %d characters", auth.MinPasswordLength)
	}
	if len(in.Password) > auth.MaxPasswordLength {
		return models.User{}, apperr.Validation("password must be at most %d bytes", auth.MaxPasswordLength)
	}
	if in.Password != in.ConfirmPassword {
		return models.User{}, apperr.Validation("passwords do not match")
	}
	first, err := requireText(in.FirstName, "first name")
	if err != nil {
		return models.User{}, err
	}
	last, err := requireText(in.LastName, "last name")
	if err != nil {
		return models.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	user, err := s.store.CreateUser(ctx, models.User{
		Email:        email,
		FirstName:    first,
		LastName:     last,
		PasswordHash: hash,
		Role:         models.RoleMember,
		Active:       true,
	})
	if err != nil {
		return models.User{}, err
	}
	s.logger.Info("user registered", slog.Int64("user_id", user.ID))
	return user, nil
}

var errBadCredentials = apperr.Unauthenticated("invalid email or password")

// Login checks credentials. Unknown emails and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, apperr.ErrNotFound) {
		return models.User{}, errBadCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return models.User{}, errBadCredentials
	}
	if !user.Active {
		return models.User{}, apperr.Unauthenticated("account is disabled")
	}
	return user, nil
}

// Authenticate loads the user behind a session. Deleted or disabled users are
// rejected.
func (s *Service) Authenticate(ctx context.Context, userID int64) (models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.User{}, apperr.Unauthenticated("session user no longer exists")
	}
	if err != nil {
		return models.User{}, err
	}
	if !user.Active {
		return models.User{}, apperr.Unauthenticated("account is disabled")
	}
	return user, nil
}

// CreateOrganization creates an organization with a fresh invitation code and
// makes the actor its Administrator.
func (s *Service) CreateOrganization(ctx context.Context, actor models.User, name, description string) (models.Organization, error) {
	if actor.HasOrganization() {
		return models.Organization{}, apperr.Conflict("you already belong to an organization")
	}
	name, err := requireText(name, "organization name")
	if err != nil {
		return models.Organization{}, err
	}

	var org models.Organization
	_, err = s.codes.Issue(ctx, s.store.InvitationCodeExists, func(ctx context.Context, code string) error {
		var err error
		org, err = s.store.CreateOrganization(ctx, models.Organization{
			Name:           name,
			Description:    description,
			InvitationCode: code,
		}, actor.ID)
		return err
	})
	if errors.Is(err, invite.ErrExhausted) {
		return models.Organization{}, apperr.Wrap(apperr.KindInternal, err, "could not allocate an invitation code")
	}
	if err != nil {
		return models.Organization{}, err
	}
	s.logger.Info("organization created", slog.Int64("organization_id", org.ID), slog.Int64("user_id", actor.ID))
	return org, nil
}

// JoinOrganization attaches the actor to the organization owning code as a Member.
func (s *Service) JoinOrganization(ctx context.Context, actor models.User, code string) (models.Organization, models.User, error) {
	if actor.HasOrganization() {
		return models.Organization{}, models.User{}, apperr.Conflict("you already belong to an organization")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if !invite.Valid(code) {
		return models.Organization{}, models.User{}, apperr.Validation("invitation code must look like TF-ABC-1234")
	}
	org, err := s.store.GetOrganizationByCode(ctx, code)
	if err != nil {
		return models.Organization{}, models.User{}, err
	}
	user, err := s.store.JoinOrganization(ctx, actor.ID, org.ID)
	if err != nil {
		return models.Organization{}, models.User{}, err
	}
	s.logger.Info("organization joined", slog.Int64("organization_id", org.ID), slog.Int64("user_id", actor.ID))
	return org, user, nil
}

// CurrentOrganization returns the actor's organization.
func (s *Service) CurrentOrganization(ctx context.Context, actor models.User) (models.Organization, error) {
	if !actor.HasOrganization() {
		return models.Organization{}, apperr.NotFound("you do not belong to an organization")
	}
	return s.store.GetOrganization(ctx, *actor.OrganizationID)
}

// UpdateOrganization renames an organization. The invitation code never changes.
func (s *Service) UpdateOrganization(ctx context.Context, actor models.User, id int64, name, description string) (models.Organization, error) {
	if _, err := s.store.GetOrganization(ctx, id); err != nil {
		return models.Organization{}, err
	}
	if err := policy.UpdateOrganization(actorOf(actor), id).Err(); err != nil {
		return models.Organization{}, err
	}
	name, err := requireText(name, "organization name")
	if err != nil {
		return models.Organization{}, err
	}
	return s.store.UpdateOrganization(ctx, id, name, description)
}

// DeleteOrganization removes an organization and its projects. Its users stay
// registered without an organization.
func (s *Service) DeleteOrganization(ctx context.Context, actor models.User, id int64) error {
	if _, err := s.store.GetOrganization(ctx, id); err != nil {
		return err
	}
	if err := policy.DeleteOrganization(actorOf(actor), id).Err(); err != nil {
		return err
	}
	if err := s.store.DeleteOrganization(ctx, id); err != nil {
		return err
	}
	s.logger.Info("organization deleted", slog.Int64("organization_id", id), slog.Int64("user_id", actor.ID))
	return nil
}

// OrganizationMembers lists the users of the actor's organization.
func (s *Service) OrganizationMembers(ctx context.Context, actor models.User) ([]models.User, error) {
	if !actor.HasOrganization() {
		return nil, apperr.NotFound("you do not belong to an organization")
	}
	return s.store.ListOrganizationUsers(ctx, *actor.OrganizationID)
}

// UserUpdate carries the optional changes of UpdateUser.
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Role      *models.Role
}

// UpdateUser changes the actor's own names and, for administrators, a user's role.
func (s *Service) UpdateUser(ctx context.Context, actor models.User, id int64, in UserUpdate) (models.User, error) {
	target, err := s.store.GetUser(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	changesNames := in.FirstName != nil || in.LastName != nil
	if err := policy.UpdateUser(actorOf(actor), target, changesNames, in.Role != nil).Err(); err != nil {
		return models.User{}, err
	}

	first, last := target.FirstName, target.LastName
	if in.FirstName != nil {
		if first, err = requireText(*in.FirstName, "first name"); err != nil {
			return models.User{}, err
		}
	}
	if in.LastName != nil {
		if last, err = requireText(*in.LastName, "last name"); err != nil {
			return models.User{}, err
		}
	}
	if in.Role != nil && !in.Role.Valid() {
		return models.User{}, apperr.Validation("unknown role %d", int(*in.Role))
	}

	if changesNames {
		if target, err = s.store.UpdateUserProfile(ctx, id, first, last); err != nil {
			return models.User{}, err
		}
	}
	if in.Role != nil && *in.Role != target.Role {
		if target, err = s.store.UpdateUserRole(ctx, id, *in.Role); err != nil {
			return models.User{}, err
		}
		s.logger.Info("role changed", slog.Int64("user_id", id), slog.String("role", in.Role.String()), slog.Int64("by", actor.ID))
	}
	return target, nil
}

// DeleteUser removes another user of the actor's organization.
func (s *Service) DeleteUser(ctx context.Context, actor models.User, id int64) error {
	target, err := s.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.DeleteUser(actorOf(actor), target).Err(); err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.Int64("user_id", id), slog.Int64("by", actor.ID))
	return nil
}
