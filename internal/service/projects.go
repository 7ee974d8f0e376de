package service

import (
	"context"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"teamflow/internal/apperr"
	"teamflow/internal/models"
	"teamflow/internal/policy"
	"teamflow/internal/storage/sqlite"
)

// ProjectView is a project with the figures shown next to it.
type ProjectView struct {
	Project     models.Project
	TeamLeader  *models.User
	MemberCount int
	TaskCount   int
	DoneCount   int
	Progress    int
}

// MemberView is a project membership with its user.
type MemberView struct {
	Member models.ProjectMember
	User   models.User
}

// ProjectInput is the input of CreateProject.
type ProjectInput struct {
	Name         string
	Description  string
	TeamLeaderID *int64
	Status       models.ProjectStatus
	Theme        *string
	DueDate      *time.Time
	MemberIDs    []int64
}

// ProjectUpdate carries the optional changes of UpdateProject. A TeamLeaderID
// of 0 clears the project manager; a non-nil MemberIDs replaces the roster.
type ProjectUpdate struct {
	Name         *string
	Description  *string
	TeamLeaderID *int64
	Status       *models.ProjectStatus
	Theme        *string
	DueDate      *time.Time
	ClearDueDate bool
	MemberIDs    []int64
}

// ProgressPercent is round(done/total*100), and 0 for a project without tasks.
func ProgressPercent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

// ListProjects returns the projects the actor can see: every project of the
// organization for administrators, the projects they belong to otherwise.
func (s *Service) ListProjects(ctx context.Context, actor models.User) ([]ProjectView, error) {
	if !actor.HasOrganization() {
		return []ProjectView{}, nil
	}
	var (
		projects []models.Project
		err      error
	)
	if actor.Role == models.RoleAdministrator {
		projects, err = s.store.ListOrganizationProjects(ctx, *actor.OrganizationID)
	} else {
		projects, err = s.store.ListMemberProjects(ctx, *actor.OrganizationID, actor.ID)
	}
	if err != nil {
		return nil, err
	}
	return s.projectViews(ctx, projects)
}

func (s *Service) projectViews(ctx context.Context, projects []models.Project) ([]ProjectView, error) {
	ids := make([]int64, 0, len(projects))
	var leaderIDs []int64
	for _, p := range projects {
		ids = append(ids, p.ID)
		if p.TeamLeaderID != nil {
			leaderIDs = append(leaderIDs, *p.TeamLeaderID)
		}
	}
	stats, err := s.store.ProjectStats(ctx, ids)
	if err != nil {
		return nil, err
	}
	leaders, err := s.store.GetUsers(ctx, leaderIDs)
	if err != nil {
		return nil, err
	}

	views := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		st := stats[p.ID]
		view := ProjectView{
			Project:     p,
			MemberCount: st.Members,
			TaskCount:   st.Tasks,
			DoneCount:   st.DoneTasks,
			Progress:    ProgressPercent(st.DoneTasks, st.Tasks),
		}
		if p.TeamLeaderID != nil {
			if leader, ok := leaders[*p.TeamLeaderID]; ok {
				view.TeamLeader = &leader
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) projectView(ctx context.Context, project models.Project) (ProjectView, error) {
	views, err := s.projectViews(ctx, []models.Project{project})
	if err != nil {
		return ProjectView{}, err
	}
	return views[0], nil
}

// requireOrgUser loads a user that must belong to orgID.
func (s *Service) requireOrgUser(ctx context.Context, orgID, userID int64) (models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return models.User{}, apperr.Validation("user %d does not exist", userID)
		}
		return models.User{}, err
	}
	if !user.InOrganization(orgID) {
		return models.User{}, apperr.Validation("user %d is not part of the organization", userID)
	}
	return user, nil
}

// CreateProject creates a project in the actor's organization. The actor is
// enrolled as Creator, a requested project manager is enrolled as Team Leader
// and any further members as plain members.
func (s *Service) CreateProject(ctx context.Context, actor models.User, in ProjectInput) (ProjectView, error) {
	if err := policy.CreateProject(actorOf(actor)).Err(); err != nil {
		return ProjectView{}, err
	}
	orgID := *actor.OrganizationID

	name, err := requireText(in.Name, "project name")
	if err != nil {
		return ProjectView{}, err
	}
	if in.Status == "" {
		in.Status = models.ProjectActive
	}
	if !in.Status.Valid() {
		return ProjectView{}, apperr.Validation("unknown project status %q", in.Status)
	}
	if err := s.validTheme(in.Theme); err != nil {
		return ProjectView{}, err
	}

	roster := []models.ProjectMember{{UserID: actor.ID, Label: models.LabelCreator}}
	seen := map[int64]bool{actor.ID: true}
	if in.TeamLeaderID != nil {
		if _, err := s.requireOrgUser(ctx, orgID, *in.TeamLeaderID); err != nil {
			return ProjectView{}, err
		}
		if !seen[*in.TeamLeaderID] {
			roster = append(roster, models.ProjectMember{UserID: *in.TeamLeaderID, Label: models.LabelProjectManager})
			seen[*in.TeamLeaderID] = true
		}
	}
	for _, id := range in.MemberIDs {
		if seen[id] {
			continue
		}
		if _, err := s.requireOrgUser(ctx, orgID, id); err != nil {
			return ProjectView{}, err
		}
		roster = append(roster, models.ProjectMember{UserID: id, Label: models.LabelPlainMember})
		seen[id] = true
	}

	project, err := s.store.CreateProject(ctx, models.Project{
		Name:           name,
		Description:    in.Description,
		OrganizationID: orgID,
		TeamLeaderID:   in.TeamLeaderID,
		Status:         in.Status,
		Theme:          in.Theme,
		DueDate:        in.DueDate,
	}, roster)
	if err != nil {
		return ProjectView{}, err
	}
	s.logger.Info("project created", slog.Int64("project_id", project.ID), slog.Int64("user_id", actor.ID))
	return s.projectView(ctx, project)
}

// GetProject returns a project visible to the actor.
func (s *Service) GetProject(ctx context.Context, actor models.User, id int64) (ProjectView, error) {
	project, subject, err := s.loadProject(ctx, actor, id)
	if err != nil {
		return ProjectView{}, err
	}
	if err := policy.ViewProject(subject).Err(); err != nil {
		return ProjectView{}, err
	}
	return s.projectView(ctx, project)
}

// UpdateProject applies the requested changes. Any project member may do so.
func (s *Service) UpdateProject(ctx context.Context, actor models.User, id int64, in ProjectUpdate) (ProjectView, error) {
	project, subject, err := s.loadProject(ctx, actor, id)
	if err != nil {
		return ProjectView{}, err
	}
	if err := policy.UpdateProject(subject).Err(); err != nil {
		return ProjectView{}, err
	}

	if in.Name != nil {
		if project.Name, err = requireText(*in.Name, "project name"); err != nil {
			return ProjectView{}, err
		}
	}
	if in.Description != nil {
		project.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return ProjectView{}, apperr.Validation("unknown project status %q", *in.Status)
		}
		project.Status = *in.Status
	}
	if in.Theme != nil {
		if err := s.validTheme(in.Theme); err != nil {
			return ProjectView{}, err
		}
		project.Theme = in.Theme
	}
	if in.ClearDueDate {
		project.DueDate = nil
	} else if in.DueDate != nil {
		project.DueDate = in.DueDate
	}

	previousLeader := project.TeamLeaderID
	if in.TeamLeaderID != nil {
		if *in.TeamLeaderID == 0 {
			project.TeamLeaderID = nil
		} else {
			if _, err := s.requireOrgUser(ctx, project.OrganizationID, *in.TeamLeaderID); err != nil {
				return ProjectView{}, err
			}
			leader := *in.TeamLeaderID
			project.TeamLeaderID = &leader
		}
	}

	current, err := s.store.ListProjectMembers(ctx, project.ID)
	if err != nil {
		return ProjectView{}, err
	}
	before := make(map[int64]models.ProjectLabel, len(current))
	for _, m := range current {
		before[m.UserID] = m.Label
	}
	after := maps.Clone(before)

	if in.MemberIDs != nil {
		if err := s.replaceRoster(ctx, project, before, after, in.MemberIDs); err != nil {
			return ProjectView{}, err
		}
	}
	if in.TeamLeaderID != nil {
		moveManagerLabel(project, previousLeader, after)
	}

	updated, err := s.store.UpdateProject(ctx, project, rosterChange(before, after))
	if err != nil {
		return ProjectView{}, err
	}
	return s.projectView(ctx, updated)
}

// replaceRoster makes after match ids. The Creator and the project manager
// always stay. New members are checked before anything is written.
func (s *Service) replaceRoster(ctx context.Context, project models.Project, before, after map[int64]models.ProjectLabel, ids []int64) error {
	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
		if _, ok := after[id]; ok {
			continue
		}
		if _, err := s.requireOrgUser(ctx, project.OrganizationID, id); err != nil {
			return err
		}
		after[id] = models.LabelPlainMember
	}
	for id, label := range before {
		if !wanted[id] && !label.Protected() && !project.IsManagedBy(id) {
			delete(after, id)
		}
	}
	return nil
}

// moveManagerLabel gives the project manager the Team Leader label, enrolling
// them when needed, and drops it from the previous one. A Creator keeps its label.
func moveManagerLabel(project models.Project, previous *int64, after map[int64]models.ProjectLabel) {
	if previous != nil && !project.IsManagedBy(*previous) {
		if label, ok := after[*previous]; ok && label == models.LabelProjectManager {
			after[*previous] = models.LabelPlainMember
		}
	}
	if project.TeamLeaderID == nil {
		return
	}
	leader := *project.TeamLeaderID
	if label, ok := after[leader]; !ok || label == models.LabelPlainMember {
		after[leader] = models.LabelProjectManager
	}
}

// rosterChange diffs two rosters into the edits that turn before into after.
func rosterChange(before, after map[int64]models.ProjectLabel) sqlite.RosterChange {
	var change sqlite.RosterChange
	for _, id := range sortedIDs(before) {
		label, ok := after[id]
		switch {
		case !ok:
			change.Remove = append(change.Remove, id)
		case label != before[id]:
			change.Relabel = append(change.Relabel, models.ProjectMember{UserID: id, Label: label})
		}
	}
	for _, id := range sortedIDs(after) {
		if _, ok := before[id]; !ok {
			change.Add = append(change.Add, models.ProjectMember{UserID: id, Label: after[id]})
		}
	}
	return change
}

func sortedIDs(roster map[int64]models.ProjectLabel) []int64 {
	ids := make([]int64, 0, len(roster))
	for id := range roster {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DeleteProject removes a project with everything in it.
func (s *Service) DeleteProject(ctx context.Context, actor models.User, id int64) error {
	_, subject, err := s.loadProject(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := policy.DeleteProject(subject).Err(); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.logger.Info("project deleted", slog.Int64("project_id", id), slog.Int64("user_id", actor.ID))
	return nil
}

// ListProjectMembers returns a project's roster with user details.
func (s *Service) ListProjectMembers(ctx context.Context, actor models.User, projectID int64) ([]MemberView, error) {
	_, subject, err := s.loadProject(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if err := policy.ViewProject(subject).Err(); err != nil {
		return nil, err
	}
	return s.memberViews(ctx, projectID)
}

func (s *Service) memberViews(ctx context.Context, projectID int64) ([]MemberView, error) {
	members, err := s.store.ListProjectMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := s.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]MemberView, 0, len(members))
	for _, m := range members {
		views = append(views, MemberView{Member: m, User: users[m.UserID]})
	}
	return views, nil
}

// AddProjectMember enrols a user of the project's organization as a plain member.
func (s *Service) AddProjectMember(ctx context.Context, actor models.User, projectID, userID int64) (MemberView, error) {
	project, subject, err := s.loadProject(ctx, actor, projectID)
	if err != nil {
		return MemberView{}, err
	}
	if err := policy.AddProjectMember(subject).Err(); err != nil {
		return MemberView{}, err
	}
	user, err := s.requireOrgUser(ctx, project.OrganizationID, userID)
	if err != nil {
		return MemberView{}, err
	}
	member, err := s.store.AddProjectMember(ctx, projectID, userID, models.LabelPlainMember)
	if err != nil {
		return MemberView{}, err
	}
	return MemberView{Member: member, User: user}, nil
}

// RemoveProjectMember drops a member. The Creator can never be removed;
// removing the project manager also clears the manager reference.
func (s *Service) RemoveProjectMember(ctx context.Context, actor models.User, projectID, userID int64) error {
	project, subject, err := s.loadProject(ctx, actor, projectID)
	if err != nil {
		return err
	}
	target, ok, err := s.store.GetProjectMember(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("user %d is not a member of project %d", userID, projectID)
	}
	if err := policy.RemoveProjectMember(subject, target.Label).Err(); err != nil {
		return err
	}
	if project.IsManagedBy(userID) {
		project.TeamLeaderID = nil
		_, err := s.store.UpdateProject(ctx, project, sqlite.RosterChange{Remove: []int64{userID}})
		return err
	}
	return s.store.RemoveProjectMember(ctx, projectID, userID)
}
