package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"teamflow/internal/apperr"
	"teamflow/internal/invite"
	"teamflow/internal/models"
	"teamflow/internal/storage/sqlite"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *sqlite.Store
	svc   *Service
	n     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "teamflow.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	codes := invite.NewGeneratorWithSource(rand.NewSource(1))
	return &fixture{t: t, ctx: context.Background(), store: store, svc: New(store, codes, logger)}
}

func (f *fixture) register(first string) models.User {
	f.t.Helper()
	f.n++
	u, err := f.svc.Register(f.ctx, Registration{
		Email:           fmt.Sprintf("%s%d@example.com", first, f.n),
		Password:        "password123",
		ConfirmPassword: "password123",
		FirstName:       first,
		LastName:        "Tester",
	})
	if err != nil {
		f.t.Fatalf("register %s: %v", first, err)
	}
	return u
}

// reload returns the current state of a user, as the auth middleware would.
func (f *fixture) reload(u models.User) models.User {
	f.t.Helper()
	fresh, err := f.svc.Authenticate(f.ctx, u.ID)
	if err != nil {
		f.t.Fatalf("reload user %d: %v", u.ID, err)
	}
	return fresh
}

// org creates an organization owned by a fresh administrator.
func (f *fixture) org(name string) (models.Organization, models.User) {
	f.t.Helper()
	admin := f.register("admin")
	org, err := f.svc.CreateOrganization(f.ctx, admin, name, "")
	if err != nil {
		f.t.Fatalf("create organization: %v", err)
	}
	return org, f.reload(admin)
}

func (f *fixture) join(org models.Organization, first string) models.User {
	f.t.Helper()
	u := f.register(first)
	if _, _, err := f.svc.JoinOrganization(f.ctx, u, org.InvitationCode); err != nil {
		f.t.Fatalf("join organization: %v", err)
	}
	return f.reload(u)
}

func (f *fixture) withRole(u models.User, role models.Role, admin models.User) models.User {
	f.t.Helper()
	if _, err := f.svc.UpdateUser(f.ctx, admin, u.ID, UserUpdate{Role: &role}); err != nil {
		f.t.Fatalf("set role: %v", err)
	}
	return f.reload(u)
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if got := apperr.KindOf(err); err == nil || got != kind {
		t.Fatalf("error = %v (kind %s), want kind %s", err, got, kind)
	}
}

func TestAcmeScenario(t *testing.T) {
	f := newFixture(t)

	a := f.register("alice")
	org, err := f.svc.CreateOrganization(f.ctx, a, "Acme", "Rockets")
	if err != nil {
		t.Fatalf("CreateOrganization() error = %v", err)
	}
	a = f.reload(a)
	if a.Role != models.RoleAdministrator {
		t.Fatalf("creator role = %s, want Administrator", a.Role)
	}

	p, err := f.svc.CreateProject(f.ctx, a, ProjectInput{Name: "P"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	members, err := f.svc.ListProjectMembers(f.ctx, a, p.Project.ID)
	if err != nil {
		t.Fatalf("ListProjectMembers() error = %v", err)
	}
	if len(members) != 1 || members[0].User.ID != a.ID || members[0].Member.Label != models.LabelCreator {
		t.Fatalf("roster = %+v, want only the creator", members)
	}

	task, err := f.svc.CreateTask(f.ctx, a, p.Project.ID, TaskInput{Title: "T"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if task.Task.Status != models.StatusToDo || task.Task.Priority != models.PriorityMedium {
		t.Fatalf("new task = %+v", task.Task)
	}

	b := f.join(org, "bob")
	if b.Role != models.RoleMember {
		t.Fatalf("joiner role = %s, want Member", b.Role)
	}
	_, err = f.svc.ChangeTaskStatus(f.ctx, b, task.Task.ID, models.StatusInProgress)
	wantKind(t, err, apperr.KindForbidden)

	if _, err := f.svc.AddProjectMember(f.ctx, a, p.Project.ID, b.ID); err != nil {
		t.Fatalf("AddProjectMember() error = %v", err)
	}
	title := "renamed"
	_, err = f.svc.UpdateTask(f.ctx, b, task.Task.ID, TaskUpdate{Title: &title})
	wantKind(t, err, apperr.KindForbidden)
	_, err = f.svc.ChangeTaskStatus(f.ctx, b, task.Task.ID, models.StatusInProgress)
	wantKind(t, err, apperr.KindForbidden)

	if _, err := f.svc.AssignTask(f.ctx, a, task.Task.ID, b.ID); err != nil {
		t.Fatalf("AssignTask() error = %v", err)
	}
	for _, status := range []models.TaskStatus{models.StatusInProgress, models.StatusDone, models.StatusToDo, models.StatusDone} {
		got, err := f.svc.ChangeTaskStatus(f.ctx, b, task.Task.ID, status)
		if err != nil {
			t.Fatalf("ChangeTaskStatus(%s) error = %v", status, err)
		}
		if got.Task.Status != status || got.Task.UpdatedAt == nil {
			t.Fatalf("task after move = %+v", got.Task)
		}
	}
	_, err = f.svc.UpdateTask(f.ctx, b, task.Task.ID, TaskUpdate{Title: &title})
	wantKind(t, err, apperr.KindForbidden)
}

func TestOrganizationRoles(t *testing.T) {
	f := newFixture(t)
	org, admin := f.org("Acme")

	if !invite.Valid(org.InvitationCode) {
		t.Errorf("invitation code %q is malformed", org.InvitationCode)
	}
	members := []models.User{f.join(org, "m1"), f.join(org, "m2")}
	for _, m := range members {
		if m.Role != models.RoleMember {
			t.Errorf("joiner role = %s, want Member", m.Role)
		}
	}

	users, err := f.svc.OrganizationMembers(f.ctx, admin)
	if err != nil {
		t.Fatalf("OrganizationMembers() error = %v", err)
	}
	admins := 0
	for _, u := range users {
		if u.Role == models.RoleAdministrator {
			admins++
		}
	}
	if len(users) != 3 || admins != 1 {
		t.Errorf("got %d users and %d administrators, want 3 and 1", len(users), admins)
	}

	_, err = f.svc.CreateOrganization(f.ctx, members[0], "Other", "")
	wantKind(t, err, apperr.KindConflict)
	_, _, err = f.svc.JoinOrganization(f.ctx, admin, org.InvitationCode)
	wantKind(t, err, apperr.KindConflict)

	other, _ := f.org("Other")
	if other.InvitationCode == org.InvitationCode {
		t.Errorf("two organizations share code %s", org.InvitationCode)
	}
}

func TestOrganizationAdministration(t *testing.T) {
	f := newFixture(t)
	org, admin := f.org("Acme")
	member := f.join(org, "member")

	_, err := f.svc.UpdateOrganization(f.ctx, member, org.ID, "Hijacked", "")
	wantKind(t, err, apperr.KindForbidden)

	updated, err := f.svc.UpdateOrganization(f.ctx, admin, org.ID, "Acme Corp", "new")
	if err != nil {
		t.Fatalf("UpdateOrganization() error = %v", err)
	}
	if updated.Name != "Acme Corp" || updated.InvitationCode != org.InvitationCode {
		t.Errorf("updated = %+v", updated)
	}

	wantKind(t, f.svc.DeleteOrganization(f.ctx, member, org.ID), apperr.KindForbidden)
	wantKind(t, f.svc.DeleteOrganization(f.ctx, admin, 9999), apperr.KindNotFound)
	if err := f.svc.DeleteOrganization(f.ctx, admin, org.ID); err != nil {
		t.Fatalf("DeleteOrganization() error = %v", err)
	}
	if f.reload(member).HasOrganization() {
		t.Error("member still attached to a deleted organization")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   Registration
		kind apperr.Kind
	}{
		{"Given a malformed email Then validation", Registration{Email: "nope", Password: "password123", ConfirmPassword: "password123", FirstName: "a", LastName: "b"}, apperr.KindValidation},
		{"Given a short password Then validation", Registration{Email: "a@b.io", Password: "short", ConfirmPassword: "short", FirstName: "a", LastName: "b"}, apperr.KindValidation},
		{"Given mismatched passwords Then validation", Registration{Email: "a@b.io", Password: "password123", ConfirmPassword: "password124", FirstName: "a", LastName: "b"}, apperr.KindValidation},
		{"Given no first name Then validation", Registration{Email: "a@b.io", Password: "password123", ConfirmPassword: "password123", LastName: "b"}, apperr.KindValidation},
		{"Given a password over 72 bytes Then validation", Registration{Email: "a@b.io", Password: strings.Repeat("p", 80), ConfirmPassword: strings.Repeat("p", 80), FirstName: "a", LastName: "b"}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(f.ctx, tt.in)
			wantKind(t, err, tt.kind)
		})
	}

	in := Registration{Email: "Jane@Example.com", Password: "password123", ConfirmPassword: "password123", FirstName: "Jane", LastName: "Doe"}
	u, err := f.svc.Register(f.ctx, in)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if u.Email != "jane@example.com" || u.PasswordHash == in.Password {
		t.Errorf("registered = %+v", u)
	}
	_, err = f.svc.Register(f.ctx, in)
	wantKind(t, err, apperr.KindConflict)

	if _, err := f.svc.Login(f.ctx, "JANE@example.com", "password123"); err != nil {
		t.Errorf("Login() error = %v", err)
	}
	_, err = f.svc.Login(f.ctx, "jane@example.com", "wrong-password")
	wantKind(t, err, apperr.KindUnauthenticated)
	_, err = f.svc.Login(f.ctx, "ghost@example.com", "password123")
	wantKind(t, err, apperr.KindUnauthenticated)
}

func TestNewTaskDefaults(t *testing.T) {
	f := newFixture(t)
	_, admin := f.org("Acme")
	p, err := f.svc.CreateProject(f.ctx, admin, ProjectInput{Name: "P"})
	if err != nil {
		t.Fatal(err)
	}

	before := time.Now().Add(-time.Second)
	task, err := f.svc.CreateTask(f.ctx, admin, p.Project.ID, TaskInput{Title: "T"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	created := task.Task.CreatedAt
	if created.Before(before) || created.After(time.Now().Add(time.Second)) {
		t.Errorf("created_at %v not near now", created)
	}
	if task.Task.Status != models.StatusToDo || task.Task.Priority != models.PriorityMedium || task.Task.UpdatedAt != nil {
		t.Errorf("task = %+v", task.Task)
	}
	if task.ProjectName != "P" {
		t.Errorf("ProjectName = %q", task.ProjectName)
	}

	high, err := f.svc.CreateTask(f.ctx, admin, p.Project.ID, TaskInput{Title: "H", Priority: models.PriorityHigh})
	if err != nil || high.Task.Priority != models.PriorityHigh {
		t.Errorf("explicit priority = %v, %v", high.Task.Priority, err)
	}
	_, err = f.svc.CreateTask(f.ctx, admin, p.Project.ID, TaskInput{Title: "  "})
	wantKind(t, err, apperr.KindValidation)
	_, err = f.svc.CreateTask(f.ctx, admin, p.Project.ID, TaskInput{Title: "X", Priority: "urgent"})
	wantKind(t, err, apperr.KindValidation)
}

func TestTaskGating(t *testing.T) {
	f := newFixture(t)
	org, admin := f.org("Acme")
	leader := f.withRole(f.join(org, "leader"), models.RoleTeamLeader, admin)
	outsideLeader := f.withRole(f.join(org, "outsider"), models.RoleTeamLeader, admin)
	manager := f.join(org, "manager")
	member := f.join(org, "member")

	p, err := f.svc.CreateProject(f.ctx, admin, ProjectInput{
		Name:         "P",
		TeamLeaderID: &manager.ID,
		MemberIDs:    []int64{leader.ID, member.ID},
	})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}

	tests := []struct {
		name  string
		actor models.User
		kind  apperr.Kind
	}{
		{"Given the administrator When creating a task Then allowed", admin, -1},
		{"Given a team leader in the project When creating a task Then allowed", leader, -1},
		{"Given the project manager When creating a task Then allowed", manager, -1},
		{"Given a plain member When creating a task Then forbidden", member, apperr.KindForbidden},
		{"Given a team leader outside the project When creating a task Then forbidden", outsideLeader, apperr.KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTask(f.ctx, tt.actor, p.Project.ID, TaskInput{Title: tt.name})
			if tt.kind < 0 {
				if err != nil {
					t.Fatalf("CreateTask() error = %v", err)
				}
				return
			}
			wantKind(t, err, tt.kind)
		})
	}

	view, err := f.svc.GetProject(f.ctx, admin, p.Project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.TeamLeader == nil || view.TeamLeader.ID != manager.ID || view.MemberCount != 4 || view.TaskCount != 3 {
		t.Errorf("project view = %+v", view)
	}
}

func TestMissingResourceBeatsPermission(t *testing.T) {
	f := newFixture(t)
	org, admin := f.org("Acme")
	stranger := f.join(org, "stranger")

	p, err := f.svc.CreateProject(f.ctx, admin, ProjectInput{Name: "Private"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := f.svc.CreateTask(f.ctx, admin, p.Project.ID, TaskInput{Title: "T"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.GetTask(f.ctx, stranger, task.Task.ID)
	wantKind(t, err, apperr.KindForbidden)
	_, err = f.svc.GetTask(f.ctx, stranger, task.Task.ID+1000)
	wantKind(t, err, apperr.KindNotFound)
	_, err = f.svc.GetProject(f.ctx, stranger, p.Project.ID)
	wantKind(t, err, apperr.KindForbidden)
	_, err = f.svc.GetProject(f.ctx, stranger, p.Project.ID+1000)
	wantKind(t, err, apperr.KindNotFound)
}

func TestProjectMembership(t *testing.T) {
	f := newFixture(t)
	org, admin := f.org("Acme")
	creator := f.join(org, "creator")
	member := f.join(org, "member")
	other := f.join(org, "other")

	p, err := f.svc.CreateProject(f.ctx, creator, ProjectInput{Name: "P", MemberIDs: []int64{member.ID}})
	if err != nil {
		t.Fatal(err)
	}

	wantKind(t, f.svc.RemoveProjectMember(f.ctx, member, p.Project.ID, creator.ID), apperr.KindForbidden)
	wantKind(t, f.svc.RemoveProjectMember(f.ctx, admin, p.Project.ID, creator.ID), apperr.KindForbidden)
	wantKind(t, f.svc.RemoveProjectMember(f.ctx, creator, p.Project.ID, creator.ID), apperr.KindForbidden)

	_, err = f.svc.AddProjectMember(f.ctx, other, p.Project.ID, other.ID)
	wantKind(t, err, apperr.KindForbidden)
	if _, err := f.svc.AddProjectMember(f.ctx, member, p.Project.ID, other.ID); err != nil {
		t.Fatalf("AddProjectMember() error = %v", err)
	}
	_, err = f.svc.AddProjectMember(f.ctx, member, p.Project.ID, other.ID)
	wantKind(t, err, apperr.KindConflict)

	foreignOrg, _ := f.org("Elsewhere")
	outsider := f.join(foreignOrg, "outsider")
	_, err = f.svc.AddProjectMember(f.ctx, member, p.Project.ID, outsider.ID)
	wantKind(t, err, apperr.KindValidation)

	if err := f.svc.RemoveProjectMember(f.ctx, member, p.Project.ID, other.ID); err != nil {
		t.Fatalf("RemoveProjectMember() error = %v", err)
	}

	wantKind(t, f.svc.DeleteProject(f.ctx, member, p.Project.ID), apperr.KindForbidden)
	if err := f.svc.DeleteProject(f.ctx, creator, p.Project.ID); err != nil {
		t.Fatalf("DeleteProject() by creator error = %v", err)
	}

	q, err := f.svc.CreateProject(f.ctx, creator, ProjectInput{Name: "Q"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.DeleteProject(f.ctx, admin, q.Project.ID); err != nil {
		t.Fatalf("DeleteProject() by administrator error = %v", err)
	}
}

func TestUpdateProjectRoster(t *testing.T) {
	f := newFixture(t)
	org, admin := f.org("Acme")
	member := f.join(org, "member")
	leaving := f.join(org, "leaving")
	manager := f.join(org, "manager")

	p, err := f.svc.CreateProject(f.ctx, admin, ProjectInput{Name: "P", MemberIDs: []int64{member.ID, leaving.ID}})
	if err != nil {
		t.Fatal(err)
	}

	// Plain members may edit the project itself.
	name := "Renamed"
	theme := "#10b981"
	updated, err := f.svc.UpdateProject(f.ctx, member, p.Project.ID, ProjectUpdate{
		Name:         &name,
		Theme:        &theme,
		TeamLeaderID: &manager.ID,
		MemberIDs:    []int64{member.ID},
	})
	if err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}
	if updated.Project.Name != name || updated.Project.Theme == nil || *updated.Project.Theme != theme {
		t.Errorf("updated = %+v", updated.Project)
	}

	members, err := f.svc.ListProjectMembers(f.ctx, admin, p.Project.ID)
	if err != nil {
		t.Fatal(err)
	}
	labels := map[int64]models.ProjectLabel{}
	for _, m := range members {
		labels[m.User.ID] = m.Member.Label
	}
	want := map[int64]models.ProjectLabel{
		admin.ID:   models.LabelCreator,
		member.ID:  models.LabelPlainMember,
		manager.ID: models.LabelProjectManager,
	}
	if len(labels) != len(want) {
		t.Fatalf("roster = %v, want %v", labels, want)
	}
	for id, label := range want {
		if labels[id] != label {
			t.Errorf("user %d label = %v, want %v", id, labels[id], label)
		}
	}

	bad := "blue"
	_, err = f.svc.UpdateProject(f.ctx, member, p.Project.ID, ProjectUpdate{Theme: &bad})
	wantKind(t, err, apperr.KindValidation)
	_, err = f.svc.UpdateProject(f.ctx, leaving, p.Project.ID, ProjectUpdate{Name: &name})
	wantKind(t, err, apperr.KindForbidden)
}

func TestRejectedProjectUpdateChangesNothing(t *testing.T) {
	f := newFixture(t)
	org, admin := f.org("Acme")
	keep := f.join(org, "keep")
	manager := f.join(org, "manager")
	otherOrg, _ := f.org("Globex")
	outsider := f.join(otherOrg, "outsider")

	p, err := f.svc.CreateProject(f.ctx, admin, ProjectInput{Name: "P", TeamLeaderID: &manager.ID, MemberIDs: []int64{keep.ID}})
	if err != nil {
		t.Fatal(err)
	}
	unknown := int64(999)
	renamed := "Renamed"

	tests := []struct {
		name   string
		update ProjectUpdate
	}{
		{"Given an unknown member id When replacing the roster Then nothing is removed", ProjectUpdate{MemberIDs: []int64{unknown}}},
		{"Given a member of another organization When replacing the roster Then nothing is removed", ProjectUpdate{Name: &renamed, MemberIDs: []int64{outsider.ID}}},
		{"Given an unknown manager When moving the manager Then labels stay", ProjectUpdate{TeamLeaderID: &unknown, MemberIDs: []int64{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateProject(f.ctx, keep, p.Project.ID, tt.update)
			wantKind(t, err, apperr.KindValidation)

			view, err := f.svc.GetProject(f.ctx, admin, p.Project.ID)
			if err != nil {
				t.Fatal(err)
			}
			if view.Project.Name != "P" || !view.Project.IsManagedBy(manager.ID) {
				t.Errorf("project changed: %+v", view.Project)
			}
			members, err := f.svc.ListProjectMembers(f.ctx, admin, p.Project.ID)
			if err != nil {
				t.Fatal(err)
			}
			labels := map[int64]models.ProjectLabel{}
			for _, m := range members {
				labels[m.User.ID] = m.Member.Label
			}
			want := map[int64]models.ProjectLabel{
				admin.ID:   models.LabelCreator,
				keep.ID:    models.LabelPlainMember,
				manager.ID: models.LabelProjectManager,
			}
			if len(labels) != len(want) {
				t.Fatalf("roster = %v, want %v", labels, want)
			}
			for id, label := range want {
				if got, ok := labels[id]; !ok || got != label {
					t.Errorf("user %d label = %v (present %v), want %v", id, got, ok, label)
				}
			}
		})
	}
}

func TestAssignments(t *testing.T) {
	f := newFixture(t)
	org, admin := f.org("Acme")
	member := f.join(org, "member")
	outsider := f.join(org, "outsider")

	p, err := f.svc.CreateProject(f.ctx, admin, ProjectInput{Name: "P", MemberIDs: []int64{member.ID}})
	if err != nil {
		t.Fatal(err)
	}
	task, err := f.svc.CreateTask(f.ctx, admin, p.Project.ID, TaskInput{Title: "T"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.AssignTask(f.ctx, admin, task.Task.ID, outsider.ID)
	wantKind(t, err, apperr.KindValidation)

	view, err := f.svc.AssignTask(f.ctx, member, task.Task.ID, member.ID)
	if err != nil {
		t.Fatalf("AssignTask() error = %v", err)
	}
	if len(view.Assignees) != 1 || view.Assignees[0].ID != member.ID {
		t.Errorf("assignees = %+v", view.Assignees)
	}
	_, err = f.svc.AssignTask(f.ctx, admin, task.Task.ID, member.ID)
	wantKind(t, err, apperr.KindConflict)

	page, err := f.svc.ListTasks(f.ctx, member, sqlite.TaskFilter{ProjectID: p.Project.ID, AssigneeID: &member.ID})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if page.Total != 1 || len(page.Tasks) != 1 {
		t.Errorf("assigned page = %+v", page)
	}

	view, err = f.svc.UnassignTask(f.ctx, admin, task.Task.ID, member.ID)
	if err != nil {
		t.Fatalf("UnassignTask() error = %v", err)
	}
	if len(view.Assignees) != 0 {
		t.Errorf("assignees after unassign = %+v", view.Assignees)
	}
	_, err = f.svc.UnassignTask(f.ctx, admin, task.Task.ID, member.ID)
	wantKind(t, err, apperr.KindNotFound)
}

func TestCommentDeletionIsAuthorOnly(t *testing.T) {
	f := newFixture(t)
	org, admin := f.org("Acme")
	author := f.join(org, "author")

	p, err := f.svc.CreateProject(f.ctx, admin, ProjectInput{Name: "P", MemberIDs: []int64{author.ID}})
	if err != nil {
		t.Fatal(err)
	}
	task, err := f.svc.CreateTask(f.ctx, admin, p.Project.ID, TaskInput{Title: "T"})
	if err != nil {
		t.Fatal(err)
	}
	c, err := f.svc.CreateComment(f.ctx, author, task.Task.ID, "looks good")
	if err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}
	_, err = f.svc.CreateComment(f.ctx, author, task.Task.ID, "   ")
	wantKind(t, err, apperr.KindValidation)

	wantKind(t, f.svc.DeleteComment(f.ctx, admin, c.Comment.ID), apperr.KindForbidden)

	comments, err := f.svc.ListComments(f.ctx, admin, task.Task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || comments[0].Author.ID != author.ID {
		t.Fatalf("comments = %+v", comments)
	}
	if err := f.svc.DeleteComment(f.ctx, author, c.Comment.ID); err != nil {
		t.Fatalf("DeleteComment() error = %v", err)
	}
	wantKind(t, f.svc.DeleteComment(f.ctx, author, c.Comment.ID), apperr.KindNotFound)
}

func TestUserManagement(t *testing.T) {
	f := newFixture(t)
	org, admin := f.org("Acme")
	member := f.join(org, "member")
	peer := f.join(org, "peer")

	first := "Renamed"
	if _, err := f.svc.UpdateUser(f.ctx, member, member.ID, UserUpdate{FirstName: &first}); err != nil {
		t.Fatalf("self rename error = %v", err)
	}
	_, err := f.svc.UpdateUser(f.ctx, member, peer.ID, UserUpdate{FirstName: &first})
	wantKind(t, err, apperr.KindForbidden)
	_, err = f.svc.UpdateUser(f.ctx, admin, peer.ID, UserUpdate{FirstName: &first})
	wantKind(t, err, apperr.KindForbidden)

	role := models.RoleAdministrator
	_, err = f.svc.UpdateUser(f.ctx, member, member.ID, UserUpdate{Role: &role})
	wantKind(t, err, apperr.KindForbidden)
	bogus := models.Role(9)
	_, err = f.svc.UpdateUser(f.ctx, admin, member.ID, UserUpdate{Role: &bogus})
	wantKind(t, err, apperr.KindValidation)

	wantKind(t, f.svc.DeleteUser(f.ctx, admin, admin.ID), apperr.KindForbidden)
	wantKind(t, f.svc.DeleteUser(f.ctx, member, peer.ID), apperr.KindForbidden)
	if err := f.svc.DeleteUser(f.ctx, admin, peer.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	_, err = f.svc.Authenticate(f.ctx, peer.ID)
	wantKind(t, err, apperr.KindUnauthenticated)
}

func TestProjectCreatorCannotBeDeleted(t *testing.T) {
	f := newFixture(t)
	org, admin := f.org("Acme")
	creator := f.join(org, "creator")

	p, err := f.svc.CreateProject(f.ctx, creator, ProjectInput{Name: "P"})
	if err != nil {
		t.Fatal(err)
	}

	wantKind(t, f.svc.DeleteUser(f.ctx, admin, creator.ID), apperr.KindConflict)
	members, err := f.svc.ListProjectMembers(f.ctx, admin, p.Project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].User.ID != creator.ID || members[0].Member.Label != models.LabelCreator {
		t.Fatalf("members after rejected delete = %+v", members)
	}

	if err := f.svc.DeleteProject(f.ctx, admin, p.Project.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.DeleteUser(f.ctx, admin, creator.ID); err != nil {
		t.Fatalf("DeleteUser() after project removal error = %v", err)
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		done, total, want int
	}{
		{0, 0, 0},
		{0, 5, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{4, 4, 100},
	}
	for _, tt := range tests {
		if got := ProgressPercent(tt.done, tt.total); got != tt.want {
			t.Errorf("ProgressPercent(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := now
	f.store.SetClock(func() time.Time { return clock })

	org, admin := f.org("Acme")
	member := f.join(org, "member")

	var projects []ProjectView
	for i := 0; i < 6; i++ {
		clock = now.Add(time.Duration(i) * time.Minute)
		p, err := f.svc.CreateProject(f.ctx, admin, ProjectInput{Name: fmt.Sprintf("P%d", i)})
		if err != nil {
			t.Fatal(err)
		}
		projects = append(projects, p)
	}
	inactive := models.ProjectInactive
	if _, err := f.svc.UpdateProject(f.ctx, admin, projects[5].Project.ID, ProjectUpdate{Status: &inactive}); err != nil {
		t.Fatal(err)
	}
	// A project the admin does not belong to stays out of the dashboard.
	if _, err := f.svc.CreateProject(f.ctx, member, ProjectInput{Name: "Hidden"}); err != nil {
		t.Fatal(err)
	}

	clock = now
	due := func(d time.Duration) *time.Time { v := now.Add(d); return &v }
	first := projects[4].Project.ID
	mk := func(title string, dueDate *time.Time) TaskView {
		t.Helper()
		task, err := f.svc.CreateTask(f.ctx, admin, first, TaskInput{Title: title, DueDate: dueDate})
		if err != nil {
			t.Fatal(err)
		}
		return task
	}
	soon := mk("soon", due(24*time.Hour))
	mk("sooner", due(time.Hour))
	mk("overdue", due(-time.Hour))
	mk("far", due(8*24*time.Hour))
	mk("undated", nil)
	done := mk("done", due(2*time.Hour))
	if _, err := f.svc.ChangeTaskStatus(f.ctx, admin, done.Task.ID, models.StatusDone); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ChangeTaskStatus(f.ctx, admin, soon.Task.ID, models.StatusInProgress); err != nil {
		t.Fatal(err)
	}

	d, err := f.svc.Dashboard(f.ctx, admin)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if d.ProjectCounts[models.ProjectActive] != 5 || d.ProjectCounts[models.ProjectInactive] != 1 {
		t.Errorf("project counts = %v", d.ProjectCounts)
	}
	if d.TaskCounts[models.StatusToDo] != 4 || d.TaskCounts[models.StatusInProgress] != 1 || d.TaskCounts[models.StatusDone] != 1 {
		t.Errorf("task counts = %v", d.TaskCounts)
	}
	if len(d.UpcomingTasks) != 2 || d.UpcomingTasks[0].Task.Title != "sooner" || d.UpcomingTasks[1].Task.Title != "soon" {
		t.Errorf("upcoming = %+v", d.UpcomingTasks)
	}
	if len(d.RecentProjects) != 5 {
		t.Fatalf("recent projects = %d, want 5", len(d.RecentProjects))
	}
	if d.RecentProjects[0].Project.ID != first {
		t.Errorf("most recent active project = %d, want %d", d.RecentProjects[0].Project.ID, first)
	}
	if d.RecentProjects[0].Progress != 17 {
		t.Errorf("progress = %d, want 17", d.RecentProjects[0].Progress)
	}

	empty, err := f.svc.Dashboard(f.ctx, f.register("loner"))
	if err != nil {
		t.Fatalf("Dashboard() without organization error = %v", err)
	}
	if len(empty.RecentProjects) != 0 || empty.TaskCounts[models.StatusDone] != 0 {
		t.Errorf("empty dashboard = %+v", empty)
	}
}

func TestInvitationCodeCollisionRetries(t *testing.T) {
	f := newFixture(t)
	org, _ := f.org("Acme")

	// Seeded like the fixture's generator, so its first code is already taken.
	replay := New(f.store, invite.NewGeneratorWithSource(rand.NewSource(1)), nil)
	copycat, err := replay.CreateOrganization(f.ctx, f.register("late"), "Copycat", "")
	if err != nil {
		t.Fatalf("CreateOrganization() error = %v", err)
	}
	if copycat.InvitationCode == org.InvitationCode || !invite.Valid(copycat.InvitationCode) {
		t.Errorf("codes %q and %q", org.InvitationCode, copycat.InvitationCode)
	}
}
