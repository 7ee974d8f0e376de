// Package policy decides whether an actor may perform an action on a resource.
//
// Every rule is a pure function of a Subject that the caller fills from storage
// before asking. Nothing is cached between requests.
package policy

import (
	"teamflow/internal/apperr"
	"teamflow/internal/models"
)

// Actor is the authenticated caller.
type Actor struct {
	ID             int64
	OrganizationID *int64
	Role           models.Role
}

// InOrganization reports whether the actor belongs to orgID.
func (a Actor) InOrganization(orgID int64) bool {
	return a.OrganizationID != nil && *a.OrganizationID == orgID
}

// IsAdminOf reports whether the actor administers orgID.
func (a Actor) IsAdminOf(orgID int64) bool {
	return a.Role == models.RoleAdministrator && a.InOrganization(orgID)
}

// Subject is everything a project-scoped rule looks at.
type Subject struct {
	Actor Actor

	// ProjectOrganizationID owns the project the resource lives in.
	ProjectOrganizationID int64
	// Member is true when the actor has a membership row in the project.
	Member bool
	// Label is the actor's project-local label; only meaningful when Member is set.
	Label models.ProjectLabel
	// ProjectManager is true when the project's team leader reference is the actor.
	ProjectManager bool
	// Assignee is true when the actor is assigned to the task being acted on.
	Assignee bool
}

// Decision is the outcome of a rule.
type Decision struct {
	Allowed bool
	Reason  string
}

// Err returns nil for an allowed decision and a Forbidden error otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.Forbidden("%s", d.Reason)
}

var allow = Decision{Allowed: true}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// UpdateOrganization allows only administrators of that organization.
func UpdateOrganization(a Actor, orgID int64) Decision {
	if a.IsAdminOf(orgID) {
		return allow
	}
	return deny("only an administrator of the organization can modify it")
}

// DeleteOrganization follows the same rule as UpdateOrganization.
func DeleteOrganization(a Actor, orgID int64) Decision {
	if a.IsAdminOf(orgID) {
		return allow
	}
	return deny("only an administrator of the organization can delete it")
}

// CreateProject allows any user that belongs to an organization.
func CreateProject(a Actor) Decision {
	if a.OrganizationID != nil {
		return allow
	}
	return deny("join or create an organization before creating projects")
}

// ViewProject allows project members and administrators of the owning organization.
func ViewProject(s Subject) Decision {
	if s.Member || s.Actor.IsAdminOf(s.ProjectOrganizationID) {
		return allow
	}
	return deny("you are not a member of this project")
}

// UpdateProject allows any project member. Organizational role does not matter here,
// unlike the task rules.
func UpdateProject(s Subject) Decision {
	if s.Member {
		return allow
	}
	return deny("only project members can edit the project")
}

// DeleteProject allows the project's creator and administrators of its organization.
func DeleteProject(s Subject) Decision {
	if s.Member && s.Label == models.LabelCreator {
		return allow
	}
	if s.Actor.IsAdminOf(s.ProjectOrganizationID) {
		return allow
	}
	return deny("only the project creator or an administrator can delete the project")
}

// AddProjectMember allows any project member.
func AddProjectMember(s Subject) Decision {
	if s.Member {
		return allow
	}
	return deny("only project members can add members")
}

// RemoveProjectMember allows any project member, but the creator can never be removed.
func RemoveProjectMember(s Subject, removed models.ProjectLabel) Decision {
	if removed.Protected() {
		return deny("the project creator cannot be removed")
	}
	if s.Member {
		return allow
	}
	return deny("only project members can remove members")
}

// CreateTask allows administrators, team leaders who are project members, and the
// project manager. Plain members never create tasks.
func CreateTask(s Subject) Decision {
	if canManageTasks(s) {
		return allow
	}
	return deny("only administrators, team leaders in the project or the project manager can create tasks")
}

// EditTask covers title, description, priority and due date changes.
func EditTask(s Subject) Decision {
	if canManageTasks(s) {
		return allow
	}
	return deny("only administrators, team leaders in the project or the project manager can edit tasks")
}

// ChangeTaskStatus extends EditTask with members assigned to the task.
func ChangeTaskStatus(s Subject) Decision {
	if canManageTasks(s) {
		return allow
	}
	if s.Actor.Role == models.RoleMember && s.Assignee {
		return allow
	}
	return deny("members can only move tasks assigned to them")
}

// DeleteTask allows any project member.
func DeleteTask(s Subject) Decision {
	if s.Member {
		return allow
	}
	return deny("only project members can delete tasks")
}

// AssignTask allows any project member. Whether the target user may be assigned is
// checked separately by the caller.
func AssignTask(s Subject) Decision {
	if s.Member {
		return allow
	}
	return deny("only project members can change assignees")
}

// CreateComment allows any project member.
func CreateComment(s Subject) Decision {
	if s.Member {
		return allow
	}
	return deny("only project members can comment")
}

// DeleteComment allows only the comment's author, whatever their role.
func DeleteComment(a Actor, authorID int64) Decision {
	if a.ID == authorID {
		return allow
	}
	return deny("only the author can delete a comment")
}

// UpdateUser lets users edit only their own names; changing a role needs an
// administrator of the target's organization. A request doing both must pass both.
func UpdateUser(a Actor, target models.User, changesNames, changesRole bool) Decision {
	if (changesNames || !changesRole) && a.ID != target.ID {
		return deny("you can only edit your own profile")
	}
	if changesRole && !(a.Role == models.RoleAdministrator && target.OrganizationID != nil && a.InOrganization(*target.OrganizationID)) {
		return deny("only an administrator of the same organization can change roles")
	}
	return allow
}

// DeleteUser allows administrators to remove other users of their organization.
func DeleteUser(a Actor, target models.User) Decision {
	if a.ID == target.ID {
		return deny("you cannot delete your own account")
	}
	if a.Role == models.RoleAdministrator && target.OrganizationID != nil && a.InOrganization(*target.OrganizationID) {
		return allow
	}
	return deny("only an administrator of the same organization can delete users")
}

func canManageTasks(s Subject) bool {
	switch {
	case s.Actor.IsAdminOf(s.ProjectOrganizationID):
		return true
	case s.Actor.Role == models.RoleTeamLeader && s.Member:
		return true
	case s.ProjectManager:
		return true
	}
	return false
}
