package server

import (
	"strings"
	"time"
	"unicode/utf8"

	"teamflow/internal/models"
	"teamflow/internal/service"
)

type userDTO struct {
	models.User
	FullName string `json:"full_name"`
	Initials string `json:"initials"`
}

type assigneeDTO struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Initials string `json:"initials"`
}

type projectDTO struct {
	models.Project
	TeamLeaderName *string `json:"team_leader_name"`
	MemberCount    int     `json:"member_count"`
	TaskCount      int     `json:"task_count"`
	Progress       int     `json:"progress"`
}

type memberDTO struct {
	UserID   int64               `json:"user_id"`
	Email    string              `json:"email"`
	FullName string              `json:"full_name"`
	Initials string              `json:"initials"`
	Role     models.Role         `json:"role"`
	Label    models.ProjectLabel `json:"label"`
	JoinedAt time.Time           `json:"joined_at"`
}

type taskDTO struct {
	models.Task
	ProjectName string        `json:"project_name"`
	Assignees   []assigneeDTO `json:"assignees"`
}

type commentDTO struct {
	models.Comment
	AuthorName     string `json:"author_name"`
	AuthorInitials string `json:"author_initials"`
}

type dashboardDTO struct {
	TaskCounts     map[models.TaskStatus]int    `json:"task_counts"`
	ProjectCounts  map[models.ProjectStatus]int `json:"project_counts"`
	UpcomingTasks  []taskDTO                    `json:"upcoming_tasks"`
	RecentProjects []projectDTO                 `json:"recent_projects"`
}

// initials takes the first letters of both names, or the first two letters of
// the email's local part when a name is missing.
func initials(first, last, email string) string {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if first != "" && last != "" {
		f, _ := utf8.DecodeRuneInString(first)
		l, _ := utf8.DecodeRuneInString(last)
		return strings.ToUpper(string([]rune{f, l}))
	}
	local, _, _ := strings.Cut(email, "@")
	runes := []rune(local)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}

func fullName(u models.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

func toUser(u models.User) userDTO {
	return userDTO{User: u, FullName: fullName(u), Initials: initials(u.FirstName, u.LastName, u.Email)}
}

func toUsers(users []models.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUser(u))
	}
	return out
}

func toProject(v service.ProjectView) projectDTO {
	dto := projectDTO{
		Project:     v.Project,
		MemberCount: v.MemberCount,
		TaskCount:   v.TaskCount,
		Progress:    v.Progress,
	}
	if v.TeamLeader != nil {
		name := fullName(*v.TeamLeader)
		dto.TeamLeaderName = &name
	}
	return dto
}

func toProjects(views []service.ProjectView) []projectDTO {
	out := make([]projectDTO, 0, len(views))
	for _, v := range views {
		out = append(out, toProject(v))
	}
	return out
}

func toMember(v service.MemberView) memberDTO {
	return memberDTO{
		UserID:   v.Member.UserID,
		Email:    v.User.Email,
		FullName: fullName(v.User),
		Initials: initials(v.User.FirstName, v.User.LastName, v.User.Email),
		Role:     v.User.Role,
		Label:    v.Member.Label,
		JoinedAt: v.Member.JoinedAt,
	}
}

func toMembers(views []service.MemberView) []memberDTO {
	out := make([]memberDTO, 0, len(views))
	for _, v := range views {
		out = append(out, toMember(v))
	}
	return out
}

func toTask(v service.TaskView) taskDTO {
	dto := taskDTO{Task: v.Task, ProjectName: v.ProjectName, Assignees: make([]assigneeDTO, 0, len(v.Assignees))}
	for _, u := range v.Assignees {
		dto.Assignees = append(dto.Assignees, assigneeDTO{
			ID:       u.ID,
			FullName: fullName(u),
			Initials: initials(u.FirstName, u.LastName, u.Email),
		})
	}
	return dto
}

func toTasks(views []service.TaskView) []taskDTO {
	out := make([]taskDTO, 0, len(views))
	for _, v := range views {
		out = append(out, toTask(v))
	}
	return out
}

func toComment(v service.CommentView) commentDTO {
	return commentDTO{
		Comment:        v.Comment,
		AuthorName:     fullName(v.Author),
		AuthorInitials: initials(v.Author.FirstName, v.Author.LastName, v.Author.Email),
	}
}

func toDashboard(d service.Dashboard) dashboardDTO {
	return dashboardDTO{
		TaskCounts:     d.TaskCounts,
		ProjectCounts:  d.ProjectCounts,
		UpcomingTasks:  toTasks(d.UpcomingTasks),
		RecentProjects: toProjects(d.RecentProjects),
	}
}
