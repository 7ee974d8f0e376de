package models

import "time"

// Organization is the tenant that owns users and projects.
type Organization struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	InvitationCode string    `json:"invitation_code"`
	CreatedAt      time.Time `json:"created_at"`
}

// User is an account. OrganizationID stays nil until the user creates or joins an organization.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	PasswordHash   string    `json:"-"`
	OrganizationID *int64    `json:"organization_id"`
	Role           Role      `json:"role"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasOrganization reports whether the user finished onboarding.
func (u User) HasOrganization() bool {
	return u.OrganizationID != nil
}

// InOrganization reports whether the user belongs to orgID.
func (u User) InOrganization(orgID int64) bool {
	return u.OrganizationID != nil && *u.OrganizationID == orgID
}

// Project groups tasks inside an organization.
type Project struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	OrganizationID int64         `json:"organization_id"`
	TeamLeaderID   *int64        `json:"team_leader_id"`
	Status         ProjectStatus `json:"status"`
	Theme          *string       `json:"theme"`
	DueDate        *time.Time    `json:"due_date"`
	CreatedAt      time.Time     `json:"created_at"`
}

// IsManagedBy reports whether userID is the project's manager.
func (p Project) IsManagedBy(userID int64) bool {
	return p.TeamLeaderID != nil && *p.TeamLeaderID == userID
}

// ProjectMember links a user to a project.
type ProjectMember struct {
	ProjectID int64        `json:"project_id"`
	UserID    int64        `json:"user_id"`
	Label     ProjectLabel `json:"label"`
	JoinedAt  time.Time    `json:"joined_at"`
}

// Task is a single card on a project board.
type Task struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// TaskAssignment links a task to one of its assignees.
type TaskAssignment struct {
	TaskID     int64     `json:"task_id"`
	UserID     int64     `json:"user_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Comment is a note left on a task by its author.
type Comment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	AuthorID  int64     `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
