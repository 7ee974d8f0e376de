package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Role is the organization-scoped role of a user. Stored as an integer.
type Role int

const (
	RoleMember Role = iota
	RoleTeamLeader
	RoleAdministrator
)

var roleNames = map[Role]string{
	RoleMember:        "Member",
	RoleTeamLeader:    "TeamLeader",
	RoleAdministrator: "Administrator",
}

// String is the single mapping from stored role values to their names.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "Role(" + strconv.Itoa(int(r)) + ")"
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole accepts a role name (case-insensitive) or its numeric value.
func ParseRole(raw string) (Role, error) {
	raw = strings.TrimSpace(raw)
	for role, name := range roleNames {
		if strings.EqualFold(raw, name) {
			return role, nil
		}
	}
	if n, err := strconv.Atoi(raw); err == nil && Role(n).Valid() {
		return Role(n), nil
	}
	return RoleMember, fmt.Errorf("unknown role %q", raw)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("unknown role %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ProjectStatus marks whether a project is still being worked on.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectInactive ProjectStatus = "inactive"
)

func (s ProjectStatus) Valid() bool {
	return s == ProjectActive || s == ProjectInactive
}

// TaskStatus is the board column of a task.
type TaskStatus string

const (
	StatusToDo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// ValidTaskStatuses enumerates the statuses supported by the board columns.
var ValidTaskStatuses = map[TaskStatus]struct{}{
	StatusToDo:       {},
	StatusInProgress: {},
	StatusDone:       {},
}

func (s TaskStatus) Valid() bool {
	_, ok := ValidTaskStatuses[s]
	return ok
}

// CanTransition reports whether a task may move from one status to another.
// Every pair of board columns is reachable; only authorization gates a move.
func CanTransition(from, to TaskStatus) bool {
	return from.Valid() && to.Valid()
}

// Priority orders tasks inside a column.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var priorityRanks = map[Priority]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
}

func (p Priority) Valid() bool {
	_, ok := priorityRanks[p]
	return ok
}

// Rank is used when sorting by priority.
func (p Priority) Rank() int {
	return priorityRanks[p]
}

// ProjectLabel is the project-local tag of a membership.
type ProjectLabel int

const (
	LabelPlainMember ProjectLabel = iota
	LabelCreator
	LabelProjectManager
)

// Stored text of each label. Plain members carry no label.
const (
	creatorText        = "Creator"
	projectManagerText = "Team Leader"
)

// String returns the stored text of the label.
func (l ProjectLabel) String() string {
	switch l {
	case LabelCreator:
		return creatorText
	case LabelProjectManager:
		return projectManagerText
	default:
		return ""
	}
}

// Protected reports whether a member with this label can never be removed.
func (l ProjectLabel) Protected() bool {
	return l == LabelCreator
}

// ParseProjectLabel maps stored text back to a label; unknown text is a plain member.
func ParseProjectLabel(raw string) ProjectLabel {
	switch strings.TrimSpace(raw) {
	case creatorText:
		return LabelCreator
	case projectManagerText:
		return LabelProjectManager
	default:
		return LabelPlainMember
	}
}

func (l ProjectLabel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *ProjectLabel) UnmarshalText(text []byte) error {
	*l = ParseProjectLabel(string(text))
	return nil
}
