package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"teamflow/internal/apperr"
	"teamflow/internal/models"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func labelValue(l models.ProjectLabel) any {
	if l == models.LabelPlainMember {
		return nil
	}
	return l.String()
}

func insertMember(ctx context.Context, db execer, projectID, userID int64, label models.ProjectLabel, at time.Time) error {
	_, err := db.ExecContext(ctx, `INSERT INTO project_members(project_id, user_id, label, joined_at) VALUES(?, ?, ?, ?)`,
		projectID, userID, labelValue(label), at)
	if isUniqueViolation(err) {
		return apperr.Conflict("user %d is already a member of project %d", userID, projectID)
	}
	if err != nil {
		return fmt.Errorf("insert project member: %w", err)
	}
	return nil
}

func scanMember(row rowScanner) (models.ProjectMember, error) {
	var (
		m     models.ProjectMember
		label sql.NullString
	)
	if err := row.Scan(&m.ProjectID, &m.UserID, &label, &m.JoinedAt); err != nil {
		return models.ProjectMember{}, err
	}
	m.Label = models.ParseProjectLabel(label.String)
	return m, nil
}

// GetProjectMember returns the membership of userID in projectID. The boolean is
// false when the user is not a member.
func (s *Store) GetProjectMember(ctx context.Context, projectID, userID int64) (models.ProjectMember, bool, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, `SELECT project_id, user_id, label, joined_at FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProjectMember{}, false, nil
	}
	if err != nil {
		return models.ProjectMember{}, false, fmt.Errorf("get project member: %w", err)
	}
	return m, true, nil
}

// ListProjectMembers returns the roster of a project ordered by join date.
func (s *Store) ListProjectMembers(ctx context.Context, projectID int64) ([]models.ProjectMember, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_id, user_id, label, joined_at FROM project_members WHERE project_id = ? ORDER BY joined_at, user_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project members: %w", err)
	}
	defer rows.Close()

	var members []models.ProjectMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddProjectMember enrols a user. Duplicate membership is a Conflict.
func (s *Store) AddProjectMember(ctx context.Context, projectID, userID int64, label models.ProjectLabel) (models.ProjectMember, error) {
	if err := insertMember(ctx, s.db, projectID, userID, label, s.now()); err != nil {
		return models.ProjectMember{}, err
	}
	m, _, err := s.GetProjectMember(ctx, projectID, userID)
	return m, err
}

// RemoveProjectMember drops a membership. Existing task assignments of the user
// are left in place.
func (s *Store) RemoveProjectMember(ctx context.Context, projectID, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return fmt.Errorf("remove project member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFound("user %d is not a member of project %d", userID, projectID)
	}
	return nil
}
