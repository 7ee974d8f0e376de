package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"teamflow/internal/apperr"
	"teamflow/internal/models"
)

const projectColumns = `p.id, p.name, p.description, p.organization_id, p.team_leader_id, p.status, p.theme, p.due_date, p.created_at`

func scanProject(row rowScanner) (models.Project, error) {
	var (
		p        models.Project
		leaderID sql.NullInt64
		theme    sql.NullString
		due      sql.NullTime
		status   string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OrganizationID, &leaderID, &status, &theme, &due, &p.CreatedAt); err != nil {
		return models.Project{}, err
	}
	p.TeamLeaderID = int64Ptr(leaderID)
	p.Theme = stringPtr(theme)
	p.DueDate = timePtr(due)
	p.Status = models.ProjectStatus(status)
	return p, nil
}

// ProjectStats holds per-project counters used for list views and the dashboard.
type ProjectStats struct {
	Members   int
	Tasks     int
	DoneTasks int
}

// CreateProject inserts a project and its initial roster in one transaction.
// The roster must already carry the creator labelled Creator.
func (s *Store) CreateProject(ctx context.Context, p models.Project, members []models.ProjectMember) (models.Project, error) {
	if strings.TrimSpace(p.Name) == "" {
		return models.Project{}, apperr.Validation("project name must not be empty")
	}
	if !p.Status.Valid() {
		p.Status = models.ProjectActive
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		res, err := tx.ExecContext(ctx, `INSERT INTO projects(name, description, organization_id, team_leader_id, status, theme, due_date, created_at)
            VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
			strings.TrimSpace(p.Name), strings.TrimSpace(p.Description), p.OrganizationID,
			nullInt(p.TeamLeaderID), string(p.Status), nullString(p.Theme), nullTime(p.DueDate), now)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("project id: %w", err)
		}
		for _, m := range members {
			if err := insertMember(ctx, tx, id, m.UserID, m.Label, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Project{}, err
	}
	return s.GetProject(ctx, id)
}

// GetProject fetches a single project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (models.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, apperr.NotFound("project %d not found", id)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListOrganizationProjects returns every project of an organization, newest first.
func (s *Store) ListOrganizationProjects(ctx context.Context, orgID int64) ([]models.Project, error) {
	return s.queryProjects(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.organization_id = ? ORDER BY p.created_at DESC, p.id DESC`, orgID)
}

// ListMemberProjects returns the projects of orgID that userID belongs to, newest first.
func (s *Store) ListMemberProjects(ctx context.Context, orgID, userID int64) ([]models.Project, error) {
	return s.queryProjects(ctx, `SELECT `+projectColumns+` FROM projects p
        JOIN project_members m ON m.project_id = p.id
        WHERE p.organization_id = ? AND m.user_id = ?
        ORDER BY p.created_at DESC, p.id DESC`, orgID, userID)
}

func (s *Store) queryProjects(ctx context.Context, query string, args ...any) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// RosterChange lists membership edits applied together with a project update.
type RosterChange struct {
	Add     []models.ProjectMember
	Remove  []int64
	Relabel []models.ProjectMember
}

// UpdateProject overwrites the editable fields of a project and applies the
// roster change in the same transaction.
func (s *Store) UpdateProject(ctx context.Context, p models.Project, change RosterChange) (models.Project, error) {
	if strings.TrimSpace(p.Name) == "" {
		return models.Project{}, apperr.Validation("project name must not be empty")
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE projects SET name = ?, description = ?, team_leader_id = ?, status = ?, theme = ?, due_date = ? WHERE id = ?`,
			strings.TrimSpace(p.Name), strings.TrimSpace(p.Description), nullInt(p.TeamLeaderID),
			string(p.Status), nullString(p.Theme), nullTime(p.DueDate), p.ID)
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		if err := expectAffected(res, "project", p.ID); err != nil {
			return err
		}

		for _, userID := range change.Remove {
			if _, err := tx.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, p.ID, userID); err != nil {
				return fmt.Errorf("remove project member: %w", err)
			}
		}
		for _, m := range change.Relabel {
			if _, err := tx.ExecContext(ctx, `UPDATE project_members SET label = ? WHERE project_id = ? AND user_id = ?`, labelValue(m.Label), p.ID, m.UserID); err != nil {
				return fmt.Errorf("relabel project member: %w", err)
			}
		}
		now := s.now()
		for _, m := range change.Add {
			if err := insertMember(ctx, tx, p.ID, m.UserID, m.Label, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Project{}, err
	}
	return s.GetProject(ctx, p.ID)
}

// DeleteProject removes a project along with its tasks, assignments, comments and memberships.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return expectAffected(res, "project", id)
}

// ProjectStats counts members and tasks for the given projects.
func (s *Store) ProjectStats(ctx context.Context, ids []int64) (map[int64]ProjectStats, error) {
	out := make(map[int64]ProjectStats, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	clause, args := inClause(ids)

	rows, err := s.db.QueryContext(ctx, `SELECT project_id, COUNT(1), SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
        FROM tasks WHERE project_id IN `+clause+` GROUP BY project_id`, append([]any{string(models.StatusDone)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	for rows.Next() {
		var id int64
		var st ProjectStats
		if err := rows.Scan(&id, &st.Tasks, &st.DoneTasks); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan task stats: %w", err)
		}
		out[id] = st
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT project_id, COUNT(1) FROM project_members WHERE project_id IN `+clause+` GROUP BY project_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("member stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var members int
		if err := rows.Scan(&id, &members); err != nil {
			return nil, fmt.Errorf("scan member stats: %w", err)
		}
		st := out[id]
		st.Members = members
		out[id] = st
	}
	return out, rows.Err()
}
