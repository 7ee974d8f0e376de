package sqlite

import (
	"context"
	"fmt"
	"time"

	"teamflow/internal/models"
)

// TaskStatusCounts counts tasks per status across the given projects.
func (s *Store) TaskStatusCounts(ctx context.Context, projectIDs []int64) (map[models.TaskStatus]int, error) {
	out := map[models.TaskStatus]int{
		models.StatusToDo:       0,
		models.StatusInProgress: 0,
		models.StatusDone:       0,
	}
	if len(projectIDs) == 0 {
		return out, nil
	}
	clause, args := inClause(projectIDs)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tasks WHERE project_id IN `+clause+` GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out[models.TaskStatus(status)] = n
	}
	return out, rows.Err()
}

// UpcomingTasks returns incomplete tasks due in [from, to], soonest first.
func (s *Store) UpcomingTasks(ctx context.Context, projectIDs []int64, from, to time.Time, limit int) ([]models.Task, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	clause, args := inClause(projectIDs)
	args = append(args, string(models.StatusDone), from.UTC(), to.UTC(), limit)
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks t
        WHERE t.project_id IN `+clause+` AND t.status <> ? AND t.due_date IS NOT NULL AND t.due_date >= ? AND t.due_date <= ?
        ORDER BY t.due_date ASC, t.id ASC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("upcoming tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
