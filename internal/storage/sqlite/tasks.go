package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"teamflow/internal/apperr"
	"teamflow/internal/models"
)

const taskColumns = `t.id, t.project_id, t.title, t.description, t.status, t.priority, t.due_date, t.created_at, t.updated_at`

// Paging defaults for task listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// taskSortColumns is the allow-list of sortable columns.
var taskSortColumns = map[string]string{
	"title":      "t.title",
	"status":     "CASE t.status WHEN 'todo' THEN 0 WHEN 'in_progress' THEN 1 ELSE 2 END",
	"priority":   "CASE t.priority WHEN 'low' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END",
	"due_date":   "t.due_date",
	"created_at": "t.created_at",
}

// SortableTaskColumn reports whether name may be used as TaskFilter.SortBy.
func SortableTaskColumn(name string) bool {
	_, ok := taskSortColumns[name]
	return ok
}

// TaskFilter narrows and pages a task listing.
type TaskFilter struct {
	ProjectID  int64
	Status     *models.TaskStatus
	Priority   *models.Priority
	AssigneeID *int64
	DueFrom    *time.Time
	DueTo      *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// Normalize fills paging and sorting defaults.
func (f *TaskFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	if !SortableTaskColumn(f.SortBy) {
		f.SortBy = "created_at"
	}
	if !strings.EqualFold(f.SortOrder, "asc") {
		f.SortOrder = "desc"
	} else {
		f.SortOrder = "asc"
	}
}

func scanTask(row rowScanner) (models.Task, error) {
	var (
		t        models.Task
		status   string
		priority string
		due      sql.NullTime
		updated  sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &priority, &due, &t.CreatedAt, &updated); err != nil {
		return models.Task{}, err
	}
	t.Status = models.TaskStatus(status)
	t.Priority = models.Priority(priority)
	t.DueDate = timePtr(due)
	t.UpdatedAt = timePtr(updated)
	return t, nil
}

// ListTasks returns one page of a project's tasks and the total matching count.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, int, error) {
	f.Normalize()

	where := []string{"t.project_id = ?"}
	args := []any{f.ProjectID}
	if f.Status != nil {
		where = append(where, "t.status = ?")
		args = append(args, string(*f.Status))
	}
	if f.Priority != nil {
		where = append(where, "t.priority = ?")
		args = append(args, string(*f.Priority))
	}
	if f.AssigneeID != nil {
		where = append(where, "EXISTS (SELECT 1 FROM task_assignees a WHERE a.task_id = t.id AND a.user_id = ?)")
		args = append(args, *f.AssigneeID)
	}
	if f.DueFrom != nil {
		where = append(where, "t.due_date >= ?")
		args = append(args, f.DueFrom.UTC())
	}
	if f.DueTo != nil {
		where = append(where, "t.due_date <= ?")
		args = append(args, f.DueTo.UTC())
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks t WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	order := fmt.Sprintf("%s %s, t.id %s", taskSortColumns[f.SortBy], strings.ToUpper(f.SortOrder), strings.ToUpper(f.SortOrder))
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE ` + cond + ` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, f.PageSize, (f.Page-1)*f.PageSize)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, total, rows.Err()
}

// CreateTask inserts a new task. It always starts in the ToDo column.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, apperr.Validation("task title must not be empty")
	}
	if !t.Priority.Valid() {
		t.Priority = models.PriorityMedium
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO tasks(project_id, title, description, status, priority, due_date, created_at) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectID, strings.TrimSpace(t.Title), strings.TrimSpace(t.Description), string(models.StatusToDo),
		string(t.Priority), nullTime(t.DueDate), s.now())
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Task{}, fmt.Errorf("task id: %w", err)
	}
	return s.GetTask(ctx, id)
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, apperr.NotFound("task %d not found", id)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask overwrites title, description, priority and due date.
func (s *Store) UpdateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, apperr.Validation("task title must not be empty")
	}
	if !t.Priority.Valid() {
		return models.Task{}, apperr.Validation("unknown priority %q", t.Priority)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, priority = ?, due_date = ?, updated_at = ? WHERE id = ?`,
		strings.TrimSpace(t.Title), strings.TrimSpace(t.Description), string(t.Priority), nullTime(t.DueDate), s.now(), t.ID)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := expectAffected(res, "task", t.ID); err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, t.ID)
}

// UpdateTaskStatus moves a task to another column.
func (s *Store) UpdateTaskStatus(ctx context.Context, id int64, status models.TaskStatus) (models.Task, error) {
	if !status.Valid() {
		return models.Task{}, apperr.Validation("unknown task status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`, string(status), s.now(), id)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task status: %w", err)
	}
	if err := expectAffected(res, "task", id); err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, id)
}

// DeleteTask removes a task with its assignments and comments.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return expectAffected(res, "task", id)
}

// AddAssignee links a user to a task. Duplicate assignment is a Conflict.
func (s *Store) AddAssignee(ctx context.Context, taskID, userID int64) (models.TaskAssignment, error) {
	now := s.now()
	_, err := s.db.ExecContext(ctx, `INSERT INTO task_assignees(task_id, user_id, assigned_at) VALUES(?, ?, ?)`, taskID, userID, now)
	if isUniqueViolation(err) {
		return models.TaskAssignment{}, apperr.Conflict("user %d is already assigned to task %d", userID, taskID)
	}
	if err != nil {
		return models.TaskAssignment{}, fmt.Errorf("insert assignee: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE tasks SET updated_at = ? WHERE id = ?`, now, taskID); err != nil {
		return models.TaskAssignment{}, fmt.Errorf("touch task: %w", err)
	}
	return models.TaskAssignment{TaskID: taskID, UserID: userID, AssignedAt: now}, nil
}

// RemoveAssignee unlinks a user from a task.
func (s *Store) RemoveAssignee(ctx context.Context, taskID, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = ? AND user_id = ?`, taskID, userID)
	if err != nil {
		return fmt.Errorf("remove assignee: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFound("user %d is not assigned to task %d", userID, taskID)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE tasks SET updated_at = ? WHERE id = ?`, s.now(), taskID); err != nil {
		return fmt.Errorf("touch task: %w", err)
	}
	return nil
}

// IsAssignee reports whether userID is assigned to taskID.
func (s *Store) IsAssignee(ctx context.Context, taskID, userID int64) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM task_assignees WHERE task_id = ? AND user_id = ?`, taskID, userID).Scan(&n); err != nil {
		return false, fmt.Errorf("check assignee: %w", err)
	}
	return n > 0, nil
}

// ListAssignees returns the assignments of several tasks keyed by task id.
func (s *Store) ListAssignees(ctx context.Context, taskIDs []int64) (map[int64][]models.TaskAssignment, error) {
	out := make(map[int64][]models.TaskAssignment, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}
	clause, args := inClause(taskIDs)
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, user_id, assigned_at FROM task_assignees WHERE task_id IN `+clause+` ORDER BY assigned_at, user_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.TaskAssignment
		if err := rows.Scan(&a.TaskID, &a.UserID, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		out[a.TaskID] = append(out[a.TaskID], a)
	}
	return out, rows.Err()
}
