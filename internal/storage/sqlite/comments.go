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

func scanComment(row rowScanner) (models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &c.CreatedAt)
	return c, err
}

// CreateComment stores a comment on a task.
func (s *Store) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	if strings.TrimSpace(c.Content) == "" {
		return models.Comment{}, apperr.Validation("comment must not be empty")
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO comments(task_id, author_id, content, created_at) VALUES(?, ?, ?, ?)`,
		c.TaskID, c.AuthorID, strings.TrimSpace(c.Content), s.now())
	if err != nil {
		return models.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Comment{}, fmt.Errorf("comment id: %w", err)
	}
	return s.GetComment(ctx, id)
}

// GetComment fetches a comment by id.
func (s *Store) GetComment(ctx context.Context, id int64) (models.Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx, `SELECT id, task_id, author_id, content, created_at FROM comments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Comment{}, apperr.NotFound("comment %d not found", id)
	}
	if err != nil {
		return models.Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

// ListComments returns a task's comments oldest first.
func (s *Store) ListComments(ctx context.Context, taskID int64) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, task_id, author_id, content, created_at FROM comments WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// DeleteComment removes a comment by id.
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return expectAffected(res, "comment", id)
}
