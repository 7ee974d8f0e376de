package service

import (
	"context"

	"teamflow/internal/models"
	"teamflow/internal/policy"
)

// CommentView is a comment with its author.
type CommentView struct {
	Comment models.Comment
	Author  models.User
}

// ListComments returns a task's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, actor models.User, taskID int64) ([]CommentView, error) {
	_, _, subject, err := s.loadTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	if err := policy.ViewProject(subject).Err(); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, taskID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	authors, err := s.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, CommentView{Comment: c, Author: authors[c.AuthorID]})
	}
	return views, nil
}

// CreateComment posts a comment on a task as the actor.
func (s *Service) CreateComment(ctx context.Context, actor models.User, taskID int64, content string) (CommentView, error) {
	_, _, subject, err := s.loadTask(ctx, actor, taskID)
	if err != nil {
		return CommentView{}, err
	}
	if err := policy.CreateComment(subject).Err(); err != nil {
		return CommentView{}, err
	}
	content, err = requireText(content, "comment")
	if err != nil {
		return CommentView{}, err
	}
	comment, err := s.store.CreateComment(ctx, models.Comment{TaskID: taskID, AuthorID: actor.ID, Content: content})
	if err != nil {
		return CommentView{}, err
	}
	return CommentView{Comment: comment, Author: actor}, nil
}

// DeleteComment removes a comment. Only its author may do so.
func (s *Service) DeleteComment(ctx context.Context, actor models.User, id int64) error {
	comment, err := s.store.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.DeleteComment(actorOf(actor), comment.AuthorID).Err(); err != nil {
		return err
	}
	return s.store.DeleteComment(ctx, id)
}
