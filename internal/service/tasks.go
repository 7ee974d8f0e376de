package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"teamflow/internal/apperr"
	"teamflow/internal/models"
	"teamflow/internal/policy"
	"teamflow/internal/storage/sqlite"
)

// TaskView is a task with its project name and assignees.
type TaskView struct {
	Task        models.Task
	ProjectName string
	Assignees   []models.User
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Tasks    []TaskView
	Total    int
	Page     int
	PageSize int
}

// TaskInput is the input of CreateTask. Any requested status is ignored.
type TaskInput struct {
	Title       string
	Description string
	Priority    models.Priority
	DueDate     *time.Time
}

// TaskUpdate carries the optional changes of UpdateTask.
type TaskUpdate struct {
	Title        *string
	Description  *string
	Priority     *models.Priority
	DueDate      *time.Time
	ClearDueDate bool
}

func (s *Service) taskViews(ctx context.Context, tasks []models.Task) ([]TaskView, error) {
	views := make([]TaskView, 0, len(tasks))
	if len(tasks) == 0 {
		return views, nil
	}
	taskIDs := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
	}
	assignments, err := s.store.ListAssignees(ctx, taskIDs)
	if err != nil {
		return nil, err
	}
	var userIDs []int64
	for _, list := range assignments {
		for _, a := range list {
			userIDs = append(userIDs, a.UserID)
		}
	}
	users, err := s.store.GetUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	projectNames := make(map[int64]string)
	for _, t := range tasks {
		name, ok := projectNames[t.ProjectID]
		if !ok {
			p, err := s.store.GetProject(ctx, t.ProjectID)
			if err != nil {
				return nil, err
			}
			name = p.Name
			projectNames[t.ProjectID] = name
		}
		view := TaskView{Task: t, ProjectName: name, Assignees: []models.User{}}
		for _, a := range assignments[t.ID] {
			if u, ok := users[a.UserID]; ok {
				view.Assignees = append(view.Assignees, u)
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) taskView(ctx context.Context, task models.Task) (TaskView, error) {
	views, err := s.taskViews(ctx, []models.Task{task})
	if err != nil {
		return TaskView{}, err
	}
	return views[0], nil
}

// ListTasks returns a filtered, sorted page of a project's tasks.
func (s *Service) ListTasks(ctx context.Context, actor models.User, filter sqlite.TaskFilter) (TaskPage, error) {
	_, subject, err := s.loadProject(ctx, actor, filter.ProjectID)
	if err != nil {
		return TaskPage{}, err
	}
	if err := policy.ViewProject(subject).Err(); err != nil {
		return TaskPage{}, err
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return TaskPage{}, apperr.Validation("unknown task status %q", *filter.Status)
	}
	if filter.Priority != nil && !filter.Priority.Valid() {
		return TaskPage{}, apperr.Validation("unknown priority %q", *filter.Priority)
	}
	if filter.SortBy != "" && !sqlite.SortableTaskColumn(filter.SortBy) {
		return TaskPage{}, apperr.Validation("cannot sort tasks by %q", filter.SortBy)
	}
	filter.Normalize()

	tasks, total, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return TaskPage{}, err
	}
	views, err := s.taskViews(ctx, tasks)
	if err != nil {
		return TaskPage{}, err
	}
	return TaskPage{Tasks: views, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// CreateTask adds a task to a project. New tasks always start in ToDo.
func (s *Service) CreateTask(ctx context.Context, actor models.User, projectID int64, in TaskInput) (TaskView, error) {
	_, subject, err := s.loadProject(ctx, actor, projectID)
	if err != nil {
		return TaskView{}, err
	}
	if err := policy.CreateTask(subject).Err(); err != nil {
		return TaskView{}, err
	}
	title, err := requireText(in.Title, "task title")
	if err != nil {
		return TaskView{}, err
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		return TaskView{}, apperr.Validation("unknown priority %q", in.Priority)
	}

	task, err := s.store.CreateTask(ctx, models.Task{
		ProjectID:   projectID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Priority:    in.Priority,
		DueDate:     in.DueDate,
	})
	if err != nil {
		return TaskView{}, err
	}
	s.logger.Info("task created", slog.Int64("task_id", task.ID), slog.Int64("project_id", projectID), slog.Int64("user_id", actor.ID))
	return s.taskView(ctx, task)
}

// GetTask returns a task visible to the actor.
func (s *Service) GetTask(ctx context.Context, actor models.User, id int64) (TaskView, error) {
	task, _, subject, err := s.loadTask(ctx, actor, id)
	if err != nil {
		return TaskView{}, err
	}
	if err := policy.ViewProject(subject).Err(); err != nil {
		return TaskView{}, err
	}
	return s.taskView(ctx, task)
}

// UpdateTask edits title, description, priority and due date.
func (s *Service) UpdateTask(ctx context.Context, actor models.User, id int64, in TaskUpdate) (TaskView, error) {
	task, _, subject, err := s.loadTask(ctx, actor, id)
	if err != nil {
		return TaskView{}, err
	}
	if err := policy.EditTask(subject).Err(); err != nil {
		return TaskView{}, err
	}

	if in.Title != nil {
		if task.Title, err = requireText(*in.Title, "task title"); err != nil {
			return TaskView{}, err
		}
	}
	if in.Description != nil {
		task.Description = strings.TrimSpace(*in.Description)
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return TaskView{}, apperr.Validation("unknown priority %q", *in.Priority)
		}
		task.Priority = *in.Priority
	}
	if in.ClearDueDate {
		task.DueDate = nil
	} else if in.DueDate != nil {
		task.DueDate = in.DueDate
	}

	updated, err := s.store.UpdateTask(ctx, task)
	if err != nil {
		return TaskView{}, err
	}
	return s.taskView(ctx, updated)
}

// ChangeTaskStatus moves a task to another board column.
func (s *Service) ChangeTaskStatus(ctx context.Context, actor models.User, id int64, status models.TaskStatus) (TaskView, error) {
	task, _, subject, err := s.loadTask(ctx, actor, id)
	if err != nil {
		return TaskView{}, err
	}
	if err := policy.ChangeTaskStatus(subject).Err(); err != nil {
		return TaskView{}, err
	}
	if !models.CanTransition(task.Status, status) {
		return TaskView{}, apperr.Validation("cannot move task from %q to %q", task.Status, status)
	}

	updated, err := s.store.UpdateTaskStatus(ctx, id, status)
	if err != nil {
		return TaskView{}, err
	}
	s.logger.Info("task status changed",
		slog.Int64("task_id", id),
		slog.String("from", string(task.Status)),
		slog.String("to", string(status)),
		slog.Int64("user_id", actor.ID),
	)
	return s.taskView(ctx, updated)
}

// DeleteTask removes a task with its assignments and comments.
func (s *Service) DeleteTask(ctx context.Context, actor models.User, id int64) error {
	_, _, subject, err := s.loadTask(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := policy.DeleteTask(subject).Err(); err != nil {
		return err
	}
	return s.store.DeleteTask(ctx, id)
}

// AssignTask adds userID to a task's assignees. The user must be a member of
// the task's project at this moment.
func (s *Service) AssignTask(ctx context.Context, actor models.User, taskID, userID int64) (TaskView, error) {
	task, project, subject, err := s.loadTask(ctx, actor, taskID)
	if err != nil {
		return TaskView{}, err
	}
	if err := policy.AssignTask(subject).Err(); err != nil {
		return TaskView{}, err
	}
	_, member, err := s.store.GetProjectMember(ctx, project.ID, userID)
	if err != nil {
		return TaskView{}, err
	}
	if !member {
		return TaskView{}, apperr.Validation("user %d is not a member of project %d", userID, project.ID)
	}
	if _, err := s.store.AddAssignee(ctx, task.ID, userID); err != nil {
		return TaskView{}, err
	}
	return s.reloadTask(ctx, task.ID)
}

// UnassignTask removes userID from a task's assignees.
func (s *Service) UnassignTask(ctx context.Context, actor models.User, taskID, userID int64) (TaskView, error) {
	task, _, subject, err := s.loadTask(ctx, actor, taskID)
	if err != nil {
		return TaskView{}, err
	}
	if err := policy.AssignTask(subject).Err(); err != nil {
		return TaskView{}, err
	}
	if err := s.store.RemoveAssignee(ctx, task.ID, userID); err != nil {
		return TaskView{}, err
	}
	return s.reloadTask(ctx, task.ID)
}

func (s *Service) reloadTask(ctx context.Context, id int64) (TaskView, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return TaskView{}, err
	}
	return s.taskView(ctx, task)
}
