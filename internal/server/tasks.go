package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"teamflow/internal/apperr"
	"teamflow/internal/models"
	"teamflow/internal/service"
	"teamflow/internal/storage/sqlite"
)

type createTaskRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *time.Time      `json:"due_date"`
}

type updateTaskRequest struct {
	Title        *string          `json:"title"`
	Description  *string          `json:"description"`
	Priority     *models.Priority `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate      *time.Time       `json:"due_date"`
	ClearDueDate bool             `json:"clear_due_date"`
}

type statusRequest struct {
	Status models.TaskStatus `json:"status" binding:"required,oneof=todo in_progress done"`
}

type taskQuery struct {
	Status     string `form:"status" binding:"omitempty,oneof=todo in_progress done"`
	Priority   string `form:"priority" binding:"omitempty,oneof=low medium high"`
	AssigneeID int64  `form:"assignee_id" binding:"omitempty,min=1"`
	DueFrom    string `form:"due_from"`
	DueTo      string `form:"due_to"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	SortBy     string `form:"sort_by"`
	SortOrder  string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

// parseDate accepts RFC 3339 timestamps and plain dates. A plain date used as
// an upper bound covers the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, apperr.Validation("invalid date %q", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (q taskQuery) filter(projectID int64) (sqlite.TaskFilter, error) {
	f := sqlite.TaskFilter{
		ProjectID: projectID,
		Page:      q.Page,
		PageSize:  q.PageSize,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
	if q.Status != "" {
		status := models.TaskStatus(q.Status)
		f.Status = &status
	}
	if q.Priority != "" {
		priority := models.Priority(q.Priority)
		f.Priority = &priority
	}
	if q.AssigneeID > 0 {
		assignee := q.AssigneeID
		f.AssigneeID = &assignee
	}
	var err error
	if f.DueFrom, err = parseDate(q.DueFrom, false); err != nil {
		return sqlite.TaskFilter{}, err
	}
	if f.DueTo, err = parseDate(q.DueTo, true); err != nil {
		return sqlite.TaskFilter{}, err
	}
	return f, nil
}

// handleListTasks fetches a filtered page of a project's tasks.
func (s *Server) handleListTasks(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var q taskQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.respondError(c, bindError(err))
		return
	}
	filter, err := q.filter(projectID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	page, err := s.svc.ListTasks(c.Request.Context(), currentUser(c), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"tasks":     toTasks(page.Tasks),
		"total":     page.Total,
		"page":      page.Page,
		"page_size": page.PageSize,
	})
}

// handleCreateTask inserts a new task into the project's ToDo column.
func (s *Server) handleCreateTask(c *gin.Context) {
	projectID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req createTaskRequest
	if !s.bindJSON(c, &req) {
		return
	}

	task, err := s.svc.CreateTask(c.Request.Context(), currentUser(c), projectID, service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": toTask(task)})
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	task, err := s.svc.GetTask(c.Request.Context(), currentUser(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": toTask(task)})
}

// handleUpdateTask modifies title, description, priority or due date.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req updateTaskRequest
	if !s.bindJSON(c, &req) {
		return
	}

	task, err := s.svc.UpdateTask(c.Request.Context(), currentUser(c), id, service.TaskUpdate{
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": toTask(task)})
}

// handleChangeTaskStatus moves a task to another column.
func (s *Server) handleChangeTaskStatus(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !s.bindJSON(c, &req) {
		return
	}

	task, err := s.svc.ChangeTaskStatus(c.Request.Context(), currentUser(c), id, req.Status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": toTask(task)})
}

// handleDeleteTask removes a task permanently.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.svc.DeleteTask(c.Request.Context(), currentUser(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

func (s *Server) handleAssignTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req memberRequest
	if !s.bindJSON(c, &req) {
		return
	}
	task, err := s.svc.AssignTask(c.Request.Context(), currentUser(c), id, req.UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": toTask(task)})
}

func (s *Server) handleUnassignTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := s.parseID(c, "userId")
	if !ok {
		return
	}
	task, err := s.svc.UnassignTask(c.Request.Context(), currentUser(c), id, userID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": toTask(task)})
}
