package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"teamflow/internal/models"
	"teamflow/internal/service"
)

type createProjectRequest struct {
	Name         string               `json:"name" binding:"required"`
	Description  string               `json:"description"`
	TeamLeaderID *int64               `json:"team_leader_id" binding:"omitempty,min=1"`
	Status       models.ProjectStatus `json:"status" binding:"omitempty,oneof=active inactive"`
	Theme        *string              `json:"theme" binding:"omitempty,hexcolor"`
	DueDate      *time.Time           `json:"due_date"`
	MemberIDs    []int64              `json:"member_ids"`
}

type updateProjectRequest struct {
	Name         *string               `json:"name"`
	Description  *string               `json:"description"`
	TeamLeaderID *int64                `json:"team_leader_id" binding:"omitempty,min=0"`
	Status       *models.ProjectStatus `json:"status" binding:"omitempty,oneof=active inactive"`
	Theme        *string               `json:"theme" binding:"omitempty,hexcolor"`
	DueDate      *time.Time            `json:"due_date"`
	ClearDueDate bool                  `json:"clear_due_date"`
	MemberIDs    []int64               `json:"member_ids"`
}

type memberRequest struct {
	UserID int64 `json:"user_id" binding:"required,min=1"`
}

// handleListProjects returns the projects visible to the caller.
func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.svc.ListProjects(c.Request.Context(), currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"projects": toProjects(projects)})
}

// handleCreateProject creates a new project with the caller as its creator.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req createProjectRequest
	if !s.bindJSON(c, &req) {
		return
	}

	project, err := s.svc.CreateProject(c.Request.Context(), currentUser(c), service.ProjectInput{
		Name:         req.Name,
		Description:  req.Description,
		TeamLeaderID: req.TeamLeaderID,
		Status:       req.Status,
		Theme:        req.Theme,
		DueDate:      req.DueDate,
		MemberIDs:    req.MemberIDs,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"project": toProject(project)})
}

func (s *Server) handleGetProject(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	project, err := s.svc.GetProject(c.Request.Context(), currentUser(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": toProject(project)})
}

// handleUpdateProject edits a project and optionally replaces its roster.
func (s *Server) handleUpdateProject(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req updateProjectRequest
	if !s.bindJSON(c, &req) {
		return
	}

	project, err := s.svc.UpdateProject(c.Request.Context(), currentUser(c), id, service.ProjectUpdate{
		Name:         req.Name,
		Description:  req.Description,
		TeamLeaderID: req.TeamLeaderID,
		Status:       req.Status,
		Theme:        req.Theme,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
		MemberIDs:    req.MemberIDs,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": toProject(project)})
}

// handleDeleteProject removes the project together with all tasks.
func (s *Server) handleDeleteProject(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.svc.DeleteProject(c.Request.Context(), currentUser(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}

func (s *Server) handleListProjectMembers(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	members, err := s.svc.ListProjectMembers(c.Request.Context(), currentUser(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"members": toMembers(members)})
}

func (s *Server) handleAddProjectMember(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req memberRequest
	if !s.bindJSON(c, &req) {
		return
	}
	member, err := s.svc.AddProjectMember(c.Request.Context(), currentUser(c), id, req.UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"member": toMember(member)})
}

func (s *Server) handleRemoveProjectMember(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := s.parseID(c, "userId")
	if !ok {
		return
	}
	if err := s.svc.RemoveProjectMember(c.Request.Context(), currentUser(c), id, userID); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
