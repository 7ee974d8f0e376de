package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type organizationRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type joinRequest struct {
	InvitationCode string `json:"invitation_code" binding:"required"`
}

// handleCreateOrganization creates an organization led by the caller.
func (s *Server) handleCreateOrganization(c *gin.Context) {
	var req organizationRequest
	if !s.bindJSON(c, &req) {
		return
	}

	org, err := s.svc.CreateOrganization(c.Request.Context(), currentUser(c), req.Name, req.Description)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"organization": org})
}

// handleJoinOrganization attaches the caller to an organization by invitation code.
func (s *Server) handleJoinOrganization(c *gin.Context) {
	var req joinRequest
	if !s.bindJSON(c, &req) {
		return
	}

	org, user, err := s.svc.JoinOrganization(c.Request.Context(), currentUser(c), req.InvitationCode)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"organization": org, "user": toUser(user)})
}

func (s *Server) handleCurrentOrganization(c *gin.Context) {
	org, err := s.svc.CurrentOrganization(c.Request.Context(), currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"organization": org})
}

func (s *Server) handleOrganizationMembers(c *gin.Context) {
	users, err := s.svc.OrganizationMembers(c.Request.Context(), currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"users": toUsers(users)})
}

// handleUpdateOrganization renames an organization.
func (s *Server) handleUpdateOrganization(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req organizationRequest
	if !s.bindJSON(c, &req) {
		return
	}

	org, err := s.svc.UpdateOrganization(c.Request.Context(), currentUser(c), id, req.Name, req.Description)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"organization": org})
}

// handleDeleteOrganization removes an organization and its projects.
func (s *Server) handleDeleteOrganization(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.svc.DeleteOrganization(c.Request.Context(), currentUser(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
