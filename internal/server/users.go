package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"teamflow/internal/models"
	"teamflow/internal/service"
)

type userUpdateRequest struct {
	FirstName *string      `json:"first_name"`
	LastName  *string      `json:"last_name"`
	Role      *models.Role `json:"role"`
}

// handleUpdateUser edits names and, for administrators, roles.
func (s *Server) handleUpdateUser(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req userUpdateRequest
	if !s.bindJSON(c, &req) {
		return
	}

	user, err := s.svc.UpdateUser(c.Request.Context(), currentUser(c), id, service.UserUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": toUser(user)})
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.svc.DeleteUser(c.Request.Context(), currentUser(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
