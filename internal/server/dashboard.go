package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleDashboard summarises the caller's projects.
func (s *Server) handleDashboard(c *gin.Context) {
	d, err := s.svc.Dashboard(c.Request.Context(), currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"dashboard": toDashboard(d)})
}
