package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (s *Server) handleListComments(c *gin.Context) {
	taskID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	comments, err := s.svc.ListComments(c.Request.Context(), currentUser(c), taskID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]commentDTO, 0, len(comments))
	for _, v := range comments {
		out = append(out, toComment(v))
	}
	respondSuccess(c, http.StatusOK, gin.H{"comments": out})
}

func (s *Server) handleCreateComment(c *gin.Context) {
	taskID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if !s.bindJSON(c, &req) {
		return
	}
	comment, err := s.svc.CreateComment(c.Request.Context(), currentUser(c), taskID, req.Content)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"comment": toComment(comment)})
}

// handleDeleteComment lets the author remove their comment.
func (s *Server) handleDeleteComment(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.svc.DeleteComment(c.Request.Context(), currentUser(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
