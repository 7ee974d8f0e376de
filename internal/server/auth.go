package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"teamflow/internal/service"
)

type registerRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	FirstName       string `json:"first_name" binding:"required"`
	LastName        string `json:"last_name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleRegister creates an account without an organization.
func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if !s.bindJSON(c, &req) {
		return
	}

	user, err := s.svc.Register(c.Request.Context(), service.Registration{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"user": toUser(user)})
}

// handleLogin verifies credentials and opens a session.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if !s.bindJSON(c, &req) {
		return
	}

	user, err := s.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	token, claims, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, int(s.tokens.TTL().Seconds()), "/", "", s.cookieSecure, true)
	respondSuccess(c, http.StatusOK, gin.H{
		"user":       toUser(user),
		"token":      token,
		"expires_at": claims.ExpiresAt.Time,
	})
}

// handleLogout revokes the current session, if any, and clears the cookie.
func (s *Server) handleLogout(c *gin.Context) {
	if token := sessionToken(c); token != "" {
		if claims, err := s.tokens.Parse(c.Request.Context(), token); err == nil {
			if err := s.tokens.Revoke(c.Request.Context(), claims); err != nil {
				s.respondError(c, err)
				return
			}
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", s.cookieSecure, true)
	respondSuccess(c, http.StatusNoContent, nil)
}

// handleMe returns the authenticated user.
func (s *Server) handleMe(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"user": toUser(currentUser(c))})
}
