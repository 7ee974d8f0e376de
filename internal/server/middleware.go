package server

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"teamflow/internal/apperr"
	"teamflow/internal/auth"
	"teamflow/internal/models"
)

const (
	sessionCookie   = "teamflow_session"
	requestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
	userKey      = "user"
	claimsKey    = "claims"
)

// requestID stamps every request with an id, reusing the caller's when present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// sessionToken reads the bearer token first and falls back to the session cookie.
func sessionToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		return cookie
	}
	return ""
}

// requireAuth resolves the session and loads the user fresh from storage, so
// role changes and deactivation apply to open sessions.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			s.respondError(c, apperr.Unauthenticated("authentication required"))
			c.Abort()
			return
		}
		claims, err := s.tokens.Parse(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				err = apperr.Wrap(apperr.KindUnauthenticated, err, "session is invalid or expired")
			}
			s.respondError(c, err)
			c.Abort()
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			s.respondError(c, apperr.Wrap(apperr.KindUnauthenticated, err, "session is invalid or expired"))
			c.Abort()
			return
		}
		user, err := s.svc.Authenticate(c.Request.Context(), userID)
		if err != nil {
			s.respondError(c, err)
			c.Abort()
			return
		}
		c.Set(claimsKey, claims)
		c.Set(userKey, user)
		c.Next()
	}
}

// currentUser returns the user resolved by requireAuth.
func currentUser(c *gin.Context) models.User {
	user, _ := c.MustGet(userKey).(models.User)
	return user
}
