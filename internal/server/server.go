package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"teamflow/internal/apperr"
	"teamflow/internal/auth"
	"teamflow/internal/service"
)

// Options tune the HTTP layer.
type Options struct {
	StaticDir    string
	CookieSecure bool
}

// Server provides HTTP handlers for the TeamFlow backend.
type Server struct {
	engine       *gin.Engine
	svc          *service.Service
	tokens       *auth.TokenService
	logger       *slog.Logger
	staticDir    string
	cookieSecure bool
}

// New constructs the HTTP server with routes and middleware configured.
func New(svc *service.Service, tokens *auth.TokenService, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api"))

	srv := &Server{
		engine:       router,
		svc:          svc,
		tokens:       tokens,
		logger:       logger,
		staticDir:    opts.StaticDir,
		cookieSecure: opts.CookieSecure,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", s.handleRegister)
			authRoutes.POST("/login", s.handleLogin)
			authRoutes.POST("/logout", s.handleLogout)
		}

		private := api.Group("", s.requireAuth())
		private.GET("/me", s.handleMe)

		orgs := private.Group("/organizations")
		{
			orgs.POST("", s.handleCreateOrganization)
			orgs.POST("/join", s.handleJoinOrganization)
			orgs.GET("/current", s.handleCurrentOrganization)
			orgs.GET("/current/members", s.handleOrganizationMembers)
			orgs.PUT("/:id", s.handleUpdateOrganization)
			orgs.DELETE("/:id", s.handleDeleteOrganization)
		}

		users := private.Group("/users")
		{
			users.PUT("/:id", s.handleUpdateUser)
			users.DELETE("/:id", s.handleDeleteUser)
		}

		projects := private.Group("/projects")
		{
			projects.GET("", s.handleListProjects)
			projects.POST("", s.handleCreateProject)
			projects.GET("/:id", s.handleGetProject)
			projects.PUT("/:id", s.handleUpdateProject)
			projects.DELETE("/:id", s.handleDeleteProject)
			projects.GET("/:id/members", s.handleListProjectMembers)
			projects.POST("/:id/members", s.handleAddProjectMember)
			projects.DELETE("/:id/members/:userId", s.handleRemoveProjectMember)
			projects.GET("/:id/tasks", s.handleListTasks)
			projects.POST("/:id/tasks", s.handleCreateTask)
		}

		tasks := private.Group("/tasks")
		{
			tasks.GET("/:id", s.handleGetTask)
			tasks.PUT("/:id", s.handleUpdateTask)
			tasks.PATCH("/:id/status", s.handleChangeTaskStatus)
			tasks.DELETE("/:id", s.handleDeleteTask)
			tasks.POST("/:id/assignees", s.handleAssignTask)
			tasks.DELETE("/:id/assignees/:userId", s.handleUnassignTask)
			tasks.GET("/:id/comments", s.handleListComments)
			tasks.POST("/:id/comments", s.handleCreateComment)
		}

		private.DELETE("/comments/:id", s.handleDeleteComment)
		private.GET("/dashboard", s.handleDashboard)
	}

	s.mountStatic()
}

// handleHealth reports readiness, including the database connection.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.svc.Store().Ping(c.Request.Context()); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func (s *Server) parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.respondError(c, apperr.Validation("invalid identifier %q", raw))
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body and reports binding failures as validation errors.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.respondError(c, bindError(err))
		return false
	}
	return true
}

func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return apperr.Validation("invalid request: %s", strings.Join(fields, "; "))
	}
	return apperr.Wrap(apperr.KindValidation, err, "malformed request body")
}

var errorCodes = map[apperr.Kind]struct {
	status int
	code   string
}{
	apperr.KindNotFound:        {http.StatusNotFound, "NOT_FOUND"},
	apperr.KindUnauthenticated: {http.StatusUnauthorized, "UNAUTHENTICATED"},
	apperr.KindForbidden:       {http.StatusForbidden, "FORBIDDEN"},
	apperr.KindValidation:      {http.StatusBadRequest, "VALIDATION_ERROR"},
	apperr.KindConflict:        {http.StatusConflict, "CONFLICT"},
	apperr.KindInternal:        {http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
}

// respondError logs the error and returns a JSON payload with a stable code.
func (s *Server) respondError(c *gin.Context, err error) {
	mapping := errorCodes[apperr.KindOf(err)]
	attrs := []any{
		slog.String("path", c.FullPath()),
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.String("error", err.Error()),
	}
	if mapping.status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Warn("request rejected", attrs...)
	}
	c.JSON(mapping.status, gin.H{"error": gin.H{
		"code":    mapping.code,
		"message": apperr.Message(err),
	}})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
