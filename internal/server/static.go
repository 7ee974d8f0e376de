package server

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"teamflow/internal/apperr"
)

// mountStatic serves the compiled single page app from the configured directory.
// Unknown /api paths always get a JSON 404; other paths fall back to index.html
// when the frontend is present.
func (s *Server) mountStatic() {
	index := s.spaIndex()

	s.engine.NoRoute(func(c *gin.Context) {
		if index == "" || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			s.respondError(c, apperr.NotFound("endpoint %s not found", c.Request.URL.Path))
			return
		}
		c.File(index)
	})
	if index == "" {
		return
	}

	s.engine.GET("/", func(c *gin.Context) {
		c.File(index)
	})

	assetsDir := filepath.Join(s.staticDir, "assets")
	if _, err := os.Stat(assetsDir); err == nil {
		s.engine.StaticFS("/assets", gin.Dir(assetsDir, false))
	}

	favicon := filepath.Join(s.staticDir, "favicon.ico")
	if _, err := os.Stat(favicon); err == nil {
		s.engine.StaticFile("/favicon.ico", favicon)
	}
}

// spaIndex returns the path of index.html, or "" when the app is not built.
func (s *Server) spaIndex() string {
	if s.staticDir == "" {
		s.logger.Warn("static directory not configured; API only mode")
		return ""
	}
	info, err := os.Stat(s.staticDir)
	if err != nil || !info.IsDir() {
		s.logger.Warn("static directory missing", "path", s.staticDir, "error", err)
		return ""
	}
	index := filepath.Join(s.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		s.logger.Warn("index.html not found", "path", index, "error", err)
		return ""
	}
	return index
}
