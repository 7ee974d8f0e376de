package server

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORS builds the cross-origin middleware. Credentials are only allowed for an
// explicit origin list, never for "*".
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
		opts.AllowedOrigins = []string{"*"}
		opts.AllowCredentials = false
	}
	return cors.Handler(opts)
}

// Handler returns the engine wrapped in the CORS middleware.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	return CORS(allowedOrigins)(s.engine)
}
