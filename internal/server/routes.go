package server

import (
	"net/http"
	"strings"

	"github.com/ternarybob/harmonia/internal/templates"
)

const sessionsPrefix = "/api/sessions/"

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Operator page
	mux.HandleFunc("/", s.app.PageHandler.ServePage(templates.IndexPage, "home"))

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Harmonization
	mux.HandleFunc("/api/schema-versions", s.app.HarmonizationHandler.SchemaVersionsHandler) // GET
	mux.HandleFunc("/api/harmonize", s.app.HarmonizationHandler.SubmitHandler)               // POST multipart
	mux.HandleFunc("/api/sessions", s.app.HarmonizationHandler.SessionsHandler)              // GET ?limit=
	mux.HandleFunc(sessionsPrefix, s.handleSessionRoutes)                                    // /{id}, /{id}/edits, /{id}/download

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleSessionRoutes routes /api/sessions/{id}[/action] requests
func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	id, action, ok := parseSessionPath(r.URL.Path)
	if !ok {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}

	h := s.app.HarmonizationHandler
	switch action {
	case "":
		RouteByMethod(w, r, MethodRouter{
			"GET":    func(w http.ResponseWriter, r *http.Request) { h.SessionHandler(w, r, id) },
			"DELETE": func(w http.ResponseWriter, r *http.Request) { h.CancelHandler(w, r, id) },
		})
	case "edits":
		RouteByMethod(w, r, MethodRouter{
			"PUT": func(w http.ResponseWriter, r *http.Request) { h.SaveEditsHandler(w, r, id) },
		})
	case "download":
		RouteByMethod(w, r, MethodRouter{
			"GET": func(w http.ResponseWriter, r *http.Request) { h.DownloadHandler(w, r, id) },
		})
	default:
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}

// parseSessionPath splits /api/sessions/{id}[/action]
func parseSessionPath(path string) (id, action string, ok bool) {
	rest := strings.Trim(strings.TrimPrefix(path, sessionsPrefix), "/")
	if rest == "" {
		return "", "", false
	}

	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", true
	case 2:
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}
