package server

import (
	"net/http"
	"slices"
	"strings"

	"github.com/bobmcallan/folio-portal/internal/metrics"
	"github.com/bobmcallan/folio-portal/internal/navigation"
)

// pagePaths are the routes served by the page handler.
var pagePaths = []string{
	"/",
	navigation.PathLogin,
	"/logout",
	navigation.PathHome,
	"/select",
	navigation.PathPortfolioDetail,
}

// apiPaths are the JSON and machine routes.
var apiPaths = []string{
	"/api/view",
	"/api/health",
	"/api/version",
	"/api/server-health",
	"/metrics",
	"/mcp",
}

// knownPath reports whether path is a registered route, for metric labels.
func knownPath(path string) bool {
	return slices.Contains(pagePaths, path) || slices.Contains(apiPaths, path)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	pages := s.app.PageHandler

	// UI page routes (HTML templates)
	mux.HandleFunc("/", pages.ServeRoot)
	mux.HandleFunc(navigation.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		RouteForm(w, r, pages.ShowLogin, pages.SubmitLogin)
	})
	mux.HandleFunc("/logout", pages.ServeLogout)
	mux.HandleFunc(navigation.PathHome, pages.ServeHome)
	mux.HandleFunc("/select", pages.ServeSelect)
	mux.HandleFunc(navigation.PathPortfolioDetail, pages.ServeDetail)

	// MCP endpoint (JSON-RPC over HTTP)
	if s.app.MCPHandler != nil {
		mux.Handle("/mcp", s.app.MCPHandler)
	}

	// API routes
	mux.Handle("/api/view", s.app.ViewHandler)
	mux.Handle("/api/health", s.app.HealthHandler)
	mux.Handle("/api/version", s.app.VersionHandler)
	mux.Handle("/api/server-health", s.app.APIHealthHandler)
	mux.Handle("/metrics", metrics.Handler())

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.handleNotFound)

	return mux
}

// handleNotFound returns a JSON 404 for unmatched API routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not Found","message":"The requested endpoint does not exist"}`))
}

// isAPIPath reports whether path is served to machines rather than browsers.
func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/") || path == "/mcp" || path == "/metrics"
}
