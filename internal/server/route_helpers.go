package server

import (
	"net/http"
	"slices"
	"strings"
)

// RouteHandler is a function type for HTTP handlers.
type RouteHandler func(http.ResponseWriter, *http.Request)

// MethodRouter maps HTTP methods to handlers.
type MethodRouter map[string]RouteHandler

// RouteByMethod routes requests based on HTTP method. HEAD falls back to the
// GET handler. Unmapped methods get a 405 listing the allowed ones.
func RouteByMethod(w http.ResponseWriter, r *http.Request, routes MethodRouter) {
	handler, ok := routes[r.Method]
	if !ok && r.Method == http.MethodHead {
		handler, ok = routes[http.MethodGet]
	}
	if !ok {
		w.Header().Set("Allow", routes.allowed())
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	handler(w, r)
}

// RouteForm handles the show + submit pattern of an HTML form page.
// GET -> show, POST -> submit.
func RouteForm(w http.ResponseWriter, r *http.Request, show, submit RouteHandler) {
	routes := make(MethodRouter)
	if show != nil {
		routes[http.MethodGet] = show
	}
	if submit != nil {
		routes[http.MethodPost] = submit
	}
	RouteByMethod(w, r, routes)
}

func (m MethodRouter) allowed() string {
	methods := make([]string, 0, len(m))
	for method := range m {
		methods = append(methods, method)
	}
	slices.Sort(methods)
	return strings.Join(methods, ", ")
}
