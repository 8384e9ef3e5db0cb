package handlers

import (
	"net/http"

	"github.com/bobmcallan/folio-portal/internal/common"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	logger  *common.Logger
	backend string
}

// NewHealthHandler creates a new health handler reporting the storage
// backend in use.
func NewHealthHandler(logger *common.Logger, backend string) *HealthHandler {
	return &HealthHandler{logger: logger, backend: backend}
}

// ServeHTTP handles GET /api/health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"storage": h.backend,
	})
}
