package handlers

import (
	"errors"
	"net/http"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/viewer"
)

// ViewHandler exposes the viewer's current snapshot as JSON.
type ViewHandler struct {
	logger *common.Logger
	viewer Viewer
}

// NewViewHandler creates a view handler.
func NewViewHandler(logger *common.Logger, v Viewer) *ViewHandler {
	return &ViewHandler{logger: logger, viewer: v}
}

// ServeHTTP handles GET /api/view.
func (h *ViewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snap, err := h.viewer.Snapshot(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, viewer.ErrStopped) {
			status = http.StatusServiceUnavailable
		}
		WriteError(w, status, err.Error())
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, snap)
}
