package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bobmcallan/folio-portal/internal/common"
)

// APIHealthHandler reports whether the remote portfolio API answers.
type APIHealthHandler struct {
	logger *common.Logger
	apiURL string
	client *http.Client
}

// NewAPIHealthHandler creates a handler probing apiURL.
func NewAPIHealthHandler(logger *common.Logger, apiURL string) *APIHealthHandler {
	return &APIHealthHandler{logger: logger, apiURL: apiURL, client: &http.Client{}}
}

// ServeHTTP handles GET /api/server-health. Any response below 500 counts
// as up; the API has no dedicated health route.
func (h *APIHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.apiURL+"/", nil)
	if err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn().Str("api_url", h.apiURL).Err(err).Msg("portfolio API unreachable")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusInternalServerError {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
}
