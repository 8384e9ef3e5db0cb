package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/navigation"
	"github.com/bobmcallan/folio-portal/internal/positions"
	"github.com/bobmcallan/folio-portal/internal/session"
	"github.com/bobmcallan/folio-portal/internal/viewer"
)

// Viewer is the subset of *viewer.Viewer the pages drive.
type Viewer interface {
	Snapshot(ctx context.Context) (viewer.Snapshot, error)
	Navigate(ctx context.Context, path string) (viewer.Snapshot, error)
	Login(ctx context.Context, username, password string) (viewer.Snapshot, error)
	Logout(ctx context.Context) (viewer.Snapshot, error)
	Select(ctx context.Context, id models.PortfolioID) (viewer.Snapshot, error)
	Retry(ctx context.Context) (viewer.Snapshot, error)
	SetChartRange(ctx context.Context, r models.Range) (viewer.Snapshot, error)
	SetChartMode(ctx context.Context, m models.ChartMode) (viewer.Snapshot, error)
	SetTableRange(ctx context.Context, r models.Range) (viewer.Snapshot, error)
	SortBy(ctx context.Context, key positions.SortKey) (viewer.Snapshot, error)
}

// PageHandler serves the login, home and portfolio detail pages.
type PageHandler struct {
	logger   *common.Logger
	viewer   Viewer
	renderer *Renderer
}

// NewPageHandler creates a page handler.
func NewPageHandler(logger *common.Logger, v Viewer, renderer *Renderer) *PageHandler {
	return &PageHandler{logger: logger, viewer: v, renderer: renderer}
}

// pageData is the template context of every page.
type pageData struct {
	Title       string
	Snap        viewer.Snapshot
	CSRF        string
	Version     string
	Ranges      []models.Range
	TableRanges []models.Range
}

// DetailURL links the detail page with one query parameter set.
func (d pageData) DetailURL(key, value string) string {
	return navigation.PathPortfolioDetail + "?" + url.Values{key: {value}}.Encode()
}

// HasErrors reports whether any detail panel failed.
func (d pageData) HasErrors() bool {
	s := d.Snap
	return s.Chart.Status == viewer.StatusError || s.Summary.Status == viewer.StatusError || s.Positions.Status == viewer.StatusError
}

// ServeRoot handles GET / by redirecting to the session's default page.
func (h *PageHandler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	snap, err := h.viewer.Navigate(r.Context(), r.URL.Path)
	if err != nil {
		h.unavailable(w, err)
		return
	}
	http.Redirect(w, r, snap.Path, http.StatusFound)
}

// ShowLogin handles GET /login.
func (h *PageHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.navigate(w, r)
	if ok {
		h.render(w, r, http.StatusOK, "login.html", "Sign in", snap)
	}
}

// SubmitLogin handles POST /login with form-encoded credentials. A rejected
// login re-renders the form with the server's message.
func (h *PageHandler) SubmitLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	snap, err := h.viewer.Login(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		h.unavailable(w, err)
		return
	}
	if snap.Location == navigation.Login {
		h.render(w, r, http.StatusUnauthorized, "login.html", "Sign in", snap)
		return
	}
	http.Redirect(w, r, snap.Path, http.StatusSeeOther)
}

// ServeLogout handles POST /logout.
func (h *PageHandler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	snap, err := h.viewer.Logout(r.Context())
	if err != nil {
		h.unavailable(w, err)
		return
	}
	http.Redirect(w, r, snap.Path, http.StatusSeeOther)
}

// ServeHome handles GET /homepage. ?retry=1 retries a failed list.
func (h *PageHandler) ServeHome(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	snap, ok := h.navigate(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("retry") == "1" {
		if _, err := h.viewer.Retry(r.Context()); err != nil {
			h.unavailable(w, err)
			return
		}
		http.Redirect(w, r, navigation.PathHome, http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, "home.html", "Portfolios", snap)
}

// ServeSelect handles POST /select.
func (h *PageHandler) ServeSelect(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	id := strings.TrimSpace(r.PostForm.Get("portfolio_id"))
	if id == "" {
		http.Error(w, "portfolio_id is required", http.StatusBadRequest)
		return
	}
	snap, err := h.viewer.Select(r.Context(), models.PortfolioID(id))
	if err != nil && snap.Path == "" {
		h.unavailable(w, err)
		return
	}
	if err != nil {
		h.logger.Warn().Str("portfolio_id", id).Err(err).Msg("portfolio selection failed")
	}
	http.Redirect(w, r, snap.Path, http.StatusSeeOther)
}

// ServeDetail handles GET /portfolio-chart. Query parameters apply one
// control each (range, mode, table_range, sort, retry) and then redirect to
// the bare page.
func (h *PageHandler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	snap, ok := h.navigate(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if len(q) > 0 {
		if err := h.applyControls(r.Context(), q); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, navigation.PathPortfolioDetail, http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, "detail.html", snap.Selection.Portfolio.DisplayName(), snap)
}

func (h *PageHandler) applyControls(ctx context.Context, q url.Values) error {
	if v := q.Get("range"); v != "" {
		rng, err := models.ParseRange(v)
		if err != nil {
			return err
		}
		if _, err := h.viewer.SetChartRange(ctx, rng); err != nil {
			return err
		}
	}
	if v := q.Get("mode"); v != "" {
		mode, err := models.ParseChartMode(v)
		if err != nil {
			return err
		}
		if _, err := h.viewer.SetChartMode(ctx, mode); err != nil {
			return err
		}
	}
	if v := q.Get("table_range"); v != "" {
		rng, err := models.ParseRange(v)
		if err != nil {
			return err
		}
		if _, err := h.viewer.SetTableRange(ctx, rng); err != nil {
			return err
		}
	}
	if v := q.Get("sort"); v != "" {
		key, err := positions.ParseSortKey(v)
		if err != nil {
			return err
		}
		if _, err := h.viewer.SortBy(ctx, key); err != nil {
			return err
		}
	}
	if q.Get("retry") == "1" {
		if _, err := h.viewer.Retry(ctx); err != nil {
			return err
		}
	}
	return nil
}

// navigate moves the viewer to the requested page, redirecting when the
// session resolves it elsewhere. ok is false once a response was written.
func (h *PageHandler) navigate(w http.ResponseWriter, r *http.Request) (viewer.Snapshot, bool) {
	snap, err := h.viewer.Navigate(r.Context(), r.URL.Path)
	if err != nil {
		h.unavailable(w, err)
		return snap, false
	}
	target, redirect := navigation.Redirect(r.URL.Path, navigation.Context{
		Authenticated: snap.Session == session.LoggedIn,
		HasSelection:  snap.Selection != nil,
	})
	if redirect {
		http.Redirect(w, r, target, http.StatusFound)
		return snap, false
	}
	return snap, true
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, snap viewer.Snapshot) {
	data := pageData{
		Title:       title,
		Snap:        snap,
		CSRF:        common.CSRFTokenFromContext(r.Context()),
		Version:     config.GetVersion(),
		Ranges:      models.Ranges(),
		TableRanges: models.TableRanges(),
	}
	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, name, data); err != nil {
		h.logger.Error().Str("template", name).Err(err).Msg("failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (h *PageHandler) unavailable(w http.ResponseWriter, err error) {
	h.logger.Error().Err(err).Msg("viewer unavailable")
	http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
}
