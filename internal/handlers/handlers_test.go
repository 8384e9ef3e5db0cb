package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/folio-portal/internal/apitest"
	"github.com/bobmcallan/folio-portal/internal/cache"
	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/portfolio"
	"github.com/bobmcallan/folio-portal/internal/session"
	"github.com/bobmcallan/folio-portal/internal/state"
	"github.com/bobmcallan/folio-portal/internal/storage/memory"
	"github.com/bobmcallan/folio-portal/internal/viewer"
)

type fixture struct {
	api    *apitest.FakeAPI
	viewer *viewer.Viewer
	pages  *PageHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := common.NewSilentLogger()
	api := apitest.New(t)
	store := state.New(memory.NewKVStorage(), logger)
	c := cache.New(store, map[cache.Kind]time.Duration{cache.KindHistory: time.Hour, cache.KindPositions: time.Hour}, logger)
	pc := client.NewPortfolioClient(api.URL, 5*time.Second)
	sess, err := session.NewManager(context.Background(), pc, store, c, logger)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	v := viewer.New(portfolio.NewService(pc, c, sess, logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		v.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	renderer, err := NewRenderer("EUR")
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	return &fixture{api: api, viewer: v, pages: NewPageHandler(logger, v, renderer)}
}

func (f *fixture) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", f.pages.ServeRoot)
	mux.HandleFunc("GET /login", f.pages.ShowLogin)
	mux.HandleFunc("POST /login", f.pages.SubmitLogin)
	mux.HandleFunc("/logout", f.pages.ServeLogout)
	mux.HandleFunc("/homepage", f.pages.ServeHome)
	mux.HandleFunc("/select", f.pages.ServeSelect)
	mux.HandleFunc("/portfolio-chart", f.pages.ServeDetail)
	return mux
}

func (f *fixture) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	f.mux().ServeHTTP(w, req)
	return w
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	w := f.do(t, http.MethodPost, "/login", url.Values{"username": {apitest.Username}, "password": {apitest.Password}})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/homepage" {
		t.Fatalf("expected 303 to /homepage, got %d %s", w.Code, w.Header().Get("Location"))
	}
	f.settle(t)
}

// settle waits for every panel fetch to finish.
func (f *fixture) settle(t *testing.T) viewer.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		snap, err := f.viewer.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("Snapshot failed: %v", err)
		}
		if !snap.Pending {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for panels")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPages_LoggedOutRedirectsToLogin(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/", "/homepage", "/portfolio-chart"} {
		w := f.do(t, http.MethodGet, path, nil)
		if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
			t.Errorf("%s: expected 302 to /login, got %d %s", path, w.Code, w.Header().Get("Location"))
		}
	}

	w := f.do(t, http.MethodGet, "/login", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected login page, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `name="password"`) {
		t.Error("expected login form")
	}
}

func TestPages_LoginRejectedShowsMessage(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/login", url.Values{"username": {apitest.Username}, "password": {"nope"}})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Incorrect username or password") {
		t.Error("expected server detail in page")
	}
}

func TestPages_HomeListsPortfolios(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	w := f.do(t, http.MethodGet, "/homepage", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Main", "Degiro", "2023-02-01", "Side", `name="portfolio_id" value="1"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in home page", want)
		}
	}
	if strings.Contains(body, `http-equiv="refresh"`) {
		t.Error("settled page must not auto-refresh")
	}

	// A logged-in user asking for /login lands on the home page.
	w = f.do(t, http.MethodGet, "/login", nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/homepage" {
		t.Errorf("expected redirect to /homepage, got %d %s", w.Code, w.Header().Get("Location"))
	}
}

func TestPages_SelectOpensDetail(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	w := f.do(t, http.MethodGet, "/portfolio-chart", nil)
	if w.Header().Get("Location") != "/homepage" {
		t.Errorf("detail without selection must redirect home, got %s", w.Header().Get("Location"))
	}

	w = f.do(t, http.MethodPost, "/select", url.Values{"portfolio_id": {"1"}})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/portfolio-chart" {
		t.Fatalf("expected 303 to /portfolio-chart, got %d %s", w.Code, w.Header().Get("Location"))
	}
	f.settle(t)

	w = f.do(t, http.MethodGet, "/portfolio-chart", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"<polyline", "€150.00", "€12.50", "Eni", "Apple", `href="/homepage"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in detail page", want)
		}
	}
	if strings.Index(body, "Eni") > strings.Index(body, "Apple") {
		t.Error("expected Eni ranked above Apple by gain/loss")
	}
}

func TestPages_DetailControls(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.do(t, http.MethodPost, "/select", url.Values{"portfolio_id": {"1"}})
	f.settle(t)

	w := f.do(t, http.MethodGet, "/portfolio-chart?mode=percentage", nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/portfolio-chart" {
		t.Fatalf("expected redirect to bare detail page, got %d %s", w.Code, w.Header().Get("Location"))
	}
	f.do(t, http.MethodGet, "/portfolio-chart?range=1w", nil)
	f.do(t, http.MethodGet, "/portfolio-chart?sort=name", nil)

	snap, _ := f.viewer.Snapshot(context.Background())
	if snap.ChartMode != "percentage" || snap.ChartRange != "1W" || snap.Sort.Key != "name" {
		t.Errorf("controls not applied: mode=%s range=%s sort=%s", snap.ChartMode, snap.ChartRange, snap.Sort.Key)
	}

	w = f.do(t, http.MethodGet, "/portfolio-chart?range=2D", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown range, got %d", w.Code)
	}
}

func TestPages_Logout(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	w := f.do(t, http.MethodPost, "/logout", nil)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Fatalf("expected 303 to /login, got %d %s", w.Code, w.Header().Get("Location"))
	}
	w = f.do(t, http.MethodGet, "/homepage", nil)
	if w.Header().Get("Location") != "/login" {
		t.Errorf("expected logged-out redirect, got %s", w.Header().Get("Location"))
	}

	w = f.do(t, http.MethodGet, "/logout", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET /logout, got %d", w.Code)
	}
}

func TestPages_RetryAfterFailure(t *testing.T) {
	f := newFixture(t)
	f.api.FailNext("portfolios", 1)
	f.login(t)

	w := f.do(t, http.MethodGet, "/homepage", nil)
	if !strings.Contains(w.Body.String(), "/homepage?retry=1") {
		t.Fatal("expected retry link on failed list")
	}

	w = f.do(t, http.MethodGet, "/homepage?retry=1", nil)
	if w.Code != http.StatusFound {
		t.Fatalf("expected redirect after retry, got %d", w.Code)
	}
	snap := f.settle(t)
	if snap.Portfolios.Status != viewer.StatusReady {
		t.Errorf("expected ready after retry, got %s", snap.Portfolios.Status)
	}
}

func TestViewHandler_ReturnsSnapshot(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	h := NewViewHandler(common.NewSilentLogger(), f.viewer)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/view", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Location   string `json:"location"`
		Session    string `json:"session"`
		Portfolios struct {
			Status string `json:"status"`
		} `json:"portfolios"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body.Location != "home" || body.Session != "logged_in" || body.Portfolios.Status != "ready" {
		t.Errorf("unexpected snapshot %+v", body)
	}
}

func TestHealthHandler_ReturnsOK(t *testing.T) {
	handler := NewHealthHandler(common.NewSilentLogger(), "memory")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body["status"] != "ok" || body["storage"] != "memory" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestHealthHandler_RejectsNonGET(t *testing.T) {
	handler := NewHealthHandler(common.NewSilentLogger(), "memory")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/health", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
	if w.Header().Get("Allow") != "GET" {
		t.Errorf("expected Allow: GET, got %q", w.Header().Get("Allow"))
	}
}

func TestVersionHandler_ReturnsJSON(t *testing.T) {
	w := httptest.NewRecorder()
	NewVersionHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	for _, field := range []string{"version", "build", "git_commit", "go_version"} {
		if _, ok := body[field]; !ok {
			t.Errorf("expected %s field in response", field)
		}
	}
}

func TestAPIHealthHandler(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer up.Close()

	w := httptest.NewRecorder()
	NewAPIHealthHandler(common.NewSilentLogger(), up.URL).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/server-health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for reachable API, got %d", w.Code)
	}

	down := up.URL
	up.Close()
	w = httptest.NewRecorder()
	NewAPIHealthHandler(common.NewSilentLogger(), down).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/server-health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for unreachable API, got %d", w.Code)
	}
}

func TestPolyline(t *testing.T) {
	if got := polyline(100, 10, nil); got != "" {
		t.Errorf("expected empty points, got %q", got)
	}
	if got := polyline(100, 10, []float64{0, 5, 10}); got != "0.0,10.0 50.0,5.0 100.0,0.0" {
		t.Errorf("unexpected points %q", got)
	}
	if got := polyline(100, 10, []float64{5}, []float64{0, 10}); got != "0.0,5.0" {
		t.Errorf("expected shared scale, got %q", got)
	}
}
