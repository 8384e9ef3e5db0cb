// Package apitest runs an in-process fake of the remote portfolio API for
// tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// Valid credentials and the token they are exchanged for.
const (
	Username = "alice"
	Password = "s3cret"
	Token    = "token-alice"
)

// FakeAPI serves the remote API endpoints from in-memory data.
type FakeAPI struct {
	*httptest.Server

	mu         sync.Mutex
	tokens     map[string]bool
	portfolios []models.Portfolio
	history    map[models.PortfolioID]models.ValueHistory
	last       map[models.PortfolioID]models.LastValue
	positions  map[models.PortfolioID][]models.Position
	failures   map[string]int
	calls      map[string]int
	gate       chan struct{}
}

// New starts a FakeAPI seeded with Sample data and registers its shutdown.
func New(t testing.TB) *FakeAPI {
	t.Helper()
	f := &FakeAPI{
		tokens:    map[string]bool{Token: true},
		history:   map[models.PortfolioID]models.ValueHistory{},
		last:      map[models.PortfolioID]models.LastValue{},
		positions: map[models.PortfolioID][]models.Position{},
		failures:  map[string]int{},
		calls:     map[string]int{},
	}
	f.Seed(Sample())
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	t.Cleanup(f.Release)
	return f
}

// Data is the content served by a FakeAPI.
type Data struct {
	Portfolios []models.Portfolio
	History    map[models.PortfolioID]models.ValueHistory
	Last       map[models.PortfolioID]models.LastValue
	Positions  map[models.PortfolioID][]models.Position
}

// Sample returns one portfolio with a short history and two positions.
func Sample() Data {
	div := 12.5
	return Data{
		Portfolios: []models.Portfolio{
			{ID: "1", Name: "Main", Broker: "Degiro", CreatedAt: "2023-02-01T10:00:00"},
			{ID: "2", Name: "Side"},
		},
		History: map[models.PortfolioID]models.ValueHistory{
			"1": {DailyValues: []models.DailyValue{
				{Date: models.MustParseDate("2023-12-31"), TotalValue: 0, Invested: 0},
				{Date: models.MustParseDate("2024-01-01"), TotalValue: 100, Invested: 100, PercDiff: 0},
				{Date: models.MustParseDate("2024-06-01"), TotalValue: 150, Invested: 100, AbsDiff: 50, PercDiff: 50},
			}},
		},
		Last: map[models.PortfolioID]models.LastValue{
			"1": {
				DailyValue:   models.DailyValue{Date: models.MustParseDate("2024-06-01"), TotalValue: 150, Invested: 100, AbsDiff: 50, PercDiff: 50},
				NetDividends: &div,
			},
		},
		Positions: map[models.PortfolioID][]models.Position{
			"1": {
				{Ticker: "ENI", Name: "Eni", Quantity: 100, AveragePrice: 12, CurrentPrice: 14, Invested: 1200, Diff1WAbs: 50, Diff1WPerc: 3.5, DiffMaxPerc: 16.6},
				{Ticker: "AAPL", Name: "Apple", Quantity: 5, AveragePrice: 150, CurrentPrice: 140, Invested: 750, Diff1WAbs: 10, Diff1WPerc: 1.4, DiffMaxPerc: -6.7},
			},
		},
	}
}

// Seed replaces the served data.
func (f *FakeAPI) Seed(d Data) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portfolios = d.Portfolios
	if d.History != nil {
		f.history = d.History
	}
	if d.Last != nil {
		f.last = d.Last
	}
	if d.Positions != nil {
		f.positions = d.Positions
	}
}

// RevokeAll makes every token invalid, as if sessions expired server side.
func (f *FakeAPI) RevokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = map[string]bool{}
}

// FailNext makes the next n requests to endpoint answer 500.
// Endpoints: login, portfolios, value_history, value_last, positions.
func (f *FakeAPI) FailNext(endpoint string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[endpoint] = n
}

// Hold blocks every data request until Release is called.
func (f *FakeAPI) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

// Release unblocks held requests.
func (f *FakeAPI) Release() {
	f.mu.Lock()
	gate := f.gate
	f.gate = nil
	f.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

// Calls returns how many requests endpoint has received.
func (f *FakeAPI) Calls(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

func (f *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	endpoint, id := route(r.URL.Path)

	f.mu.Lock()
	f.calls[endpoint]++
	fail := f.failures[endpoint] > 0
	if fail {
		f.failures[endpoint]--
	}
	gate := f.gate
	f.mu.Unlock()

	if gate != nil && endpoint != "login" {
		<-gate
	}
	if fail {
		http.Error(w, `{"detail":"internal error"}`, http.StatusInternalServerError)
		return
	}

	if endpoint == "login" {
		f.login(w, r)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	auth := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !f.tokens[auth] {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]string{"detail": "Could not validate credentials"})
		return
	}

	switch endpoint {
	case "portfolios":
		writeJSON(w, f.portfolios)
	case "value_history":
		h, ok := f.history[id]
		if !ok {
			h = models.ValueHistory{DailyValues: []models.DailyValue{}}
		}
		writeJSON(w, h)
	case "value_last":
		lv, ok := f.last[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]string{"detail": "no values"})
			return
		}
		writeJSON(w, lv)
	case "positions":
		p := f.positions[id]
		if p == nil {
			p = []models.Position{}
		}
		writeJSON(w, p)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.ParseForm() != nil {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.PostForm.Get("username") != Username || r.PostForm.Get("password") != Password {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]string{"detail": "Incorrect username or password"})
		return
	}
	f.mu.Lock()
	f.tokens[Token] = true
	f.mu.Unlock()
	writeJSON(w, map[string]string{"access_token": Token, "token_type": "bearer"})
}

func route(path string) (endpoint string, id models.PortfolioID) {
	if path == "/login" {
		return "login", ""
	}
	if path == "/portfolios/" || path == "/portfolios" {
		return "portfolios", ""
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "portfolios" {
		id = models.PortfolioID(parts[1])
		switch strings.Join(parts[2:], "/") {
		case "value-history":
			return "value_history", id
		case "value-last":
			return "value_last", id
		case "positions/performance":
			return "positions", id
		}
	}
	return "unknown", ""
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
