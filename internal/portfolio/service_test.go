package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bobmcallan/folio-portal/internal/apitest"
	"github.com/bobmcallan/folio-portal/internal/cache"
	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/session"
	"github.com/bobmcallan/folio-portal/internal/state"
	"github.com/bobmcallan/folio-portal/internal/storage/memory"
)

type fixture struct {
	api   *apitest.FakeAPI
	svc   *Service
	sess  *session.Manager
	cache *cache.SelectionCache
	store *state.Store
	now   time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := common.NewSilentLogger()
	api := apitest.New(t)
	store := state.New(memory.NewKVStorage(), logger)
	c := cache.New(store, map[cache.Kind]time.Duration{
		cache.KindHistory:   30 * time.Minute,
		cache.KindPositions: 30 * time.Minute,
	}, logger)

	f := &fixture{api: api, cache: c, store: store, now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	c.SetClock(func() time.Time { return f.now })

	pc := client.NewPortfolioClient(api.URL, 5*time.Second)
	sess, err := session.NewManager(context.Background(), pc, store, c, logger)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := sess.Login(context.Background(), apitest.Username, apitest.Password); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	f.sess = sess
	f.svc = NewService(pc, c, sess, logger)
	return f
}

func TestHistory_CacheFreshness(t *testing.T) {
	tests := []struct {
		name      string
		age       time.Duration
		wantCalls int
	}{
		{"ten minutes old is served from cache", 10 * time.Minute, 1},
		{"forty minutes old is refetched", 40 * time.Minute, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			if _, err := f.svc.History(ctx, "1"); err != nil {
				t.Fatalf("History failed: %v", err)
			}
			f.advance(tt.age)

			h, err := f.svc.History(ctx, "1")
			if err != nil {
				t.Fatalf("History failed: %v", err)
			}
			if len(h.DailyValues) != 3 {
				t.Errorf("expected 3 daily values, got %d", len(h.DailyValues))
			}
			if got := f.api.Calls("value_history"); got != tt.wantCalls {
				t.Errorf("expected %d value-history calls, got %d", tt.wantCalls, got)
			}
		})
	}
}

func TestHistory_SeededEntryFreshness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := f.sess.Scope()
	seeded := models.ValueHistory{DailyValues: []models.DailyValue{
		{Date: models.MustParseDate("2024-05-31"), TotalValue: 999, Invested: 1},
	}}

	// Entry written forty minutes before "now".
	f.now = f.now.Add(-40 * time.Minute)
	f.cache.Put(ctx, scope, cache.KindHistory, "1", seeded)
	f.now = f.now.Add(40 * time.Minute)

	h, err := f.svc.History(ctx, "1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if f.api.Calls("value_history") != 1 {
		t.Errorf("expected stale entry to trigger one fetch, got %d", f.api.Calls("value_history"))
	}
	if h.DailyValues[len(h.DailyValues)-1].TotalValue == 999 {
		t.Error("expected fetched history, got stale cached copy")
	}

	// Entry written ten minutes before "now".
	f.now = f.now.Add(-10 * time.Minute)
	f.cache.Put(ctx, scope, cache.KindHistory, "1", seeded)
	f.now = f.now.Add(10 * time.Minute)

	h, err = f.svc.History(ctx, "1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if f.api.Calls("value_history") != 1 {
		t.Errorf("expected no network call for a fresh entry, got %d calls", f.api.Calls("value_history"))
	}
	if h.DailyValues[0].TotalValue != 999 {
		t.Errorf("expected cached history, got %+v", h.DailyValues)
	}
}

func TestPositions_Cached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for range 3 {
		list, err := f.svc.Positions(ctx, "1")
		if err != nil {
			t.Fatalf("Positions failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 positions, got %d", len(list))
		}
	}
	if got := f.api.Calls("positions"); got != 1 {
		t.Errorf("expected one positions call, got %d", got)
	}
}

func TestLastValue_AlwaysFetchesAndCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, _, ok := f.svc.CachedLastValue(ctx, "1"); ok {
		t.Fatal("expected no cached last value before first fetch")
	}
	for range 2 {
		if _, err := f.svc.LastValue(ctx, "1"); err != nil {
			t.Fatalf("LastValue failed: %v", err)
		}
	}
	if got := f.api.Calls("value_last"); got != 2 {
		t.Errorf("expected last value fetched every time, got %d calls", got)
	}

	f.advance(24 * time.Hour)
	lv, at, ok := f.svc.CachedLastValue(ctx, "1")
	if !ok {
		t.Fatal("expected cached last value")
	}
	if lv.TotalValue != 150 || at.IsZero() {
		t.Errorf("unexpected cached last value %+v at %s", lv, at)
	}
}

func TestPortfolio_Lookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Portfolio(ctx, "1")
	if err != nil {
		t.Fatalf("Portfolio failed: %v", err)
	}
	if p.Name != "Main" {
		t.Errorf("expected Main, got %q", p.Name)
	}
	if _, err := f.svc.Portfolio(ctx, "404"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUnauthorized_ExpiresSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.History(ctx, "1")
	f.sess.Select(ctx, models.Portfolio{ID: "1", Name: "Main"})

	f.api.RevokeAll()
	_, err := f.svc.Portfolios(ctx)
	if !errors.Is(err, session.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if f.sess.State() != session.LoggedOut {
		t.Errorf("expected LoggedOut, got %s", f.sess.State())
	}
	if tok, _ := f.store.Token(ctx); tok != "" {
		t.Errorf("expected token removed, got %q", tok)
	}
	if sel, _ := f.store.Selection(ctx); sel != nil {
		t.Errorf("expected selection cleared, got %+v", sel)
	}
	var h models.ValueHistory
	if _, ok := f.cache.Peek(ctx, cache.ScopeOf(apitest.Token), cache.KindHistory, "1", &h); ok {
		t.Error("expected cache cleared")
	}

	if _, err := f.svc.History(ctx, "1"); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated after expiry, got %v", err)
	}
}

func TestServerError_KeepsSession(t *testing.T) {
	f := newFixture(t)
	f.api.FailNext("positions", 1)

	_, err := f.svc.Positions(context.Background(), "1")
	var statusErr *client.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if f.sess.State() != session.LoggedIn {
		t.Error("a server error must not log the session out")
	}
}
