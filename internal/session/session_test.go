package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bobmcallan/folio-portal/internal/cache"
	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/state"
	"github.com/bobmcallan/folio-portal/internal/storage/memory"
)

type fakeAuth struct {
	token string
	err   error
	calls int
}

func (f *fakeAuth) Login(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.token, f.err
}

type fixture struct {
	kv    *memory.KVStorage
	store *state.Store
	cache *cache.SelectionCache
}

func newFixture() fixture {
	logger := common.NewSilentLogger()
	kv := memory.NewKVStorage()
	store := state.New(kv, logger)
	return fixture{
		kv:    kv,
		store: store,
		cache: cache.New(store, map[cache.Kind]time.Duration{cache.KindHistory: 30 * time.Minute}, logger),
	}
}

func (f fixture) manager(t *testing.T, auth Authenticator) *Manager {
	t.Helper()
	m, err := NewManager(context.Background(), auth, f.store, f.cache, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestNewManager_InitialState(t *testing.T) {
	f := newFixture()
	if m := f.manager(t, &fakeAuth{}); m.State() != LoggedOut {
		t.Errorf("expected LoggedOut without persisted token, got %s", m.State())
	}

	f.store.SetToken(context.Background(), "persisted")
	m := f.manager(t, &fakeAuth{})
	if m.State() != LoggedIn {
		t.Errorf("expected LoggedIn with persisted token, got %s", m.State())
	}
	if tok, _ := m.Token(); tok != "persisted" {
		t.Errorf("expected persisted token, got %q", tok)
	}
}

func TestLogin_PersistsToken(t *testing.T) {
	f := newFixture()
	m := f.manager(t, &fakeAuth{token: "tok-1"})
	ctx := context.Background()

	if _, err := m.Token(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated before login, got %v", err)
	}
	if err := m.Login(ctx, " alice ", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if m.State() != LoggedIn {
		t.Errorf("expected LoggedIn, got %s", m.State())
	}
	if m.Current().Username != "alice" {
		t.Errorf("expected trimmed username alice, got %q", m.Current().Username)
	}
	if tok, _ := f.store.Token(ctx); tok != "tok-1" {
		t.Errorf("expected persisted token tok-1, got %q", tok)
	}
}

func TestLogin_FailureLeavesSessionUntouched(t *testing.T) {
	f := newFixture()
	auth := &fakeAuth{err: &client.AuthError{StatusCode: 401, Detail: "bad"}}
	m := f.manager(t, auth)

	err := m.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, client.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if m.State() != LoggedOut {
		t.Errorf("expected LoggedOut after failed login, got %s", m.State())
	}
}

func TestLogout_ClearsEverything(t *testing.T) {
	f := newFixture()
	m := f.manager(t, &fakeAuth{token: "tok-1"})
	ctx := context.Background()

	m.Login(ctx, "alice", "pw")
	m.Select(ctx, models.Portfolio{ID: "1", Name: "Main"})
	f.cache.Put(ctx, m.Scope(), cache.KindHistory, "1", models.ValueHistory{})

	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if m.State() != LoggedOut {
		t.Errorf("expected LoggedOut, got %s", m.State())
	}
	all, _ := f.kv.GetAll(ctx)
	if len(all) != 0 {
		t.Errorf("expected all persisted state cleared, got %v", all)
	}
}

func TestHandleError_UnauthorizedFromPortfolios(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	api := client.NewPortfolioClient(srv.URL, time.Second)

	f := newFixture()
	ctx := context.Background()
	f.store.SetToken(ctx, "stale-token")
	m := f.manager(t, api)
	if m.State() != LoggedIn {
		t.Fatalf("expected LoggedIn, got %s", m.State())
	}

	tok, _ := m.Token()
	_, apiErr := api.ListPortfolios(ctx, tok)
	err := m.HandleError(ctx, tok, apiErr)

	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if m.State() != LoggedOut {
		t.Errorf("expected LoggedOut, got %s", m.State())
	}
	if persisted, _ := f.store.Token(ctx); persisted != "" {
		t.Errorf("expected persisted token removed, got %q", persisted)
	}
}

func TestHandleError_OtherErrorsPassThrough(t *testing.T) {
	f := newFixture()
	m := f.manager(t, &fakeAuth{token: "tok"})
	ctx := context.Background()
	m.Login(ctx, "alice", "pw")

	netErr := &client.NetworkError{Endpoint: "portfolios", Err: errors.New("refused")}
	if err := m.HandleError(ctx, "tok", netErr); err != netErr {
		t.Errorf("expected the network error unchanged, got %v", err)
	}
	if m.State() != LoggedIn {
		t.Error("a network failure must not log the session out")
	}
}

func TestHandleError_UnauthorizedForOldTokenKeepsNewSession(t *testing.T) {
	f := newFixture()
	auth := &fakeAuth{token: "new"}
	m := f.manager(t, auth)
	ctx := context.Background()
	m.Login(ctx, "alice", "pw")

	err := m.HandleError(ctx, "old", fmt.Errorf("portfolios: %w", client.ErrUnauthorized))
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
	if m.State() != LoggedIn {
		t.Error("a 401 for a superseded token must not end the current session")
	}
}

func TestSelect(t *testing.T) {
	f := newFixture()
	m := f.manager(t, &fakeAuth{token: "tok"})
	ctx := context.Background()

	if err := m.Select(ctx, models.Portfolio{ID: "1"}); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
	m.Login(ctx, "alice", "pw")
	if err := m.Select(ctx, models.Portfolio{}); err == nil {
		t.Error("expected error for empty portfolio id")
	}
	if err := m.Select(ctx, models.Portfolio{ID: "1", Name: "Main"}); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	sel, err := m.Selection(ctx)
	if err != nil || sel == nil || sel.ID != "1" || sel.Name != "Main" {
		t.Errorf("unexpected selection %+v (%v)", sel, err)
	}
}

func TestLogin_WhileLoggedInDropsPreviousSelection(t *testing.T) {
	f := newFixture()
	auth := &fakeAuth{token: "tok-alice"}
	m := f.manager(t, auth)
	ctx := context.Background()

	m.Login(ctx, "alice", "pw")
	m.Select(ctx, models.Portfolio{ID: "1", Name: "Main"})
	f.cache.Put(ctx, m.Scope(), cache.KindHistory, "1", models.ValueHistory{})

	auth.token = "tok-bob"
	if err := m.Login(ctx, "bob", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sel, _ := m.Selection(ctx); sel != nil {
		t.Errorf("expected previous selection dropped, got %+v", sel)
	}
	if tok, _ := f.store.Token(ctx); tok != "tok-bob" {
		t.Errorf("expected new token persisted, got %q", tok)
	}
	if m.Current().Username != "bob" {
		t.Errorf("expected bob logged in, got %q", m.Current().Username)
	}
	all, _ := f.kv.GetAll(ctx)
	if len(all) != 1 {
		t.Errorf("expected only the new token persisted, got %v", all)
	}
}

func TestWhileCurrent(t *testing.T) {
	f := newFixture()
	m := f.manager(t, &fakeAuth{token: "tok"})
	ctx := context.Background()
	m.Login(ctx, "alice", "pw")

	writes := 0
	write := func() error { writes++; return nil }

	if ran, err := m.WhileCurrent("tok", write); !ran || err != nil {
		t.Errorf("expected write under the current token, got ran=%v err=%v", ran, err)
	}
	if ran, _ := m.WhileCurrent("other", write); ran {
		t.Error("expected no write for a superseded token")
	}
	m.Logout(ctx)
	if ran, _ := m.WhileCurrent("tok", write); ran {
		t.Error("expected no write after logout")
	}
	if ran, _ := m.WhileCurrent("", write); ran {
		t.Error("expected no write without a token")
	}
	if writes != 1 {
		t.Errorf("expected 1 write, got %d", writes)
	}

	boom := errors.New("disk full")
	m.Login(ctx, "alice", "pw")
	if _, err := m.WhileCurrent("tok", func() error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected write error returned, got %v", err)
	}
}
