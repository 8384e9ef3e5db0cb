// Package session holds the portal's authentication state machine.
//
// The session is LoggedIn iff a non-empty token is held. Login persists the
// token; Logout and Expire clear the token, the selected portfolio and every
// cached entry. Expire is triggered by an unauthorized response on any
// authenticated call and is surfaced to callers as ErrSessionExpired.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/folio-portal/internal/cache"
	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/metrics"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/state"
)

var (
	// ErrSessionExpired is returned after an unauthorized response logged the
	// session out.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotAuthenticated is returned by operations that need a token while
	// LoggedOut.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// State is the session state.
type State string

const (
	LoggedOut State = "logged_out"
	LoggedIn  State = "logged_in"
)

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// Manager owns the session token and the selected portfolio.
// Thread-safe with sync.RWMutex.
type Manager struct {
	mu      sync.RWMutex
	current models.Session

	auth   Authenticator
	store  *state.Store
	cache  *cache.SelectionCache
	logger *common.Logger
}

// NewManager restores the persisted token. The initial state is LoggedIn
// whenever a token exists; it is not validated until first use.
func NewManager(ctx context.Context, auth Authenticator, store *state.Store, c *cache.SelectionCache, logger *common.Logger) (*Manager, error) {
	token, err := store.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	m := &Manager{
		current: models.Session{Token: token},
		auth:    auth,
		store:   store,
		cache:   c,
		logger:  logger,
	}
	logger.Info().Str("state", string(m.State())).Msg("session restored")
	return m, nil
}

// State returns LoggedIn or LoggedOut.
func (m *Manager) State() State {
	if m.IsAuthenticated() {
		return LoggedIn
	}
	return LoggedOut
}

// IsAuthenticated reports whether a token is held.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.IsAuthenticated()
}

// Current returns a copy of the session.
func (m *Manager) Current() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Token returns the bearer token, or ErrNotAuthenticated.
func (m *Manager) Token() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.current.IsAuthenticated() {
		return "", ErrNotAuthenticated
	}
	return m.current.Token, nil
}

// Login authenticates against the API and persists the token. A rejected
// login leaves the session untouched. Logging in while LoggedIn ends the
// previous session first, so its selection and cache do not carry over.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	token, err := m.auth.Login(ctx, username, password)
	if err != nil {
		m.logger.Warn().Str("username", username).Err(err).Msg("login failed")
		return err
	}
	if m.IsAuthenticated() {
		if err := m.end(ctx, "logout"); err != nil {
			return fmt.Errorf("failed to end previous session: %w", err)
		}
	}
	if err := m.store.SetToken(ctx, token); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	m.mu.Lock()
	m.current = models.Session{Token: token, Username: username, CreatedAt: time.Now().UTC()}
	m.mu.Unlock()

	metrics.SessionTransitionsTotal.WithLabelValues("login").Inc()
	m.logger.Info().Str("username", username).Msg("logged in")
	return nil
}

// Logout clears the token, the selection and the cache.
func (m *Manager) Logout(ctx context.Context) error {
	return m.end(ctx, "logout")
}

// Expire is Logout triggered by an unauthorized response.
func (m *Manager) Expire(ctx context.Context) error {
	return m.end(ctx, "expire")
}

func (m *Manager) end(ctx context.Context, event string) error {
	m.mu.Lock()
	m.current = models.Session{}
	m.mu.Unlock()

	// In-memory state is cleared first so a failing store never leaves the
	// portal LoggedIn.
	var errs []error
	if err := m.store.DeleteToken(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := m.store.ClearSelection(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := m.cache.Clear(ctx); err != nil {
		errs = append(errs, err)
	}

	metrics.SessionTransitionsTotal.WithLabelValues(event).Inc()
	if err := errors.Join(errs...); err != nil {
		m.logger.Error().Str("event", event).Err(err).Msg("failed to clear persisted session state")
		return err
	}
	m.logger.Info().Str("event", event).Msg("logged out")
	return nil
}

// HandleError maps an unauthorized response obtained with token to the
// expire transition and returns ErrSessionExpired. A 401 for a token that is
// no longer current (the user already logged out or in again) does not touch
// the session. Other errors pass through unchanged.
func (m *Manager) HandleError(ctx context.Context, token string, err error) error {
	if !errors.Is(err, client.ErrUnauthorized) {
		return err
	}
	m.mu.RLock()
	current := m.current.Token
	m.mu.RUnlock()

	if token != "" && token == current {
		m.logger.Warn().Err(err).Msg("unauthorized response, expiring session")
		if expErr := m.Expire(ctx); expErr != nil {
			return errors.Join(ErrSessionExpired, expErr)
		}
	}
	return fmt.Errorf("%w: %w", ErrSessionExpired, err)
}

// WhileCurrent runs write only while token is still the session token and
// reports whether it ran. Ending the session waits for a running write.
func (m *Manager) WhileCurrent(token string, write func() error) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if token == "" || token != m.current.Token {
		return false, nil
	}
	return true, write()
}

// Scope returns the cache scope of the current session.
func (m *Manager) Scope() cache.Scope {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cache.ScopeOf(m.current.Token)
}

// Selection returns the selected portfolio, or nil.
func (m *Manager) Selection(ctx context.Context) (*models.Selection, error) {
	return m.store.Selection(ctx)
}

// Select stores p as the selected portfolio. It requires a session.
func (m *Manager) Select(ctx context.Context, p models.Portfolio) error {
	if p.ID == "" {
		return errors.New("portfolio id is required")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.current.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	return m.store.SetSelection(ctx, models.Selection{ID: p.ID, Name: p.Name, Portfolio: p})
}
