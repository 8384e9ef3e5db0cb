// Package viewer drives the portal's pages from a single event loop.
//
// Every mutation of view state runs on the loop goroutine. Network fetches run
// in their own goroutines and post their results back to the loop tagged
// with the generation they were started under; the generation advances on
// every location change, selection, login and logout, and a completion from
// an older generation is dropped.
package viewer

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/metrics"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/navigation"
	"github.com/bobmcallan/folio-portal/internal/portfolio"
	"github.com/bobmcallan/folio-portal/internal/positions"
	"github.com/bobmcallan/folio-portal/internal/session"
)

// ErrStopped is returned by operations once Run has returned.
var ErrStopped = errors.New("viewer stopped")

// NoticeSessionExpired is shown on the login page after an expiry.
const NoticeSessionExpired = "session expired"

// Viewer owns the view state of the portal.
type Viewer struct {
	svc    *portfolio.Service
	logger *common.Logger

	events  chan func()
	started chan struct{}
	done    chan struct{}
	fetches sync.WaitGroup

	// Confined to the loop goroutine.
	ctx context.Context
	gen uint64
	st  view
}

// New creates a Viewer. Call Run to start its loop.
func New(svc *portfolio.Service, logger *common.Logger) *Viewer {
	return &Viewer{
		svc:     svc,
		logger:  logger,
		events:  make(chan func(), 64),
		started: make(chan struct{}),
		done:    make(chan struct{}),
		st:      newView(navigation.Login),
	}
}

// Run processes operations and fetch completions until ctx is cancelled.
// In-flight fetches are cancelled and awaited before Run returns.
func (v *Viewer) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	v.ctx = ctx
	// A restored session opens on the home page.
	v.enter(v.resolve(navigation.PathHome))
	close(v.started)

	v.logger.Debug().Str("location", string(v.st.location)).Msg("viewer started")
	defer func() {
		cancel()
		close(v.done)
		v.fetches.Wait()
		v.logger.Debug().Msg("viewer stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-v.events:
			fn()
		}
	}
}

// do runs fn on the loop and returns the snapshot taken right after it.
func (v *Viewer) do(ctx context.Context, fn func()) (Snapshot, error) {
	select {
	case <-v.started:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	reply := make(chan Snapshot, 1)
	op := func() {
		if fn != nil {
			fn()
		}
		reply <- v.snapshot()
	}
	select {
	case v.events <- op:
	case <-v.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-v.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// post queues a fetch completion. It is dropped if the loop has stopped.
func (v *Viewer) post(fn func()) {
	select {
	case v.events <- fn:
	case <-v.done:
	}
}

// Snapshot returns the current view.
func (v *Viewer) Snapshot(ctx context.Context) (Snapshot, error) {
	return v.do(ctx, nil)
}

// Navigate resolves path against the session and moves there. Arriving at a
// new location starts its fetches; staying put keeps the panels as they are,
// unless the detail page's portfolio was selected elsewhere meanwhile.
func (v *Viewer) Navigate(ctx context.Context, path string) (Snapshot, error) {
	return v.do(ctx, func() {
		prev := v.st.selectedID()
		loc := v.resolve(path)
		if loc == navigation.PortfolioDetail && loc == v.st.location && v.st.selectedID() != prev {
			v.logger.Debug().Str("from", prev.String()).Str("to", v.st.selectedID().String()).Msg("selection changed")
			v.enter(loc)
			return
		}
		v.moveTo(loc)
	})
}

// Login exchanges credentials for a session. A rejected login stays on the
// login page with the server's message.
func (v *Viewer) Login(ctx context.Context, username, password string) (Snapshot, error) {
	err := v.svc.Session().Login(ctx, username, password)
	return v.do(ctx, func() {
		if err != nil {
			v.st.loginError = loginMessage(err)
			return
		}
		v.st.notice = ""
		v.st.loginError = ""
		v.enter(v.resolve(navigation.PathHome))
	})
}

// Logout ends the session and returns to the login page.
func (v *Viewer) Logout(ctx context.Context) (Snapshot, error) {
	return v.do(ctx, func() {
		if err := v.svc.Session().Logout(v.ctx); err != nil {
			v.logger.Error().Err(err).Msg("logout did not clear all state")
		}
		v.reset(navigation.Login, "")
	})
}

// Select stores id as the selected portfolio and opens its detail page.
func (v *Viewer) Select(ctx context.Context, id models.PortfolioID) (Snapshot, error) {
	var (
		p     models.Portfolio
		found bool
	)
	if _, err := v.do(ctx, func() { p, found = v.st.findPortfolio(id) }); err != nil {
		return Snapshot{}, err
	}
	if !found {
		var err error
		p, err = v.svc.Portfolio(ctx, id)
		if err != nil {
			snap, doErr := v.do(ctx, func() { v.settle(err) })
			if doErr != nil {
				return Snapshot{}, doErr
			}
			return snap, err
		}
	}

	var selErr error
	snap, err := v.do(ctx, func() {
		if selErr = v.svc.Session().Select(v.ctx, p); selErr != nil {
			v.settle(selErr)
			return
		}
		v.st.selection = &models.Selection{ID: p.ID, Name: p.Name, Portfolio: p}
		v.st.notice = ""
		v.enter(navigation.PortfolioDetail)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, selErr
}

// Retry refetches every panel of the current page that is in error.
func (v *Viewer) Retry(ctx context.Context) (Snapshot, error) {
	return v.do(ctx, func() {
		switch v.st.location {
		case navigation.Home:
			if v.st.portfolios.Status == StatusError {
				v.loadPortfolios()
			}
		case navigation.PortfolioDetail:
			if v.st.selection == nil {
				return
			}
			id := v.st.selection.ID
			if v.st.history.Status == StatusError {
				v.loadHistory(id)
			}
			if v.st.summary.Status == StatusError {
				v.loadSummary(id)
			}
			if v.st.positions.Status == StatusError {
				v.loadPositions(id)
			}
		}
	})
}

// SetChartRange selects the chart's range.
func (v *Viewer) SetChartRange(ctx context.Context, r models.Range) (Snapshot, error) {
	return v.do(ctx, func() { v.st.chartRange = r })
}

// SetChartMode selects what the chart plots.
func (v *Viewer) SetChartMode(ctx context.Context, m models.ChartMode) (Snapshot, error) {
	return v.do(ctx, func() { v.st.chartMode = m })
}

// SetTableRange selects the range of the positions table's deltas.
func (v *Viewer) SetTableRange(ctx context.Context, r models.Range) (Snapshot, error) {
	return v.do(ctx, func() { v.st.tableRange = r })
}

// SortBy applies a column click to the positions table.
func (v *Viewer) SortBy(ctx context.Context, key positions.SortKey) (Snapshot, error) {
	return v.do(ctx, func() { v.st.sorter.Select(key) })
}

func (v *Viewer) resolve(path string) navigation.Location {
	sel, err := v.svc.Session().Selection(v.ctx)
	if err != nil {
		v.logger.Warn().Err(err).Msg("failed to read selection")
	}
	v.st.selection = sel
	return navigation.Resolve(path, navigation.Context{
		Authenticated: v.svc.Session().IsAuthenticated(),
		HasSelection:  sel != nil,
	})
}

func (v *Viewer) moveTo(loc navigation.Location) {
	if loc == v.st.location {
		return
	}
	v.logger.Debug().Str("from", string(v.st.location)).Str("to", string(loc)).Msg("location changed")
	if loc != navigation.Login {
		v.st.notice = ""
	}
	v.enter(loc)
}

// enter starts a new generation at loc and loads its panels.
func (v *Viewer) enter(loc navigation.Location) {
	v.bump()
	v.st.location = loc
	v.st.resetPanels()
	v.load()
}

// reset abandons all panels and shows loc.
func (v *Viewer) reset(loc navigation.Location, notice string) {
	v.bump()
	prev := v.st
	v.st = newView(loc)
	v.st.chartRange, v.st.chartMode = prev.chartRange, prev.chartMode
	v.st.notice = notice
}

func (v *Viewer) bump() {
	v.gen++
}

func (v *Viewer) load() {
	switch v.st.location {
	case navigation.Home:
		v.loadPortfolios()
	case navigation.PortfolioDetail:
		if v.st.selection == nil {
			return
		}
		id := v.st.selection.ID
		v.loadHistory(id)
		v.loadSummary(id)
		v.loadPositions(id)
	}
}

func (v *Viewer) loadPortfolios() {
	v.st.portfolios = pending(v.st.portfolios)
	fetch(v, "portfolios", v.svc.Portfolios, func(list []models.Portfolio, err error) {
		v.st.portfolios = complete(v.st.portfolios, list, len(list) == 0, err)
	})
}

func (v *Viewer) loadHistory(id models.PortfolioID) {
	v.st.history = pending(v.st.history)
	fetch(v, "history", func(ctx context.Context) (*models.ValueHistory, error) {
		return v.svc.History(ctx, id)
	}, func(h *models.ValueHistory, err error) {
		v.st.history = complete(v.st.history, h, h == nil || len(h.DailyValues) == 0, err)
	})
}

// loadSummary shows any cached last value at once and always revalidates it.
func (v *Viewer) loadSummary(id models.PortfolioID) {
	v.st.summary = pending(v.st.summary)
	if cached, at, ok := v.svc.CachedLastValue(v.ctx, id); ok {
		v.st.summary.Data = cached
		v.st.summary.FetchedAt = at
		v.st.summary.Stale = true
	}
	fetch(v, "summary", func(ctx context.Context) (*models.LastValue, error) {
		return v.svc.LastValue(ctx, id)
	}, func(lv *models.LastValue, err error) {
		var status *client.StatusError
		if errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
			v.st.summary = Panel[*models.LastValue]{Status: StatusEmpty}
			return
		}
		v.st.summary = complete(v.st.summary, lv, lv == nil, err)
	})
}

func (v *Viewer) loadPositions(id models.PortfolioID) {
	v.st.positions = pending(v.st.positions)
	fetch(v, "positions", func(ctx context.Context) ([]models.Position, error) {
		return v.svc.Positions(ctx, id)
	}, func(list []models.Position, err error) {
		v.st.positions = complete(v.st.positions, list, len(list) == 0, err)
	})
}

// fetch runs call off the loop and applies its result on the loop, unless
// the generation moved on in the meantime.
func fetch[T any](v *Viewer, panel string, call func(context.Context) (T, error), apply func(T, error)) {
	gen := v.gen
	ctx := v.ctx
	v.fetches.Add(1)
	go func() {
		defer v.fetches.Done()
		res, err := call(ctx)
		v.post(func() {
			if gen != v.gen {
				metrics.StaleCompletionsTotal.WithLabelValues(panel).Inc()
				v.logger.Debug().Str("panel", panel).Int64("generation", int64(gen)).Msg("dropped stale completion")
				return
			}
			if v.expired(err) {
				return
			}
			if err != nil {
				v.logger.Warn().Str("panel", panel).Err(err).Msg("fetch failed")
			}
			apply(res, err)
		})
	}()
}

// expired moves to the login page when err means the session is gone.
func (v *Viewer) expired(err error) bool {
	switch {
	case errors.Is(err, session.ErrSessionExpired):
		v.reset(navigation.Login, NoticeSessionExpired)
		return true
	case errors.Is(err, session.ErrNotAuthenticated):
		v.reset(navigation.Login, "")
		return true
	}
	return false
}

// settle records the outcome of a synchronous operation.
func (v *Viewer) settle(err error) {
	if v.expired(err) {
		return
	}
	if errors.Is(err, interfaces.ErrNotFound) {
		v.st.notice = "portfolio not found"
		return
	}
	v.st.notice = describe(err)
}

func loginMessage(err error) string {
	var authErr *client.AuthError
	if errors.As(err, &authErr) {
		return authErr.Message()
	}
	return describe(err)
}

// describe turns a fetch error into the text shown in an error panel.
func describe(err error) string {
	var status *client.StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, client.ErrNetwork):
		return "Unable to reach the portfolio service"
	case errors.As(err, &status):
		return "The portfolio service returned " + http.StatusText(status.StatusCode)
	}
	return err.Error()
}
