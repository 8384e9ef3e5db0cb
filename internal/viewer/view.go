package viewer

import (
	"time"

	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/navigation"
	"github.com/bobmcallan/folio-portal/internal/positions"
	"github.com/bobmcallan/folio-portal/internal/series"
	"github.com/bobmcallan/folio-portal/internal/session"
)

// Status is the lifecycle of one panel's data.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// Panel is one independently loaded region of a page. Stale marks data
// shown from the cache while a refresh is pending.
type Panel[T any] struct {
	Status    Status    `json:"status"`
	Data      T         `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitzero"`
	Stale     bool      `json:"stale,omitempty"`
}

// Busy reports whether the panel is waiting for a fetch.
func (p Panel[T]) Busy() bool { return p.Status == StatusPending }

func pending[T any](prev Panel[T]) Panel[T] {
	return Panel[T]{Status: StatusPending, Data: prev.Data, FetchedAt: prev.FetchedAt, Stale: !prev.FetchedAt.IsZero()}
}

// complete records a finished fetch. A failure keeps any data already shown.
func complete[T any](prev Panel[T], data T, empty bool, err error) Panel[T] {
	if err != nil {
		return Panel[T]{Status: StatusError, Error: describe(err), Data: prev.Data, FetchedAt: prev.FetchedAt, Stale: prev.Stale}
	}
	status := StatusReady
	if empty {
		status = StatusEmpty
	}
	return Panel[T]{Status: status, Data: data, FetchedAt: time.Now()}
}

// view is the loop-confined state behind a Snapshot.
type view struct {
	location   navigation.Location
	notice     string
	loginError string
	selection  *models.Selection

	portfolios Panel[[]models.Portfolio]
	history    Panel[*models.ValueHistory]
	summary    Panel[*models.LastValue]
	positions  Panel[[]models.Position]

	chartRange models.Range
	chartMode  models.ChartMode
	tableRange models.Range
	sorter     positions.Sorter
}

func newView(loc navigation.Location) view {
	v := view{
		location:   loc,
		chartRange: models.RangeMax,
		chartMode:  models.ModeValue,
		tableRange: models.RangeMax,
		sorter:     positions.NewSorter(),
	}
	v.resetPanels()
	return v
}

func (v *view) resetPanels() {
	v.portfolios = Panel[[]models.Portfolio]{Status: StatusIdle}
	v.history = Panel[*models.ValueHistory]{Status: StatusIdle}
	v.summary = Panel[*models.LastValue]{Status: StatusIdle}
	v.positions = Panel[[]models.Position]{Status: StatusIdle}
}

func (v *view) selectedID() models.PortfolioID {
	if v.selection == nil {
		return ""
	}
	return v.selection.ID
}

func (v *view) findPortfolio(id models.PortfolioID) (models.Portfolio, bool) {
	for _, p := range v.portfolios.Data {
		if p.ID == id {
			return p, true
		}
	}
	return models.Portfolio{}, false
}

// Snapshot is an immutable copy of the view with the chart and positions
// table derived for the current range, mode and sort.
type Snapshot struct {
	Generation uint64              `json:"generation"`
	Location   navigation.Location `json:"location"`
	Path       string              `json:"path"`
	Session    session.State       `json:"session"`
	Username   string              `json:"username,omitempty"`
	Notice     string              `json:"notice,omitempty"`
	LoginError string              `json:"login_error,omitempty"`
	Selection  *models.Selection   `json:"selection,omitempty"`
	Pending    bool                `json:"pending"`

	Portfolios Panel[[]models.Portfolio] `json:"portfolios"`
	Chart      Panel[*series.Chart]      `json:"chart"`
	Summary    Panel[*models.LastValue]  `json:"summary"`
	Positions  Panel[[]positions.Row]    `json:"positions"`

	ChartRange models.Range     `json:"chart_range"`
	ChartMode  models.ChartMode `json:"chart_mode"`
	TableRange models.Range     `json:"table_range"`
	Sort       positions.Sorter `json:"sort"`
}

func (v *Viewer) snapshot() Snapshot {
	st := v.st
	snap := Snapshot{
		Generation: v.gen,
		Location:   st.location,
		Path:       st.location.Path(),
		Session:    v.svc.Session().State(),
		Username:   v.svc.Session().Current().Username,
		Notice:     st.notice,
		LoginError: st.loginError,
		Portfolios: st.portfolios,
		Summary:    st.summary,
		ChartRange: st.chartRange,
		ChartMode:  st.chartMode,
		TableRange: st.tableRange,
		Sort:       st.sorter,
	}
	if st.selection != nil {
		sel := *st.selection
		snap.Selection = &sel
	}

	snap.Chart = Panel[*series.Chart]{
		Status:    st.history.Status,
		Error:     st.history.Error,
		FetchedAt: st.history.FetchedAt,
		Stale:     st.history.Stale,
	}
	if st.history.Data != nil {
		chart := series.BuildChart(st.history.Data, st.chartRange, st.chartMode)
		snap.Chart.Data = &chart
	}

	snap.Positions = Panel[[]positions.Row]{
		Status:    st.positions.Status,
		Error:     st.positions.Error,
		FetchedAt: st.positions.FetchedAt,
		Stale:     st.positions.Stale,
	}
	if st.positions.Data != nil {
		snap.Positions.Data = st.sorter.Sort(st.positions.Data, st.tableRange)
	}

	snap.Pending = snap.Portfolios.Busy() || snap.Chart.Busy() || snap.Summary.Busy() || snap.Positions.Busy()
	return snap
}
