package models

// Position is an open position as returned by
// GET /portfolios/{id}/positions/performance. Each diff pair holds the
// absolute and percentage change over the named range.
type Position struct {
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
	CurrentPrice float64 `json:"current_price"`
	Invested     float64 `json:"invested"`

	Diff1WAbs   float64 `json:"diff_1w_abs"`
	Diff1WPerc  float64 `json:"diff_1w_perc"`
	Diff1MAbs   float64 `json:"diff_1m_abs"`
	Diff1MPerc  float64 `json:"diff_1m_perc"`
	DiffYTDAbs  float64 `json:"diff_ytd_abs"`
	DiffYTDPerc float64 `json:"diff_ytd_perc"`
	Diff1YAbs   float64 `json:"diff_1y_abs"`
	Diff1YPerc  float64 `json:"diff_1y_perc"`
	DiffMaxAbs  float64 `json:"diff_max_abs"`
	DiffMaxPerc float64 `json:"diff_max_perc"`
}

// Diff returns the absolute and percentage deltas for r. Ranges without
// per-position deltas (1D) report ok=false and the Max deltas.
func (p Position) Diff(r Range) (abs, perc float64, ok bool) {
	switch r {
	case Range1W:
		return p.Diff1WAbs, p.Diff1WPerc, true
	case Range1M:
		return p.Diff1MAbs, p.Diff1MPerc, true
	case RangeYTD:
		return p.DiffYTDAbs, p.DiffYTDPerc, true
	case Range1Y:
		return p.Diff1YAbs, p.Diff1YPerc, true
	case RangeMax:
		return p.DiffMaxAbs, p.DiffMaxPerc, true
	}
	return p.DiffMaxAbs, p.DiffMaxPerc, false
}
