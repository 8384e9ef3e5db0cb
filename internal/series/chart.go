package series

import (
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// Chart is the render-ready view of a value history for one range and mode.
// It is derived on demand and never persisted.
type Chart struct {
	Range  models.Range     `json:"range"`
	Mode   models.ChartMode `json:"mode"`
	Labels []string         `json:"labels"`

	// Value mode.
	TotalValues []float64 `json:"total_values,omitempty"`
	Invested    []float64 `json:"invested,omitempty"`

	// Percentage mode.
	Performance []float64 `json:"performance,omitempty"`

	Summary Summary `json:"summary"`
}

// IsEmpty reports whether the chart has no points to plot.
func (c Chart) IsEmpty() bool { return len(c.Labels) == 0 }

// Summary holds performance figures for a filtered range.
type Summary struct {
	Points     int         `json:"points"`
	From       models.Date `json:"from"`
	To         models.Date `json:"to"`
	StartValue float64     `json:"start_value"`
	EndValue   float64     `json:"end_value"`
	AbsChange  float64     `json:"abs_change"`
	PercChange float64     `json:"perc_change"`
	High       float64     `json:"high"`
	Low        float64     `json:"low"`
}

// Summarize computes the absolute and rebased percentage deltas of a filtered
// series, plus its value extremes. An empty series yields a zero Summary.
func Summarize(values []models.DailyValue) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	first, last := values[0], values[len(values)-1]
	s := Summary{
		Points:     len(values),
		From:       first.Date,
		To:         last.Date,
		StartValue: first.TotalValue,
		EndValue:   last.TotalValue,
		AbsChange:  decimal.NewFromFloat(last.TotalValue).Sub(decimal.NewFromFloat(first.TotalValue)).InexactFloat64(),
		PercChange: decimal.NewFromFloat(last.PercDiff).Sub(decimal.NewFromFloat(first.PercDiff)).InexactFloat64(),
		High:       first.TotalValue,
		Low:        first.TotalValue,
	}
	for _, v := range values[1:] {
		if v.TotalValue > s.High {
			s.High = v.TotalValue
		}
		if v.TotalValue < s.Low {
			s.Low = v.TotalValue
		}
	}
	return s
}

// BuildChart filters history to r and projects it for the requested mode.
func BuildChart(history *models.ValueHistory, r models.Range, mode models.ChartMode) Chart {
	c := Chart{Range: r, Mode: mode, Labels: []string{}}
	if history == nil {
		return c
	}
	ranged := Filter(history.DailyValues, r)
	c.Summary = Summarize(ranged)
	for _, v := range ranged {
		c.Labels = append(c.Labels, v.Date.String())
	}
	switch mode {
	case models.ModePercentage:
		c.Performance = Rebase(ranged)
	default:
		c.Mode = models.ModeValue
		c.TotalValues = make([]float64, len(ranged))
		c.Invested = make([]float64, len(ranged))
		for i, v := range ranged {
			c.TotalValues[i] = v.TotalValue
			c.Invested[i] = v.Invested
		}
	}
	return c
}
