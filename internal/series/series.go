// Package series filters a portfolio's daily value history to a range and
// derives the chart and performance figures shown for that range.
package series

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// Cutoff returns the first day kept for r, counted back from last.
// ok is false for Max, which keeps every point.
func Cutoff(last models.Date, r models.Range) (cutoff models.Date, ok bool) {
	t := last.Time
	switch r {
	case models.Range1D:
		return models.DayOf(t.AddDate(0, 0, -1)), true
	case models.Range1W:
		return models.DayOf(t.AddDate(0, 0, -7)), true
	case models.Range1M:
		return models.DayOf(t.AddDate(0, -1, 0)), true
	case models.RangeYTD:
		return models.NewDate(t.Year(), time.January, 1), true
	case models.Range1Y:
		return models.DayOf(t.AddDate(-1, 0, 0)), true
	}
	return models.Date{}, false
}

// DropEmpty removes points where both total value and invested are zero.
// Those mark days without data, not a true zero.
func DropEmpty(values []models.DailyValue) []models.DailyValue {
	out := make([]models.DailyValue, 0, len(values))
	for _, v := range values {
		if v.IsEmpty() {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Filter drops empty points and keeps those on or after the range cutoff.
// The cutoff is measured from the last remaining point, not from today.
func Filter(values []models.DailyValue, r models.Range) []models.DailyValue {
	kept := DropEmpty(values)
	if len(kept) == 0 {
		return []models.DailyValue{}
	}
	cutoff, ok := Cutoff(kept[len(kept)-1].Date, r)
	if !ok {
		return kept
	}
	out := make([]models.DailyValue, 0, len(kept))
	for _, v := range kept {
		if v.Date.Before(cutoff) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Rebase returns each point's performance relative to the first point of
// values. The first element is always zero.
func Rebase(values []models.DailyValue) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	base := decimal.NewFromFloat(values[0].PercDiff)
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v.PercDiff).Sub(base).InexactFloat64()
	}
	return out
}
