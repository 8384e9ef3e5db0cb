// Package positions derives per-position figures for a selected range and
// orders the open-positions table.
package positions

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// SortKey names a sortable column.
type SortKey string

const (
	KeyName             SortKey = "name"
	KeyRangePerformance SortKey = "rangePerformance"
	KeyGainLoss         SortKey = "gainLoss"
	KeyCurrentValue     SortKey = "currentValue"
	KeyInvested         SortKey = "invested"
)

// SortKeys lists every sortable column.
func SortKeys() []SortKey {
	return []SortKey{KeyName, KeyRangePerformance, KeyGainLoss, KeyCurrentValue, KeyInvested}
}

// ParseSortKey parses a column name case-insensitively.
func ParseSortKey(s string) (SortKey, error) {
	for _, k := range SortKeys() {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection parses asc or desc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc":
		return Asc, nil
	case "desc", "":
		return Desc, nil
	}
	return "", fmt.Errorf("unknown sort direction %q (valid: asc, desc)", s)
}

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// Row is a position with the figures derived for one range.
type Row struct {
	models.Position
	Range            models.Range `json:"range"`
	RangePerformance float64      `json:"range_performance"`
	RangePrice       float64      `json:"range_price"`
	GainLoss         float64      `json:"gain_loss"`
	GainLossPerc     float64      `json:"gain_loss_perc"`
	CurrentValue     float64      `json:"current_value"`
}

// Derive computes the range-relative and total figures for p.
//
// The start-of-range price is reconstructed as current_price minus the range's
// absolute delta per unit; for Max (and unmapped ranges) it is the average
// price. A zero quantity is treated as one for that reconstruction only.
func Derive(p models.Position, r models.Range) Row {
	abs, perc, mapped := p.Diff(r)

	current := decimal.NewFromFloat(p.CurrentPrice)
	quantity := decimal.NewFromFloat(p.Quantity)
	average := decimal.NewFromFloat(p.AveragePrice)

	rangePrice := average
	if mapped && r != models.RangeMax {
		divisor := quantity
		if divisor.IsZero() {
			divisor = decimal.NewFromInt(1)
		}
		rangePrice = current.Sub(decimal.NewFromFloat(abs).Div(divisor))
	}

	return Row{
		Position:         p,
		Range:            r,
		RangePerformance: perc,
		RangePrice:       rangePrice.InexactFloat64(),
		GainLoss:         current.Sub(average).Mul(quantity).InexactFloat64(),
		GainLossPerc:     p.DiffMaxPerc,
		CurrentValue:     current.Mul(quantity).InexactFloat64(),
	}
}

// DeriveAll derives every position, preserving input order.
func DeriveAll(list []models.Position, r models.Range) []Row {
	rows := make([]Row, len(list))
	for i, p := range list {
		rows[i] = Derive(p, r)
	}
	return rows
}

// Sorter holds the selected column and direction of the positions table.
// The zero value is not useful; use NewSorter.
type Sorter struct {
	Key       SortKey   `json:"key"`
	Direction Direction `json:"direction"`
}

// NewSorter returns the default order: total gain/loss, largest first.
func NewSorter() Sorter {
	return Sorter{Key: KeyGainLoss, Direction: Desc}
}

// Select applies a column click: the same column toggles the direction, a
// new column starts descending.
func (s *Sorter) Select(key SortKey) {
	if s.Key == key {
		s.Direction = s.Direction.Flip()
		return
	}
	s.Key = key
	s.Direction = Desc
}

// Sort derives rows for r and orders them by the sorter's column. Ties keep
// their input order.
func (s Sorter) Sort(list []models.Position, r models.Range) []Row {
	rows := DeriveAll(list, r)
	SortRows(rows, s.Key, s.Direction)
	return rows
}

// SortRows orders rows in place, stable for equal keys.
func SortRows(rows []Row, key SortKey, dir Direction) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		c := compare(a, b, key)
		if dir == Desc {
			c = -c
		}
		return c
	})
}

func compare(a, b Row, key SortKey) int {
	if key == KeyName {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	}
	x, y := value(a, key), value(b, key)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func value(r Row, key SortKey) float64 {
	switch key {
	case KeyRangePerformance:
		return r.RangePerformance
	case KeyGainLoss:
		return r.GainLoss
	case KeyCurrentValue:
		return r.CurrentValue
	case KeyInvested:
		return r.Invested
	}
	return 0
}
