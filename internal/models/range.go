package models

import (
	"fmt"
	"strings"
)

// Range is a named lookback window over a value series.
type Range string

const (
	Range1D  Range = "1D"
	Range1W  Range = "1W"
	Range1M  Range = "1M"
	RangeYTD Range = "YTD"
	Range1Y  Range = "1Y"
	RangeMax Range = "Max"
)

// Ranges lists every range in display order.
func Ranges() []Range {
	return []Range{Range1D, Range1W, Range1M, RangeYTD, Range1Y, RangeMax}
}

// TableRanges lists the ranges for which positions carry per-range deltas.
func TableRanges() []Range {
	return []Range{Range1W, Range1M, RangeYTD, Range1Y, RangeMax}
}

// ParseRange parses a range name case-insensitively. An empty string is Max.
func ParseRange(s string) (Range, error) {
	if strings.TrimSpace(s) == "" {
		return RangeMax, nil
	}
	for _, r := range Ranges() {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown range %q (valid: 1D, 1W, 1M, YTD, 1Y, Max)", s)
}

// String returns the display name of the range.
func (r Range) String() string { return string(r) }

// ChartMode selects what the value chart plots.
type ChartMode string

const (
	// ModeValue plots total value against invested capital.
	ModeValue ChartMode = "value"
	// ModePercentage plots performance rebased to the first point of the range.
	ModePercentage ChartMode = "percentage"
)

// ParseChartMode parses a chart mode. An empty string is ModeValue.
func ParseChartMode(s string) (ChartMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "value":
		return ModeValue, nil
	case "percentage", "percent", "%":
		return ModePercentage, nil
	}
	return "", fmt.Errorf("unknown chart mode %q (valid: value, percentage)", s)
}
