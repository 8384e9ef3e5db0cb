package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PortfolioID identifies a portfolio on the remote API. The API emits ids as
// JSON numbers or strings; both decode into the same value.
type PortfolioID string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (id *PortfolioID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PortfolioID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid portfolio id %s: %w", string(data), err)
	}
	*id = PortfolioID(n.String())
	return nil
}

// String returns the id as sent in URL paths.
func (id PortfolioID) String() string { return string(id) }

// Portfolio is an immutable snapshot of a portfolio as listed by the API.
type Portfolio struct {
	ID        PortfolioID `json:"id"`
	Name      string      `json:"name"`
	Broker    string      `json:"broker,omitempty"`
	CreatedAt string      `json:"created_at,omitempty"`
}

// DisplayName returns the portfolio name or a generic label when empty.
func (p Portfolio) DisplayName() string {
	if strings.TrimSpace(p.Name) == "" {
		return "Portfolio"
	}
	return p.Name
}

// DisplayBroker returns the broker or "-" when the API omitted it.
func (p Portfolio) DisplayBroker() string {
	if strings.TrimSpace(p.Broker) == "" {
		return Missing
	}
	return p.Broker
}

// DisplayCreatedAt returns the creation day as 2006-01-02, or "-" when absent
// or unparseable.
func (p Portfolio) DisplayCreatedAt() string {
	if p.CreatedAt == "" {
		return Missing
	}
	d, err := ParseDate(p.CreatedAt)
	if err != nil {
		return Missing
	}
	return d.String()
}

// Missing is displayed in place of optional values the API did not provide.
const Missing = "-"

// DailyValue is one point of a portfolio's value history.
type DailyValue struct {
	Date       Date    `json:"date"`
	TotalValue float64 `json:"total_value"`
	Invested   float64 `json:"invested"`
	AbsDiff    float64 `json:"abs_diff"`
	PercDiff   float64 `json:"perc_diff"`
}

// IsEmpty reports whether the point carries no data for its day.
func (v DailyValue) IsEmpty() bool {
	return v.TotalValue == 0 && v.Invested == 0
}

// ValueHistory is the payload of GET /portfolios/{id}/value-history.
type ValueHistory struct {
	DailyValues []DailyValue `json:"daily_values"`
}

// LastValue is the payload of GET /portfolios/{id}/value-last: the latest
// daily value plus income and tax totals. Totals are optional.
type LastValue struct {
	DailyValue
	NetDividends *float64 `json:"net_dividends,omitempty"`
	NetBonds     *float64 `json:"net_bonds,omitempty"`
	NetInterests *float64 `json:"net_interests,omitempty"`
	TaxesPaid    *float64 `json:"taxes_paid,omitempty"`
}

// IsPositive reports whether the absolute gain is non-negative.
func (l LastValue) IsPositive() bool { return l.AbsDiff >= 0 }

// Date is a calendar day in UTC. It decodes "2006-01-02" as well as full
// RFC 3339 timestamps, keeping only the day.
type Date struct {
	time.Time
}

// DateFormat is the wire and display format of a Date.
const DateFormat = "2006-01-02"

// NewDate returns the Date for the given day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates t to its calendar day, in t's own location.
func DayOf(t time.Time) Date {
	return NewDate(t.Date())
}

// ParseDate parses a day or a timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	layouts := []string{DateFormat, time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DayOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q want format %q", s, DateFormat)
}

// MustParseDate is like ParseDate but panics on error.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// String formats the day as 2006-01-02.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateFormat)
}

// Before reports whether d is an earlier day than x.
func (d Date) Before(x Date) bool { return d.Time.Before(x.Time) }

// After reports whether d is a later day than x.
func (d Date) After(x Date) bool { return d.Time.After(x.Time) }

// Equal reports whether d and x are the same day.
func (d Date) Equal(x Date) bool { return d.Time.Equal(x.Time) }

// UnmarshalJSON decodes a JSON string into a Date.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON encodes the Date as "2006-01-02".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// MarshalText keeps text encoders (yaml) on the day format instead of the
// promoted time.Time timestamp.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText is the text counterpart of UnmarshalJSON.
func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var _ json.Marshaler = Date{}
var _ json.Unmarshaler = (*Date)(nil)
