package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"gopkg.in/yaml.v3"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/positions"
	"github.com/bobmcallan/folio-portal/internal/series"
)

type format string

const (
	formatMarkdown format = "markdown"
	formatJSON     format = "json"
	formatYAML     format = "yaml"
)

func parseFormat(s string) (format, error) {
	switch f := format(strings.ToLower(strings.TrimSpace(s))); f {
	case formatMarkdown, formatJSON, formatYAML:
		return f, nil
	case "", "md":
		return formatMarkdown, nil
	}
	return "", fmt.Errorf("unknown output format %q (valid: markdown, json, yaml)", s)
}

type printer struct {
	out    io.Writer
	format format
}

// print writes v as JSON or YAML, or md rendered for the terminal.
func (p *printer) print(v any, md string) error {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		return p.yaml(v)
	}
	return p.markdown(md)
}

// yaml encodes v through its JSON form so keys match the json output.
func (p *printer) yaml(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(p.out)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func (p *printer) markdown(md string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err == nil {
		if rendered, err := r.Render(md); err == nil {
			_, err = fmt.Fprintln(p.out, strings.TrimSpace(rendered))
			return err
		}
	}
	_, err = fmt.Fprint(p.out, md)
	return err
}

// --- Markdown views ---

func portfoliosMarkdown(list []models.Portfolio, selected models.PortfolioID) string {
	var b strings.Builder
	b.WriteString("# Portfolios\n\n")
	if len(list) == 0 {
		b.WriteString("No portfolios.\n")
		return b.String()
	}
	b.WriteString("| | ID | Name | Broker | Created |\n|---|---|---|---|---|\n")
	for _, p := range list {
		mark := ""
		if p.ID == selected {
			mark = "*"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", mark, p.ID, cell(p.DisplayName()), cell(p.DisplayBroker()), p.DisplayCreatedAt())
	}
	return b.String()
}

func summaryMarkdown(p models.Portfolio, last *models.LastValue, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", cell(p.DisplayName()))
	if last == nil {
		b.WriteString("No value recorded yet.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "As of %s\n\n", last.Date)
	b.WriteString("| | |\n|---|---|\n")
	rows := [][2]string{
		{"Total value", common.FormatMoney(last.TotalValue, currency)},
		{"Invested", common.FormatMoney(last.Invested, currency)},
		{"Gain", common.FormatSignedMoney(last.AbsDiff, currency) + " (" + common.FormatSignedPct(last.PercDiff) + ")"},
		{"Net dividends", common.FormatOptionalMoney(last.NetDividends, currency)},
		{"Net bonds", common.FormatOptionalMoney(last.NetBonds, currency)},
		{"Net interests", common.FormatOptionalMoney(last.NetInterests, currency)},
		{"Taxes paid", common.FormatOptionalMoney(last.TaxesPaid, currency)},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", r[0], r[1])
	}
	return b.String()
}

func chartMarkdown(p models.Portfolio, c series.Chart, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: %s %s\n\n", cell(p.DisplayName()), c.Range, c.Mode)
	if c.IsEmpty() {
		b.WriteString("No data for this range.\n")
		return b.String()
	}
	s := c.Summary
	fmt.Fprintf(&b, "%s to %s: %s (%s)\n\n", s.From, s.To,
		common.FormatSignedMoney(s.AbsChange, currency), common.FormatSignedPct(s.PercChange))

	if c.Mode == models.ModePercentage {
		b.WriteString("| Date | Performance |\n|---|---|\n")
		for i, label := range c.Labels {
			fmt.Fprintf(&b, "| %s | %s |\n", label, common.FormatSignedPct(c.Performance[i]))
		}
		return b.String()
	}
	b.WriteString("| Date | Total value | Invested |\n|---|---|---|\n")
	for i, label := range c.Labels {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", label,
			common.FormatMoney(c.TotalValues[i], currency), common.FormatMoney(c.Invested[i], currency))
	}
	return b.String()
}

func positionsMarkdown(p models.Portfolio, rows []positions.Row, r models.Range, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: open positions\n\n", cell(p.DisplayName()))
	if len(rows) == 0 {
		b.WriteString("No open positions.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "| Name | Ticker | Quantity | %s | Gain/Loss | Current value | Invested |\n", r)
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s (%s) | %s | %s |\n",
			cell(row.Name), cell(row.Ticker), common.FormatQuantity(row.Quantity),
			common.FormatSignedPct(row.RangePerformance),
			common.FormatSignedMoney(row.GainLoss, currency), common.FormatSignedPct(row.GainLossPerc),
			common.FormatMoney(row.CurrentValue, currency), common.FormatMoney(row.Invested, currency))
	}
	return b.String()
}

// cell escapes a value for a markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
