package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/portfolio"
	"github.com/bobmcallan/folio-portal/internal/positions"
	"github.com/bobmcallan/folio-portal/internal/series"
	"github.com/bobmcallan/folio-portal/internal/session"
)

var errNoSelection = errors.New("no portfolio selected; pass portfolio_id or call select_portfolio first")

// toolset binds the tool handlers to the portfolio service.
type toolset struct {
	svc      *portfolio.Service
	currency string
	logger   *common.Logger
}

// errorResult creates an MCP error result with the given message.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(msg)},
		IsError: true,
	}
}

// jsonResult marshals v as the tool's text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("failed to encode result: " + err.Error()), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(out))},
	}, nil
}

// failure maps a service error onto a tool error result.
func (t *toolset) failure(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, session.ErrSessionExpired):
		return errorResult("Session expired. Log in again with `folio login`.")
	case errors.Is(err, session.ErrNotAuthenticated):
		return errorResult("Not logged in. Run `folio login` first.")
	case errors.Is(err, interfaces.ErrNotFound):
		return errorResult(err.Error())
	}
	t.logger.Warn().Str("tool", tool).Err(err).Msg("MCP tool failed")
	return errorResult("Error: " + err.Error())
}

// resolvePortfolio returns the explicit portfolio_id argument or the
// selected portfolio.
func (t *toolset) resolvePortfolio(ctx context.Context, r mcp.CallToolRequest) (models.PortfolioID, error) {
	if id := strings.TrimSpace(r.GetString("portfolio_id", "")); id != "" {
		return models.PortfolioID(id), nil
	}
	if !t.svc.Session().IsAuthenticated() {
		return "", session.ErrNotAuthenticated
	}
	sel, err := t.svc.Session().Selection(ctx)
	if err != nil {
		return "", err
	}
	if sel == nil {
		return "", errNoSelection
	}
	return sel.ID, nil
}

type portfolioEntry struct {
	ID        models.PortfolioID `json:"id"`
	Name      string             `json:"name"`
	Broker    string             `json:"broker"`
	CreatedAt string             `json:"created_at"`
	Selected  bool               `json:"selected"`
}

func (t *toolset) listPortfolios(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := t.svc.Portfolios(ctx)
	if err != nil {
		return t.failure("list_portfolios", err), nil
	}
	var selected models.PortfolioID
	if sel, err := t.svc.Session().Selection(ctx); err == nil && sel != nil {
		selected = sel.ID
	}
	entries := make([]portfolioEntry, len(list))
	for i, p := range list {
		entries[i] = portfolioEntry{
			ID:        p.ID,
			Name:      p.DisplayName(),
			Broker:    p.DisplayBroker(),
			CreatedAt: p.DisplayCreatedAt(),
			Selected:  p.ID == selected,
		}
	}
	return jsonResult(entries)
}

func (t *toolset) selectPortfolio(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(r.GetString("portfolio_id", ""))
	if id == "" {
		return errorResult("portfolio_id is required"), nil
	}
	p, err := t.svc.Portfolio(ctx, models.PortfolioID(id))
	if err != nil {
		return t.failure("select_portfolio", err), nil
	}
	if err := t.svc.Session().Select(ctx, p); err != nil {
		return t.failure("select_portfolio", err), nil
	}
	return jsonResult(portfolioEntry{
		ID:        p.ID,
		Name:      p.DisplayName(),
		Broker:    p.DisplayBroker(),
		CreatedAt: p.DisplayCreatedAt(),
		Selected:  true,
	})
}

func (t *toolset) valueChart(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rng, err := models.ParseRange(r.GetString("range", ""))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	mode, err := models.ParseChartMode(r.GetString("mode", ""))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	id, err := t.resolvePortfolio(ctx, r)
	if err != nil {
		return t.failure("get_value_chart", err), nil
	}
	history, err := t.svc.History(ctx, id)
	if err != nil {
		return t.failure("get_value_chart", err), nil
	}
	return jsonResult(series.BuildChart(history, rng, mode))
}

// summaryResult pairs the raw last value with its display strings.
type summaryResult struct {
	PortfolioID models.PortfolioID `json:"portfolio_id"`
	*models.LastValue
	Display map[string]string `json:"display"`
}

func (t *toolset) summary(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := t.resolvePortfolio(ctx, r)
	if err != nil {
		return t.failure("get_summary", err), nil
	}
	last, err := t.svc.LastValue(ctx, id)
	if err != nil {
		return t.failure("get_summary", err), nil
	}
	return jsonResult(summaryResult{
		PortfolioID: id,
		LastValue:   last,
		Display: map[string]string{
			"total_value":   common.FormatMoney(last.TotalValue, t.currency),
			"invested":      common.FormatMoney(last.Invested, t.currency),
			"gain":          common.FormatSignedMoney(last.AbsDiff, t.currency),
			"gain_perc":     common.FormatSignedPct(last.PercDiff),
			"net_dividends": common.FormatOptionalMoney(last.NetDividends, t.currency),
			"net_bonds":     common.FormatOptionalMoney(last.NetBonds, t.currency),
			"net_interests": common.FormatOptionalMoney(last.NetInterests, t.currency),
			"taxes_paid":    common.FormatOptionalMoney(last.TaxesPaid, t.currency),
		},
	})
}

func (t *toolset) positions(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rng, err := models.ParseRange(r.GetString("range", ""))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	key := positions.KeyGainLoss
	if v := r.GetString("sort", ""); v != "" {
		if key, err = positions.ParseSortKey(v); err != nil {
			return errorResult(err.Error()), nil
		}
	}
	dir, err := positions.ParseDirection(r.GetString("direction", ""))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	id, err := t.resolvePortfolio(ctx, r)
	if err != nil {
		return t.failure("get_positions", err), nil
	}
	list, err := t.svc.Positions(ctx, id)
	if err != nil {
		return t.failure("get_positions", err), nil
	}
	rows := positions.DeriveAll(list, rng)
	positions.SortRows(rows, key, dir)
	return jsonResult(rows)
}
