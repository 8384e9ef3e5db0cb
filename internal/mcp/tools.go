package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/positions"
)

func rangeNames(ranges []models.Range) []string {
	names := make([]string, len(ranges))
	for i, r := range ranges {
		names[i] = r.String()
	}
	return names
}

func sortKeyNames() []string {
	keys := positions.SortKeys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	return names
}

var portfolioParam = mcp.WithString("portfolio_id",
	mcp.Description("Portfolio id. Defaults to the selected portfolio."),
)

// RegisterTools adds every portfolio tool to s and returns their names.
func RegisterTools(s *server.MCPServer, t *toolset) []string {
	defs := []struct {
		tool    mcp.Tool
		handler server.ToolHandlerFunc
	}{
		{VersionTool(), VersionToolHandler()},
		{
			mcp.NewTool("list_portfolios",
				mcp.WithDescription("List the user's portfolios with broker and creation date, marking the selected one."),
			),
			t.listPortfolios,
		},
		{
			mcp.NewTool("select_portfolio",
				mcp.WithDescription("Select the portfolio that other tools default to."),
				mcp.WithString("portfolio_id", mcp.Required(), mcp.Description("Portfolio id from list_portfolios.")),
			),
			t.selectPortfolio,
		},
		{
			mcp.NewTool("get_value_chart",
				mcp.WithDescription("Portfolio value history for a range: total value and invested capital, or performance rebased to the start of the range ("+strings.Join(rangeNames(models.Ranges()), ", ")+")."),
				portfolioParam,
				mcp.WithString("range", mcp.Enum(rangeNames(models.Ranges())...), mcp.Description("Lookback range. Default Max.")),
				mcp.WithString("mode", mcp.Enum(string(models.ModeValue), string(models.ModePercentage)), mcp.Description("value or percentage. Default value.")),
			),
			t.valueChart,
		},
		{
			mcp.NewTool("get_summary",
				mcp.WithDescription("Latest portfolio value with gain, dividends, bonds, interests and taxes."),
				portfolioParam,
			),
			t.summary,
		},
		{
			mcp.NewTool("get_positions",
				mcp.WithDescription("Open positions with range performance, total gain/loss, current value and invested amount."),
				portfolioParam,
				mcp.WithString("range", mcp.Enum(rangeNames(models.TableRanges())...), mcp.Description("Range of the performance column. Default Max.")),
				mcp.WithString("sort", mcp.Enum(sortKeyNames()...), mcp.Description("Sort column. Default gainLoss.")),
				mcp.WithString("direction", mcp.Enum(string(positions.Asc), string(positions.Desc)), mcp.Description("Sort direction. Default desc.")),
			),
			t.positions,
		},
	}

	names := make([]string, 0, len(defs))
	for _, d := range defs {
		s.AddTool(d.tool, d.handler)
		names = append(names, d.tool.Name)
	}
	return names
}
