package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/bobmcallan/folio-portal/internal/app"
	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/config"
	"github.com/bobmcallan/folio-portal/internal/mcp"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/positions"
	"github.com/bobmcallan/folio-portal/internal/series"
	"github.com/bobmcallan/folio-portal/internal/session"
)

var errNoSelection = errors.New("no portfolio selected, run `folio select ID` or pass --portfolio")

// withApp opens the application for the duration of fn.
func withApp(cmd *cobra.Command, opts *options, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// target returns the portfolio named by id, or the selected one.
func target(ctx context.Context, a *app.App, id string) (models.Portfolio, error) {
	if id != "" {
		return a.Service.Portfolio(ctx, models.PortfolioID(id))
	}
	if !a.Session.IsAuthenticated() {
		return models.Portfolio{}, session.ErrNotAuthenticated
	}
	sel, err := a.Session.Selection(ctx)
	if err != nil {
		return models.Portfolio{}, err
	}
	if sel == nil {
		return models.Portfolio{}, errNoSelection
	}
	return sel.Portfolio, nil
}

func versionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":    config.GetVersion(),
				"build":      config.GetBuild(),
				"git_commit": config.GetGitCommit(),
				"go_version": runtime.Version(),
			}
			if f, _ := parseFormat(opts.output); f == formatMarkdown {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "folio version %s\n", config.GetFullVersion())
				return err
			}
			return opts.printer(cmd).print(info, "")
		},
	}
}

func loginCmd(opts *options) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the portfolio service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				var err error
				if username, password, err = prompt(cmd, username, password); err != nil {
					return err
				}
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Session.Login(ctx, username, password); err != nil {
					var authErr *client.AuthError
					if errors.As(err, &authErr) {
						return errors.New(authErr.Message())
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", username)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	return cmd
}

// prompt reads the missing credentials from stdin, one per line.
func prompt(cmd *cobra.Command, username, password string) (string, string, error) {
	r := bufio.NewReader(cmd.InOrStdin())
	read := func(label string) (string, error) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
		line, err := r.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" && err != nil {
			return "", fmt.Errorf("%s is required", strings.ToLower(label))
		}
		return line, nil
	}
	var err error
	if username == "" {
		if username, err = read("Username"); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = read("Password"); err != nil {
			return "", "", err
		}
	}
	return username, password, nil
}

func logoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear cached data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Session.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func portfoliosCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "portfolios",
		Aliases: []string{"ls"},
		Short:   "List your portfolios",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				list, err := a.Service.Portfolios(ctx)
				if err != nil {
					return err
				}
				var selected models.PortfolioID
				if sel, err := a.Session.Selection(ctx); err == nil && sel != nil {
					selected = sel.ID
				}
				return opts.printer(cmd).print(list, portfoliosMarkdown(list, selected))
			})
		},
	}
}

func selectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "select ID",
		Short: "Select the portfolio other commands default to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				p, err := a.Service.Portfolio(ctx, models.PortfolioID(strings.TrimSpace(args[0])))
				if err != nil {
					return err
				}
				if err := a.Session.Select(ctx, p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Selected %s (%s)\n", p.DisplayName(), p.ID)
				return nil
			})
		},
	}
}

func chartCmd(opts *options) *cobra.Command {
	var id, rng, mode string
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Show the value history for a range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := models.ParseRange(rng)
			if err != nil {
				return err
			}
			m, err := models.ParseChartMode(mode)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				p, err := target(ctx, a, id)
				if err != nil {
					return err
				}
				history, err := a.Service.History(ctx, p.ID)
				if err != nil {
					return err
				}
				chart := series.BuildChart(history, r, m)
				return opts.printer(cmd).print(chart, chartMarkdown(p, chart, a.Config.Display.Currency))
			})
		},
	}
	cmd.Flags().StringVar(&id, "portfolio", "", "Portfolio id (defaults to the selected one)")
	cmd.Flags().StringVarP(&rng, "range", "r", string(models.RangeMax), "Range: 1D, 1W, 1M, YTD, 1Y, Max")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(models.ModeValue), "Mode: value or percentage")
	return cmd
}

func summaryCmd(opts *options) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the latest portfolio value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				p, err := target(ctx, a, id)
				if err != nil {
					return err
				}
				last, err := a.Service.LastValue(ctx, p.ID)
				var status *client.StatusError
				if errors.As(err, &status) && status.StatusCode == 404 {
					last, err = nil, nil
				}
				if err != nil {
					return err
				}
				return opts.printer(cmd).print(last, summaryMarkdown(p, last, a.Config.Display.Currency))
			})
		},
	}
	cmd.Flags().StringVar(&id, "portfolio", "", "Portfolio id (defaults to the selected one)")
	return cmd
}

func positionsCmd(opts *options) *cobra.Command {
	var id, rng, sortKey, dir string
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Show open positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := models.ParseRange(rng)
			if err != nil {
				return err
			}
			key, err := positions.ParseSortKey(sortKey)
			if err != nil {
				return err
			}
			d, err := positions.ParseDirection(dir)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				p, err := target(ctx, a, id)
				if err != nil {
					return err
				}
				list, err := a.Service.Positions(ctx, p.ID)
				if err != nil {
					return err
				}
				rows := positions.DeriveAll(list, r)
				positions.SortRows(rows, key, d)
				return opts.printer(cmd).print(rows, positionsMarkdown(p, rows, r, a.Config.Display.Currency))
			})
		},
	}
	cmd.Flags().StringVar(&id, "portfolio", "", "Portfolio id (defaults to the selected one)")
	cmd.Flags().StringVarP(&rng, "range", "r", string(models.RangeMax), "Performance range: 1W, 1M, YTD, 1Y, Max")
	cmd.Flags().StringVarP(&sortKey, "sort", "s", string(positions.KeyGainLoss), "Sort column: name, rangePerformance, gainLoss, currentValue, invested")
	cmd.Flags().StringVarP(&dir, "dir", "d", string(positions.Desc), "Sort direction: asc or desc")
	return cmd
}

func mcpCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the portfolio tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				h := a.MCPHandler
				if h == nil {
					h = mcp.NewHandler(a.Service, a.Config.Display.Currency, a.Logger)
				}
				stdio := server.NewStdioServer(h.Server())
				return stdio.Listen(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}
