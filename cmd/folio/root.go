package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/folio-portal/internal/app"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
)

// options are the global flags.
type options struct {
	configFiles []string
	output      string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "folio",
		Short: "Portfolio viewer for the terminal",
		Long: `folio logs in to the portfolio service and shows your portfolios,
their value history, latest summary and open positions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := parseFormat(opts.output)
			return err
		},
	}

	root.PersistentFlags().StringSliceVarP(&opts.configFiles, "config", "c", nil, "Configuration file path (repeatable)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", string(formatMarkdown), "Output format: markdown, json or yaml")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to the console")

	root.AddCommand(
		versionCmd(opts),
		loginCmd(opts),
		logoutCmd(opts),
		portfoliosCmd(opts),
		selectCmd(opts),
		chartCmd(opts),
		summaryCmd(opts),
		positionsCmd(opts),
		mcpCmd(opts),
	)
	return root
}

// open loads the configuration and initializes the application. The caller
// closes it.
func (o *options) open(ctx context.Context) (*app.App, error) {
	files := o.configFiles
	if len(files) == 0 {
		if path := config.Discover(config.DefaultFileName); path != "" {
			files = []string{path}
		}
	}
	cfg, err := config.LoadFromFiles(files...)
	if err != nil {
		return nil, err
	}
	if issues := cfg.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", issues)
	}
	return app.New(ctx, cfg, o.logger(cfg))
}

// logger keeps the console quiet unless --verbose; file output still
// follows the configuration.
func (o *options) logger(cfg *config.Config) *common.Logger {
	lc := cfg.Logging
	if o.verbose {
		lc.Level = "debug"
		if !slices.Contains(lc.Outputs, "console") {
			lc.Outputs = append(slices.Clone(lc.Outputs), "console")
		}
		return common.NewLoggerFromConfig(lc)
	}
	lc.Outputs = slices.DeleteFunc(slices.Clone(lc.Outputs), func(s string) bool { return s == "console" })
	if len(lc.Outputs) == 0 {
		return common.NewSilentLogger()
	}
	return common.NewLoggerFromConfig(lc)
}

// printer renders command results in the selected format.
func (o *options) printer(cmd *cobra.Command) *printer {
	f, _ := parseFormat(o.output)
	return &printer{out: cmd.OutOrStdout(), format: f}
}
