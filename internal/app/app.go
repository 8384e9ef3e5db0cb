package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/folio-portal/internal/cache"
	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
	"github.com/bobmcallan/folio-portal/internal/handlers"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/mcp"
	"github.com/bobmcallan/folio-portal/internal/portfolio"
	"github.com/bobmcallan/folio-portal/internal/session"
	"github.com/bobmcallan/folio-portal/internal/state"
	"github.com/bobmcallan/folio-portal/internal/storage"
	"github.com/bobmcallan/folio-portal/internal/viewer"
)

// App holds all application components and dependencies.
type App struct {
	Config *config.Config
	Logger *common.Logger

	Storage interfaces.StorageManager
	Store   *state.Store
	Cache   *cache.SelectionCache
	Session *session.Manager
	Service *portfolio.Service
	Viewer  *viewer.Viewer

	// HTTP handlers
	PageHandler      *handlers.PageHandler
	ViewHandler      *handlers.ViewHandler
	HealthHandler    *handlers.HealthHandler
	VersionHandler   *handlers.VersionHandler
	APIHealthHandler *handlers.APIHealthHandler
	MCPHandler       *mcp.Handler
}

// New initializes the application with all dependencies. The viewer is
// created but not started; see Start.
func New(ctx context.Context, cfg *config.Config, logger *common.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	env := strings.ToLower(strings.TrimSpace(cfg.Environment))
	if env != "prod" && env != "dev" && env != "" {
		logger.Warn().
			Str("environment", cfg.Environment).
			Msg("unrecognized environment value, defaulting to prod behavior")
	}

	if err := a.initCore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initHandlers(); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info().
		Str("storage", a.Storage.Backend()).
		Str("api_url", cfg.API.URL).
		Bool("logged_in", a.Session.IsAuthenticated()).
		Msg("application initialization complete")

	return a, nil
}

// initCore opens storage and builds the session and portfolio service.
func (a *App) initCore(ctx context.Context) error {
	mgr, err := storage.NewStorageManager(ctx, a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.Storage = mgr

	a.Store = state.New(mgr.KeyValueStorage(), a.Logger)
	a.Cache = cache.New(a.Store, map[cache.Kind]time.Duration{
		cache.KindHistory:   a.Config.Cache.GetHistoryTTL(),
		cache.KindPositions: a.Config.Cache.GetPositionsTTL(),
	}, a.Logger)

	api := client.NewPortfolioClient(a.Config.API.URL, a.Config.API.GetTimeout())
	a.Session, err = session.NewManager(ctx, api, a.Store, a.Cache, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	a.Service = portfolio.NewService(api, a.Cache, a.Session, a.Logger)
	return nil
}

// initHandlers initializes all HTTP handlers.
func (a *App) initHandlers() error {
	renderer, err := handlers.NewRenderer(a.Config.Display.Currency)
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	a.Viewer = viewer.New(a.Service, a.Logger)
	a.PageHandler = handlers.NewPageHandler(a.Logger, a.Viewer, renderer)
	a.ViewHandler = handlers.NewViewHandler(a.Logger, a.Viewer)
	a.HealthHandler = handlers.NewHealthHandler(a.Logger, a.Storage.Backend())
	a.VersionHandler = handlers.NewVersionHandler()
	a.APIHealthHandler = handlers.NewAPIHealthHandler(a.Logger, a.Config.API.URL)

	if a.Config.MCP.Enabled {
		a.MCPHandler = mcp.NewHandler(a.Service, a.Config.Display.Currency, a.Logger)
	}

	a.Logger.Debug().Msg("HTTP handlers initialized")
	return nil
}

// Start runs the viewer loop in the background until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	go a.Viewer.Run(ctx)
}

// Close closes all application resources.
func (a *App) Close() error {
	if a.Storage == nil {
		return nil
	}
	return a.Storage.Close()
}
