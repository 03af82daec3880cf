package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/common"
	"github.com/ternarybob/harmonia/internal/handlers"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/services/events"
	"github.com/ternarybob/harmonia/internal/services/harmonization"
	"github.com/ternarybob/harmonia/internal/services/sessions"
	"github.com/ternarybob/harmonia/internal/storage"
	"github.com/ternarybob/harmonia/internal/workflow"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Workflow engine
	WorkflowClient interfaces.WorkflowClient

	// Event-driven services
	EventService interfaces.EventService

	// Harmonization sessions
	HarmonizationService *harmonization.Service
	SessionCleaner       *sessions.Cleaner

	// HTTP handlers
	APIHandler           *handlers.APIHandler
	HarmonizationHandler *handlers.HarmonizationHandler
	WSHandler            *handlers.WebSocketHandler
	PageHandler          *handlers.PageHandler
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// EventService is needed for WebSocketHandler initialization
	app.EventService = events.NewService(app.Logger)
	if err := events.SubscribeLoggerToAllEvents(app.EventService, app.Logger); err != nil {
		app.Logger.Warn().Err(err).Msg("Failed to subscribe event logger")
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("storage", cfg.Storage.Type).
		Str("strategy", cfg.Polling.Strategy).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens the document store backend and the local session store
func (a *App) initDatabase(ctx context.Context) error {
	storageManager, err := storage.NewStorageManager(ctx, a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", a.Config.Storage.Type).
		Str("sessions", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// NewWorkflowClient builds the engine client from the [workflow] section
func NewWorkflowClient(cfg *common.WorkflowConfig, logger arbor.ILogger) *workflow.Client {
	return workflow.NewClient(
		workflow.WithTriggerURL(cfg.TriggerURL),
		workflow.WithFinalURL(cfg.FinalURL),
		workflow.WithExecutionsAPI(cfg.APIURL, cfg.APIKey),
		workflow.WithTimeouts(
			common.ParseDuration(cfg.DispatchTimeout, workflow.DefaultDispatchTimeout),
			common.ParseDuration(cfg.FinalTimeout, workflow.DefaultFinalTimeout),
			common.ParseDuration(cfg.APITimeout, workflow.DefaultAPITimeout),
		),
		workflow.WithRateLimit(common.ParseDuration(cfg.RateLimit, 0)),
		workflow.WithLogger(logger),
	)
}

// NewCompletionStrategy selects the poller named by [polling] strategy
func NewCompletionStrategy(cfg *common.Config, store interfaces.DocumentStore, client interfaces.WorkflowClient, logger arbor.ILogger) harmonization.CompletionStrategy {
	opts := harmonization.PollOptions{
		Interval: common.ParseDuration(cfg.Polling.Interval, harmonization.DefaultPollInterval),
		Timeout:  common.ParseDuration(cfg.Polling.Timeout, 0),
	}

	if cfg.Polling.Strategy == common.PollingStrategyExecution {
		return harmonization.NewExecutionPoller(client, cfg.Workflow.WorkflowID, cfg.Polling.LegacyExecutionOffset, opts, logger)
	}
	return harmonization.NewStorePoller(store, opts, logger)
}

// initServices initializes the business services in dependency order
func (a *App) initServices() error {
	client := NewWorkflowClient(&a.Config.Workflow, a.Logger)
	a.WorkflowClient = client

	store := a.StorageManager.DocumentStore()
	strategy := NewCompletionStrategy(a.Config, store, client, a.Logger)

	a.HarmonizationService = harmonization.NewService(
		store,
		a.StorageManager.SessionStorage(),
		client,
		strategy,
		a.EventService,
		harmonization.Options{
			ErrorRefetchDelay: common.ParseDuration(a.Config.Polling.ErrorRefetchDelay, harmonization.DefaultErrorRefetchDelay),
		},
		a.Logger,
	)
	if _, err := a.HarmonizationService.FailInterrupted(context.Background()); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to check for interrupted sessions")
	}

	a.SessionCleaner = sessions.NewCleaner(
		a.StorageManager.SessionStorage(),
		common.ParseDuration(a.Config.Sessions.Retention, 0),
		a.Logger,
	)
	if err := a.SessionCleaner.Start(a.Config.Sessions.CleanupSchedule); err != nil {
		return fmt.Errorf("failed to start session cleaner: %w", err)
	}

	return nil
}

// initHandlers initializes the HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.HarmonizationHandler = handlers.NewHarmonizationHandler(a.HarmonizationService, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, &a.Config.WebSocket)
	a.PageHandler = handlers.NewPageHandler(a.Logger, a.Config.Server.PagesDir)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.SessionCleaner != nil {
		a.SessionCleaner.Stop()
	}

	// Cancel in-flight polling before the stores go away
	if a.HarmonizationService != nil {
		if err := a.HarmonizationService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close harmonization service")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
