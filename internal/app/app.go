package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/common"
	"github.com/ternarybob/slidegen/internal/handlers"
	"github.com/ternarybob/slidegen/internal/httpclient"
	"github.com/ternarybob/slidegen/internal/interfaces"
	"github.com/ternarybob/slidegen/internal/jobs"
	"github.com/ternarybob/slidegen/internal/models"
	"github.com/ternarybob/slidegen/internal/services/canva"
	"github.com/ternarybob/slidegen/internal/services/events"
	"github.com/ternarybob/slidegen/internal/services/llm"
	"github.com/ternarybob/slidegen/internal/services/pdf"
	"github.com/ternarybob/slidegen/internal/services/producers"
	"github.com/ternarybob/slidegen/internal/storage/badger"
	"github.com/ternarybob/slidegen/internal/storage/local"
	"github.com/ternarybob/slidegen/internal/templates"
	"github.com/ternarybob/slidegen/internal/worker"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB     *badger.BadgerDB
	Store  *local.ArtifactStore
	Tokens interfaces.TokenStorage

	// Jobs
	Registry *jobs.Registry
	Runner   *jobs.Runner
	Pruner   *jobs.Pruner
	Hub      *events.Hub

	// Services
	Templates *templates.Loader
	PDF       *pdf.Service
	OAuth     *canva.OAuthService
	Proxy     *canva.Proxy

	// Handlers
	APIHandler   *handlers.APIHandler
	JobHandler   *handlers.JobHandler
	WSHandler    *handlers.WebSocketHandler
	CanvaHandler *handlers.CanvaHandler
}

// New wires every component from cfg and starts the background workers
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	app.Runner.Start()

	if err := app.Pruner.Start(cfg.Jobs.PruneSchedule); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to start job pruner: %w", err)
	}

	logger.Info().
		Str("producers", cfg.Producers.Mode).
		Int("concurrency", cfg.Jobs.Concurrency).
		Str("artifacts_dir", app.Store.Root()).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initStorage() error {
	db, err := badger.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.DB = db
	a.Tokens = badger.NewTokenStorage(db, a.Logger)

	store, err := local.NewArtifactStore(a.Config.Storage.ArtifactsDir, a.Logger)
	if err != nil {
		db.Close()
		return err
	}
	a.Store = store
	return nil
}

func (a *App) initServices() error {
	cfg := a.Config

	timeout, err := common.ParseDuration(cfg.Jobs.Timeout)
	if err != nil {
		return fmt.Errorf("invalid jobs.timeout: %w", err)
	}
	retention, err := common.ParseDuration(cfg.Jobs.Retention)
	if err != nil {
		return fmt.Errorf("invalid jobs.retention: %w", err)
	}
	writeTimeout, err := common.ParseDuration(cfg.WebSocket.WriteTimeout)
	if err != nil {
		return fmt.Errorf("invalid websocket.write_timeout: %w", err)
	}

	a.Registry = jobs.NewRegistry(a.Logger)
	a.Hub = events.NewHub(writeTimeout, a.Logger)
	a.Pruner = jobs.NewPruner(a.Registry, retention, a.Logger)

	a.Runner = jobs.NewRunner(
		a.Registry,
		a.Store,
		a.Hub,
		worker.NewWorkerPool(a.Logger, cfg.Jobs.Concurrency),
		a.Logger,
		jobs.WithTimeout(timeout),
		jobs.WithDefaultOutlineLength(cfg.Producers.DefaultOutlineLength),
	)

	a.Templates = templates.NewLoader(cfg.Templates.Dir)
	a.PDF = pdf.NewService(a.Logger)

	if err := a.registerProducers(); err != nil {
		return err
	}

	a.OAuth = canva.NewOAuthService(cfg.Canva, a.Tokens, httpclient.NewDefaultHTTPClient(0), a.Logger)

	proxy, err := canva.NewProxy(cfg.Proxy, cfg.Canva, a.Tokens, a.Logger)
	if err != nil {
		return err
	}
	a.Proxy = proxy

	return nil
}

// registerProducers binds one producer per job type according to producers.mode
func (a *App) registerProducers() error {
	cfg := a.Config.Producers

	switch cfg.Mode {
	case "mock":
		delay, err := common.ParseDuration(cfg.MockDelay)
		if err != nil {
			return fmt.Errorf("invalid producers.mock_delay: %w", err)
		}
		for _, t := range []models.JobType{models.JobTypeOutline, models.JobTypeImage, models.JobTypeDeck} {
			a.Runner.RegisterProducer(t, producers.NewMockProducer(t, delay, a.Logger))
		}
		a.Logger.Warn().Dur("delay", delay).Msg("Mock producers enabled, artifacts are placeholders")
		return nil

	case "llm":
		client, err := llm.NewClient(a.Config.LLM, a.Logger)
		if err != nil {
			return err
		}
		a.Runner.RegisterProducer(models.JobTypeOutline, producers.NewLLMOutlineProducer(client, a.Logger))
		a.Logger.Info().
			Str("provider", a.Config.LLM.Provider).
			Str("model", a.Config.LLM.Model).
			Msg("Outlines generated by language model")

	default:
		a.Runner.RegisterProducer(models.JobTypeOutline, producers.NewOutlineProducer(a.Logger))
	}

	a.Runner.RegisterProducer(models.JobTypeImage, producers.NewImageProducer("", a.Logger))
	a.Runner.RegisterProducer(models.JobTypeDeck, producers.NewDeckProducer(
		a.Registry, a.Store, a.PDF, a.Templates, "", a.Logger,
	))
	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Registry, a.Hub, a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.Runner, a.Registry, a.Store, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.Hub, a.Config.WebSocket.AllowedOrigins, a.Logger)
	a.CanvaHandler = handlers.NewCanvaHandler(a.OAuth, a.Proxy, a.Logger)
}

// Close stops background work and releases storage. Queued jobs are failed,
// running jobs see their context cancelled.
func (a *App) Close() error {
	if a.Pruner != nil {
		a.Pruner.Stop()
	}

	if a.Runner != nil {
		a.Runner.Stop()
		a.Logger.Info().Msg("Job runner stopped")
	}

	if a.Hub != nil {
		a.Hub.Close()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close database")
			return err
		}
		a.Logger.Info().Msg("Database closed")
	}

	return nil
}
