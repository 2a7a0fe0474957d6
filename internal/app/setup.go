package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"coursechat/db"
	"coursechat/internal/config"
	"coursechat/internal/generator"
	"coursechat/internal/ingest"
	"coursechat/internal/log"
	"coursechat/internal/observability"
	"coursechat/internal/rag"
	"coursechat/internal/search"
	"coursechat/internal/session"
	"coursechat/internal/tools"
)

// Setup creates and initializes the application. Call Close on the
// returned App to release resources.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing registers with Genkit's TracerProvider, so it must be set
	// up before genkit.Init.
	a.traceCleanup = provideTracing(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Search = search.New(search.NewQueries(pool), embedder, cfg.MaxResults, logger)
	a.Sessions = session.New(session.NewQueries(pool), pool, logger)
	a.Ingestor = ingest.New(a.Search, ingest.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap), logger)

	registry, err := provideTools(g, a.Search, logger)
	if err != nil {
		return nil, err
	}
	a.Registry = registry

	gen, err := generator.New(generator.Config{
		Genkit:    g,
		ModelName: cfg.FullModelName(),
		Tools:     registry,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}
	a.gen = gen

	system, err := rag.New(a.Sessions, gen, cfg.HistoryWindow, logger)
	if err != nil {
		return nil, fmt.Errorf("creating rag system: %w", err)
	}
	a.RAG = system

	logger.Info("application initialized",
		"model", cfg.FullModelName(),
		"embedder", cfg.EmbedderModel,
		"max_results", cfg.MaxResults,
		"history_window", cfg.HistoryWindow,
	)

	return a, nil
}

// provideTracing sets up OTLP trace export and returns a cleanup that
// flushes pending spans.
func provideTracing(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	shutdown, err := observability.SetupTracing(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Environment: cfg.Environment,
		ServiceName: cfg.ServiceName,
	}, logger)
	if err != nil {
		logger.Warn("tracing setup failed", "error", err)
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the Google AI plugin. The plugin
// reads GEMINI_API_KEY from the environment.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{}),
		genkit.WithDefaultModel(cfg.FullModelName()),
	)
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}

// provideTools builds the tool registry and declares every tool to Genkit.
func provideTools(g *genkit.Genkit, store *search.Store, logger log.Logger) (*tools.Registry, error) {
	registry := tools.NewRegistry(logger)

	toolset := []tools.Tool{
		tools.NewSearchTool(store, logger),
		tools.NewOutlineTool(store, logger),
	}
	for _, tool := range toolset {
		if err := registry.Register(tool); err != nil {
			return nil, fmt.Errorf("registering %s: %w", tool.Name(), err)
		}
	}
	registry.Attach(g)

	return registry, nil
}
