package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aldenhart/ragchat/db"
	"github.com/aldenhart/ragchat/internal/agent"
	"github.com/aldenhart/ragchat/internal/config"
	"github.com/aldenhart/ragchat/internal/knowledge"
	"github.com/aldenhart/ragchat/internal/observability"
	"github.com/aldenhart/ragchat/internal/orchestrator"
	"github.com/aldenhart/ragchat/internal/retrieval"
	"github.com/aldenhart/ragchat/internal/selector"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be attached before Genkit initialization so the
	// TracerProvider is ready when the first flow runs.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	if cfg.VectorBackend == config.VectorBackendPgvector {
		pool, dbCleanup, err := provideDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.dbCleanup = dbCleanup
		a.DBPool = pool
	}

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Embedder = knowledge.NewEmbedder(googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel), int32(cfg.EmbedderDimension))

	store, err := provideStore(ctx, cfg, a.DBPool, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store

	ingestor, err := knowledge.NewIngestor(a.Embedder, store, cfg.ChunkSize, cfg.ChunkOverlap, logger)
	if err != nil {
		return nil, fmt.Errorf("creating ingestor: %w", err)
	}
	a.Ingestor = ingestor

	var reranker retrieval.Reranker
	if cfg.RerankEnabled {
		reranker = retrieval.NewLLMReranker(g, cfg.ChatModelName)
	}
	pipeline, err := retrieval.NewPipeline(a.Embedder, store, reranker, retrieval.Config{
		FinalK:    cfg.RetrievalTopK,
		OverFetch: cfg.OverFetchFactor,
		Rerank:    cfg.RerankEnabled,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating retrieval pipeline: %w", err)
	}
	a.Pipeline = pipeline

	sel, err := selector.New(g, cfg.SelectorModelName, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("creating selector: %w", err)
	}
	a.Selector = sel

	ragAgent, err := agent.NewRAG(g, cfg.ChatModelName, cfg.Temperature, pipeline, logger)
	if err != nil {
		return nil, fmt.Errorf("creating rag agent: %w", err)
	}
	linkedinAgent, err := agent.NewLinkedIn(g, cfg.ChatModelName, cfg.Temperature, logger)
	if err != nil {
		return nil, fmt.Errorf("creating linkedin agent: %w", err)
	}
	a.Agents = map[selector.AgentName]agent.Agent{
		selector.AgentRAG:      ragAgent,
		selector.AgentLinkedIn: linkedinAgent,
	}

	orch, err := orchestrator.New(sel, a.Agents, logger)
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Orchestrator = orch

	return a, nil
}

// provideOtelShutdown sets up tracing before Genkit initialization.
// Returns a no-op cleanup when tracing is disabled.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if !cfg.Otel.Enabled {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Otel.Endpoint,
		Environment: cfg.Otel.Environment,
		ServiceName: cfg.Otel.ServiceName,
	})
	if err != nil {
		logger.Warn("setting up tracing, continuing without it", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the Google AI plugin. The
// GEMINI_API_KEY environment variable is read by the plugin itself.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with googleai provider")
	}
	return g, nil
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// provideStore selects the vector store backend.
func provideStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (knowledge.Store, error) {
	switch cfg.VectorBackend {
	case config.VectorBackendQdrant:
		store, err := knowledge.NewQdrantStore(ctx, cfg.QdrantAddr, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to qdrant: %w", err)
		}
		return store, nil
	case config.VectorBackendPgvector:
		store, err := knowledge.NewPGStore(pool, logger)
		if err != nil {
			return nil, fmt.Errorf("creating pgvector store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}
