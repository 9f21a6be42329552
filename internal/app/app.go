// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles the service: Genkit, the vector
// store backend, the retrieval pipeline, the agent selector, the
// specialized agents and the chat orchestrator. Components receive
// their dependencies explicitly at construction; nothing reads global
// state after Setup returns.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aldenhart/ragchat/internal/agent"
	"github.com/aldenhart/ragchat/internal/config"
	"github.com/aldenhart/ragchat/internal/knowledge"
	"github.com/aldenhart/ragchat/internal/orchestrator"
	"github.com/aldenhart/ragchat/internal/retrieval"
	"github.com/aldenhart/ragchat/internal/selector"
)

// App is the core application container.
type App struct {
	// Configuration
	Config *config.Config

	// Core services
	Genkit       *genkit.Genkit
	Embedder     *knowledge.Embedder
	DBPool       *pgxpool.Pool // nil when the qdrant backend is active
	Store        knowledge.Store
	Ingestor     *knowledge.Ingestor
	Pipeline     *retrieval.Pipeline
	Selector     *selector.Selector
	Agents       map[selector.AgentName]agent.Agent
	Orchestrator *orchestrator.Orchestrator

	logger *slog.Logger

	// Lifecycle management
	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.logger.Info("shutting down application")

	if closer, ok := a.Store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("closing vector store", "error", err)
		}
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
		a.logger.Info("database pool closed")
	}

	// Flush pending spans last so teardown itself is traced.
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
