// Package app wires the application together: configuration, database,
// Genkit, tool registry, and the question answering system.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"coursechat/internal/config"
	"coursechat/internal/generator"
	"coursechat/internal/ingest"
	"coursechat/internal/log"
	"coursechat/internal/rag"
	"coursechat/internal/search"
	"coursechat/internal/session"
	"coursechat/internal/tools"
)

// App is the application container. Build one with Setup and release its
// resources with Close.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	Search   *search.Store
	Sessions *session.Store
	Registry *tools.Registry
	RAG      *rag.System
	Ingestor *ingest.Ingestor

	gen          *generator.Generator
	traceCleanup func()
}

// Close releases all resources in reverse initialization order.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("database pool closed")
	}
	if a.traceCleanup != nil {
		a.traceCleanup()
	}

	return nil
}
