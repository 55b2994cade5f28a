package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raggydev/raggy/db"
	"github.com/raggydev/raggy/internal/config"
	"github.com/raggydev/raggy/internal/embed"
	"github.com/raggydev/raggy/internal/log"
	"github.com/raggydev/raggy/internal/observability"
	"github.com/raggydev/raggy/internal/store"
)

// runtime bundles the shared infrastructure behind every command: config,
// logging, tracing, the Genkit instance, and the document store.
type runtime struct {
	cfg             *config.Config
	logger          log.Logger
	genkit          *genkit.Genkit
	pool            *pgxpool.Pool
	store           *store.Store
	embedder        *embed.GenkitEmbedder
	shutdownTracing func(context.Context) error
}

// setupRuntime loads configuration, runs migrations, and connects every
// backend a command needs. Callers must Close the returned runtime.
func setupRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	shutdownTracing, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	pool, err := store.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	embedder := embed.NewGenkitEmbedder(googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel))

	return &runtime{
		cfg:             cfg,
		logger:          logger,
		genkit:          g,
		pool:            pool,
		store:           store.New(pool, logger),
		embedder:        embedder,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Close releases the runtime's resources in reverse order of acquisition.
func (r *runtime) Close(ctx context.Context) {
	if r.pool != nil {
		r.pool.Close()
	}
	if r.shutdownTracing != nil {
		if err := r.shutdownTracing(ctx); err != nil {
			r.logger.Warn("tracing shutdown failed", "error", err)
		}
	}
}
