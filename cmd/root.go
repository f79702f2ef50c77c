// Package cmd implements the aisavvy command line interface.
package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aisavvy/aisavvy/internal/cache"
	"github.com/aisavvy/aisavvy/internal/config"
	"github.com/aisavvy/aisavvy/internal/engine"
	"github.com/aisavvy/aisavvy/internal/executor"
	"github.com/aisavvy/aisavvy/internal/llm"
	"github.com/aisavvy/aisavvy/internal/logging"
	"github.com/aisavvy/aisavvy/internal/prompt"
	"github.com/aisavvy/aisavvy/internal/schema"
)

var rootCmd = &cobra.Command{
	Use:   "aisavvy",
	Short: "Ask a PostgreSQL database questions in plain language",
	Long: `aisavvy translates natural language questions into SQL with an LLM,
validates the result against the live schema, and executes it read-only.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(schemaCmd)
}

// runtime holds the wired application. Commands build one, use it, and
// close it on the way out.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *sql.DB
	catalog *schema.Catalog
	engine  *engine.Engine
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Logging, os.Stderr)

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(config.Duration(cfg.Database.ConnMaxLifetime))

	catalog := schema.NewCatalog(db, config.Duration(cfg.Database.SchemaTTL))

	inference, err := llm.NewFromConfig(ctx, cfg.Inference)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize inference client: %w", err)
	}

	examples := prompt.DefaultExampleSet()
	if cfg.Engine.ExamplesPath != "" {
		examples, err = prompt.LoadExampleSet(cfg.Engine.ExamplesPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load examples: %w", err)
		}
	}

	builder := prompt.NewBuilder(examples, cfg.Engine.MaxPromptBytes, cfg.Engine.MaxHistoryTurns)
	runner := executor.New(db, config.Duration(cfg.Database.QueryTimeout), cfg.Database.MaxRows)

	var responseCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		responseCache = cache.New(config.Duration(cfg.Cache.TTL), cfg.Cache.MaxEntries, nil)
	}

	eng := engine.New(engine.Options{
		Source:      catalog,
		Inference:   inference,
		Builder:     builder,
		Runner:      runner,
		Cache:       responseCache,
		MaxAttempts: cfg.Engine.MaxAttempts,
		Logger:      logger,
	})

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		catalog: catalog,
		engine:  eng,
	}, nil
}

func (r *runtime) Close() error {
	return r.db.Close()
}
