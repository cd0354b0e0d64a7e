package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reup-planner-backend/internal/ai"
	"reup-planner-backend/internal/analytics"
	"reup-planner-backend/internal/auth"
	"reup-planner-backend/internal/config"
	"reup-planner-backend/internal/db"
	"reup-planner-backend/internal/goals"
	"reup-planner-backend/internal/logging"
	"reup-planner-backend/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	backend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}

	observations, prefs, database, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
		logger.Info("connected to database", zap.String("driver", cfg.DBDriver))
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is not set; authenticated endpoints will reject every request")
	}

	agg := analytics.NewAggregator(observations, analytics.DefaultProfileOptions(), logger.Named("analytics"))

	handler := server.NewHandler(server.Options{
		Goals: &goals.Handlers{
			Planner:    goals.NewPlanner(backend, logger.Named("planner")),
			Profiles:   agg,
			Prefs:      prefs,
			Production: cfg.IsProduction(),
			Timeout:    cfg.BackendTimeout,
			Logger:     logger.Named("goals"),
		},
		Analytics:   analytics.NewHandlers(agg, logger.Named("analytics")),
		Auth:        auth.New([]byte(cfg.JWTSecret)),
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger.Named("http"),
	})

	srv := server.New(cfg.Addr(), handler, cfg.BackendTimeout)
	return server.Run(ctx, srv, logger)
}

func newBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ai.Backend, error) {
	switch cfg.AIProvider {
	case "gemini":
		logger.Info("planning backend", zap.String("provider", "gemini"), zap.String("model", cfg.GeminiModel))
		return ai.NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel, logger.Named("gemini"))
	default:
		logger.Info("planning backend", zap.String("provider", "openai"), zap.String("model", cfg.OpenAIModel))
		return ai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, logger.Named("openai")), nil
	}
}

// openStores returns the observation log and preferences store for the
// configured driver. database is nil for the in-memory driver.
func openStores(ctx context.Context, cfg *config.Config) (analytics.Store, goals.PreferencesStore, *sql.DB, error) {
	if cfg.DBDriver == "memory" {
		return analytics.NewMemoryStore(), goals.NewMemoryPreferencesStore(), nil, nil
	}

	database, err := connect(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Migrate(ctx, database); err != nil {
		_ = database.Close()
		return nil, nil, nil, err
	}
	return analytics.NewSQLStore(database), goals.NewSQLPreferencesStore(database), database, nil
}

func connect(cfg *config.Config) (*sql.DB, error) {
	switch cfg.DBDriver {
	case "sqlite":
		return db.Connect("sqlite", cfg.SQLitePath)
	case "postgres":
		return db.Connect("postgres", cfg.ConnString())
	}
	return nil, fmt.Errorf("no database for driver %q", cfg.DBDriver)
}
