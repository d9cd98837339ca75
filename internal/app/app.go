// Package app wires configuration into adapters, the pipeline, and the HTTP
// server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"RecipeSnap/internal/config"
	"RecipeSnap/internal/infrastructure/browser"
	"RecipeSnap/internal/infrastructure/credentials"
	"RecipeSnap/internal/infrastructure/gemini"
	"RecipeSnap/internal/infrastructure/storage"
	"RecipeSnap/internal/infrastructure/video"
	"RecipeSnap/internal/logging"
	"RecipeSnap/internal/metrics"
	"RecipeSnap/internal/platform"
	"RecipeSnap/internal/ports"
	"RecipeSnap/internal/server"
	"RecipeSnap/internal/usecase"
	"RecipeSnap/internal/validate"
)

// Application owns the wired components and their lifecycle.
type Application struct {
	cfg     config.Config
	srv     *server.Server
	janitor *video.Janitor
	db      *sql.DB
	logger  *slog.Logger
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := platform.NewRegistry()
	creds := credentials.NewStore(cfg.Credentials.Dir, registry)
	m := metrics.New()

	pages := browser.NewFetcher(cfg.Scraper, registry, creds, nil, baseLogger.With("component", "browser"))
	videos := video.NewDownloader(cfg.Video, registry, creds, baseLogger.With("component", "video"))

	structurer, err := gemini.NewStructurer(ctx, cfg.Gemini, baseLogger.With("component", "gemini"))
	if err != nil {
		return nil, fmt.Errorf("build structurer: %w", err)
	}

	var (
		db   *sql.DB
		repo ports.RecipeRepository
	)
	if cfg.Database.DSN != "" {
		db, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := storage.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		repo = storage.NewPostgresRepository(db)
	} else {
		baseLogger.Warn("no database configured, persistence disabled")
	}

	pipeline, err := usecase.NewPipeline(usecase.PipelineDeps{
		Pages:          pages,
		Videos:         videos,
		Structurer:     structurer,
		Repository:     repo,
		Validator:      validate.New(nil),
		Metrics:        m,
		Logger:         baseLogger.With("component", "pipeline"),
		MaxConcurrent:  cfg.Pipeline.MaxConcurrent,
		RequestTimeout: cfg.Pipeline.RequestTimeout,
		CacheSize:      cfg.Pipeline.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	handlers := server.NewHandlers(pipeline, repo, baseLogger.With("component", "http"), cfg.Server.Debug)
	srv := server.New(cfg.Server, handlers, m, baseLogger.With("component", "http"))

	return &Application{
		cfg:     cfg,
		srv:     srv,
		janitor: video.NewJanitor(cfg.Video.TempDir, cfg.Video.MaxFileAge, baseLogger.With("component", "janitor")),
		db:      db,
		logger:  baseLogger,
	}, nil
}

// Run serves until ctx is canceled, then tears everything down.
func (a *Application) Run(ctx context.Context) error {
	a.janitor.Start(ctx)
	defer a.janitor.Stop()

	err := a.srv.Run(ctx)

	if a.db != nil {
		if closeErr := a.db.Close(); closeErr != nil {
			a.logger.Warn("database close failed", "error", closeErr)
		}
	}
	return err
}
