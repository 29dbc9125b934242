package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/khusa71/kardu/internal/config"
	"github.com/khusa71/kardu/internal/contentcache"
	"github.com/khusa71/kardu/internal/database"
	"github.com/khusa71/kardu/internal/export"
	"github.com/khusa71/kardu/internal/extraction"
	"github.com/khusa71/kardu/internal/inference"
	"github.com/khusa71/kardu/internal/inference/openai"
	"github.com/khusa71/kardu/internal/job"
	"github.com/khusa71/kardu/internal/quota"
	"github.com/khusa71/kardu/internal/server"
	"github.com/khusa71/kardu/internal/studyprogress"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// allowAllBilling accepts every advanced-tier request. The hosted billing
// integration replaces this behind the same interface.
type allowAllBilling struct{}

func (allowAllBilling) HasAdvancedTier(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loadConfig() > %w", err)
	}

	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable is required")
	}

	openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, inference.DefaultRetryConfig())
	defer func() {
		_ = openaiClient.Close()
	}()

	quotaRepo, progressRepo, closeDB := openRepositories(cfg)
	defer closeDB()

	cache, err := contentcache.New(cfg.Cache.Directory)
	if err != nil {
		return fmt.Errorf("contentcache.New() > %w", err)
	}
	cache.Start()
	defer cache.Stop()

	sweeper := extraction.NewScratchSweeper(
		cfg.Pipeline.ScratchDirectory,
		time.Duration(cfg.Pipeline.ScratchMaxAgeMinutes)*time.Minute,
		time.Duration(cfg.Pipeline.SweepIntervalMinutes)*time.Minute,
	)
	sweeper.Start()
	defer sweeper.Stop()

	quotaManager := quota.NewManager(quotaRepo)
	orchestrator := job.NewOrchestrator(
		job.NewStore(),
		extraction.NewCommandExtractor(cfg.Pipeline.ExtractorCommand),
		openaiClient,
		cache,
		quotaManager,
		export.NewExporter(cfg.Exports.Directory),
		allowAllBilling{},
		job.WithChunkSize(cfg.Pipeline.MaxChunkSize),
		job.WithModels(cfg.OpenAI.Model, cfg.OpenAI.AdvancedModel),
	)

	handler := server.NewHandler(
		orchestrator,
		studyprogress.NewRecorder(progressRepo),
		quotaManager,
		cfg.Pipeline.ScratchDirectory,
	)

	mux := http.NewServeMux()
	handler.Register(mux)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Default().Info("starting server", "addr", addr)
	return http.ListenAndServe(addr, server.CORSMiddleware(cfg.Server.CORS.AllowedOrigins, mux))
}

// openRepositories connects to MySQL, falling back to in-memory stores
// when the database is unreachable so local development works without one.
func openRepositories(cfg *config.Config) (quota.Repository, studyprogress.Repository, func()) {
	db, err := database.Open(cfg.Database)
	if err == nil {
		err = database.Ping(context.Background(), db)
	}
	if err != nil {
		slog.Default().Warn("database unavailable, using in-memory stores", "error", err)
		if db != nil {
			_ = db.Close()
		}
		return quota.NewMemoryRepository(), studyprogress.NewMemoryRepository(), func() {}
	}

	return quota.NewDBRepository(db), studyprogress.NewDBRepository(db), func() { _ = db.Close() }
}

func loadConfig() (*config.Config, error) {
	configFile := os.Getenv("KARDU_CONFIG")
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("config.NewConfigLoader() > %w", err)
	}
	return loader.Load()
}
