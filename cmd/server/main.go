// Command server runs the opportunity lifecycle orchestration engine: HTTP
// API, workflow worker pool, submission engine, and status tracker in one
// process.
//
// Startup order matters: storage and the weights store come up first, then
// the long-running components, then Resume re-drives interrupted work, and
// only then does the HTTP listener accept traffic. Shutdown reverses it.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/growthengine/opportunity-engine/internal/config"
	"github.com/growthengine/opportunity-engine/internal/domain"
	"github.com/growthengine/opportunity-engine/internal/generate"
	httpapi "github.com/growthengine/opportunity-engine/internal/http"
	"github.com/growthengine/opportunity-engine/internal/observability"
	"github.com/growthengine/opportunity-engine/internal/platform"
	"github.com/growthengine/opportunity-engine/internal/repo"
	"github.com/growthengine/opportunity-engine/internal/scoring"
	"github.com/growthengine/opportunity-engine/internal/services"
	"github.com/growthengine/opportunity-engine/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// Optional .env for local development; ignored when absent.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	// Storage
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate schema")
	}

	// Scoring weights: resume the latest persisted version, or seed the
	// defaults on first boot.
	active := scoring.DefaultWeights()
	if rec, err := repo.LatestWeights(ctx, db); err == nil {
		active = scoring.Weights{
			Version:        rec.Version,
			Features:       rec.Weights,
			Tier1Threshold: rec.Tier1Threshold,
			Tier2Threshold: rec.Tier2Threshold,
			UpdatedAt:      rec.UpdatedAt,
		}
	} else if errors.Is(err, repo.ErrNotFound) {
		seed := &domain.WeightsRecord{
			Version:        active.Version,
			Weights:        active.Features,
			Tier1Threshold: active.Tier1Threshold,
			Tier2Threshold: active.Tier2Threshold,
			UpdatedAt:      active.UpdatedAt,
		}
		if err := repo.SaveWeights(ctx, db, seed); err != nil {
			log.Fatal().Err(err).Msg("seed default weights")
		}
	} else {
		log.Fatal().Err(err).Msg("load weights")
	}
	weightsStore := scoring.NewStore(active)

	// External inputs
	profiles, err := services.LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ProfilesPath).Msg("load profiles")
	}
	platCfg, err := platform.LoadConfig(cfg.PlatformsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.PlatformsPath).Msg("load platforms")
	}
	registry := platCfg.BuildRegistry()

	var generator generate.Generator
	if cfg.GenerationEndpoint != "" {
		generator = &generate.HTTPGenerator{Endpoint: cfg.GenerationEndpoint}
	} else {
		generator = generate.Template()
	}

	// Services
	ingest := &services.IngestService{DB: db}
	weightsSvc := &services.WeightsService{DB: db, Store: weightsStore}
	feedback := services.NewFeedback(db, nil, 0)

	engine := services.NewSubmissionEngine(db, platCfg, registry, services.SubmissionRetryPolicy())
	tracker := services.NewTracker(db, services.TrackerConfig{
		SweepInterval:    cfg.Tracker.SweepInterval,
		NoResponseAfter:  cfg.Tracker.NoResponseAfter,
		Retention:        cfg.Tracker.Retention,
		StatusCheckAfter: 7 * 24 * time.Hour,
		ThankYouAfter:    24 * time.Hour,
	}, nil)

	orch := services.NewOrchestrator(db, services.OrchestratorConfig{
		Workers:            cfg.Workflow.Workers,
		QueueCapacity:      cfg.Workflow.QueueCapacity,
		DailyQuota:         cfg.Workflow.DailyQuota,
		AutomationLevel:    cfg.Workflow.AutomationLevel,
		AutoApproveQuality: cfg.Workflow.AutoApproveQuality,
		GenerationTimeout:  cfg.Workflow.GenerationTimeout,
		GenerationRetry:    services.GenerationRetryPolicy(),
		DefaultPlatform:    cfg.Workflow.DefaultPlatform,
		RequeueInterval:    cfg.Workflow.RequeueInterval,
	}, weightsStore, profiles, generator, engine, tracker)

	// Cross-wiring between the long-running components.
	engine.OnResult = orch.OnSubmissionResult
	tracker.AutoClose = func(ctx context.Context, appID string) error {
		return orch.OnOutcome(ctx, appID, domain.OutcomeNoResponse)
	}
	orch.OnClosed = feedback.RecordOutcome

	orch.Start(ctx)
	engine.Start(ctx)
	tracker.Start(ctx)
	if err := orch.Resume(ctx); err != nil {
		log.Error().Err(err).Msg("resume interrupted applications")
	}

	// HTTP
	router := gin.New()
	httpapi.RegisterRoutes(router, httpapi.Deps{
		DB:       db,
		Ingest:   ingest,
		Workflow: orch,
		Status:   tracker,
		Weights:  weightsSvc,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	tracker.Stop()
	engine.Stop()
	orch.Stop()
	cancel()

	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("bye")
}
