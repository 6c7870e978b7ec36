// Package main is the entry point for Steward, a quality-value equity
// screening service. It screens a stock universe on a schedule, classifies
// the market regime, assigns watchlist tiers, and tracks movements between
// runs behind an HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/steward-labs/steward/internal/clientdata"
	"github.com/steward-labs/steward/internal/clients/finnhub"
	"github.com/steward-labs/steward/internal/clients/yahoo"
	"github.com/steward-labs/steward/internal/config"
	"github.com/steward-labs/steward/internal/database"
	"github.com/steward-labs/steward/internal/modules/bubble"
	"github.com/steward-labs/steward/internal/modules/fundamentals"
	"github.com/steward-labs/steward/internal/modules/qualitative"
	"github.com/steward-labs/steward/internal/modules/regime"
	"github.com/steward-labs/steward/internal/modules/screening"
	"github.com/steward-labs/steward/internal/modules/tiering"
	"github.com/steward-labs/steward/internal/modules/universe"
	"github.com/steward-labs/steward/internal/modules/valuation"
	"github.com/steward-labs/steward/internal/modules/watchlist"
	"github.com/steward-labs/steward/internal/reliability"
	"github.com/steward-labs/steward/internal/scheduler"
	"github.com/steward-labs/steward/internal/server"
	"github.com/steward-labs/steward/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting Steward")

	// Two databases: durable watchlist history, and an ephemeral provider
	// cache that can be dropped without losing anything.
	watchlistDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "watchlist.db"),
		Profile: database.ProfileStandard,
		Name:    "watchlist",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open watchlist database")
	}
	defer watchlistDB.Close()

	clientDataDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "client_data.db"),
		Profile: database.ProfileCache,
		Name:    "client_data",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open client data database")
	}
	defer clientDataDB.Close()

	cacheRepo := clientdata.NewRepository(clientDataDB.Conn())
	if err := cacheRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize client data schema")
	}

	watchlistRepo := watchlist.NewRepository(watchlistDB.Conn(), log)
	if err := watchlistRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize watchlist schema")
	}

	// Provider clients
	yahooClient := yahoo.NewClient(cacheRepo, cfg.Fetch.RequestsPerMinute, log)

	var targets valuation.TargetSource
	var insiders bubble.InsiderSource
	if cfg.FinnhubAPIKey != "" {
		finnhubClient := finnhub.NewClient(cfg.FinnhubAPIKey, cacheRepo, log)
		targets = finnhubClient
		insiders = finnhubClient
	} else {
		log.Warn().Msg("Finnhub API key not configured, analyst targets and insider data disabled")
	}

	criteria, err := screening.LoadCriteria(cfg.CriteriaPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CriteriaPath).Msg("Failed to load screening criteria")
	}

	// Pipeline components
	source := universe.NewSource(cfg.UniverseFile, log)
	fetcher := fundamentals.NewFetcher(yahooClient, cfg.Fetch.Workers, log)
	screener := screening.NewScreener(criteria, log)
	collector := regime.NewCollector(yahooClient, log)
	analyzer := qualitative.NewAnalyzer(qualitative.NewFileSource(cfg.AnalysesDir), log)
	valuations := valuation.NewAggregator(yahooClient, targets, log)
	engine := tiering.NewEngine(tiering.Config{
		MinMarginOfSafety: cfg.Tiers.MinMarginOfSafety,
		ProximityAlertPct: cfg.Tiers.ProximityAlertPct,
		TrancheCount:      cfg.Tiers.TrancheCount,
		TrancheStepPct:    cfg.Tiers.TrancheStepPct,
	}, log)

	service := watchlist.NewService(source, yahooClient, fetcher, screener, collector, analyzer, valuations, engine, watchlistRepo, log)
	detector := bubble.NewDetector(yahooClient, insiders, log)

	// Background jobs
	sched := scheduler.New(log)

	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Schedule.FullScreen, scheduler.NewFullScreenJob(service, log)},
		{cfg.Schedule.PriceCheck, scheduler.NewPriceCheckJob(service, log)},
		{cfg.Schedule.Cleanup, clientdata.NewCleanupJob(cacheRepo, log)},
		{"@daily", reliability.NewMaintenanceJob(map[string]*database.DB{
			"watchlist":   watchlistDB,
			"client_data": clientDataDB,
		}, log)},
	}

	if cfg.BackupEnabled() {
		s3Client, err := reliability.NewS3Client(context.Background(), cfg.Backup.Bucket, cfg.Backup.Region, cfg.Backup.Prefix, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}

		backupService := reliability.NewBackupService(s3Client, map[string]*database.DB{
			"watchlist": watchlistDB,
		}, cfg.DataDir, log)

		jobs = append(jobs, struct {
			schedule string
			job      scheduler.Job
		}{cfg.Schedule.Backup, reliability.NewBackupJob(backupService, cfg.Backup.RetentionDays, log)})
	}

	for _, entry := range jobs {
		if err := sched.AddJob(entry.schedule, entry.job); err != nil {
			log.Fatal().Err(err).Str("job", entry.job.Name()).Msg("Failed to register job")
		}
	}

	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Watchlist: service,
		Collector: collector,
		Detector:  detector,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
