package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/api"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/config"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/cursor"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/database"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/logging"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/repository"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/scheduler"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/service"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/version"
	"github.com/ndewijer/Investment-Ledger-Backend/internal/yahoo"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	logger.Info().Str("version", version.Version).Msg("starting ledger server")

	ctx := context.Background()

	// Open database connection; pending migrations are applied here
	db, err := database.Open(ctx, cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer db.Close()

	schemaVersion, err := database.SchemaVersion(ctx, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read schema version")
	}
	logger.Info().Str("path", cfg.Database.Path).Int64("schema_version", schemaVersion).Msg("connected to database")

	codec, err := cursor.NewCodec(cfg.Cursor.Key, cfg.Cursor.TTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid cursor key")
	}
	if cfg.Cursor.Key == "" {
		logger.Warn().Msg("CURSOR_KEY not set; pagination cursors will not survive a restart")
	}

	yahooClient := yahoo.NewFinanceClient(yahoo.Options{
		RequestsPerSecond: cfg.Prices.RequestsPerSecond,
		Burst:             cfg.Prices.Burst,
		Timeout:           cfg.Prices.Timeout,
	})

	// Create repositories
	portfolioRepo := repository.NewPortfolioRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	priceRepo := repository.NewPriceRepository(db)

	// Create services
	priceService := service.NewPriceService(priceRepo, transactionRepo, yahooClient, logger)
	portfolioService := service.NewPortfolioService(db, portfolioRepo, transactionRepo, priceService, logger)
	snapshotService := service.NewSnapshotService(db, snapshotRepo, transactionRepo, portfolioRepo, logger)
	services := api.Services{
		System:      service.NewSystemService(db, map[string]bool{"price_refresh": true, "scheduler": cfg.Scheduler.PriceRefresh != ""}),
		Portfolio:   portfolioService,
		Transaction: service.NewTransactionService(db, transactionRepo, portfolioService, snapshotService, codec, logger),
		Snapshot:    snapshotService,
		Price:       priceService,
		Performance: service.NewPerformanceService(portfolioRepo, transactionRepo, snapshotService, priceService, logger),
		Tax:         service.NewTaxService(portfolioRepo, transactionRepo, priceService, cfg.TaxRates, logger),
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.PriceRefresh != "" {
		sched, err = scheduler.New(cfg.Scheduler.PriceRefresh, priceService, snapshotService, portfolioService, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create scheduler")
		}
		sched.Start()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(services, logger, cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("scheduler did not stop in time")
		}
	}

	logger.Info().Msg("server exited")
}
