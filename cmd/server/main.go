package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lynchbot/screener-trader/internal/clients/rationale"
	"github.com/lynchbot/screener-trader/internal/clients/screener"
	"github.com/lynchbot/screener-trader/internal/config"
	"github.com/lynchbot/screener-trader/internal/database"
	"github.com/lynchbot/screener-trader/internal/modules/allocate"
	"github.com/lynchbot/screener-trader/internal/modules/cycle"
	"github.com/lynchbot/screener-trader/internal/modules/ledger"
	"github.com/lynchbot/screener-trader/internal/modules/portfolio"
	rationalesvc "github.com/lynchbot/screener-trader/internal/modules/rationale"
	"github.com/lynchbot/screener-trader/internal/modules/reconcile"
	"github.com/lynchbot/screener-trader/internal/scheduler"
	"github.com/lynchbot/screener-trader/internal/server"
	"github.com/lynchbot/screener-trader/pkg/logger"
)

func main() {
	// Load configuration first so the logger picks up the level
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting screener trader")

	// Trade audit database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Core services
	store := ledger.NewStore(cfg.LedgerPath, log)
	tradeLog := ledger.NewTradeLogRepository(db.Conn(), log)
	engine := reconcile.NewEngine(log)
	planner := allocate.NewPlanner(log)

	var provider rationalesvc.Provider
	if cfg.RationaleServiceURL != "" {
		provider = rationale.NewClient(cfg.RationaleServiceURL, log)
	}
	annotator := rationalesvc.NewAnnotator(provider, log)

	cycleService := cycle.NewService(store, engine, planner, annotator, tradeLog, log)
	portfolioService := portfolio.NewService(store, log)

	// Scheduler and the weekly evaluation job
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	evaluationJob := scheduler.NewEvaluationCycleJob(scheduler.EvaluationCycleConfig{
		Log:          log,
		Screener:     screener.NewClient(cfg.ScreenerServiceURL, log),
		CycleService: cycleService,
	})
	if err := sched.AddJob(cfg.EvaluationSchedule, evaluationJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register evaluation job")
	}

	// HTTP server
	srv := server.New(server.Config{
		Port:             cfg.Port,
		Log:              log,
		PortfolioHandler: portfolio.NewHandler(portfolioService, log),
		TradeLogHandler:  ledger.NewHandler(tradeLog, log),
		Scheduler:        sched,
		EvaluationJob:    evaluationJob,
		DevMode:          cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Str("schedule", cfg.EvaluationSchedule).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
