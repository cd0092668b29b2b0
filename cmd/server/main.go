// Package main is the entry point for the Quantfolio optimization service.
// It compares a QAOA-based quantum portfolio selection against a classical
// Markowitz mean-variance solution over the same universe, serving both
// through an HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aristath/quantfolio/internal/config"
	"github.com/aristath/quantfolio/internal/database"
	"github.com/aristath/quantfolio/internal/events"
	"github.com/aristath/quantfolio/internal/modules/marketdata"
	"github.com/aristath/quantfolio/internal/modules/portfolio"
	"github.com/aristath/quantfolio/internal/modules/qaoa"
	"github.com/aristath/quantfolio/internal/server"
	"github.com/aristath/quantfolio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Quantfolio")

	// Price-history cache database. Losing it only costs a re-download.
	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileCache,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	if err := historyDB.ApplySchema(marketdata.Schema); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply history schema")
	}

	historyRepo := marketdata.NewHistoryRepository(historyDB.Conn(), log)
	dataClient := marketdata.NewClient(cfg.MarketDataBaseURL, historyRepo, log)

	// Nightly prune keeps the cache inside the lookback window.
	maintenance := cron.New()
	_, err = maintenance.AddFunc("30 4 * * *", func() {
		cutoff := time.Now().AddDate(0, 0, -cfg.HistoryWindowDays).Format("2006-01-02")
		if _, err := historyRepo.Prune(cutoff); err != nil {
			log.Error().Err(err).Msg("History prune failed")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule history prune")
	}
	maintenance.Start()
	defer maintenance.Stop()

	bus := events.NewBus()
	selector := qaoa.NewSelector(cfg.QuantumRuntimeURL, log)

	svc := portfolio.NewService(dataClient, selector, bus, portfolio.ServiceConfig{
		BenchmarkSymbol:   cfg.BenchmarkSymbol,
		HistoryWindowDays: cfg.HistoryWindowDays,
		RequestTimeout:    cfg.RequestTimeout,
		CircuitDepth:      cfg.CircuitDepth,
		ShotBudget:        cfg.ShotBudget,
	}, log)

	srv := server.New(server.Config{
		Log:     log,
		Config:  cfg,
		Service: svc,
		Bus:     bus,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("HTTP server failed")
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Quantfolio stopped")
}
