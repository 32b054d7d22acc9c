package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paper-trading-go/internal/config"
	"paper-trading-go/internal/logger"
	"paper-trading-go/internal/papertrading"
	"paper-trading-go/internal/server"
	"paper-trading-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	st, err := store.NewStore(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	var signals papertrading.SignalSource
	if cfg.Trading.SignalsPath != "" {
		signals = papertrading.NewFileSignalSource(cfg.Trading.SignalsPath)
	}
	engine, err := papertrading.NewEngine(log, &cfg, st, papertrading.NewSimulatedPrices(), signals)
	if err != nil {
		log.Fatal("Failed to initialize trading engine", zap.Error(err))
	}
	if err := engine.Start(0); err != nil {
		log.Fatal("Failed to start trading loop", zap.Error(err))
	}

	srv := server.New(log, &cfg, engine, st)
	srv.Start()

	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server cleanly", zap.Error(err))
	}
	engine.Stop()

	log.Info("Server has been shut down.")
}
