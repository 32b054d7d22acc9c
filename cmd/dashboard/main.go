package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paper-trading-go/internal/backend"
	"paper-trading-go/internal/config"
	"paper-trading-go/internal/dashboard"
	"paper-trading-go/internal/identity"
	"paper-trading-go/internal/logger"
	"paper-trading-go/internal/metrics"
	"paper-trading-go/internal/reconcile"

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

	userID, err := identity.Load(cfg.Dashboard.IdentityFile)
	if err != nil {
		log.Fatal("Failed to load user identity", zap.Error(err))
	}
	log.Info("User identity loaded", zap.String("user_id", userID))

	interval, err := dashboard.ParsePeriod(cfg.Dashboard.Period)
	if err != nil {
		log.Fatal("Invalid dashboard period", zap.String("period", cfg.Dashboard.Period), zap.Error(err))
	}

	client := backend.NewClient(&cfg.Backend, log)
	reconciler := reconcile.NewReconciler(log,
		reconcile.SourcesFromPaths(cfg.Reconcile.SnapshotPaths),
		nil, cfg.Reconcile.SynthesizeCount)
	board := dashboard.New(log, client, reconciler, interval)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, stopping dashboard...")
		cancel()
	}()

	go reportLoop(ctx, log, board, interval)
	board.Run(ctx)

	log.Info("Dashboard has been shut down.")
}

// reportLoop logs a summary of the committed view each cycle.
func reportLoop(ctx context.Context, log *zap.Logger, board *dashboard.Dashboard, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, errMsg := board.Status()
			if status == nil {
				continue
			}
			fields := []zap.Field{
				zap.String("mode", status.Mode),
				zap.Bool("running", status.IsRunning),
				zap.Float64("balance", status.Balance),
				zap.Float64("portfolio_value", status.PortfolioValue),
				zap.Int("trades", len(status.TradeHistory)),
				zap.Bool("synthetic", status.Synthetic),
			}
			if status.Performance != nil {
				fields = append(fields,
					zap.Float64("win_rate", status.Performance.WinRate),
					zap.Float64("profit_loss", status.Performance.ProfitLoss))
			}
			if n := len(status.TradeHistory); n > 0 {
				last := status.TradeHistory[n-1]
				fields = append(fields, zap.String("last_trade",
					fmt.Sprintf("%s trade: %s %s @ %.2f", metrics.Ordinal(n), last.Side, last.Symbol, last.Price)))
			}
			if errMsg != "" {
				fields = append(fields, zap.String("last_error", errMsg))
			}
			log.Info("Dashboard status", fields...)
		}
	}
}
