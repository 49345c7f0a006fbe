package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/portgrant/portgrantd/internal/agent"
	"github.com/portgrant/portgrantd/internal/broker"
	"github.com/portgrant/portgrantd/internal/datapath"
	"github.com/portgrant/portgrantd/internal/metrics"
	"github.com/portgrant/portgrantd/internal/tracker"
)

// drainTimeout is the maximum time for graceful shutdown.
const drainTimeout = 30 * time.Second

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the portgrantd daemon",
	Long: "Start the portgrantd daemon. Listens on the control socket for rule\n" +
		"claims and serves read-only status on the status socket.",
	RunE: runUp,
}

func init() {
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, _ []string) error {
	// 1. Parse config.
	cfg, err := agent.ParseConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("portgrantd up: %w", err)
	}

	// Apply CLI flag overrides.
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if statusSock != "" {
		cfg.Broker.StatusSocketPath = statusSock
	}

	// 2. Set up structured logger.
	logger := setupLogger(cfg.LogLevel)

	logger.Info("starting portgrantd",
		"version", buildVersion,
		"datapath_backend", cfg.Datapath.Backend,
	)

	// 3. Create the datapath client.
	dp, err := datapath.NewClient(cfg.Datapath, logger)
	if err != nil {
		return fmt.Errorf("portgrantd up: create datapath client: %w", err)
	}

	// 4. Create the rule tracking engine. It owns the lifeline registry.
	engine, err := tracker.New(dp, logger)
	if err != nil {
		return fmt.Errorf("portgrantd up: create tracker: %w", err)
	}

	// 5. Create the broker server.
	srv := broker.NewServer(cfg.Broker, engine, logger)

	// 6. Create the metrics manager.
	mgr := metrics.NewManager(cfg.Metrics, nil, logger)
	mgr.RegisterCollector(metrics.NewRuleCollector(engine))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var wg sync.WaitGroup

	// 7. Start broker.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(ctx); err != nil {
			logger.Error("broker stopped", "error", err)
			stop()
		}
	}()

	// 8. Start metrics.
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = mgr.Run(ctx)
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	logger.Info("shutting down", "reason", ctx.Err())

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Broker and metrics exited cleanly.
	case <-time.After(drainTimeout):
		logger.Warn("drain timeout exceeded, forcing exit")
	}

	// Revokes all remaining rules and releases the lifeline registry.
	if err := engine.Close(); err != nil {
		logger.Error("engine close failed", "error", err)
	}

	logger.Info("portgrantd stopped")
	return nil
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
