// Command engine is the entry point for the binary-outcome evaluation
// engine described in spec.md: it loads configuration, wires the single
// event-loop engine, optionally starts the read-only diagnostic API, and
// runs until SIGINT/SIGTERM. Grounded on the teacher's cmd/bot/main.go
// shape (load config, build slog handler, construct engine, optional
// dashboard goroutine, block on signal, stop in reverse order).
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"binaryedge/internal/api"
	"binaryedge/internal/config"
	"binaryedge/internal/engine"
	"binaryedge/internal/metrics"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("BINARYEDGE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API.Port, eng, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("api server failed", "error", err)
			}
		}()
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be submitted")
	}
	logger.Info("binaryedge engine started", "asset", cfg.Market.Asset, "interval", cfg.Market.Interval, "bankroll_usd", cfg.Risk.BankrollUSD)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop api server", "error", err)
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error("failed to stop metrics server", "error", err)
		}
	}
	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
