package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/jcaesar/prometheus-nvml-exporter/internal/collector"
	"github.com/jcaesar/prometheus-nvml-exporter/internal/config"
	"github.com/jcaesar/prometheus-nvml-exporter/internal/exporter"
	"github.com/jcaesar/prometheus-nvml-exporter/internal/gpu"
	"github.com/jcaesar/prometheus-nvml-exporter/internal/logger"
	"github.com/jcaesar/prometheus-nvml-exporter/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Msg("Config loaded")

	registry := metrics.NewRegistry()
	querier := gpu.NewQuerier()
	server := exporter.New(cfg.Listen, registry.Gatherer())
	loop := collector.NewLoop(
		querier,
		collector.NewSampler(registry),
		server,
		cfg.RefreshInitial,
		cfg.RefreshMax,
		clock.New(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- loop.Run(ctx)
	}()

	var runErr error
	select {
	case runErr = <-loopErr:
	case runErr = <-serverErr:
		cancel()
		<-loopErr
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shut down metrics server")
	}

	if err := querier.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("failed to shut down device query subsystem")
	}

	if runErr != nil {
		logger.Fatal().Err(runErr).Msg("exporter terminated")
	}
	logger.Info().Msg("Exiting...")
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
