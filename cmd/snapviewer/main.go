// Package main implements the entry point for the snapshot viewer: a bridge
// that subscribes to camera snapshot messages on an MQTT broker, keeps the
// latest JPEG per camera/object key in memory, and serves them over HTTP with
// live update streams.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/classify"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/config"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/gateway/web"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/health"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/imagestore"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/input/mqtt"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/metric"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/notify"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/processor/ingest"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/topic"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "snapviewer"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is convenience for local runs; absence is not an error.
	_ = godotenv.Load()

	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid",
			"broker", cfg.MQTT.BrokerAddr(),
			"topic", cfg.MQTT.Topic,
			"gallery_mode", cfg.GalleryMode())
		return nil
	}

	app, err := buildApplication(cfg, logger)
	if err != nil {
		return err
	}

	return runWithSignalHandling(context.Background(), app, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting snapshot viewer",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// application bundles the wired components in start order.
type application struct {
	input  *mqtt.Input
	server *web.Server

	notifier *notify.Notifier
	monitor  *health.Monitor
	pipeline *ingest.Pipeline
	logger   *slog.Logger
}

// buildApplication wires store, notifier, pipeline, MQTT input and HTTP
// server from configuration.
func buildApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	registry := metric.NewRegistry()
	monitor := health.NewMonitor()
	core := registry.Core()

	store := imagestore.New(
		imagestore.WithEntriesCallback(func(entries int) {
			core.StoreEntries.Set(float64(entries))
		}),
	)

	notifier := notify.New(
		notify.WithListenerCallback(func(listeners int) {
			core.ListenersActive.Set(float64(listeners))
		}),
		notify.WithBroadcastCallback(func(_, dropped int) {
			core.BroadcastsTotal.Inc()
			core.SignalsDropped.Add(float64(dropped))
		}),
	)

	gallery := cfg.GalleryMode()
	router := topic.NewRouter(cfg.MQTT.Topic, gallery)

	// URL payloads are only resolved in gallery mode; the single-key viewer
	// treats everything that is not an image as noise.
	var fetcher *classify.Fetcher
	if gallery {
		fetcher = classify.NewFetcher(cfg.Viewer.FetchTimeout, logger.With("component", "fetcher"))
	}

	pipeline := ingest.New(ingest.Deps{
		Router:   router,
		Store:    store,
		Notifier: notifier,
		Fetcher:  fetcher,
		Metrics:  registry,
		Logger:   logger.With("component", "ingest"),
	})

	input := mqtt.NewInput(mqtt.InputDeps{
		Config:  cfg.MQTT,
		Handler: pipeline.HandleMessage,
		Metrics: registry,
		Logger:  logger.With("component", "mqtt-input"),
	})
	if err := input.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize mqtt input: %w", err)
	}

	server := web.NewServer(web.Deps{
		Config:   cfg,
		Store:    store,
		Notifier: notifier,
		Metrics:  registry,
		Health:   monitor,
		Logger:   logger.With("component", "web"),
	})

	slog.Info("Application wired",
		"broker", cfg.MQTT.BrokerAddr(),
		"topic", cfg.MQTT.Topic,
		"gallery_mode", gallery,
		"http_addr", cfg.HTTP.Addr())

	return &application{
		input:    input,
		server:   server,
		notifier: notifier,
		monitor:  monitor,
		pipeline: pipeline,
		logger:   logger,
	}, nil
}

// runWithSignalHandling starts components and blocks until a shutdown signal
func runWithSignalHandling(ctx context.Context, app *application, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := app.input.Start(signalCtx); err != nil {
		return fmt.Errorf("start mqtt input: %w", err)
	}
	app.reportHealth()

	if err := app.server.Start(signalCtx); err != nil {
		_ = app.input.Stop(5 * time.Second)
		return fmt.Errorf("start http server: %w", err)
	}

	// Keep component health current while running.
	go app.pollHealth(signalCtx)

	slog.Info("Snapshot viewer started")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	return app.shutdown(shutdownTimeout)
}

// pollHealth refreshes the health monitor from component self-reports.
func (app *application) pollHealth(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.reportHealth()
		}
	}
}

func (app *application) reportHealth() {
	in := app.input.Health()
	app.monitor.Update(in.Component, in)

	pi := app.pipeline.Health()
	app.monitor.Update(pi.Component, pi)
}

// shutdown stops components in reverse start order within timeout.
func (app *application) shutdown(timeout time.Duration) error {
	var firstErr error

	if err := app.server.Stop(timeout); err != nil {
		slog.Error("Error stopping http server", "error", err)
		firstErr = err
	}

	// Closing the notifier detaches any stream clients that survived the
	// server shutdown.
	app.notifier.Close()

	if err := app.input.Stop(timeout); err != nil {
		slog.Error("Error stopping mqtt input", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", firstErr)
	}

	slog.Info("Snapshot viewer shutdown complete")
	return nil
}
