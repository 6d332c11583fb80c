// Command rovd is the ROV control service: it keeps the MAVLink session with
// the autopilot, aggregates telemetry from the vehicle and companion computer
// and serves the operator HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/rov-control/rovd/internal/api"
	"github.com/rov-control/rovd/internal/audit"
	"github.com/rov-control/rovd/internal/auth"
	"github.com/rov-control/rovd/internal/command"
	"github.com/rov-control/rovd/internal/companion"
	"github.com/rov-control/rovd/internal/config"
	"github.com/rov-control/rovd/internal/telemetry"
	"github.com/rov-control/rovd/internal/transport/mavudp"
	"github.com/rov-control/rovd/internal/vehicle"
	"github.com/rov-control/rovd/internal/video"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to YAML config (default rovd.yaml if present)")
	addr := pflag.String("addr", "", "HTTP listen address, overrides config")
	logLevel := pflag.String("log-level", "", "debug, info, warn or error, overrides config")
	logJSON := pflag.Bool("log-json", false, "emit JSON logs")
	pflag.Parse()

	if err := run(*configPath, *addr, *logLevel, *logJSON); err != nil {
		fmt.Fprintf(os.Stderr, "rovd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, logLevel string, logJSON bool) error {
	// Step 1: configuration and logging
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := newLogger(level, logJSON)
	slog.SetDefault(logger)
	logger.Info("starting rovd", "version", api.Version, "link_port", cfg.LinkPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Step 2: companion client and video streams
	client := companion.NewClientFromConfig(cfg, logger)
	logger.Info("companion client ready", "url", client.BaseURL())
	registry := video.NewRegistryFromConfig(cfg, logger)
	if err := registry.Discover(ctx, client); err != nil {
		logger.Warn("video discovery incomplete", "error", err)
	}

	// Step 3: vehicle link
	dialer := mavudp.NewDialer(mavudp.Config{
		Address:     net.JoinHostPort(cfg.LinkHost, strconv.Itoa(cfg.LinkPort)),
		SystemID:    uint8(cfg.SystemID),
		ComponentID: uint8(cfg.ComponentID),
		Logger:      logger,
	})
	linkOpts := vehicle.OptionsFromConfig(cfg)
	linkOpts.Logger = logger
	link := vehicle.NewLink(dialer, linkOpts)

	// Step 4: telemetry aggregator
	aggOpts := telemetry.OptionsFromConfig(cfg)
	aggOpts.Streams = registry
	aggOpts.Logger = logger
	aggregator := telemetry.New(aggOpts)
	if err := aggregator.Start(ctx, link, client); err != nil {
		return fmt.Errorf("start telemetry: %w", err)
	}
	defer aggregator.Stop()

	// Step 5: audit trail
	auditLogger, err := audit.NewLogger(cfg.AuditDir, audit.Rotation{
		MaxSizeMB:  cfg.AuditMaxSizeMB,
		MaxBackups: cfg.AuditMaxBackups,
		MaxAgeDays: cfg.AuditMaxAgeDays,
	}, logger)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer func() {
		if err := auditLogger.Close(); err != nil {
			logger.Error("close audit log", "error", err)
		}
	}()

	// Step 6: auth
	authMiddleware, err := newAuthMiddleware(cfg)
	if err != nil {
		return err
	}
	if !authMiddleware.Enabled() {
		logger.Warn("auth disabled, every request runs as an anonymous pilot")
	}

	// Step 7: command orchestrator
	orchOpts := command.OptionsFromConfig(cfg)
	orchOpts.Logger = logger
	orchestrator := command.NewOrchestrator(link, client, orchOpts)
	orchestrator.SetAuditLogger(auditLogger)

	go func() {
		connectCtx := audit.WithActor(ctx, "system")
		if err := orchestrator.Connect(connectCtx); err != nil {
			logger.Warn("initial vehicle connect failed, use /api/v1/vehicle/connect to retry", "error", err)
		}
	}()
	defer func() {
		if link.Connected() {
			_ = link.Disconnect()
		}
	}()

	// Step 8: HTTP API
	server := api.NewServer(api.Deps{
		Orchestrator: orchestrator,
		Telemetry:    aggregator,
		Companion:    client,
		Streams:      registry,
		Auth:         authMiddleware,
		Logger:       logger,
	}, api.TimeoutsFromConfig(cfg))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.ListenAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("stop http server", "error", err)
	}
	logger.Info("rovd stopped")
	return nil
}

func newLogger(level slog.Level, asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newAuthMiddleware(cfg *config.Config) (*auth.Middleware, error) {
	if cfg.AuthAlgorithm == "" {
		return auth.NewMiddleware(nil), nil
	}
	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Algorithm:    cfg.AuthAlgorithm,
		SecretKey:    cfg.AuthSecret,
		PublicKeyPEM: cfg.AuthPublicKey,
	})
	if err != nil {
		return nil, fmt.Errorf("configure auth: %w", err)
	}
	return auth.NewMiddleware(verifier), nil
}

