package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mjguynn/a15kb/internal/config"
	"github.com/mjguynn/a15kb/internal/ec"
	"github.com/mjguynn/a15kb/internal/errors"
	"github.com/mjguynn/a15kb/internal/logger"
	"github.com/mjguynn/a15kb/internal/pid"
	"github.com/mjguynn/a15kb/internal/server"
	"github.com/mjguynn/a15kb/internal/telemetry"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	if !cfg.Debug && !cfg.Verbose {
		// Already validated by config.Load.
		if level, err := logger.ParseLogLevel(cfg.LogLevel); err == nil {
			logger.SetLogLevel(level)
		}
	}
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		fatal(err, "failed to write PID file")
	}
	defer pid.Remove()

	ctrl, err := openController()
	if err != nil {
		fatal(err, "failed to open embedded controller")
	}
	defer ctrl.Close()

	collector, err := newCollector()
	if err != nil {
		fatal(err, "failed to initialize telemetry")
	}
	defer collector.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	srv := server.New(server.Config{SocketName: cfg.SocketName}, ctrl, collector)
	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("error in socket server")
	}

	logger.Info().Msg("Exiting...")
}

func openController() (*ec.Controller, error) {
	if cfg.Mock {
		logger.Warn().Msg("Serving a simulated controller; hardware is not being touched")
		return ec.OpenMock(), nil
	}

	return ec.Open()
}

func newCollector() (telemetry.Collector, error) {
	tcfg := telemetry.DefaultConfig()
	tcfg.Enabled = cfg.Telemetry
	if cfg.TelemetryDB != "" {
		tcfg.DBPath = cfg.TelemetryDB
	}

	return telemetry.NewCollector(tcfg, logger.New())
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func fatal(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.FatalWithCode(appErr).Msg(msg)
		return
	}
	logger.Fatal().Err(err).Msg(msg)
}
