// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/attitude_replay/internal/config"
	"github.com/relabs-tech/attitude_replay/internal/logging"
	"github.com/relabs-tech/attitude_replay/internal/telemetry"
)

const metricsInterval = 10 * time.Second

// Runtime is what every command sets up after the configuration is loaded.
type Runtime struct {
	Config  *config.Config
	Logger  *logging.Logger
	Metrics *telemetry.Metrics

	provider *telemetry.Provider
}

// Start loads configPath into the global configuration and builds the
// logger and metrics for the command called name.
func Start(configPath, name string) (*Runtime, error) {
	if err := config.InitGlobal(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.Get()

	logger := logging.New(cfg.LogLevel, cfg.LogDir, name)
	provider, err := telemetry.Setup(cfg.MetricsStdout, os.Stdout, metricsInterval)
	if err != nil {
		logger.Close()
		return nil, err
	}
	metrics, err := telemetry.Global()
	if err != nil {
		logger.Close()
		return nil, err
	}

	logger.Info("starting "+name, "config", configPath, "log_file", logger.LogFile)
	return &Runtime{Config: cfg, Logger: logger, Metrics: metrics, provider: provider}, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Close flushes metrics and closes the log file.
func (r *Runtime) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(r.provider.Shutdown(ctx), r.Logger.Close())
}
