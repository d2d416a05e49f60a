// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command trajtool inspects, converts and renders trajectory files without
// a viewer.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/attitude_replay/internal/app"
	"github.com/relabs-tech/attitude_replay/internal/config"
	"github.com/relabs-tech/attitude_replay/internal/logging"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

type options struct {
	configPath string
	cfg        *config.Config
	logger     *logging.Logger
}

func main() {
	opts := &options{}
	root := &cobra.Command{
		Use:          "trajtool",
		Short:        "Inspect, convert and render trajectory files",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = logging.New(cfg.LogLevel, cfg.LogDir, "trajtool")
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logger != nil {
				opts.logger.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "KEY=VALUE configuration file (defaults only when empty)")

	root.AddCommand(
		inspectCmd(opts),
		keyframesCmd(opts),
		renderCmd(opts),
		convertCmd(opts),
		demoCmd(opts),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func (o *options) loader() *trajectory.Loader {
	var demo []string
	if len(o.cfg.DemoPaths) > 0 {
		demo = o.cfg.DemoPaths
	}
	return trajectory.NewLoader(o.logger.Logger, demo)
}

func (o *options) engine() (*app.Engine, error) {
	return app.NewEngine(o.cfg, o.logger.Logger, nil)
}
