// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"

	"github.com/relabs-tech/attitude_replay/internal/app"
	"github.com/relabs-tech/attitude_replay/internal/config"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
	"github.com/relabs-tech/attitude_replay/internal/viewer"
	"github.com/relabs-tech/attitude_replay/internal/viewer/window"
)

func main() {
	snapshots := flag.String("snapshots", "snapshots", "directory for snapshot PNGs (empty keeps them in memory)")
	flag.Parse()

	rt, err := app.Start(config.DefaultPath, "viewer")
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer rt.Close()
	logger := rt.Logger.Logger

	engine, err := app.NewEngine(rt.Config, logger, rt.Metrics)
	if err != nil {
		rt.Close()
		log.Fatalf("fatal: %v", err)
	}

	var rec *trajectory.Record
	if path := flag.Arg(0); path != "" {
		rec, err = engine.Loader.Load(context.Background(), path)
	} else {
		rec, err = engine.Loader.LoadDemo(context.Background())
	}

	v := viewer.New(engine, rt.Config.PlaybackTickInterval, *snapshots, logger)
	if err != nil {
		logger.Warn("starting without a trajectory", "err", err)
	} else {
		rt.Metrics.LoadFinished(nil)
		v.Install(rec)
	}

	if err := window.Run(v, "Attitude Replay"); err != nil {
		logger.Error("viewer stopped", "err", err)
		rt.Close()
		log.Fatalf("fatal: %v", err)
	}
}
