// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/attitude_replay/internal/app"
	"github.com/relabs-tech/attitude_replay/internal/config"
)

func main() {
	repeat := flag.Bool("repeat", false, "restart from the first sample after the last one")
	flag.Parse()

	// With no trajectory file the synthetic mock pose is published.
	path := flag.Arg(0)

	rt, err := app.Start(config.DefaultPath, "replay_producer")
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer rt.Close()

	ctx, stop := app.SignalContext()
	defer stop()

	if err := app.RunReplayProducer(ctx, rt.Config, path, *repeat, rt.Logger.Logger, rt.Metrics); err != nil {
		rt.Logger.Error("producer stopped", "err", err)
		rt.Close()
		log.Fatalf("fatal: %v", err)
	}
}
