// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"
	"os"

	"github.com/relabs-tech/attitude_replay/internal/app"
	"github.com/relabs-tech/attitude_replay/internal/config"
)

func main() {
	every := flag.Int("every", 50, "print every n-th sample (ends only when <= 0)")
	flag.Parse()

	rt, err := app.Start(config.DefaultPath, "console")
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer rt.Close()

	ctx, stop := app.SignalContext()
	defer stop()

	// With no file argument the demo trajectory is replayed.
	if err := app.RunConsole(ctx, rt.Config, os.Stdout, flag.Arg(0), *every, rt.Logger.Logger, rt.Metrics); err != nil {
		rt.Logger.Error("console stopped", "err", err)
		rt.Close()
		log.Fatalf("fatal: %v", err)
	}
}
