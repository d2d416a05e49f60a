// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/attitude_replay/internal/app"
	"github.com/relabs-tech/attitude_replay/internal/config"
)

func main() {
	rt, err := app.Start(config.DefaultPath, "display")
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer rt.Close()

	ctx, stop := app.SignalContext()
	defer stop()

	if err := app.RunDisplay(ctx, rt.Config, rt.Logger.Logger); err != nil {
		rt.Logger.Error("display stopped", "err", err)
		rt.Close()
		log.Fatalf("fatal: %v", err)
	}
}
