// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"
	"os"

	"github.com/relabs-tech/attitude_replay/internal/app"
	"github.com/relabs-tech/attitude_replay/internal/config"
)

func main() {
	rt, err := app.Start(config.DefaultPath, "console_mqtt")
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer rt.Close()

	ctx, stop := app.SignalContext()
	defer stop()

	if err := app.RunConsoleMQTT(ctx, rt.Config, os.Stdout, rt.Logger.Logger); err != nil {
		rt.Logger.Error("console stopped", "err", err)
		rt.Close()
		log.Fatalf("fatal: %v", err)
	}
}
