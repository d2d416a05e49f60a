// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/relabs-tech/attitude_replay/internal/playback"
)

// WriteViews saves the engine's current frames as PNG files named
// <prefix>-<view>.png under dir and returns the paths written. Views that
// the current mode skips are left out.
func (e *Engine) WriteViews(dir, prefix string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output dir: %w", err)
	}

	frames := map[string]*image.RGBA{"navball": e.Navball.Frame()}
	names := []string{"navball"}
	full := e.Controller.State().Mode == playback.ModeFull
	if full {
		frames["scene"] = e.Scene.Frame()
		names = append([]string{"scene"}, names...)
	}
	for _, id := range e.Plots.Views() {
		spec, _ := e.Plots.Spec(id)
		if spec.Secondary && !full {
			continue
		}
		name := "plot-" + string(id)
		frames[name] = e.Plots.Frame(id)
		names = append(names, name)
	}

	var written []string
	for _, name := range names {
		path := filepath.Join(dir, prefix+"-"+name+".png")
		if err := writePNG(path, frames[name]); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	e.logger.Info("views written", "dir", dir, "files", len(written))
	return written, nil
}

// WriteSnapshot renders the off-screen still of sample index to path.
func (e *Engine) WriteSnapshot(index int, path string) error {
	rec := e.Controller.Record()
	if rec == nil {
		return fmt.Errorf("snapshot: %w", playback.ErrNoTrajectory)
	}
	img, err := e.Scene.Capture(rec, rec.ClampIndex(index))
	if err != nil {
		return err
	}
	return writePNG(path, img)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
