// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package viewer is the desktop front end's state: panel layout, key
// actions and the playback clock. It owns the engine's controller and must
// be driven from a single goroutine.
package viewer

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/relabs-tech/attitude_replay/internal/app"
	"github.com/relabs-tech/attitude_replay/internal/playback"
	"github.com/relabs-tech/attitude_replay/internal/plot"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

// Action is a user command bound to a key.
type Action int

const (
	ActionToggle Action = iota
	ActionStepBack
	ActionStepForward
	ActionJumpBack
	ActionJumpForward
	ActionFaster
	ActionSlower
	ActionMode
	ActionSnapshot
)

// jump is the scrub distance of ActionJumpBack/Forward.
const jump = 10

// PanelKind says which view fills a panel.
type PanelKind int

const (
	PanelScene PanelKind = iota
	PanelNavball
	PanelPlot
)

// Panel is one view's place in the window.
type Panel struct {
	Kind PanelKind
	Plot plot.ViewID
	Rect image.Rectangle
	// Full panels are hidden in simplified mode.
	Full bool
}

// Name identifies the panel in logs and image caches.
func (p Panel) Name() string {
	switch p.Kind {
	case PanelScene:
		return "scene"
	case PanelNavball:
		return "navball"
	default:
		return "plot/" + string(p.Plot)
	}
}

// Viewer maps input onto the engine's controller.
type Viewer struct {
	engine      *app.Engine
	ctrl        *playback.Controller
	interval    time.Duration
	elapsed     time.Duration
	snapshotDir string

	panels []Panel
	size   image.Point
	status string
	logger *slog.Logger
}

// New lays out the engine's views: scene top left, navball to its right,
// charts two per row below. Snapshots are written to snapshotDir when it is
// not empty.
func New(engine *app.Engine, interval time.Duration, snapshotDir string, logger *slog.Logger) *Viewer {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Viewer{
		engine:      engine,
		ctrl:        engine.Controller,
		interval:    interval,
		snapshotDir: snapshotDir,
		logger:      logger.With("component", "viewer"),
	}
	engine.Plots.OnSeek(func(index int) {
		if err := v.ctrl.Scrub(index); err != nil {
			v.fail(err)
		}
	})
	v.layout()
	v.status = "no trajectory"
	return v
}

func (v *Viewer) layout() {
	scene := v.engine.Scene.Frame().Bounds()
	ball := v.engine.Navball.Frame().Bounds()

	v.panels = []Panel{
		{Kind: PanelScene, Rect: scene, Full: true},
		{Kind: PanelNavball, Rect: ball.Add(image.Pt(scene.Dx(), 0))},
	}
	w := scene.Dx() + ball.Dx()
	top := max(scene.Dy(), ball.Dy())
	bottom := top

	for i, id := range v.engine.Plots.Views() {
		spec, _ := v.engine.Plots.Spec(id)
		x := (i % 2) * spec.Width
		y := top + (i/2)*spec.Height
		r := image.Rect(x, y, x+spec.Width, y+spec.Height)
		v.panels = append(v.panels, Panel{Kind: PanelPlot, Plot: id, Rect: r, Full: spec.Secondary})
		w = max(w, r.Max.X)
		bottom = max(bottom, r.Max.Y)
	}
	v.size = image.Pt(w, bottom)
}

// Size is the window size in pixels.
func (v *Viewer) Size() (int, int) {
	return v.size.X, v.size.Y
}

// Panels returns the layout.
func (v *Viewer) Panels() []Panel {
	return v.panels
}

// Visible reports whether p is drawn in the current mode.
func (v *Viewer) Visible(p Panel) bool {
	return !p.Full || v.ctrl.State().Mode == playback.ModeFull
}

// Image returns the latest frame of p.
func (v *Viewer) Image(p Panel) *image.RGBA {
	switch p.Kind {
	case PanelScene:
		return v.engine.Scene.Frame()
	case PanelNavball:
		return v.engine.Navball.Frame()
	default:
		return v.engine.Plots.Frame(p.Plot)
	}
}

// State is the controller state.
func (v *Viewer) State() playback.State {
	return v.ctrl.State()
}

// Status is the one-line text shown over the window.
func (v *Viewer) Status() string {
	return v.status
}

// Install shows rec from its first sample.
func (v *Viewer) Install(rec *trajectory.Record) {
	v.ctrl.Install(rec)
	v.elapsed = 0
	v.refresh()
}

// Handle applies one action. Errors are also shown in the status line.
func (v *Viewer) Handle(a Action) error {
	err := v.apply(a)
	if err != nil {
		v.fail(err)
		return err
	}
	v.refresh()
	return nil
}

func (v *Viewer) apply(a Action) error {
	st := v.ctrl.State()
	switch a {
	case ActionToggle:
		v.elapsed = 0
		return v.ctrl.Toggle()
	case ActionStepBack:
		return v.ctrl.Scrub(st.Index - 1)
	case ActionStepForward:
		return v.ctrl.Scrub(st.Index + 1)
	case ActionJumpBack:
		return v.ctrl.Scrub(st.Index - jump)
	case ActionJumpForward:
		return v.ctrl.Scrub(st.Index + jump)
	case ActionFaster:
		return v.ctrl.SetSpeed(nextSpeed(st.Speed, 1))
	case ActionSlower:
		return v.ctrl.SetSpeed(nextSpeed(st.Speed, -1))
	case ActionMode:
		if st.Mode == playback.ModeFull {
			v.ctrl.SetMode(playback.ModeSimplified)
		} else {
			v.ctrl.SetMode(playback.ModeFull)
		}
		return nil
	case ActionSnapshot:
		return v.snapshot()
	default:
		return fmt.Errorf("unknown action %d", a)
	}
}

// nextSpeed steps speed by delta, skipping zero.
func nextSpeed(speed, delta int) int {
	next := speed + delta
	if next == 0 {
		next += delta
	}
	return next
}

func (v *Viewer) snapshot() error {
	snap, created, err := v.ctrl.Capture()
	if err != nil {
		return err
	}
	if !created || v.snapshotDir == "" || snap.Image == nil {
		return nil
	}
	if err := os.MkdirAll(v.snapshotDir, 0o755); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	name := filepath.Join(v.snapshotDir, fmt.Sprintf("snapshot-%05d.png", snap.Index))
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("snapshot file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, snap.Image); err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	v.logger.Info("snapshot written", "file", name, "index", snap.Index)
	return nil
}

// Step advances the playback clock by dt and ticks the controller once per
// elapsed interval. It reports whether the index moved.
func (v *Viewer) Step(dt time.Duration) bool {
	if !v.ctrl.Playing() {
		v.elapsed = 0
		return false
	}
	v.elapsed += dt
	moved := false
	for v.elapsed >= v.interval && v.ctrl.Playing() {
		v.elapsed -= v.interval
		if v.ctrl.Tick() {
			moved = true
		}
	}
	if moved || !v.ctrl.Playing() {
		v.refresh()
	}
	return moved
}

// Click seeks when (x, y) falls on a visible chart.
func (v *Viewer) Click(x, y int) error {
	pt := image.Pt(x, y)
	for _, p := range v.panels {
		if p.Kind != PanelPlot || !pt.In(p.Rect) || !v.Visible(p) {
			continue
		}
		if _, err := v.engine.Plots.Click(p.Plot, x-p.Rect.Min.X); err != nil {
			v.fail(err)
			return err
		}
		v.refresh()
		return nil
	}
	return nil
}

func (v *Viewer) refresh() {
	st := v.ctrl.State()
	if !st.Loaded {
		v.status = "no trajectory"
		return
	}
	state := "paused"
	if st.Playing {
		state = "playing"
	}
	rec := v.ctrl.Record()
	v.status = fmt.Sprintf("%s  %d/%d  t=%.2fs  x%d  %s  snaps %d",
		state, st.Index, rec.LastIndex(), rec.T[st.Index], st.Speed, st.Mode, st.Snapshots)
}

func (v *Viewer) fail(err error) {
	v.logger.Warn("viewer action failed", "err", err)
	v.status = "error: " + err.Error()
}
