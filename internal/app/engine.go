// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log/slog"

	"github.com/relabs-tech/attitude_replay/internal/config"
	"github.com/relabs-tech/attitude_replay/internal/navball"
	"github.com/relabs-tech/attitude_replay/internal/playback"
	"github.com/relabs-tech/attitude_replay/internal/plot"
	"github.com/relabs-tech/attitude_replay/internal/scene"
	"github.com/relabs-tech/attitude_replay/internal/telemetry"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

// Sink is an extra pipeline stage run after the three views.
type Sink struct {
	Name  string
	Stage playback.Stage
}

// Engine is the replay pipeline shared by every front end: a loader, the
// three views and the controller that drives them.
type Engine struct {
	Loader     *trajectory.Loader
	Plots      *plot.Renderer
	Scene      *scene.Renderer
	Navball    *navball.Renderer
	Pipeline   *playback.Pipeline
	Controller *playback.Controller

	logger *slog.Logger
}

// SceneConfig maps configuration onto the scene renderer's settings.
func SceneConfig(cfg *config.Config) scene.Config {
	sc := scene.DefaultConfig()
	sc.Width, sc.Height = cfg.SceneWidth, cfg.SceneHeight
	sc.SnapshotWidth, sc.SnapshotHeight = cfg.SnapshotWidth, cfg.SnapshotHeight
	sc.FollowFraction = cfg.CameraFollowFraction
	sc.Offset = cfg.CameraOffset
	return sc
}

// NavballConfig maps configuration onto the instrument's settings.
func NavballConfig(cfg *config.Config) navball.Config {
	return navball.Config{Size: cfg.NavballSize, Forward: cfg.BodyForwardAxis}
}

// NewEngine builds the views from cfg and chains them in the order
// time-series, scene, instrument, then sinks.
func NewEngine(cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics, sinks ...Sink) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sc, err := scene.New(SceneConfig(cfg), logger.With("component", "scene"))
	if err != nil {
		return nil, fmt.Errorf("creating scene renderer: %w", err)
	}
	nb, err := navball.New(NavballConfig(cfg), logger.With("component", "navball"))
	if err != nil {
		return nil, fmt.Errorf("creating navball: %w", err)
	}
	plots := plot.New()
	for _, v := range plot.DefaultViews(cfg.PlotWidth, cfg.PlotHeight) {
		if err := plots.AddView(v.ID, v.Spec, nil); err != nil {
			return nil, fmt.Errorf("creating plot %s: %w", v.ID, err)
		}
	}

	var demoPaths []string
	if len(cfg.DemoPaths) > 0 {
		demoPaths = cfg.DemoPaths
	}

	pipe := playback.NewPipeline(logger, metrics).
		Add("plots", plots, false).
		Add("scene", sc, true).
		Add("navball", nb, false)
	for _, s := range sinks {
		pipe.Add(s.Name, s.Stage, false)
	}

	e := &Engine{
		Loader:   trajectory.NewLoader(logger.With("component", "loader"), demoPaths),
		Plots:    plots,
		Scene:    sc,
		Navball:  nb,
		Pipeline: pipe,
		logger:   logger,
	}
	e.Controller = playback.NewController(pipe, sc, logger, metrics)
	if err := e.Controller.SetSpeed(cfg.PlaybackSpeed); err != nil {
		return nil, err
	}
	logger.Debug("engine ready", "stages", pipe.Names())
	return e, nil
}
