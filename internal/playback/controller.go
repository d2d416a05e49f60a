// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package playback

import (
	"fmt"
	"log/slog"

	"github.com/relabs-tech/attitude_replay/internal/telemetry"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

// Controller is the Stopped/Playing state machine. It is not safe for
// concurrent use; run it from one goroutine (see Loop).
type Controller struct {
	rec        *trajectory.Record
	generation uint64

	index   int
	playing bool
	speed   int
	mode    Mode

	pipeline *Pipeline
	capturer Capturer

	snapshots []Snapshot
	captured  map[int]int

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewController creates a controller with speed 1 in ModeFull. capturer and
// metrics may be nil.
func NewController(p *Pipeline, capturer Capturer, logger *slog.Logger, metrics *telemetry.Metrics) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		p = NewPipeline(logger, metrics)
	}
	return &Controller{
		speed:    1,
		pipeline: p,
		capturer: capturer,
		captured: map[int]int{},
		logger:   logger,
		metrics:  metrics,
	}
}

// Install replaces the record, resets the index to 0, stops playback and
// clears snapshots. Speed and mode are kept.
func (c *Controller) Install(rec *trajectory.Record) {
	c.rec = rec
	c.generation++
	c.index = 0
	c.playing = false
	c.snapshots = nil
	c.captured = map[int]int{}

	c.logger.Info("trajectory installed",
		"source", rec.Source, "samples", rec.Len(), "generation", c.generation)
	c.render()
}

// Record returns the installed record or nil.
func (c *Controller) Record() *trajectory.Record {
	return c.rec
}

// Play starts playback. At the boundary in the direction of travel the
// index first rewinds to the opposite end.
func (c *Controller) Play() error {
	if c.rec == nil {
		return ErrNoTrajectory
	}
	last := c.rec.LastIndex()
	switch {
	case c.speed > 0 && c.index == last && last > 0:
		c.index = 0
		c.render()
	case c.speed < 0 && c.index == 0 && last > 0:
		c.index = last
		c.render()
	}
	c.playing = true
	return nil
}

// Pause stops playback.
func (c *Controller) Pause() {
	c.playing = false
}

// Toggle switches between Play and Pause.
func (c *Controller) Toggle() error {
	if c.playing {
		c.Pause()
		return nil
	}
	return c.Play()
}

// Scrub stops playback and moves to index, clamped into the record.
func (c *Controller) Scrub(index int) error {
	if c.rec == nil {
		return ErrNoTrajectory
	}
	c.playing = false
	c.index = c.rec.ClampIndex(index)
	c.render()
	return nil
}

// SetSpeed sets the signed number of samples advanced per tick.
func (c *Controller) SetSpeed(speed int) error {
	if speed == 0 {
		return ErrInvalidSpeed
	}
	c.speed = speed
	return nil
}

// SetMode switches between full and simplified views. Switching re-runs
// the pipeline so stages that were skipped catch up.
func (c *Controller) SetMode(m Mode) {
	if m == c.mode {
		return
	}
	c.mode = m
	if c.rec != nil {
		c.render()
	}
}

// Tick advances a playing controller by speed samples. Reaching either end
// of the record stops playback. It reports whether the index changed.
func (c *Controller) Tick() bool {
	if !c.playing || c.rec == nil {
		return false
	}

	next := c.rec.ClampIndex(c.index + c.speed)
	if (c.speed > 0 && next == c.rec.LastIndex()) || (c.speed < 0 && next == 0) {
		c.playing = false
	}
	if next == c.index {
		return false
	}
	c.index = next
	c.render()
	return true
}

// Playing reports whether ticks advance the index.
func (c *Controller) Playing() bool {
	return c.playing
}

// Capture stores a snapshot of the current index. Capturing an index that
// already has a snapshot returns the existing one with created=false.
func (c *Controller) Capture() (snap Snapshot, created bool, err error) {
	if c.rec == nil {
		return Snapshot{}, false, ErrNoTrajectory
	}
	if i, ok := c.captured[c.index]; ok {
		return c.snapshots[i], false, nil
	}

	snap = Snapshot{
		Index:       c.index,
		Time:        c.rec.T[c.index],
		Position:    c.rec.Position[c.index],
		Orientation: c.rec.Orientation[c.index],
	}
	if c.capturer != nil {
		img, err := c.capturer.Capture(c.rec, c.index)
		if err != nil {
			return Snapshot{}, false, fmt.Errorf("capture index %d: %w", c.index, err)
		}
		snap.Image = img
	}

	c.captured[c.index] = len(c.snapshots)
	c.snapshots = append(c.snapshots, snap)
	c.metrics.SnapshotCaptured()
	c.logger.Info("snapshot captured", "index", c.index, "t", snap.Time, "count", len(c.snapshots))
	return snap, true, nil
}

// Snapshots returns the captured stills in capture order.
func (c *Controller) Snapshots() []Snapshot {
	return append([]Snapshot(nil), c.snapshots...)
}

// Frame returns what the stages last saw.
func (c *Controller) Frame() Frame {
	return Frame{Record: c.rec, Index: c.index, Generation: c.generation, Mode: c.mode}
}

// State returns a copy of the playback state.
func (c *Controller) State() State {
	s := State{
		Index:      c.index,
		Playing:    c.playing,
		Speed:      c.speed,
		Mode:       c.mode,
		Generation: c.generation,
		Snapshots:  len(c.snapshots),
	}
	if c.rec != nil {
		s.Loaded = true
		s.Source = c.rec.Source
		s.Samples = c.rec.Len()
	}
	return s
}

func (c *Controller) render() {
	c.pipeline.Run(c.Frame())
}
