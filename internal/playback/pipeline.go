// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package playback

import (
	"errors"
	"log/slog"
	"time"

	"github.com/relabs-tech/attitude_replay/internal/telemetry"
)

// Stage is one view or sink fed by the pipeline.
type Stage interface {
	Update(f Frame) error
}

// StageFunc adapts a function to Stage.
type StageFunc func(f Frame) error

func (fn StageFunc) Update(f Frame) error { return fn(f) }

type stageEntry struct {
	name     string
	stage    Stage
	fullOnly bool
}

// Pipeline runs its stages synchronously in the order they were added.
type Pipeline struct {
	stages  []stageEntry
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewPipeline returns an empty pipeline. metrics may be nil.
func NewPipeline(logger *slog.Logger, metrics *telemetry.Metrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger, metrics: metrics}
}

// Add appends a stage. Full-only stages are skipped in ModeSimplified.
func (p *Pipeline) Add(name string, s Stage, fullOnly bool) *Pipeline {
	p.stages = append(p.stages, stageEntry{name: name, stage: s, fullOnly: fullOnly})
	return p
}

// Names lists the stages in run order.
func (p *Pipeline) Names() []string {
	out := make([]string, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.name
	}
	return out
}

// Run feeds f to every active stage and returns how many stages failed.
// Errors never stop later stages.
func (p *Pipeline) Run(f Frame) int {
	failed := 0
	for _, s := range p.stages {
		if s.fullOnly && f.Mode == ModeSimplified {
			continue
		}

		start := time.Now()
		err := s.stage.Update(f)
		switch {
		case err == nil:
			p.metrics.FrameRendered(s.name, time.Since(start))
		case errors.Is(err, ErrTransientFrame):
			failed++
			p.metrics.FrameSkipped(s.name)
			p.logger.Debug("frame skipped", "stage", s.name, "index", f.Index, "error", err)
		default:
			failed++
			p.metrics.FrameSkipped(s.name)
			p.logger.Error("stage update failed", "stage", s.name, "index", f.Index, "error", err)
		}
	}
	return failed
}
