// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package playback owns the current sample index of a loaded trajectory and
// fans every index change out to the views in a fixed order.
package playback

import (
	"errors"
	"fmt"
	"image"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

var (
	// ErrNoTrajectory is returned by operations that need a loaded record.
	ErrNoTrajectory = errors.New("no trajectory loaded")

	// ErrInvalidSpeed is returned for a zero speed.
	ErrInvalidSpeed = errors.New("speed must be a non-zero number of samples")

	// ErrTransientFrame marks a per-frame failure. The stage keeps its
	// previous output and the frame is skipped.
	ErrTransientFrame = errors.New("transient frame error")

	// ErrLoopStopped is returned by Loop commands after Run has returned.
	ErrLoopStopped = errors.New("playback loop stopped")
)

// Mode selects which stages run.
type Mode int

const (
	// ModeFull runs every stage.
	ModeFull Mode = iota
	// ModeSimplified skips stages registered as full-only.
	ModeSimplified
)

func (m Mode) String() string {
	if m == ModeSimplified {
		return "simplified"
	}
	return "full"
}

// MarshalText encodes the mode name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts the names produced by String.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMode converts "full" or "simplified" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "full":
		return ModeFull, nil
	case "simplified", "simple":
		return ModeSimplified, nil
	default:
		return ModeFull, fmt.Errorf("unknown mode %q", s)
	}
}

// Frame is the read-only view of the playback position handed to stages.
type Frame struct {
	Record *trajectory.Record
	Index  int
	// Generation increases every time a new record is installed.
	Generation uint64
	Mode       Mode
}

// State is the controller's public state.
type State struct {
	Loaded     bool   `json:"loaded"`
	Source     string `json:"source,omitempty"`
	Samples    int    `json:"samples"`
	Index      int    `json:"index"`
	Playing    bool   `json:"playing"`
	Speed      int    `json:"speed"`
	Mode       Mode   `json:"mode"`
	Generation uint64 `json:"generation"`
	Snapshots  int    `json:"snapshots"`
}

// Snapshot is a still captured at one sample index.
type Snapshot struct {
	Index       int
	Time        float64
	Position    mgl64.Vec3
	Orientation mgl64.Quat
	Image       *image.RGBA
}

// Capturer renders a snapshot image for a sample without touching the live
// view.
type Capturer interface {
	Capture(rec *trajectory.Record, index int) (*image.RGBA, error)
}
