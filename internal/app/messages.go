// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/attitude_replay/internal/navball"
	"github.com/relabs-tech/attitude_replay/internal/orientation"
	"github.com/relabs-tech/attitude_replay/internal/playback"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

// ReadoutMessage is the instrument readout as sent to browsers and the
// OLED display. Unavailable numbers are null.
type ReadoutMessage struct {
	Index       int      `json:"index"`
	T           *float64 `json:"t"`
	Speed       *float64 `json:"speed"`
	Heading     *float64 `json:"heading"`
	SpeedText   string   `json:"speed_text"`
	HeadingText string   `json:"heading_text"`
	Roll        float64  `json:"roll"`
	Pitch       float64  `json:"pitch"`
	Yaw         float64  `json:"yaw"`
	Prograde    bool     `json:"prograde_visible"`
	Retrograde  bool     `json:"retrograde_visible"`
}

// StateMessage is the kinematic state of one sample, published on
// TOPIC_STATE next to the pose.
type StateMessage struct {
	Index    int         `json:"index"`
	T        *float64    `json:"t"`
	Position [3]*float64 `json:"position"`
	Velocity [3]*float64 `json:"velocity"`
	Speed    *float64    `json:"speed"`
	Fuel     *float64    `json:"fuel"`
	Heading  *float64    `json:"heading"`
}

// optional maps the missing-value sentinel and infinities to null.
func optional(v float64) *float64 {
	if !trajectory.Available(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func newReadoutMessage(r navball.Readout) ReadoutMessage {
	m := ReadoutMessage{
		Index:       r.Index,
		T:           optional(r.Time),
		Speed:       optional(r.Speed),
		SpeedText:   r.SpeedText(),
		HeadingText: r.HeadingText(),
		Roll:        r.Roll,
		Pitch:       r.Pitch,
		Yaw:         r.Yaw,
		Prograde:    r.Prograde.Visible,
		Retrograde:  r.Retrograde.Visible,
	}
	if r.HeadingOK {
		m.Heading = optional(r.Heading)
	}
	return m
}

func newStateMessage(f playback.Frame, forward mgl64.Vec3) StateMessage {
	rec, i := f.Record, f.Index
	p, v := rec.Position[i], rec.Velocity[i]
	m := StateMessage{
		Index:    i,
		T:        optional(rec.T[i]),
		Position: [3]*float64{optional(p[0]), optional(p[1]), optional(p[2])},
		Velocity: [3]*float64{optional(v[0]), optional(v[1]), optional(v[2])},
		Speed:    optional(rec.Speed(i)),
		Fuel:     optional(rec.Fuel[i]),
	}
	if q := rec.Orientation[i]; trajectory.QuatAvailable(q) {
		if h, ok := orientation.Heading(q, forward); ok {
			m.Heading = &h
		}
	}
	return m
}
