// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"
)

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock orientation source that generates smoothly
// changing values. The pose goes through the quaternion round trip so it
// carries the same clamping as replayed data.
func NewMockSource() Source {
	return &mockSource{start: time.Now(), now: time.Now}
}

func (m *mockSource) Next() (Pose, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	e := Euler{
		Roll:  20 * math.Pi / 180 * math.Sin(elapsed),
		Pitch: 15 * math.Pi / 180 * math.Cos(elapsed*0.7),
		Yaw:   math.Mod(elapsed*30, 360) * math.Pi / 180,
	}
	return QuaternionToEuler(EulerToQuaternion(e)).Degrees(), nil
}
