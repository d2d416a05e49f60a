// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

func assertVecNear(t *testing.T, want, got mgl64.Vec3, msgAndArgs ...any) {
	t.Helper()
	for i := range 3 {
		assert.InDelta(t, want[i], got[i], 1e-9, msgAndArgs...)
	}
}

func TestQuaternionToEuler_RoundTrip(t *testing.T) {
	probes := []mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0.3, -0.7, 0.2}}

	// Deterministic spread of orientations over the whole sphere.
	for i := range 200 {
		axis := mgl64.Vec3{math.Sin(float64(i)), math.Cos(float64(i) * 1.3), math.Sin(float64(i)*0.7 + 1)}.Normalize()
		angle := float64(i) * 0.37
		q := mgl64.QuatRotate(angle, axis)

		e := QuaternionToEuler(q)
		back := EulerToQuaternion(e)

		for _, v := range probes {
			assertVecNear(t, q.Rotate(v), back.Rotate(v), "orientation %d probe %v", i, v)
		}
	}
}

func TestQuaternionToEuler_Axes(t *testing.T) {
	tests := []struct {
		name string
		q    mgl64.Quat
		want Euler
	}{
		{"identity", mgl64.QuatIdent(), Euler{}},
		{"roll 30", mgl64.QuatRotate(mgl64.DegToRad(30), mgl64.Vec3{1, 0, 0}), Euler{Roll: mgl64.DegToRad(30)}},
		{"pitch -20", mgl64.QuatRotate(mgl64.DegToRad(-20), mgl64.Vec3{0, 1, 0}), Euler{Pitch: mgl64.DegToRad(-20)}},
		{"yaw 135", mgl64.QuatRotate(mgl64.DegToRad(135), mgl64.Vec3{0, 0, 1}), Euler{Yaw: mgl64.DegToRad(135)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuaternionToEuler(tt.q)
			assert.InDelta(t, tt.want.Roll, got.Roll, tol)
			assert.InDelta(t, tt.want.Pitch, got.Pitch, tol)
			assert.InDelta(t, tt.want.Yaw, got.Yaw, tol)
		})
	}
}

func TestQuaternionToEuler_GimbalLock(t *testing.T) {
	up := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})
	down := mgl64.QuatRotate(-math.Pi/2, mgl64.Vec3{0, 1, 0})

	// Slightly over-length quaternion pushes the raw sine past 1.
	over := mgl64.Quat{W: up.W * (1 + 1e-9), V: up.V.Mul(1 + 1e-9)}

	for name, q := range map[string]mgl64.Quat{"up": up, "over": over} {
		e := QuaternionToEuler(q)
		assert.False(t, math.IsNaN(e.Pitch), name)
		assert.Equal(t, math.Pi/2, e.Pitch, name)
	}

	e := QuaternionToEuler(down)
	assert.Equal(t, -math.Pi/2, e.Pitch)
	assert.False(t, math.IsNaN(e.Roll))
	assert.False(t, math.IsNaN(e.Yaw))
}

func TestQuaternionToEuler_Degenerate(t *testing.T) {
	e := QuaternionToEuler(mgl64.Quat{})
	assert.Equal(t, Euler{}, e)

	// Non-unit input is normalized before use.
	scaled := mgl64.QuatRotate(0.5, mgl64.Vec3{1, 0, 0}).Scale(3)
	assert.InDelta(t, 0.5, QuaternionToEuler(scaled).Roll, tol)
}

func TestEulerDegrees(t *testing.T) {
	p := Euler{Roll: math.Pi, Pitch: -math.Pi / 2, Yaw: math.Pi / 4}.Degrees()
	assert.InDelta(t, 180, p.Roll, tol)
	assert.InDelta(t, -90, p.Pitch, tol)
	assert.InDelta(t, 45, p.Yaw, tol)
}

func TestProjectToDisplayAxis(t *testing.T) {
	q := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})

	// World +y seen from a body yawed 90° left lies along body +x.
	assertVecNear(t, mgl64.Vec3{1, 0, 0}, ProjectToDisplayAxis(mgl64.Vec3{0, 1, 0}, q))

	// Inverse of BodyToWorld.
	v := mgl64.Vec3{0.2, -1.5, 3}
	assertVecNear(t, v, ProjectToDisplayAxis(BodyToWorld(v, q), q))

	// Degenerate inputs stay finite.
	assertVecNear(t, mgl64.Vec3{}, ProjectToDisplayAxis(mgl64.Vec3{}, q))
	assertVecNear(t, v, ProjectToDisplayAxis(v, mgl64.QuatIdent()))
	assertVecNear(t, v, ProjectToDisplayAxis(v, mgl64.Quat{}))
}

func TestHeading(t *testing.T) {
	forward := mgl64.Vec3{0, 0, 1}

	tests := []struct {
		name   string
		q      mgl64.Quat
		want   float64
		wantOK bool
	}{
		{"vertical", mgl64.QuatIdent(), 0, false},
		{"nearly vertical", mgl64.QuatRotate(1e-9, mgl64.Vec3{0, 1, 0}), 0, false},
		{"east", mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0}), 90, true},
		{"west", mgl64.QuatRotate(-math.Pi/2, mgl64.Vec3{0, 1, 0}), 270, true},
		{"north", mgl64.QuatRotate(-math.Pi/2, mgl64.Vec3{1, 0, 0}), 0, true},
		{"south", mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{1, 0, 0}), 180, true},
		{"north east tilted", EulerToQuaternion(Euler{Yaw: math.Pi / 4, Pitch: math.Pi / 4}), 45, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Heading(tt.q, forward)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 360.0)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestHeading_AlongBodyX(t *testing.T) {
	// Body +x points east at the identity orientation.
	got, ok := Heading(mgl64.QuatIdent(), mgl64.Vec3{1, 0, 0})
	require.True(t, ok)
	assert.InDelta(t, 90, got, 1e-9)
}

func TestMockSource(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	src := &mockSource{start: start, now: func() time.Time { return now }}

	p, err := src.Next()
	require.NoError(t, err)
	assert.InDelta(t, 0, p.Roll, 1e-9)
	assert.InDelta(t, 15, p.Pitch, 1e-9)

	now = start.Add(2 * time.Second)
	p, err = src.Next()
	require.NoError(t, err)
	assert.InDelta(t, 20*math.Sin(2), p.Roll, 1e-6)
	assert.InDelta(t, 60, p.Yaw, 1e-6)
}
