// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Pose is the canonical display representation of orientation, in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Euler holds an intrinsic roll/pitch/yaw decomposition in radians.
type Euler struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Degrees converts the decomposition into a Pose.
func (e Euler) Degrees() Pose {
	return Pose{
		Roll:  mgl64.RadToDeg(e.Roll),
		Pitch: mgl64.RadToDeg(e.Pitch),
		Yaw:   mgl64.RadToDeg(e.Yaw),
	}
}

// Source is anything that can provide poses over time: the mock source,
// a replay of a loaded trajectory, etc.
type Source interface {
	Next() (Pose, error)
}

// gimbalTolerance is how close |sin(pitch)| may get to 1 before pitch is
// clamped to ±90°.
const gimbalTolerance = 1e-12

// HeadingEpsilon is the minimum horizontal projection of the forward axis
// for which a heading is reported.
const HeadingEpsilon = 1e-6

// Normalize returns q scaled to unit length. A zero quaternion becomes the
// identity.
func Normalize(q mgl64.Quat) mgl64.Quat {
	l := q.Len()
	if l == 0 || math.IsNaN(l) {
		return mgl64.QuatIdent()
	}
	return mgl64.Quat{W: q.W / l, V: q.V.Mul(1 / l)}
}

// QuaternionToEuler decomposes a scalar-first body->world quaternion into
// the aerospace Z-Y-X sequence: yaw about z, then pitch about the new y,
// then roll about the new x.
//
//	roll  = atan2(2(wx + yz), 1 - 2(x² + y²))
//	pitch = asin(2(wy - zx))          clamped at the gimbal-lock boundary
//	yaw   = atan2(2(wz + xy), 1 - 2(y² + z²))
func QuaternionToEuler(q mgl64.Quat) Euler {
	q = Normalize(q)
	w, x, y, z := q.W, q.V[0], q.V[1], q.V[2]

	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) >= 1-gimbalTolerance {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))

	return Euler{Roll: roll, Pitch: pitch, Yaw: yaw}
}

// EulerToQuaternion composes yaw, pitch and roll back into a quaternion.
func EulerToQuaternion(e Euler) mgl64.Quat {
	qz := mgl64.QuatRotate(e.Yaw, mgl64.Vec3{0, 0, 1})
	qy := mgl64.QuatRotate(e.Pitch, mgl64.Vec3{0, 1, 0})
	qx := mgl64.QuatRotate(e.Roll, mgl64.Vec3{1, 0, 0})
	return qz.Mul(qy).Mul(qx)
}

// BodyToWorld rotates a body-frame vector into the world frame.
func BodyToWorld(v mgl64.Vec3, q mgl64.Quat) mgl64.Vec3 {
	return Normalize(q).Rotate(v)
}

// ProjectToDisplayAxis rotates a world-frame vector into the frame of q by
// applying its conjugate.
func ProjectToDisplayAxis(v mgl64.Vec3, q mgl64.Quat) mgl64.Vec3 {
	return Normalize(q).Conjugate().Rotate(v)
}

// Heading returns the compass heading of the body's forward axis in degrees,
// measured from world +y (north) clockwise toward +x (east), in [0, 360).
// ok is false when the forward axis is too close to vertical for the
// horizontal projection to give a stable angle.
func Heading(q mgl64.Quat, forward mgl64.Vec3) (deg float64, ok bool) {
	f := BodyToWorld(forward, q)
	east, north := f[0], f[1]
	if math.Hypot(east, north) < HeadingEpsilon {
		return 0, false
	}
	deg = mgl64.RadToDeg(math.Atan2(east, north))
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg, true
}
