// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package trajectory

import (
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/attitude_replay/internal/orientation"
)

// Summary is a quick health report of a record.
type Summary struct {
	Samples  int     `json:"samples"`
	T0       float64 `json:"t0"`
	T1       float64 `json:"t1"`
	QNormMin float64 `json:"qnorm_min"`
	QNormMax float64 `json:"qnorm_max"`
	SpeedMax float64 `json:"speed_max"`
	OmegaMax float64 `json:"omega_max"`
	FuelMin  float64 `json:"fuel_min"`
}

// Summarize computes extremes over the available samples of each channel.
// A statistic with no available samples is NotAvailable.
func Summarize(rec *Record) Summary {
	s := Summary{
		Samples:  rec.Len(),
		T0:       rec.T[0],
		T1:       rec.T[rec.LastIndex()],
		QNormMin: NotAvailable,
		QNormMax: NotAvailable,
		SpeedMax: NotAvailable,
		OmegaMax: NotAvailable,
		FuelMin:  NotAvailable,
	}

	for i := range rec.Len() {
		if q := rec.Orientation[i]; QuatAvailable(q) {
			s.QNormMin = nanMin(s.QNormMin, q.Len())
			s.QNormMax = nanMax(s.QNormMax, q.Len())
		}
		if v := rec.Velocity[i]; VecAvailable(v) {
			s.SpeedMax = nanMax(s.SpeedMax, v.Len())
		}
		if w := rec.AngularVelocity[i]; VecAvailable(w) {
			s.OmegaMax = nanMax(s.OmegaMax, w.Len())
		}
		if f := rec.Fuel[i]; Available(f) {
			s.FuelMin = nanMin(s.FuelMin, f)
		}
	}
	return s
}

func nanMin(acc, v float64) float64 {
	if math.IsNaN(acc) || v < acc {
		return v
	}
	return acc
}

func nanMax(acc, v float64) float64 {
	if math.IsNaN(acc) || v > acc {
		return v
	}
	return acc
}

// FirstNonFinite returns the first sample index holding an infinity in any
// channel, or a NaN in a required channel. Optional channels that are
// entirely unavailable are not reported.
func FirstNonFinite(rec *Record) (int, bool) {
	omegaPresent := anyVec(rec.AngularVelocity, VecAvailable)
	fuelPresent := false
	for _, f := range rec.Fuel {
		if Available(f) {
			fuelPresent = true
			break
		}
	}

	for i := range rec.Len() {
		q := rec.Orientation[i]
		if !finite(rec.T[i]) || !finiteVec(rec.Position[i]) || !finiteVec(rec.Velocity[i]) ||
			!finite(q.W) || !finiteVec(q.V) {
			return i, true
		}
		if omegaPresent && !finiteVec(rec.AngularVelocity[i]) {
			return i, true
		}
		if fuelPresent && !finite(rec.Fuel[i]) {
			return i, true
		}
	}
	return 0, false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteVec(v mgl64.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}

func anyVec(vs []mgl64.Vec3, pred func(mgl64.Vec3) bool) bool {
	for _, v := range vs {
		if pred(v) {
			return true
		}
	}
	return false
}

// KeyFrames selects sample indices for periodic printing or thumbnailing:
// the first index, every `every`-th index after it, and the last index.
// The result is ascending and free of duplicates.
func KeyFrames(n, every int) []int {
	if n <= 0 {
		return nil
	}
	if every <= 0 {
		every = n
	}
	out := make([]int, 0, n/every+2)
	for i := 0; i < n; i += every {
		out = append(out, i)
	}
	if out[len(out)-1] != n-1 {
		out = append(out, n-1)
	}
	return out
}

// replaySource steps through a record's cached Euler angles.
type replaySource struct {
	rec  *Record
	next int
}

// PoseSource returns an orientation.Source that yields one pose per sample
// and io.EOF after the last one.
func (r *Record) PoseSource() orientation.Source {
	return &replaySource{rec: r}
}

func (s *replaySource) Next() (orientation.Pose, error) {
	if s.next >= s.rec.Len() {
		return orientation.Pose{}, io.EOF
	}
	e := s.rec.Euler[s.next]
	s.next++
	return e.Degrees(), nil
}
