// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package trajectory

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/attitude_replay/internal/orientation"
)

// NotAvailable marks a sample that is missing from the source data. It is a
// NaN so it can never be confused with a legitimate zero.
var NotAvailable = math.NaN()

// Available reports whether v holds real data.
func Available(v float64) bool {
	return !math.IsNaN(v)
}

// VecAvailable reports whether every component of v holds real data.
func VecAvailable(v mgl64.Vec3) bool {
	return Available(v[0]) && Available(v[1]) && Available(v[2])
}

// Column names understood by every loader.
const (
	ColT    = "t"
	ColX    = "x"
	ColY    = "y"
	ColZ    = "z"
	ColVX   = "vx"
	ColVY   = "vy"
	ColVZ   = "vz"
	ColQW   = "qw"
	ColQX   = "qx"
	ColQY   = "qy"
	ColQZ   = "qz"
	ColOmX  = "omx"
	ColOmY  = "omy"
	ColOmZ  = "omz"
	ColFuel = "fuel"
)

// RequiredColumns must be present in every source file.
var RequiredColumns = []string{ColT, ColX, ColY, ColZ, ColVX, ColVY, ColVZ, ColQW, ColQX, ColQY, ColQZ}

// OptionalColumns are filled with NotAvailable when absent.
var OptionalColumns = []string{ColOmX, ColOmY, ColOmZ, ColFuel}

var columnAliases = map[string]string{
	"time": ColT,
}

// CanonicalColumn normalizes a header or schema name to the loader's column
// vocabulary. Unknown names are returned lower-cased.
func CanonicalColumn(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := columnAliases[n]; ok {
		return alias
	}
	return n
}

// Columns holds raw per-column samples keyed by canonical column name.
type Columns map[string][]float64

// Set stores values under the canonical form of name.
func (c Columns) Set(name string, values []float64) {
	c[CanonicalColumn(name)] = values
}

// Record is the uniform in-memory trajectory. Every slice has exactly Len()
// samples. A Record is never modified after NewRecord returns it.
type Record struct {
	Source string

	T               []float64
	Position        []mgl64.Vec3
	Velocity        []mgl64.Vec3
	AngularVelocity []mgl64.Vec3
	Orientation     []mgl64.Quat
	Fuel            []float64

	// Euler caches the roll/pitch/yaw decomposition of Orientation.
	Euler []orientation.Euler

	// Diagnostics lists recoverable problems found while building the record.
	Diagnostics []error
}

// Len returns the number of samples.
func (r *Record) Len() int {
	return len(r.T)
}

// LastIndex returns the highest valid sample index.
func (r *Record) LastIndex() int {
	return len(r.T) - 1
}

// ClampIndex forces i into [0, LastIndex()].
func (r *Record) ClampIndex(i int) int {
	return max(0, min(i, r.LastIndex()))
}

// Speed returns |velocity| at sample i, or NotAvailable.
func (r *Record) Speed(i int) float64 {
	v := r.Velocity[i]
	if !VecAvailable(v) {
		return NotAvailable
	}
	return v.Len()
}

// NewRecord assembles a Record from named columns. Every channel is
// reconciled to the length of the time column: longer channels are
// truncated, shorter ones padded with NotAvailable, and each mismatch is
// logged and kept in Diagnostics.
func NewRecord(source string, cols Columns, logger *slog.Logger) (*Record, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingChannelError{Source: source, Columns: missing}
	}

	n := len(cols[ColT])
	if n == 0 {
		return nil, &MissingChannelError{Source: source, Columns: []string{ColT}, Empty: true}
	}

	rec := &Record{Source: source}

	channel := func(name string) []float64 {
		values, ok := cols[name]
		if !ok {
			out := make([]float64, n)
			for i := range out {
				out[i] = NotAvailable
			}
			return out
		}
		if len(values) == n {
			return slices.Clone(values)
		}

		err := fmt.Errorf("%w: column %q has %d samples, time has %d",
			ErrChannelLengthMismatch, name, len(values), n)
		rec.Diagnostics = append(rec.Diagnostics, err)
		logger.Warn("channel length mismatch",
			"source", source, "column", name, "samples", len(values), "expected", n)

		out := make([]float64, n)
		copied := copy(out, values)
		for i := copied; i < n; i++ {
			out[i] = NotAvailable
		}
		return out
	}

	rec.T = channel(ColT)
	x, y, z := channel(ColX), channel(ColY), channel(ColZ)
	vx, vy, vz := channel(ColVX), channel(ColVY), channel(ColVZ)
	qw, qx, qy, qz := channel(ColQW), channel(ColQX), channel(ColQY), channel(ColQZ)
	omx, omy, omz := channel(ColOmX), channel(ColOmY), channel(ColOmZ)
	rec.Fuel = channel(ColFuel)

	rec.Position = make([]mgl64.Vec3, n)
	rec.Velocity = make([]mgl64.Vec3, n)
	rec.AngularVelocity = make([]mgl64.Vec3, n)
	rec.Orientation = make([]mgl64.Quat, n)
	rec.Euler = make([]orientation.Euler, n)

	for i := range n {
		rec.Position[i] = mgl64.Vec3{x[i], y[i], z[i]}
		rec.Velocity[i] = mgl64.Vec3{vx[i], vy[i], vz[i]}
		rec.AngularVelocity[i] = mgl64.Vec3{omx[i], omy[i], omz[i]}
		rec.Orientation[i] = mgl64.Quat{W: qw[i], V: mgl64.Vec3{qx[i], qy[i], qz[i]}}
		if QuatAvailable(rec.Orientation[i]) {
			rec.Euler[i] = orientation.QuaternionToEuler(rec.Orientation[i])
		} else {
			rec.Euler[i] = orientation.Euler{Roll: NotAvailable, Pitch: NotAvailable, Yaw: NotAvailable}
		}
	}

	return rec, nil
}

// QuatAvailable reports whether every component of q holds real data.
func QuatAvailable(q mgl64.Quat) bool {
	return Available(q.W) && VecAvailable(q.V)
}
