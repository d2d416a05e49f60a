// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package plot

import (
	"fmt"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

// Channel names a group of record channels drawn together.
type Channel string

const (
	ChannelPosition        Channel = "position"
	ChannelVelocity        Channel = "velocity"
	ChannelAngularVelocity Channel = "angular_velocity"
	ChannelEuler           Channel = "euler"
	ChannelFuel            Channel = "fuel"
	ChannelSpeed           Channel = "speed"
)

var (
	colorX = color.RGBA{230, 80, 70, 255}
	colorY = color.RGBA{90, 200, 90, 255}
	colorZ = color.RGBA{80, 140, 240, 255}
	colorS = color.RGBA{240, 200, 60, 255}
)

type series struct {
	label  string
	color  color.RGBA
	values []float64
}

// extract pulls the series of ch out of rec.
func extract(ch Channel, rec *trajectory.Record) ([]series, error) {
	switch ch {
	case ChannelPosition:
		return axes(rec.Position, "x", "y", "z"), nil
	case ChannelVelocity:
		return axes(rec.Velocity, "vx", "vy", "vz"), nil
	case ChannelAngularVelocity:
		return axes(rec.AngularVelocity, "omx", "omy", "omz"), nil
	case ChannelEuler:
		roll := make([]float64, rec.Len())
		pitch := make([]float64, rec.Len())
		yaw := make([]float64, rec.Len())
		for i, e := range rec.Euler {
			d := e.Degrees()
			roll[i], pitch[i], yaw[i] = d.Roll, d.Pitch, d.Yaw
		}
		return []series{
			{"roll", colorX, roll},
			{"pitch", colorY, pitch},
			{"yaw", colorZ, yaw},
		}, nil
	case ChannelFuel:
		return []series{{"fuel", colorS, rec.Fuel}}, nil
	case ChannelSpeed:
		speed := make([]float64, rec.Len())
		for i := range speed {
			speed[i] = rec.Speed(i)
		}
		return []series{{"|v|", colorS, speed}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}
}

func axes(vs []mgl64.Vec3, a, b, c string) []series {
	out := []series{
		{a, colorX, make([]float64, len(vs))},
		{b, colorY, make([]float64, len(vs))},
		{c, colorZ, make([]float64, len(vs))},
	}
	for i, v := range vs {
		out[0].values[i] = v[0]
		out[1].values[i] = v[1]
		out[2].values[i] = v[2]
	}
	return out
}

// padFraction is added above and below the joint extent.
const padFraction = 0.05

// extent returns the padded joint value range of every series.
func extent(ss []series) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range ss {
		for _, v := range s.values {
			if !trajectory.Available(v) || math.IsInf(v, 0) {
				continue
			}
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	if lo > hi {
		return -1, 1
	}
	if hi == lo {
		lo, hi = lo-1, hi+1
	}
	pad := (hi - lo) * padFraction
	return lo - pad, hi + pad
}
