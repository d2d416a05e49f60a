// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package navball draws the attitude instrument: a sphere turned by the
// inverse of the body orientation, prograde and retrograde markers, and a
// numeric readout.
package navball

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/attitude_replay/internal/orientation"
	"github.com/relabs-tech/attitude_replay/internal/playback"
	"github.com/relabs-tech/attitude_replay/internal/raster"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

// SpeedEpsilon is the speed below which the velocity direction is undefined
// and no markers are drawn.
const SpeedEpsilon = 1e-3

const (
	pitchStep   = 30.0
	headingStep = 45.0
	readoutRows = 4
)

var (
	colorBackground = color.RGBA{16, 18, 22, 255}
	colorSky        = color.RGBA{64, 128, 200, 255}
	colorSkyPole    = color.RGBA{24, 60, 120, 255}
	colorGround     = color.RGBA{150, 105, 60, 255}
	colorGroundPole = color.RGBA{80, 52, 28, 255}
	colorHorizon    = color.RGBA{250, 250, 250, 255}
	colorGridLine   = color.RGBA{230, 230, 230, 255}
	colorBezel      = color.RGBA{90, 94, 104, 255}
	colorReticle    = color.RGBA{255, 160, 0, 255}
	colorPrograde   = color.RGBA{200, 255, 60, 255}
	colorRetrograde = color.RGBA{255, 90, 60, 255}
	colorText       = color.RGBA{220, 224, 230, 255}

	displayForward = mgl64.Vec3{0, 0, 1}
)

// Config sizes the instrument and names the body axis that points at the
// viewer when the sphere is centered.
type Config struct {
	Size    int
	Forward mgl64.Vec3
}

// DefaultConfig is a 200 pixel ball looking along body +z.
func DefaultConfig() Config {
	return Config{Size: 200, Forward: mgl64.Vec3{0, 0, 1}}
}

// Marker is a velocity direction on the ball.
type Marker struct {
	// Dir is the unit direction in the display frame: x right, y up, z
	// toward the viewer.
	Dir     mgl64.Vec3
	Visible bool
}

// Readout holds the numbers shown under the ball.
type Readout struct {
	Index     int
	Time      float64
	Speed     float64
	Heading   float64
	HeadingOK bool
	Roll      float64
	Pitch     float64
	Yaw       float64

	Prograde   Marker
	Retrograde Marker
}

// HeadingText formats the heading, or "---" when the forward axis is
// vertical.
func (r Readout) HeadingText() string {
	if !r.HeadingOK {
		return "---"
	}
	return fmt.Sprintf("%05.1f", r.Heading)
}

// SpeedText formats the speed, or "---" when velocity is unavailable.
func (r Readout) SpeedText() string {
	if !trajectory.Available(r.Speed) {
		return "---"
	}
	return strconv.FormatFloat(r.Speed, 'f', 1, 64) + " m/s"
}

// Renderer draws the instrument for each frame.
type Renderer struct {
	cfg    Config
	logger *slog.Logger
	align  mgl64.Quat
	radius float64
	center mgl64.Vec2

	front, back *image.RGBA
	current     Readout
}

// New validates cfg and allocates the instrument surfaces.
func New(cfg Config, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Size < 32 || cfg.Size > 4096 {
		return nil, fmt.Errorf("navball size %d outside [32, 4096]", cfg.Size)
	}
	if cfg.Forward.Len() < 1e-9 || !finiteVec(cfg.Forward) {
		return nil, errors.New("navball forward axis must be a non-zero vector")
	}

	bounds := image.Rect(0, 0, cfg.Size, cfg.Size+readoutRows*raster.LineHeight+8)
	r := &Renderer{
		cfg:    cfg,
		logger: logger,
		align:  mgl64.QuatBetweenVectors(cfg.Forward.Normalize(), displayForward),
		radius: float64(cfg.Size)/2 - 3,
		center: mgl64.Vec2{float64(cfg.Size) / 2, float64(cfg.Size) / 2},
		front:  image.NewRGBA(bounds),
		back:   image.NewRGBA(bounds),
	}
	raster.Fill(r.front, bounds, colorBackground)
	return r, nil
}

// Frame returns the last successfully rendered instrument.
func (r *Renderer) Frame() *image.RGBA {
	return r.front
}

// Current returns the readout of the last rendered frame.
func (r *Renderer) Current() Readout {
	return r.current
}

// reference maps display-frame vectors to world: the body orientation with
// the forward axis turned onto display +z.
func (r *Renderer) reference(q mgl64.Quat) mgl64.Quat {
	return orientation.Normalize(q).Mul(r.align.Conjugate())
}

// Readout computes the numbers and marker directions for f without
// rendering.
func (r *Renderer) Readout(f playback.Frame) Readout {
	rec, i := f.Record, f.Index
	q := rec.Orientation[i]
	e := rec.Euler[i].Degrees()
	out := Readout{
		Index: i,
		Time:  rec.T[i],
		Speed: rec.Speed(i),
		Roll:  e.Roll,
		Pitch: e.Pitch,
		Yaw:   e.Yaw,
	}
	if !trajectory.QuatAvailable(q) {
		return out
	}
	out.Heading, out.HeadingOK = orientation.Heading(q, r.cfg.Forward)

	if v := rec.Velocity[i]; trajectory.Available(out.Speed) && out.Speed > SpeedEpsilon {
		dir := orientation.ProjectToDisplayAxis(v.Mul(1/out.Speed), r.reference(q))
		out.Prograde = Marker{Dir: dir, Visible: dir[2] > 0}
		out.Retrograde = Marker{Dir: dir.Mul(-1), Visible: -dir[2] > 0}
	}
	return out
}

// Update renders the instrument for f. A sample without a usable
// orientation returns playback.ErrTransientFrame and keeps the previous
// frame.
func (r *Renderer) Update(f playback.Frame) error {
	if f.Record == nil {
		return nil
	}
	q := f.Record.Orientation[f.Index]
	if !trajectory.QuatAvailable(q) {
		return fmt.Errorf("%w: sample %d has no orientation", playback.ErrTransientFrame, f.Index)
	}

	out := r.Readout(f)
	img := r.back
	raster.Fill(img, img.Bounds(), colorBackground)
	r.drawSphere(img, r.reference(q))

	path := raster.NewPath(img.Bounds())
	path.Ring(r.center, r.radius+1, 2.5)
	path.Draw(img, colorBezel)
	r.drawMarkers(img, path, out)
	r.drawReticle(img, path)
	r.drawReadout(img, out)

	r.front, r.back = r.back, r.front
	r.current = out
	return nil
}

// drawSphere shades each disc pixel by the world direction of the sphere
// point under it.
func (r *Renderer) drawSphere(img *image.RGBA, ref mgl64.Quat) {
	rad := r.radius
	// Grid line half-width in degrees of arc at the disc center.
	width := mgl64.RadToDeg(0.7 / rad)
	cx, cy := r.center[0], r.center[1]

	y0, y1 := int(cy-rad), int(math.Ceil(cy+rad))
	x0, x1 := int(cx-rad), int(math.Ceil(cx+rad))
	for py := y0; py <= y1; py++ {
		v := (cy - (float64(py) + 0.5)) / rad
		for px := x0; px <= x1; px++ {
			u := (float64(px) + 0.5 - cx) / rad
			d2 := u*u + v*v
			if d2 > 1 {
				continue
			}
			depth := math.Sqrt(1 - d2)
			w := ref.Rotate(mgl64.Vec3{u, v, depth})

			elev := mgl64.RadToDeg(math.Asin(max(-1, min(1, w[2]))))
			c := shadeSphere(elev)

			// Lines get wider toward the limb where the surface is foreshortened.
			lw := width / max(depth, 0.15)
			switch {
			case math.Abs(elev) < 1.8*lw:
				c = colorHorizon
			case offGrid(elev, pitchStep) < lw:
				c = raster.Lerp(c, colorGridLine, 0.7)
			case math.Abs(elev) < 75:
				head := mgl64.RadToDeg(math.Atan2(w[0], w[1]))
				if offGrid(head, headingStep)*math.Cos(mgl64.DegToRad(elev)) < lw {
					c = raster.Lerp(c, colorGridLine, 0.55)
				}
			}
			img.SetRGBA(px, py, raster.Shade(c, 0.55+0.45*depth))
		}
	}
}

func shadeSphere(elev float64) color.RGBA {
	if elev >= 0 {
		return raster.Lerp(colorSky, colorSkyPole, elev/90)
	}
	return raster.Lerp(colorGround, colorGroundPole, -elev/90)
}

// offGrid is the angular distance from a to the nearest multiple of step.
func offGrid(a, step float64) float64 {
	return math.Abs(a - step*math.Round(a/step))
}

// screen maps a display-frame direction onto the disc.
func (r *Renderer) screen(d mgl64.Vec3) mgl64.Vec2 {
	return mgl64.Vec2{r.center[0] + d[0]*r.radius, r.center[1] - d[1]*r.radius}
}

func (r *Renderer) drawMarkers(img *image.RGBA, path *raster.Path, out Readout) {
	size := max(5, r.radius/10)
	if m := out.Prograde; m.Visible {
		p := r.screen(m.Dir)
		path.Ring(p, size, 2)
		path.Disc(p, 1.8)
		path.Segment(p.Add(mgl64.Vec2{size, 0}), p.Add(mgl64.Vec2{1.8 * size, 0}), 2)
		path.Segment(p.Sub(mgl64.Vec2{size, 0}), p.Sub(mgl64.Vec2{1.8 * size, 0}), 2)
		path.Segment(p.Sub(mgl64.Vec2{0, size}), p.Sub(mgl64.Vec2{0, 1.8 * size}), 2)
		path.Draw(img, colorPrograde)
	}
	if m := out.Retrograde; m.Visible {
		p := r.screen(m.Dir)
		k := size * 0.7
		path.Ring(p, size, 2)
		path.Segment(p.Add(mgl64.Vec2{-k, -k}), p.Add(mgl64.Vec2{k, k}), 2)
		path.Segment(p.Add(mgl64.Vec2{-k, k}), p.Add(mgl64.Vec2{k, -k}), 2)
		path.Draw(img, colorRetrograde)
	}
}

// drawReticle marks the body forward axis at the disc center.
func (r *Renderer) drawReticle(img *image.RGBA, path *raster.Path) {
	c := r.center
	s := max(6, r.radius/6)
	path.Polyline([]mgl64.Vec2{
		c.Add(mgl64.Vec2{-2 * s, 0}),
		c.Add(mgl64.Vec2{-s, 0}),
		c.Add(mgl64.Vec2{-s / 2, s / 2}),
		c,
		c.Add(mgl64.Vec2{s / 2, s / 2}),
		c.Add(mgl64.Vec2{s, 0}),
		c.Add(mgl64.Vec2{2 * s, 0}),
	}, 2.5)
	path.Draw(img, colorReticle)
}

func (r *Renderer) drawReadout(img *image.RGBA, out Readout) {
	y := r.cfg.Size + raster.LineHeight + 2
	lines := []string{
		"SPD " + out.SpeedText(),
		"HDG " + out.HeadingText(),
		fmt.Sprintf("R %6.1f  P %6.1f", out.Roll, out.Pitch),
		fmt.Sprintf("Y %6.1f  t %.2fs", out.Yaw, out.Time),
	}
	for _, l := range lines {
		raster.Text(img, 6, y, l, colorText)
		y += raster.LineHeight
	}
}

func finiteVec(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
