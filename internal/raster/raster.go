// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package raster holds the small set of drawing primitives shared by the
// software-rendered views: antialiased strokes and polygons, crisp
// axis-aligned lines, and bitmap text.
package raster

import (
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Face is the font used for every label.
var Face font.Face = basicfont.Face7x13

// LineHeight is the advance between text baselines for Face.
const LineHeight = 13

// Path accumulates filled shapes and strokes and composites them onto an
// image in one pass. Shapes added to a Path share one color.
type Path struct {
	ras   *vector.Rasterizer
	clip  image.Rectangle
	empty bool
}

// NewPath returns a path sized for images with the given bounds. Bounds
// must start at the origin.
func NewPath(bounds image.Rectangle) *Path {
	p := &Path{ras: vector.NewRasterizer(bounds.Dx(), bounds.Dy())}
	p.Reset(bounds)
	return p
}

// Reset clears the path, resizing it if bounds changed.
func (p *Path) Reset(bounds image.Rectangle) {
	p.ras.Reset(bounds.Dx(), bounds.Dy())
	p.clip = bounds.Inset(-4)
	p.empty = true
}

// Segment adds a stroked line of the given width from a to b. Segments with
// non-finite ends are ignored; the rest are clipped to the image.
func (p *Path) Segment(a, b mgl64.Vec2, width float64) {
	a, b, ok := ClipSegment(a, b, p.clip)
	if !ok {
		return
	}
	d := b.Sub(a)
	l := d.Len()
	if l < 1e-9 {
		p.Disc(a, width/2)
		return
	}
	n := mgl64.Vec2{-d[1], d[0]}.Mul(width / (2 * l))
	p.Polygon([]mgl64.Vec2{a.Add(n), b.Add(n), b.Sub(n), a.Sub(n)})
}

// Polyline strokes consecutive points. A non-finite point breaks the line.
func (p *Path) Polyline(pts []mgl64.Vec2, width float64) {
	for i := 1; i < len(pts); i++ {
		p.Segment(pts[i-1], pts[i], width)
	}
}

// Polygon adds a closed filled polygon. Polygons with any non-finite vertex
// are ignored.
func (p *Path) Polygon(pts []mgl64.Vec2) {
	if len(pts) < 3 {
		return
	}
	for _, v := range pts {
		if !Finite(v) {
			return
		}
	}
	p.ras.MoveTo(float32(pts[0][0]), float32(pts[0][1]))
	for _, v := range pts[1:] {
		p.ras.LineTo(float32(v[0]), float32(v[1]))
	}
	p.ras.ClosePath()
	p.empty = false
}

// Disc adds a filled circle.
func (p *Path) Disc(c mgl64.Vec2, r float64) {
	p.Polygon(circle(c, r, segmentsFor(r)))
}

// Ring adds a circle outline of the given stroke width.
func (p *Path) Ring(c mgl64.Vec2, r, width float64) {
	pts := circle(c, r, segmentsFor(r))
	p.Polyline(append(pts, pts[0]), width)
}

// Draw composites the accumulated coverage in col over dst and resets the
// path for reuse.
func (p *Path) Draw(dst *image.RGBA, col color.Color) {
	if !p.empty {
		p.ras.DrawOp = draw.Over
		p.ras.Draw(dst, dst.Bounds(), image.NewUniform(col), image.Point{})
	}
	p.Reset(dst.Bounds())
}

func segmentsFor(r float64) int {
	return max(12, min(96, int(r)))
}

func circle(c mgl64.Vec2, r float64, n int) []mgl64.Vec2 {
	pts := make([]mgl64.Vec2, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = mgl64.Vec2{c[0] + r*math.Cos(a), c[1] + r*math.Sin(a)}
	}
	return pts
}

// Finite reports whether both coordinates are real numbers.
func Finite(v mgl64.Vec2) bool {
	return !math.IsNaN(v[0]) && !math.IsNaN(v[1]) && !math.IsInf(v[0], 0) && !math.IsInf(v[1], 0)
}

// ClipSegment clips a..b to r (Liang-Barsky). ok is false when nothing
// of the segment is inside or an end is not finite.
func ClipSegment(a, b mgl64.Vec2, r image.Rectangle) (mgl64.Vec2, mgl64.Vec2, bool) {
	if !Finite(a) || !Finite(b) {
		return a, b, false
	}
	t0, t1 := 0.0, 1.0
	d := b.Sub(a)
	edges := [4][2]float64{
		{-d[0], a[0] - float64(r.Min.X)},
		{d[0], float64(r.Max.X) - a[0]},
		{-d[1], a[1] - float64(r.Min.Y)},
		{d[1], float64(r.Max.Y) - a[1]},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return a, b, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return a, b, false
			}
			t0 = max(t0, t)
		} else {
			if t < t0 {
				return a, b, false
			}
			t1 = min(t1, t)
		}
	}
	return a.Add(d.Mul(t0)), a.Add(d.Mul(t1)), true
}

// Fill paints r with col, replacing what was there.
func Fill(dst *image.RGBA, r image.Rectangle, col color.Color) {
	draw.Draw(dst, r, image.NewUniform(col), image.Point{}, draw.Src)
}

// Restore copies r from src into dst.
func Restore(dst, src *image.RGBA, r image.Rectangle) {
	draw.Draw(dst, r, src, r.Min, draw.Src)
}

// VLine draws a crisp vertical line at column x from y0 to y1 inclusive.
func VLine(dst *image.RGBA, x, y0, y1 int, col color.RGBA) {
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	b := dst.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	for y := max(y0, b.Min.Y); y <= min(y1, b.Max.Y-1); y++ {
		dst.SetRGBA(x, y, col)
	}
}

// HLine draws a crisp horizontal line at row y from x0 to x1 inclusive.
func HLine(dst *image.RGBA, x0, x1, y int, col color.RGBA) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	b := dst.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	for x := max(x0, b.Min.X); x <= min(x1, b.Max.X-1); x++ {
		dst.SetRGBA(x, y, col)
	}
}

// Text draws s with its baseline starting at (x, y).
func Text(dst draw.Image, x, y int, s string, col color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: Face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// TextBounds returns the pixel rectangle Text(x, y, s) covers.
func TextBounds(x, y int, s string) image.Rectangle {
	b, _ := font.BoundString(Face, s)
	return image.Rect(
		x+b.Min.X.Floor(), y+b.Min.Y.Floor(),
		x+b.Max.X.Ceil(), y+b.Max.Y.Ceil(),
	)
}

// TextWidth returns the advance width of s in pixels.
func TextWidth(s string) int {
	return font.MeasureString(Face, s).Ceil()
}

// Lerp blends two colors; t=0 gives a, t=1 gives b.
func Lerp(a, b color.RGBA, t float64) color.RGBA {
	t = max(0, min(1, t))
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), mix(a.A, b.A)}
}

// Shade scales a color's RGB channels by f in [0, 1].
func Shade(c color.RGBA, f float64) color.RGBA {
	f = max(0, min(1, f))
	return color.RGBA{
		uint8(float64(c.R) * f),
		uint8(float64(c.G) * f),
		uint8(float64(c.B) * f),
		c.A,
	}
}
