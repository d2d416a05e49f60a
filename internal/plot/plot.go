// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package plot draws record channels as line charts sharing a sample-index
// time axis, with a cursor that moves without redrawing the series.
package plot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/attitude_replay/internal/playback"
	"github.com/relabs-tech/attitude_replay/internal/raster"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

var (
	// ErrUnknownView is returned for a view id that was never added.
	ErrUnknownView = errors.New("unknown plot view")
	// ErrUnknownChannel is returned for a ViewSpec naming no channel group.
	ErrUnknownChannel = errors.New("unknown plot channel")
	// ErrViewTooSmall is returned when a view cannot fit its margins.
	ErrViewTooSmall = errors.New("plot view too small")
)

// Layout margins around the plot area, in pixels.
const (
	marginLeft   = 52
	marginRight  = 8
	marginTop    = 18
	marginBottom = 18
	gridLines    = 4
	strokeWidth  = 1.4
)

var (
	colorBackground = color.RGBA{20, 22, 28, 255}
	colorArea       = color.RGBA{28, 31, 38, 255}
	colorGrid       = color.RGBA{52, 56, 66, 255}
	colorText       = color.RGBA{210, 214, 220, 255}
	colorCursor     = color.RGBA{255, 200, 0, 255}
	colorLabelBox   = color.RGBA{0, 0, 0, 255}
)

// ViewID identifies one chart.
type ViewID string

// ViewSpec describes what a chart shows.
type ViewSpec struct {
	Title   string
	Channel Channel
	Width   int
	Height  int
	// Secondary views are not updated in simplified mode.
	Secondary bool
}

// scale maps sample index and value to pixels inside area.
type scale struct {
	area   image.Rectangle
	n      int
	lo, hi float64
}

func (s scale) x(i int) float64 {
	if s.n <= 1 {
		return float64(s.area.Min.X)
	}
	return float64(s.area.Min.X) + float64(i)*float64(s.area.Dx()-1)/float64(s.n-1)
}

func (s scale) y(v float64) float64 {
	return float64(s.area.Max.Y-1) - (v-s.lo)/(s.hi-s.lo)*float64(s.area.Dy()-1)
}

// index maps a pixel column to the nearest sample index.
func (s scale) index(px int) int {
	if s.n <= 1 {
		return 0
	}
	f := float64(px-s.area.Min.X) * float64(s.n-1) / float64(s.area.Dx()-1)
	return max(0, min(s.n-1, int(math.Round(f))))
}

type viewState struct {
	spec   ViewSpec
	rec    *trajectory.Record
	scale  scale
	series []series

	base  *image.RGBA
	frame *image.RGBA

	hasCursor bool
	cursor    int
	cursorX   int
	label     image.Rectangle

	// rasterized counts full redraws of the series.
	rasterized int
}

// Renderer owns every chart's state keyed by ViewID.
type Renderer struct {
	views      map[ViewID]*viewState
	order      []ViewID
	generation uint64
	onSeek     func(index int)
}

// New returns a renderer without views.
func New() *Renderer {
	return &Renderer{views: map[ViewID]*viewState{}}
}

// OnSeek registers the callback that Click invokes with the chosen index.
func (r *Renderer) OnSeek(fn func(index int)) {
	r.onSeek = fn
}

// AddView adds or replaces a chart. rec may be nil until a record is loaded.
func (r *Renderer) AddView(id ViewID, spec ViewSpec, rec *trajectory.Record) error {
	if spec.Width < marginLeft+marginRight+16 || spec.Height < marginTop+marginBottom+16 {
		return fmt.Errorf("%w: %s is %dx%d", ErrViewTooSmall, id, spec.Width, spec.Height)
	}
	if rec != nil {
		if _, err := extract(spec.Channel, rec); err != nil {
			return err
		}
	}

	v := &viewState{spec: spec}
	if err := v.build(rec); err != nil {
		return err
	}
	if _, exists := r.views[id]; !exists {
		r.order = append(r.order, id)
	}
	r.views[id] = v
	return nil
}

// Views lists view ids in the order they were added.
func (r *Renderer) Views() []ViewID {
	return append([]ViewID(nil), r.order...)
}

// Spec returns the spec a view was added with.
func (r *Renderer) Spec(id ViewID) (ViewSpec, bool) {
	v, ok := r.views[id]
	if !ok {
		return ViewSpec{}, false
	}
	return v.spec, true
}

// Frame returns the current image of a view, or nil.
func (r *Renderer) Frame(id ViewID) *image.RGBA {
	if v, ok := r.views[id]; ok {
		return v.frame
	}
	return nil
}

// SetRecord rebuilds every view for rec.
func (r *Renderer) SetRecord(rec *trajectory.Record) error {
	for _, id := range r.order {
		if err := r.views[id].build(rec); err != nil {
			return fmt.Errorf("view %s: %w", id, err)
		}
	}
	return nil
}

// Update moves every view's cursor to f.Index, rebuilding the views first
// when f carries a new record.
func (r *Renderer) Update(f playback.Frame) error {
	if f.Record == nil {
		return nil
	}
	if f.Generation != r.generation {
		if err := r.SetRecord(f.Record); err != nil {
			return err
		}
		r.generation = f.Generation
	}
	for _, id := range r.order {
		v := r.views[id]
		if v.spec.Secondary && f.Mode == playback.ModeSimplified {
			continue
		}
		if v.rec != f.Record {
			if err := v.build(f.Record); err != nil {
				return fmt.Errorf("view %s: %w", id, err)
			}
		}
		v.moveCursor(f.Index)
	}
	return nil
}

// SetCursor moves one view's cursor to index.
func (r *Renderer) SetCursor(id ViewID, index int) error {
	v, ok := r.views[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownView, id)
	}
	if v.rec == nil {
		return playback.ErrNoTrajectory
	}
	v.moveCursor(index)
	return nil
}

// Click maps pixel column x of a view to the nearest sample index and
// passes it to the OnSeek callback. Columns outside the plot area clamp to
// its edges.
func (r *Renderer) Click(id ViewID, x int) (int, error) {
	v, ok := r.views[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownView, id)
	}
	if v.rec == nil {
		return 0, playback.ErrNoTrajectory
	}
	x = max(v.scale.area.Min.X, min(v.scale.area.Max.X-1, x))
	index := v.scale.index(x)
	if r.onSeek != nil {
		r.onSeek(index)
	}
	return index, nil
}

func (v *viewState) build(rec *trajectory.Record) error {
	bounds := image.Rect(0, 0, v.spec.Width, v.spec.Height)
	area := image.Rect(marginLeft, marginTop, v.spec.Width-marginRight, v.spec.Height-marginBottom)

	v.rec = rec
	v.series = nil
	v.scale = scale{area: area, lo: -1, hi: 1}
	if rec != nil {
		ss, err := extract(v.spec.Channel, rec)
		if err != nil {
			return err
		}
		v.series = ss
		lo, hi := extent(ss)
		v.scale = scale{area: area, n: rec.Len(), lo: lo, hi: hi}
	}

	base := image.NewRGBA(bounds)
	raster.Fill(base, bounds, colorBackground)
	raster.Fill(base, area, colorArea)
	v.drawGrid(base)
	v.drawSeries(base)
	v.drawLegend(base)

	v.base = base
	v.frame = image.NewRGBA(bounds)
	raster.Restore(v.frame, base, bounds)
	v.hasCursor = false
	v.rasterized++
	return nil
}

func (v *viewState) drawGrid(dst *image.RGBA) {
	s := v.scale
	for k := 0; k <= gridLines; k++ {
		val := s.lo + (s.hi-s.lo)*float64(k)/gridLines
		y := int(math.Round(s.y(val)))
		raster.HLine(dst, s.area.Min.X, s.area.Max.X-1, y, colorGrid)

		label := strconv.FormatFloat(val, 'g', 4, 64)
		w := raster.TextWidth(label)
		raster.Text(dst, s.area.Min.X-4-w, y+4, label, colorText)
	}
}

// drawSeries strokes each series, breaking the line at unavailable samples.
func (v *viewState) drawSeries(dst *image.RGBA) {
	path := raster.NewPath(dst.Bounds())
	for _, ser := range v.series {
		var run []mgl64.Vec2
		flush := func() {
			if len(run) == 1 {
				path.Disc(run[0], strokeWidth/2)
			}
			path.Polyline(run, strokeWidth)
			run = run[:0]
		}
		for i, val := range ser.values {
			if !trajectory.Available(val) || math.IsInf(val, 0) {
				flush()
				continue
			}
			run = append(run, mgl64.Vec2{v.scale.x(i) + 0.5, v.scale.y(val) + 0.5})
		}
		flush()
		path.Draw(dst, ser.color)
	}
}

func (v *viewState) drawLegend(dst *image.RGBA) {
	raster.Text(dst, 4, raster.LineHeight, v.spec.Title, colorText)
	x := 4 + raster.TextWidth(v.spec.Title) + 12
	for _, ser := range v.series {
		raster.Fill(dst, image.Rect(x, 6, x+10, 12), ser.color)
		raster.Text(dst, x+13, raster.LineHeight, ser.label, colorText)
		x += 13 + raster.TextWidth(ser.label) + 10
	}
}

// moveCursor repaints only the previous cursor column and label from the
// base image, then draws the new ones.
func (v *viewState) moveCursor(index int) {
	if v.rec == nil {
		return
	}
	index = v.rec.ClampIndex(index)
	area := v.scale.area

	if v.hasCursor {
		raster.Restore(v.frame, v.base, image.Rect(v.cursorX, area.Min.Y, v.cursorX+1, area.Max.Y))
		raster.Restore(v.frame, v.base, v.label)
	}

	x := int(math.Round(v.scale.x(index)))
	raster.VLine(v.frame, x, area.Min.Y, area.Max.Y-1, colorCursor)

	text := "t=---"
	if t := v.rec.T[index]; trajectory.Available(t) {
		text = "t=" + strconv.FormatFloat(t, 'f', 2, 64) + "s"
	}
	w := raster.TextWidth(text)
	lx := max(0, min(v.spec.Width-w-4, x-w/2-2))
	box := image.Rect(lx, area.Max.Y+2, lx+w+4, v.spec.Height).Intersect(v.frame.Bounds())
	raster.Fill(v.frame, box, colorLabelBox)
	raster.Text(v.frame, lx+2, area.Max.Y+2+raster.LineHeight-2, text, colorCursor)

	v.hasCursor = true
	v.cursor = index
	v.cursorX = x
	v.label = box
}

// View pairs an id with its spec.
type View struct {
	ID   ViewID
	Spec ViewSpec
}

// DefaultViews is the chart set of the viewers.
func DefaultViews(width, height int) []View {
	mk := func(title string, ch Channel, secondary bool) ViewSpec {
		return ViewSpec{Title: title, Channel: ch, Width: width, Height: height, Secondary: secondary}
	}
	return []View{
		{"position", mk("position [m]", ChannelPosition, false)},
		{"velocity", mk("velocity [m/s]", ChannelVelocity, false)},
		{"speed", mk("speed [m/s]", ChannelSpeed, true)},
		{"euler", mk("attitude [deg]", ChannelEuler, true)},
		{"angular_velocity", mk("angular rate [rad/s]", ChannelAngularVelocity, true)},
		{"fuel", mk("fuel", ChannelFuel, true)},
	}
}
