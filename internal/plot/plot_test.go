// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package plot

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/attitude_replay/internal/playback"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

func testRecord(t *testing.T, n int, fuel []float64) *trajectory.Record {
	t.Helper()
	cols := trajectory.Columns{}
	for _, c := range trajectory.RequiredColumns {
		cols.Set(c, make([]float64, n))
	}
	for i := range n {
		cols[trajectory.ColT][i] = float64(i) * 0.25
		cols[trajectory.ColX][i] = float64(i)
		cols[trajectory.ColY][i] = -float64(i)
		cols[trajectory.ColZ][i] = math.Sin(float64(i) / 10)
		cols[trajectory.ColVX][i] = 1
		cols[trajectory.ColQW][i] = 1
	}
	if fuel != nil {
		cols.Set(trajectory.ColFuel, fuel)
	}
	rec, err := trajectory.NewRecord("test", cols, nil)
	require.NoError(t, err)
	return rec
}

func TestExtent(t *testing.T) {
	tests := []struct {
		name   string
		values [][]float64
		lo, hi float64
	}{
		{"joint range padded", [][]float64{{0, 4}, {10, 2}}, -0.5, 10.5},
		{"degenerate widened", [][]float64{{3, 3, 3}}, 1.9, 4.1},
		{"sentinels ignored", [][]float64{{trajectory.NotAvailable, 2, 4}}, 1.9, 4.1},
		{"all missing", [][]float64{{trajectory.NotAvailable}, {}}, -1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ss []series
			for _, v := range tt.values {
				ss = append(ss, series{values: v})
			}
			lo, hi := extent(ss)
			assert.InDelta(t, tt.lo, lo, 1e-12)
			assert.InDelta(t, tt.hi, hi, 1e-12)
		})
	}
}

func TestScale(t *testing.T) {
	s := scale{area: image.Rect(50, 10, 251, 110), n: 101, lo: 0, hi: 1}
	assert.Equal(t, 50.0, s.x(0))
	assert.Equal(t, 250.0, s.x(100))
	assert.Equal(t, 150.0, s.x(50))
	assert.Equal(t, 109.0, s.y(0))
	assert.Equal(t, 10.0, s.y(1))

	for i := 0; i < 101; i++ {
		assert.Equal(t, i, s.index(int(s.x(i))))
	}
	assert.Equal(t, 0, s.index(0))
	assert.Equal(t, 100, s.index(1000))

	single := scale{area: s.area, n: 1, lo: -1, hi: 1}
	assert.Equal(t, 50.0, single.x(0))
	assert.Equal(t, 0, single.index(200))
}

func TestRenderer_ClickSeeks(t *testing.T) {
	r := New()
	rec := testRecord(t, 100, nil)
	require.NoError(t, r.AddView("position", ViewSpec{Title: "position", Channel: ChannelPosition, Width: 400, Height: 150}, rec))

	var sought []int
	r.OnSeek(func(i int) { sought = append(sought, i) })

	v := r.views["position"]
	idx, err := r.Click("position", int(math.Round(v.scale.x(37))))
	require.NoError(t, err)
	assert.Equal(t, 37, idx)

	idx, err = r.Click("position", -20)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = r.Click("position", 10_000)
	require.NoError(t, err)
	assert.Equal(t, 99, idx)

	assert.Equal(t, []int{37, 0, 99}, sought)

	_, err = r.Click("nope", 10)
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestRenderer_CursorIsIncremental(t *testing.T) {
	r := New()
	rec := testRecord(t, 200, nil)
	require.NoError(t, r.AddView("position", ViewSpec{Title: "position", Channel: ChannelPosition, Width: 320, Height: 140}, rec))
	v := r.views["position"]

	require.NoError(t, r.SetCursor("position", 10))
	require.NoError(t, r.SetCursor("position", 150))
	assert.Equal(t, 1, v.rasterized, "moving the cursor must not redraw the series")

	cursorCol := image.Rect(v.cursorX, v.scale.area.Min.Y, v.cursorX+1, v.scale.area.Max.Y)
	frame, base := r.Frame("position"), v.base
	b := frame.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := image.Pt(x, y)
			if p.In(cursorCol) || p.In(v.label) {
				continue
			}
			require.Equal(t, base.RGBAAt(x, y), frame.RGBAAt(x, y), "pixel %v differs from base", p)
		}
	}

	mid := (v.scale.area.Min.Y + v.scale.area.Max.Y) / 2
	assert.Equal(t, colorCursor, frame.RGBAAt(v.cursorX, mid))
	assert.Equal(t, 150, v.cursor)

	require.NoError(t, r.SetCursor("position", 1_000))
	assert.Equal(t, 199, v.cursor)
}

func TestRenderer_LinesBreakAtSentinel(t *testing.T) {
	fuel := make([]float64, 100)
	for i := range fuel {
		fuel[i] = 1
		if i >= 40 && i < 60 {
			fuel[i] = trajectory.NotAvailable
		}
	}
	r := New()
	// Height 137 leaves an area 101 pixels high so the fuel line sits on a
	// pixel row.
	require.NoError(t, r.AddView("fuel", ViewSpec{Title: "fuel", Channel: ChannelFuel, Width: 300, Height: 137}, testRecord(t, 100, fuel)))
	v := r.views["fuel"]

	isFuel := func(i int) bool {
		c := v.base.RGBAAt(int(v.scale.x(i)), int(math.Round(v.scale.y(1))))
		return c.R > 200 && c.G > 160 && c.B < 100
	}
	assert.True(t, isFuel(20))
	assert.True(t, isFuel(80))
	assert.False(t, isFuel(50))
}

func TestRenderer_Update(t *testing.T) {
	r := New()
	for _, view := range DefaultViews(260, 120) {
		require.NoError(t, r.AddView(view.ID, view.Spec, nil))
	}
	assert.Len(t, r.Views(), 6)
	assert.ErrorIs(t, r.SetCursor("position", 3), playback.ErrNoTrajectory)

	rec := testRecord(t, 50, nil)
	require.NoError(t, r.Update(playback.Frame{Record: rec, Index: 5, Generation: 1}))
	assert.Equal(t, 5, r.views["position"].cursor)
	assert.Equal(t, 5, r.views["fuel"].cursor)
	assert.Equal(t, 2, r.views["position"].rasterized)

	require.NoError(t, r.Update(playback.Frame{Record: rec, Index: 9, Generation: 1, Mode: playback.ModeSimplified}))
	assert.Equal(t, 9, r.views["position"].cursor)
	assert.Equal(t, 5, r.views["fuel"].cursor, "secondary views wait in simplified mode")
	assert.Equal(t, 2, r.views["position"].rasterized)

	other := testRecord(t, 10, nil)
	require.NoError(t, r.Update(playback.Frame{Record: other, Index: 0, Generation: 2}))
	assert.Equal(t, 3, r.views["position"].rasterized)
	assert.Equal(t, 10, r.views["position"].scale.n)
}

func TestRenderer_AddViewErrors(t *testing.T) {
	r := New()
	rec := testRecord(t, 5, nil)
	err := r.AddView("bad", ViewSpec{Channel: "temperature", Width: 300, Height: 150}, rec)
	assert.ErrorIs(t, err, ErrUnknownChannel)

	err = r.AddView("tiny", ViewSpec{Channel: ChannelSpeed, Width: 40, Height: 20}, rec)
	assert.ErrorIs(t, err, ErrViewTooSmall)
	assert.Empty(t, r.Views())
}
