// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package trajectory

import (
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// straightRecord returns n samples climbing along z with identity attitude.
func straightRecord(t *testing.T, n int, mutate func(Columns)) *Record {
	t.Helper()
	cols := Columns{}
	for _, c := range RequiredColumns {
		cols.Set(c, make([]float64, n))
	}
	for i := range n {
		cols[ColT][i] = float64(i) * 0.5
		cols[ColZ][i] = float64(i * i)
		cols[ColVZ][i] = 2 * float64(i)
		cols[ColQW][i] = 1
	}
	if mutate != nil {
		mutate(cols)
	}
	rec, err := NewRecord("test", cols, nil)
	require.NoError(t, err)
	return rec
}

func TestSummarize(t *testing.T) {
	rec := straightRecord(t, 10, func(c Columns) {
		c.Set(ColFuel, []float64{5, 4, 3, 2, NotAvailable, 1.5, 1.5, 1.5, 1.5, 1.5})
		c[ColQW][3] = 2
	})

	s := Summarize(rec)
	assert.Equal(t, 10, s.Samples)
	assert.Equal(t, 0.0, s.T0)
	assert.Equal(t, 4.5, s.T1)
	assert.Equal(t, 1.0, s.QNormMin)
	assert.Equal(t, 2.0, s.QNormMax)
	assert.Equal(t, 18.0, s.SpeedMax)
	assert.Equal(t, 1.5, s.FuelMin)
	assert.True(t, math.IsNaN(s.OmegaMax), "no angular velocity channel")
}

func TestFirstNonFinite(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		_, found := FirstNonFinite(straightRecord(t, 5, nil))
		assert.False(t, found, "absent optional channels are not reported")
	})

	t.Run("required NaN", func(t *testing.T) {
		rec := straightRecord(t, 5, func(c Columns) { c[ColVX][3] = NotAvailable })
		idx, found := FirstNonFinite(rec)
		require.True(t, found)
		assert.Equal(t, 3, idx)
	})

	t.Run("infinity", func(t *testing.T) {
		rec := straightRecord(t, 5, func(c Columns) { c[ColX][2] = math.Inf(1) })
		idx, found := FirstNonFinite(rec)
		require.True(t, found)
		assert.Equal(t, 2, idx)
	})

	t.Run("gap in present optional channel", func(t *testing.T) {
		rec := straightRecord(t, 5, func(c Columns) {
			c.Set(ColFuel, []float64{1, 1, 1, NotAvailable, 1})
		})
		idx, found := FirstNonFinite(rec)
		require.True(t, found)
		assert.Equal(t, 3, idx)
	})
}

func TestKeyFrames(t *testing.T) {
	tests := []struct {
		n, every int
		want     []int
	}{
		{0, 10, nil},
		{1, 10, []int{0}},
		{5, 10, []int{0, 4}},
		{10, 5, []int{0, 5, 9}},
		{11, 5, []int{0, 5, 10}},
		{4, 1, []int{0, 1, 2, 3}},
		{6, 0, []int{0, 5}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KeyFrames(tt.n, tt.every), "n=%d every=%d", tt.n, tt.every)
	}
}

func TestRecord_PoseSource(t *testing.T) {
	rec := straightRecord(t, 3, func(c Columns) {
		// 90 degrees about z on the last sample.
		c[ColQW][2] = math.Sqrt2 / 2
		c[ColQZ][2] = math.Sqrt2 / 2
	})

	src := rec.PoseSource()
	for i := range 3 {
		p, err := src.Next()
		require.NoError(t, err, "sample %d", i)
		if i == 2 {
			assert.InDelta(t, 90.0, p.Yaw, 1e-9)
		} else {
			assert.InDelta(t, 0.0, p.Yaw, 1e-9)
		}
	}
	_, err := src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRecord_ClampIndexAndSpeed(t *testing.T) {
	rec := straightRecord(t, 4, func(c Columns) { c[ColVY][1] = NotAvailable })
	assert.Equal(t, 0, rec.ClampIndex(-3))
	assert.Equal(t, 3, rec.ClampIndex(99))
	assert.Equal(t, 2, rec.ClampIndex(2))
	assert.InDelta(t, 6.0, rec.Speed(3), 1e-12)
	assert.True(t, math.IsNaN(rec.Speed(1)))
}
