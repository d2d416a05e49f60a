// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

type fakeScreen struct {
	frames []image.Image
	err    error
}

func (s *fakeScreen) Bounds() image.Rectangle {
	return image.Rect(0, 0, displayWidth, displayHeight)
}

func (s *fakeScreen) Draw(_ image.Rectangle, src image.Image, _ image.Point) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, src)
	return nil
}

func litPixels(img *image1bit.VerticalLSB) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestDisplayData_Handlers(t *testing.T) {
	var d DisplayData
	assert.False(t, d.snapshot().havePose)

	require.NoError(t, d.handlePose([]byte(`{"roll":1.5,"pitch":-2,"yaw":90}`)))
	require.NoError(t, d.handleState([]byte(`{"index":3,"t":0.3,"speed":null,"heading":45}`)))

	s := d.snapshot()
	assert.True(t, s.havePose)
	assert.InDelta(t, 90.0, s.pose.Yaw, 1e-12)
	assert.True(t, s.haveState)
	assert.Equal(t, 3, s.state.Index)
	assert.Nil(t, s.state.Speed)
	require.NotNil(t, s.state.Heading)
	assert.InDelta(t, 45.0, *s.state.Heading, 1e-12)

	assert.Error(t, d.handlePose([]byte("{")))
	assert.InDelta(t, 90.0, d.snapshot().pose.Yaw, 1e-12, "bad payload keeps the last pose")
}

func TestRenderDisplay(t *testing.T) {
	waiting := renderDisplay(displaySnapshot{})
	assert.Equal(t, image.Rect(0, 0, displayWidth, displayHeight), waiting.Bounds())
	assert.Positive(t, litPixels(waiting))

	var d DisplayData
	require.NoError(t, d.handlePose([]byte(`{"roll":10,"pitch":20,"yaw":30}`)))
	poseOnly := renderDisplay(d.snapshot())
	assert.NotEqual(t, waiting.Pix, poseOnly.Pix)

	require.NoError(t, d.handleState([]byte(`{"index":0,"t":1.5,"speed":12.5,"heading":270}`)))
	full := renderDisplay(d.snapshot())
	assert.False(t, bytes.Equal(poseOnly.Pix, full.Pix), "heading and speed replace the placeholders")
	assert.Greater(t, litPixels(full), litPixels(poseOnly))
}

func TestUpdateDisplay(t *testing.T) {
	screen := &fakeScreen{}
	require.NoError(t, showSplash(screen))
	require.NoError(t, updateDisplay(screen, displaySnapshot{}))
	require.Len(t, screen.frames, 2)

	screen.err = errors.New("i2c nack")
	assert.ErrorContains(t, updateDisplay(screen, displaySnapshot{}), "i2c nack")
}
