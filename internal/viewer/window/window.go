// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package window puts a viewer on screen with ebiten.
package window

import (
	"errors"
	"fmt"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/relabs-tech/attitude_replay/internal/scene"
	"github.com/relabs-tech/attitude_replay/internal/viewer"
)

const tps = 60

// A held arrow key repeats after keyRepeatDelay ticks, then every
// keyRepeatEvery ticks.
const (
	keyRepeatDelay = 18
	keyRepeatEvery = 3
)

var background = color.RGBA{12, 14, 18, 255}

// Run opens the window and blocks until it is closed. A window that cannot
// be created is reported as scene.ErrRenderContextUnavailable.
func Run(v *viewer.Viewer, title string) error {
	w, h := v.Size()
	g := &game{v: v, images: map[string]*ebiten.Image{}}

	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(w, h)
	ebiten.SetTPS(tps)

	err := ebiten.RunGame(g)
	switch {
	case err == nil, errors.Is(err, ebiten.Termination):
		return nil
	default:
		return fmt.Errorf("%w: %v", scene.ErrRenderContextUnavailable, err)
	}
}

type game struct {
	v      *viewer.Viewer
	images map[string]*ebiten.Image
}

func repeating(key ebiten.Key) bool {
	d := inpututil.KeyPressDuration(key)
	return d == 1 || (d > keyRepeatDelay && d%keyRepeatEvery == 0)
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		return ebiten.Termination
	}

	shift := ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight)
	var actions []viewer.Action
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		actions = append(actions, viewer.ActionToggle)
	}
	if repeating(ebiten.KeyArrowLeft) {
		if shift {
			actions = append(actions, viewer.ActionJumpBack)
		} else {
			actions = append(actions, viewer.ActionStepBack)
		}
	}
	if repeating(ebiten.KeyArrowRight) {
		if shift {
			actions = append(actions, viewer.ActionJumpForward)
		} else {
			actions = append(actions, viewer.ActionStepForward)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadAdd) {
		actions = append(actions, viewer.ActionFaster)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadSubtract) {
		actions = append(actions, viewer.ActionSlower)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		actions = append(actions, viewer.ActionMode)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		actions = append(actions, viewer.ActionSnapshot)
	}

	// Action errors land in the status line; the window stays up.
	for _, a := range actions {
		_ = g.v.Handle(a)
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		_ = g.v.Click(x, y)
	}

	g.v.Step(time.Second / tps)
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	for _, p := range g.v.Panels() {
		if !g.v.Visible(p) {
			continue
		}
		src := g.v.Image(p)
		if src == nil {
			continue
		}
		name := p.Name()
		img, ok := g.images[name]
		if !ok || img.Bounds().Dx() != src.Bounds().Dx() || img.Bounds().Dy() != src.Bounds().Dy() {
			if ok {
				img.Deallocate()
			}
			img = ebiten.NewImage(src.Bounds().Dx(), src.Bounds().Dy())
			g.images[name] = img
		}
		img.WritePixels(src.Pix)

		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(float64(p.Rect.Min.X), float64(p.Rect.Min.Y))
		screen.DrawImage(img, op)
	}
	_, h := g.v.Size()
	ebitenutil.DebugPrintAt(screen, g.v.Status(), 4, h-16)
}

func (g *game) Layout(_, _ int) (int, int) {
	return g.v.Size()
}
