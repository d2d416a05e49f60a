// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package scene

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/attitude_replay/internal/orientation"
	"github.com/relabs-tech/attitude_replay/internal/raster"
)

// maxSurfacePixels bounds a render surface; larger requests fail like a
// missing render context.
const maxSurfacePixels = 4096 * 4096

var (
	colorSkyTop      = color.RGBA{38, 78, 138, 255}
	colorSkyHorizon  = color.RGBA{150, 188, 226, 255}
	colorGroundNear  = color.RGBA{68, 54, 36, 255}
	colorGroundFar   = color.RGBA{139, 110, 73, 255}
	colorHorizon     = color.NRGBA{255, 255, 255, 150}
	colorGrid        = color.NRGBA{235, 230, 210, 90}
	colorTrail       = color.NRGBA{255, 150, 40, 230}
	colorDropLine    = color.NRGBA{255, 255, 255, 90}
	colorHull        = color.RGBA{225, 225, 230, 255}
	colorHullMarked  = color.RGBA{210, 60, 50, 255}
	colorNose        = color.RGBA{240, 120, 40, 255}
	lightDir         = mgl64.Vec3{0.4, 0.3, 0.85}.Normalize()
	worldUp          = mgl64.Vec3{0, 0, 1}
	fallbackUp       = mgl64.Vec3{0, 1, 0}
	ambient, diffuse = 0.35, 0.65
)

// Pose is the body's position and body-to-world orientation at one sample.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// Valid reports whether every component of the pose is finite.
func (p Pose) Valid() bool {
	return finiteVec(p.Position) && finiteVec(p.Orientation.V) && finite(p.Orientation.W)
}

// Camera is a perspective camera. FovY is in radians.
type Camera struct {
	Eye    mgl64.Vec3
	Target mgl64.Vec3
	Up     mgl64.Vec3
	FovY   float64
	Near   float64
	Far    float64
}

// Scene is the static content drawn around the body.
type Scene struct {
	// Trail is the path flown so far. Non-finite points break it.
	Trail       []mgl64.Vec3
	GridSpacing float64
	GridLines   int
	BodyLength  float64
	BodyRadius  float64
}

// RenderPoseToImage draws sc with the body at pose, seen from cam, into a
// new w x h image. It has no side effects.
func RenderPoseToImage(sc Scene, pose Pose, cam Camera, w, h int) (*image.RGBA, error) {
	if err := checkSurface(w, h); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := renderInto(img, sc, pose, cam); err != nil {
		return nil, err
	}
	return img, nil
}

func checkSurface(w, h int) error {
	if w <= 0 || h <= 0 || w*h > maxSurfacePixels {
		return fmt.Errorf("%w: %dx%d surface", ErrRenderContextUnavailable, w, h)
	}
	return nil
}

func renderInto(img *image.RGBA, sc Scene, pose Pose, cam Camera) error {
	if !pose.Valid() {
		return fmt.Errorf("%w: non-finite pose", ErrTransientFrame)
	}
	b := img.Bounds()
	p, err := newProjector(cam, b.Dx(), b.Dy())
	if err != nil {
		return err
	}

	p.background(img)
	path := raster.NewPath(b)

	p.horizon(path)
	path.Draw(img, colorHorizon)

	p.grid(path, sc, pose.Position)
	path.Draw(img, colorGrid)

	if pose.Position[2] > 0 {
		ground := mgl64.Vec3{pose.Position[0], pose.Position[1], 0}
		if a, c, ok := p.segment(pose.Position, ground); ok {
			path.Segment(a, c, 1)
		}
		path.Draw(img, colorDropLine)
	}

	p.trail(path, sc.Trail, pose.Position)
	path.Draw(img, colorTrail)

	p.body(img, path, sc, pose)
	return nil
}

// projector maps world points to pixels for one camera.
type projector struct {
	view, proj mgl64.Mat4
	w, h       float64
	near       float64

	eye, fwd, right, up mgl64.Vec3
	tanX, tanY          float64
}

func newProjector(cam Camera, w, h int) (projector, error) {
	if !finiteVec(cam.Eye) || !finiteVec(cam.Target) {
		return projector{}, fmt.Errorf("%w: non-finite camera", ErrTransientFrame)
	}
	fwd := cam.Target.Sub(cam.Eye)
	if fwd.Len() < 1e-9 {
		return projector{}, fmt.Errorf("%w: camera eye on target", ErrTransientFrame)
	}
	fwd = fwd.Normalize()

	up := cam.Up
	if up.Len() < 1e-12 {
		up = worldUp
	}
	if fwd.Cross(up).Len() < 1e-9 {
		up = fallbackUp
	}
	right := fwd.Cross(up).Normalize()
	trueUp := right.Cross(fwd)

	near, far := cam.Near, cam.Far
	if near <= 0 {
		near = 0.05
	}
	if far <= near {
		far = near * 1e5
	}
	fovY := cam.FovY
	if fovY <= 0 || fovY >= math.Pi {
		fovY = mgl64.DegToRad(50)
	}

	aspect := float64(w) / float64(h)
	return projector{
		view:  mgl64.LookAtV(cam.Eye, cam.Target, up),
		proj:  mgl64.Perspective(fovY, aspect, near, far),
		w:     float64(w),
		h:     float64(h),
		near:  near,
		eye:   cam.Eye,
		fwd:   fwd,
		right: right,
		up:    trueUp,
		tanY:  math.Tan(fovY / 2),
		tanX:  math.Tan(fovY/2) * aspect,
	}, nil
}

func (p projector) toView(v mgl64.Vec3) mgl64.Vec3 {
	return p.view.Mul4x1(v.Vec4(1)).Vec3()
}

// screen projects a view-space point in front of the near plane.
func (p projector) screen(v mgl64.Vec3) mgl64.Vec2 {
	c := p.proj.Mul4x1(v.Vec4(1))
	x, y := c[0]/c[3], c[1]/c[3]
	return mgl64.Vec2{(x + 1) / 2 * p.w, (1 - y) / 2 * p.h}
}

// Project returns the pixel position of a world point and whether it lies
// in front of the camera.
func (p projector) project(v mgl64.Vec3) (mgl64.Vec2, bool) {
	vv := p.toView(v)
	if vv[2] > -p.near {
		return mgl64.Vec2{}, false
	}
	return p.screen(vv), true
}

// segment projects a world segment clipped against the near plane.
func (p projector) segment(a, b mgl64.Vec3) (mgl64.Vec2, mgl64.Vec2, bool) {
	va, vb := p.toView(a), p.toView(b)
	limit := -p.near
	inA, inB := va[2] <= limit, vb[2] <= limit
	switch {
	case !inA && !inB:
		return mgl64.Vec2{}, mgl64.Vec2{}, false
	case !inA:
		va = va.Add(vb.Sub(va).Mul((limit - va[2]) / (vb[2] - va[2])))
	case !inB:
		vb = vb.Add(va.Sub(vb).Mul((limit - vb[2]) / (va[2] - vb[2])))
	}
	return p.screen(va), p.screen(vb), true
}

// background shades every pixel as sky or ground by the elevation of its
// view ray.
func (p projector) background(img *image.RGBA) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	for py := range h {
		ny := 1 - 2*(float64(py)+0.5)/p.h
		rowDir := p.fwd.Add(p.up.Mul(ny * p.tanY))
		for px := range w {
			nx := 2*(float64(px)+0.5)/p.w - 1
			dir := rowDir.Add(p.right.Mul(nx * p.tanX))
			elev := dir[2] / dir.Len()

			var c color.RGBA
			if elev >= 0 {
				c = raster.Lerp(colorSkyHorizon, colorSkyTop, math.Sqrt(elev))
			} else {
				c = raster.Lerp(colorGroundFar, colorGroundNear, math.Sqrt(-elev))
			}
			img.SetRGBA(px, py, c)
		}
	}
}

// horizon strokes the line where view rays are level.
func (p projector) horizon(path *raster.Path) {
	if math.Abs(p.up[2]) < 1e-9 {
		return
	}
	rowAt := func(nx float64) float64 {
		ny := -(p.fwd[2] + p.right[2]*nx*p.tanX) / (p.up[2] * p.tanY)
		return (1 - ny) / 2 * p.h
	}
	path.Segment(mgl64.Vec2{0, rowAt(-1)}, mgl64.Vec2{p.w, rowAt(1)}, 1.2)
}

// grid strokes a square grid on z=0 centered under the body.
func (p projector) grid(path *raster.Path, sc Scene, center mgl64.Vec3) {
	if sc.GridSpacing <= 0 || sc.GridLines <= 0 {
		return
	}
	s := sc.GridSpacing
	cx, cy := math.Floor(center[0]/s)*s, math.Floor(center[1]/s)*s
	half := float64(sc.GridLines) * s
	for k := -sc.GridLines; k <= sc.GridLines; k++ {
		off := float64(k) * s
		lines := [2][2]mgl64.Vec3{
			{{cx + off, cy - half, 0}, {cx + off, cy + half, 0}},
			{{cx - half, cy + off, 0}, {cx + half, cy + off, 0}},
		}
		for _, l := range lines {
			if a, b, ok := p.segment(l[0], l[1]); ok {
				path.Segment(a, b, 1)
			}
		}
	}
}

func (p projector) trail(path *raster.Path, pts []mgl64.Vec3, head mgl64.Vec3) {
	prev, havePrev := mgl64.Vec3{}, false
	draw := func(pt mgl64.Vec3) {
		if !finiteVec(pt) {
			havePrev = false
			return
		}
		if havePrev {
			if a, b, ok := p.segment(prev, pt); ok {
				path.Segment(a, b, 2)
			}
		}
		prev, havePrev = pt, true
	}
	for _, pt := range pts {
		draw(pt)
	}
	draw(head)
}

type face struct {
	verts  []mgl64.Vec3 // body frame
	normal mgl64.Vec3   // body frame
	color  color.RGBA
}

// bodyFaces builds the proxy: a box along body +z with a pyramid nose.
// The +x side is marked so roll is visible.
func bodyFaces(length, radius float64) []face {
	r, h := radius, length*0.4
	tip := mgl64.Vec3{0, 0, h + length*0.2}
	c := func(x, y, z float64) mgl64.Vec3 { return mgl64.Vec3{x * r, y * r, z * h} }

	faces := []face{
		{[]mgl64.Vec3{c(1, -1, -1), c(1, 1, -1), c(1, 1, 1), c(1, -1, 1)}, mgl64.Vec3{1, 0, 0}, colorHullMarked},
		{[]mgl64.Vec3{c(-1, 1, -1), c(-1, -1, -1), c(-1, -1, 1), c(-1, 1, 1)}, mgl64.Vec3{-1, 0, 0}, colorHull},
		{[]mgl64.Vec3{c(1, 1, -1), c(-1, 1, -1), c(-1, 1, 1), c(1, 1, 1)}, mgl64.Vec3{0, 1, 0}, colorHull},
		{[]mgl64.Vec3{c(-1, -1, -1), c(1, -1, -1), c(1, -1, 1), c(-1, -1, 1)}, mgl64.Vec3{0, -1, 0}, colorHull},
		{[]mgl64.Vec3{c(-1, -1, -1), c(-1, 1, -1), c(1, 1, -1), c(1, -1, -1)}, mgl64.Vec3{0, 0, -1}, colorHull},
	}
	top := [4]mgl64.Vec3{c(1, -1, 1), c(1, 1, 1), c(-1, 1, 1), c(-1, -1, 1)}
	for i := range 4 {
		a, b := top[i], top[(i+1)%4]
		n := b.Sub(a).Cross(tip.Sub(a)).Normalize()
		faces = append(faces, face{[]mgl64.Vec3{a, b, tip}, n, colorNose})
	}
	return faces
}

// body draws the proxy's visible faces back to front with flat shading.
func (p projector) body(img *image.RGBA, path *raster.Path, sc Scene, pose Pose) {
	q := orientation.Normalize(pose.Orientation)

	type drawn struct {
		pts   []mgl64.Vec2
		depth float64
		color color.RGBA
	}
	var visible []drawn

	for _, f := range bodyFaces(sc.BodyLength, sc.BodyRadius) {
		n := q.Rotate(f.normal)
		var centroid mgl64.Vec3
		world := make([]mgl64.Vec3, len(f.verts))
		for i, v := range f.verts {
			world[i] = pose.Position.Add(q.Rotate(v))
			centroid = centroid.Add(world[i])
		}
		centroid = centroid.Mul(1 / float64(len(world)))
		if n.Dot(centroid.Sub(p.eye)) >= 0 {
			continue
		}

		pts := make([]mgl64.Vec2, 0, len(world))
		inFront := true
		for _, v := range world {
			s, ok := p.project(v)
			if !ok {
				inFront = false
				break
			}
			pts = append(pts, s)
		}
		if !inFront {
			continue
		}

		light := ambient + diffuse*max(0, n.Dot(lightDir))
		visible = append(visible, drawn{pts, p.toView(centroid)[2], raster.Shade(f.color, light)})
	}

	// View-space z is negative in front of the camera; most negative first.
	sort.Slice(visible, func(i, j int) bool { return visible[i].depth < visible[j].depth })
	for _, d := range visible {
		path.Polygon(d.pts)
		path.Draw(img, d.color)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteVec(v mgl64.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}
