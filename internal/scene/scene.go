// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package scene renders the tracked body in a 3D world with a follow
// camera, and captures stills from an independent camera.
package scene

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/image/draw"

	"github.com/relabs-tech/attitude_replay/internal/playback"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

var (
	// ErrRenderContextUnavailable is returned when no render surface can be
	// allocated. It is fatal at startup.
	ErrRenderContextUnavailable = errors.New("render context unavailable")

	// ErrTransientFrame is returned for a frame that could not be drawn.
	ErrTransientFrame = playback.ErrTransientFrame
)

// maxTrailPoints bounds how many record samples the trail keeps.
const maxTrailPoints = 2000

// Config sizes the surfaces and tunes the camera.
type Config struct {
	Width          int
	Height         int
	SnapshotWidth  int
	SnapshotHeight int

	// FollowFraction is the share of the remaining distance the camera
	// moves toward target+Offset each frame.
	FollowFraction float64
	Offset         mgl64.Vec3
	SnapshotOffset mgl64.Vec3
	FovYDegrees    float64

	BodyLength float64
	BodyRadius float64
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Width:          640,
		Height:         480,
		SnapshotWidth:  160,
		SnapshotHeight: 120,
		FollowFraction: 0.25,
		Offset:         mgl64.Vec3{-6, -6, 3},
		SnapshotOffset: mgl64.Vec3{4, -5, 2},
		FovYDegrees:    50,
		BodyLength:     1.5,
		BodyRadius:     0.15,
	}
}

// Renderer is the live 3D view. It is driven from the playback goroutine.
type Renderer struct {
	cfg    Config
	logger *slog.Logger

	front, back *image.RGBA

	generation uint64
	rec        *trajectory.Record
	trailIdx   []int
	trailPts   []mgl64.Vec3

	index   int
	eye     mgl64.Vec3
	haveEye bool
	pose    Pose
	cam     Camera
}

// New validates cfg and allocates the render surfaces.
func New(cfg Config, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := checkSurface(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	if err := checkSurface(2*cfg.SnapshotWidth, 2*cfg.SnapshotHeight); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if cfg.FollowFraction <= 0 || cfg.FollowFraction > 1 {
		return nil, fmt.Errorf("camera follow fraction %v outside (0, 1]", cfg.FollowFraction)
	}
	if cfg.Offset.Len() < 1e-9 || cfg.SnapshotOffset.Len() < 1e-9 {
		return nil, errors.New("camera offset must be non-zero")
	}
	if cfg.BodyLength <= 0 || cfg.BodyRadius <= 0 {
		return nil, errors.New("body dimensions must be positive")
	}

	bounds := image.Rect(0, 0, cfg.Width, cfg.Height)
	r := &Renderer{
		cfg:    cfg,
		logger: logger,
		front:  image.NewRGBA(bounds),
		back:   image.NewRGBA(bounds),
	}
	logger.Debug("scene surfaces allocated", "width", cfg.Width, "height", cfg.Height)
	return r, nil
}

// PoseAt reads the pose of sample i.
func PoseAt(rec *trajectory.Record, i int) Pose {
	return Pose{Position: rec.Position[i], Orientation: rec.Orientation[i]}
}

// Frame returns the last successfully rendered image.
func (r *Renderer) Frame() *image.RGBA {
	return r.front
}

// Pose returns the body pose of the last rendered frame.
func (r *Renderer) Pose() Pose {
	return r.pose
}

// Camera returns the live camera of the last rendered frame.
func (r *Renderer) Camera() Camera {
	return r.cam
}

// Scene returns the static content of the last rendered frame, including
// the trail up to the current index.
func (r *Renderer) Scene() Scene {
	return r.sceneAt(r.trailUpTo(r.index))
}

// Update places the body exactly at the sample pose, advances the follow
// camera and renders. On error the previous frame is kept.
func (r *Renderer) Update(f playback.Frame) error {
	if f.Record == nil {
		return nil
	}
	if f.Generation != r.generation || f.Record != r.rec {
		r.install(f.Record, f.Generation)
	}

	pose := PoseAt(f.Record, f.Index)
	if !pose.Valid() {
		return fmt.Errorf("%w: sample %d has no pose", ErrTransientFrame, f.Index)
	}

	goal := pose.Position.Add(r.cfg.Offset)
	eye := goal
	if r.haveEye {
		eye = r.eye.Add(goal.Sub(r.eye).Mul(r.cfg.FollowFraction))
	}
	cam := r.camera(eye, pose.Position)

	sc := r.sceneAt(r.trailUpTo(f.Index))
	if err := renderInto(r.back, sc, pose, cam); err != nil {
		return err
	}

	r.front, r.back = r.back, r.front
	r.eye, r.haveEye = eye, true
	r.pose, r.cam = pose, cam
	r.index = f.Index
	return nil
}

// Capture renders a thumbnail of sample index from a camera placed at a
// fixed offset from the body. The live pose, camera and frame are not
// touched.
func (r *Renderer) Capture(rec *trajectory.Record, index int) (*image.RGBA, error) {
	index = rec.ClampIndex(index)
	pose := PoseAt(rec, index)
	cam := r.camera(pose.Position.Add(r.cfg.SnapshotOffset), pose.Position)

	trail := r.trailUpTo(index)
	if rec != r.rec {
		idx, pts := sampleTrail(rec)
		trail = pts[:sort.SearchInts(idx, index+1)]
	}

	w, h := r.cfg.SnapshotWidth, r.cfg.SnapshotHeight
	full, err := RenderPoseToImage(r.sceneAt(trail), pose, cam, 2*w, 2*h)
	if err != nil {
		return nil, err
	}
	thumb := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(thumb, thumb.Bounds(), full, full.Bounds(), draw.Src, nil)
	return thumb, nil
}

func (r *Renderer) install(rec *trajectory.Record, generation uint64) {
	r.rec = rec
	r.generation = generation
	r.haveEye = false
	r.index = 0
	r.trailIdx, r.trailPts = sampleTrail(rec)
	r.logger.Debug("scene reset for new trajectory", "samples", rec.Len(), "trail_points", len(r.trailPts))
}

func (r *Renderer) camera(eye, target mgl64.Vec3) Camera {
	dist := eye.Sub(target).Len()
	return Camera{
		Eye:    eye,
		Target: target,
		Up:     worldUp,
		FovY:   mgl64.DegToRad(r.cfg.FovYDegrees),
		Near:   0.05,
		Far:    max(1000, 100*dist),
	}
}

func (r *Renderer) sceneAt(trail []mgl64.Vec3) Scene {
	return Scene{
		Trail:       trail,
		GridSpacing: niceStep(r.cfg.Offset.Len() / 4),
		GridLines:   12,
		BodyLength:  r.cfg.BodyLength,
		BodyRadius:  r.cfg.BodyRadius,
	}
}

// trailUpTo returns the sampled trail points at or before index.
func (r *Renderer) trailUpTo(index int) []mgl64.Vec3 {
	return r.trailPts[:sort.SearchInts(r.trailIdx, index+1)]
}

// sampleTrail keeps at most maxTrailPoints evenly spaced positions.
func sampleTrail(rec *trajectory.Record) ([]int, []mgl64.Vec3) {
	stride := max(1, (rec.Len()+maxTrailPoints-1)/maxTrailPoints)
	var idx []int
	var pts []mgl64.Vec3
	for i := 0; i < rec.Len(); i += stride {
		idx = append(idx, i)
		pts = append(pts, rec.Position[i])
	}
	return idx, pts
}

// niceStep rounds v up to 1, 2 or 5 times a power of ten.
func niceStep(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 5, 10} {
		if m*exp >= v {
			return m * exp
		}
	}
	return 10 * exp
}
