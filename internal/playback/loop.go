// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package playback

import (
	"context"
	"log/slog"
	"time"

	"github.com/relabs-tech/attitude_replay/internal/telemetry"
	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

// Loader produces records. *trajectory.Loader satisfies it.
type Loader interface {
	Load(ctx context.Context, path string) (*trajectory.Record, error)
	LoadDemo(ctx context.Context) (*trajectory.Record, error)
}

// EventKind says what produced a StateEvent.
type EventKind string

const (
	EventState    EventKind = "state"
	EventLoaded   EventKind = "loaded"
	EventSnapshot EventKind = "snapshot"
	EventError    EventKind = "error"
)

// StateEvent is delivered to observers on the loop goroutine after every
// change. Frame is only valid during the callback.
type StateEvent struct {
	Kind     EventKind
	State    State
	Frame    Frame
	Snapshot *Snapshot
	Err      error
}

// TickerFunc starts a ticker and returns its channel and a stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func timeTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type command struct {
	fn    func(c *Controller) error
	reply chan error
	// quiet commands only read state and notify nobody.
	quiet bool
}

type loaded struct {
	seq  uint64
	path string
	rec  *trajectory.Record
	err  error
	done chan error
}

// Loop owns a Controller on a single goroutine. Commands, ticks and load
// results are serialized through Run's select loop.
type Loop struct {
	ctrl     *Controller
	loader   Loader
	interval time.Duration
	ticker   TickerFunc

	cmds    chan command
	ticks   chan uint64
	results chan loaded
	done    chan struct{}

	observers []func(StateEvent)

	// Owned by the Run goroutine.
	tickGen    uint64
	stopTicker func()
	loadSeq    uint64

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// LoopOption customizes a Loop.
type LoopOption func(*Loop)

// WithTicker replaces time.NewTicker, mainly for tests.
func WithTicker(fn TickerFunc) LoopOption {
	return func(l *Loop) { l.ticker = fn }
}

// NewLoop wraps ctrl. interval is the wall-clock time between ticks.
func NewLoop(ctrl *Controller, loader Loader, interval time.Duration, logger *slog.Logger, metrics *telemetry.Metrics, opts ...LoopOption) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		ctrl:     ctrl,
		loader:   loader,
		interval: interval,
		ticker:   timeTicker,
		cmds:     make(chan command),
		ticks:    make(chan uint64),
		results:  make(chan loaded),
		done:     make(chan struct{}),
		logger:   logger,
		metrics:  metrics,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Observe registers fn for every StateEvent. It must be called before Run.
// fn runs on the loop goroutine and must not call Loop commands.
func (l *Loop) Observe(fn func(StateEvent)) {
	l.observers = append(l.observers, fn)
}

// Run processes commands until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	defer l.disarm()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-l.cmds:
			err := cmd.fn(l.ctrl)
			cmd.reply <- err
			if err == nil && !cmd.quiet {
				l.sync()
				l.emit(EventState, nil, nil)
			}

		case gen := <-l.ticks:
			if gen != l.tickGen || l.stopTicker == nil {
				continue
			}
			changed := l.ctrl.Tick()
			if !l.ctrl.Playing() {
				l.disarm()
			}
			if changed || !l.ctrl.Playing() {
				l.emit(EventState, nil, nil)
			}

		case res := <-l.results:
			l.finishLoad(res)
		}
	}
}

func (l *Loop) finishLoad(res loaded) {
	l.metrics.LoadFinished(res.err)
	if res.seq != l.loadSeq {
		l.logger.Debug("discarding superseded load", "path", res.path)
		res.done <- context.Canceled
		return
	}
	if res.err != nil {
		l.logger.Error("trajectory load failed", "path", res.path, "error", res.err)
		l.emit(EventError, nil, res.err)
		res.done <- res.err
		return
	}

	l.disarm()
	l.ctrl.Install(res.rec)
	l.emit(EventLoaded, nil, nil)
	res.done <- nil
}

// arm starts a fresh ticker. Ticks from earlier tickers carry an older
// generation and are dropped.
func (l *Loop) arm() {
	l.disarm()
	l.tickGen++
	gen := l.tickGen

	ch, stop := l.ticker(l.interval)
	quit := make(chan struct{})
	l.stopTicker = func() {
		stop()
		close(quit)
	}

	go func() {
		for {
			select {
			case <-quit:
				return
			case <-ch:
				select {
				case l.ticks <- gen:
				case <-quit:
					return
				}
			}
		}
	}()
}

func (l *Loop) disarm() {
	if l.stopTicker != nil {
		l.stopTicker()
		l.stopTicker = nil
	}
	l.tickGen++
}

// sync makes the ticker follow the controller's playing flag.
func (l *Loop) sync() {
	switch {
	case l.ctrl.Playing() && l.stopTicker == nil:
		l.arm()
	case !l.ctrl.Playing() && l.stopTicker != nil:
		l.disarm()
	}
}

func (l *Loop) emit(kind EventKind, snap *Snapshot, err error) {
	ev := StateEvent{Kind: kind, State: l.ctrl.State(), Frame: l.ctrl.Frame(), Snapshot: snap, Err: err}
	for _, fn := range l.observers {
		fn(ev)
	}
}

// Do runs fn on the loop goroutine and waits for it. Observers are
// notified when fn succeeds.
func (l *Loop) Do(fn func(c *Controller) error) error {
	return l.send(command{fn: fn, reply: make(chan error, 1)})
}

// query runs a read-only fn on the loop goroutine.
func (l *Loop) query(fn func(c *Controller) error) error {
	return l.send(command{fn: fn, reply: make(chan error, 1), quiet: true})
}

func (l *Loop) send(cmd command) error {
	select {
	case l.cmds <- cmd:
	case <-l.done:
		return ErrLoopStopped
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-l.done:
		return ErrLoopStopped
	}
}

// Play starts playback.
func (l *Loop) Play() error {
	return l.Do(func(c *Controller) error { return c.Play() })
}

// Pause stops playback and detaches the ticker.
func (l *Loop) Pause() error {
	return l.Do(func(c *Controller) error { c.Pause(); return nil })
}

// Toggle flips between playing and paused.
func (l *Loop) Toggle() error {
	return l.Do(func(c *Controller) error { return c.Toggle() })
}

// Scrub seeks to index and stops playback.
func (l *Loop) Scrub(index int) error {
	return l.Do(func(c *Controller) error { return c.Scrub(index) })
}

// SetSpeed changes the samples advanced per tick.
func (l *Loop) SetSpeed(speed int) error {
	return l.Do(func(c *Controller) error { return c.SetSpeed(speed) })
}

// SetMode switches view mode.
func (l *Loop) SetMode(m Mode) error {
	return l.Do(func(c *Controller) error { c.SetMode(m); return nil })
}

// State reads the controller state.
func (l *Loop) State() (State, error) {
	var s State
	err := l.query(func(c *Controller) error { s = c.State(); return nil })
	return s, err
}

// Snapshots returns the captured stills.
func (l *Loop) Snapshots() ([]Snapshot, error) {
	var out []Snapshot
	err := l.query(func(c *Controller) error { out = c.Snapshots(); return nil })
	return out, err
}

// Capture takes a snapshot of the current index and notifies observers when
// a new one was created.
func (l *Loop) Capture() (Snapshot, error) {
	var (
		snap    Snapshot
		created bool
	)
	err := l.Do(func(c *Controller) error {
		var err error
		snap, created, err = c.Capture()
		if err == nil && created {
			l.emit(EventSnapshot, &snap, nil)
		}
		return err
	})
	return snap, err
}

// Load reads path in the background. The returned channel receives the
// outcome once the record is installed or the load failed. A failed load
// leaves the current record and state untouched; a newer load supersedes
// an older one still in flight.
func (l *Loop) Load(ctx context.Context, path string) <-chan error {
	return l.startLoad(ctx, path, func(ctx context.Context) (*trajectory.Record, error) {
		return l.loader.Load(ctx, path)
	})
}

// LoadDemo loads the built-in example in the background.
func (l *Loop) LoadDemo(ctx context.Context) <-chan error {
	return l.startLoad(ctx, "demo", l.loader.LoadDemo)
}

func (l *Loop) startLoad(ctx context.Context, path string, load func(context.Context) (*trajectory.Record, error)) <-chan error {
	out := make(chan error, 1)

	var seq uint64
	if err := l.query(func(*Controller) error { l.loadSeq++; seq = l.loadSeq; return nil }); err != nil {
		out <- err
		return out
	}

	go func() {
		rec, err := load(ctx)
		res := loaded{seq: seq, path: path, rec: rec, err: err, done: make(chan error, 1)}
		select {
		case l.results <- res:
			out <- <-res.done
		case <-l.done:
			out <- ErrLoopStopped
		}
	}()
	return out
}
