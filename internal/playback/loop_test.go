// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/attitude_replay/internal/trajectory"
)

type manualTickers struct {
	mu      sync.Mutex
	chans   []chan time.Time
	stopped []bool
}

func (m *manualTickers) start(time.Duration) (<-chan time.Time, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan time.Time, 1)
	idx := len(m.chans)
	m.chans = append(m.chans, ch)
	m.stopped = append(m.stopped, false)
	return ch, func() {
		m.mu.Lock()
		m.stopped[idx] = true
		m.mu.Unlock()
	}
}

func (m *manualTickers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chans)
}

func (m *manualTickers) fire(i int) {
	m.mu.Lock()
	ch := m.chans[i]
	m.mu.Unlock()
	ch <- time.Now()
}

func (m *manualTickers) isStopped(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped[i]
}

type fakeLoader struct {
	records map[string]*trajectory.Record
	gates   map[string]chan struct{}
}

func (f *fakeLoader) Load(ctx context.Context, path string) (*trajectory.Record, error) {
	if g, ok := f.gates[path]; ok {
		<-g
	}
	rec, ok := f.records[path]
	if !ok {
		return nil, trajectory.ErrUnsupportedFileExtension
	}
	return rec, nil
}

func (f *fakeLoader) LoadDemo(ctx context.Context) (*trajectory.Record, error) {
	return f.Load(ctx, "demo")
}

func startLoop(t *testing.T, loader Loader) (*Loop, *manualTickers, chan StateEvent) {
	t.Helper()
	tickers := &manualTickers{}
	ctrl := NewController(nil, &fakeCapturer{}, nil, nil)
	l := NewLoop(ctrl, loader, 10*time.Millisecond, nil, nil, WithTicker(tickers.start))

	events := make(chan StateEvent, 256)
	l.Observe(func(ev StateEvent) {
		select {
		case events <- ev:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l, tickers, events
}

func waitIndex(t *testing.T, l *Loop, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := l.State()
		return err == nil && s.Index == want
	}, time.Second, 2*time.Millisecond)
}

func TestLoop_LoadPlayTick(t *testing.T) {
	loader := &fakeLoader{records: map[string]*trajectory.Record{"a.csv": testRecord(t, 5, "a.csv")}}
	l, tickers, events := startLoop(t, loader)

	require.NoError(t, <-l.Load(context.Background(), "a.csv"))
	s, err := l.State()
	require.NoError(t, err)
	assert.True(t, s.Loaded)
	assert.Equal(t, 5, s.Samples)

	require.NoError(t, l.Play())
	require.Eventually(t, func() bool { return tickers.count() == 1 }, time.Second, time.Millisecond)

	for want := 1; want <= 4; want++ {
		tickers.fire(0)
		waitIndex(t, l, want)
	}

	s, err = l.State()
	require.NoError(t, err)
	assert.False(t, s.Playing)
	require.Eventually(t, func() bool { return tickers.isStopped(0) }, time.Second, time.Millisecond)

	var kinds []EventKind
	for len(events) > 0 {
		kinds = append(kinds, (<-events).Kind)
	}
	assert.Contains(t, kinds, EventLoaded)
}

func TestLoop_StaleTickIgnored(t *testing.T) {
	loader := &fakeLoader{records: map[string]*trajectory.Record{"a.csv": testRecord(t, 50, "a.csv")}}
	l, tickers, _ := startLoop(t, loader)
	require.NoError(t, <-l.Load(context.Background(), "a.csv"))

	require.NoError(t, l.Play())
	require.Eventually(t, func() bool { return tickers.count() == 1 }, time.Second, time.Millisecond)
	tickers.fire(0)
	waitIndex(t, l, 1)

	require.NoError(t, l.Pause())
	require.Eventually(t, func() bool { return tickers.isStopped(0) }, time.Second, time.Millisecond)

	// A tick that was already pending on the old ticker never lands.
	tickers.fire(0)
	time.Sleep(20 * time.Millisecond)
	s, err := l.State()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Index)

	require.NoError(t, l.Play())
	require.Eventually(t, func() bool { return tickers.count() == 2 }, time.Second, time.Millisecond)
	tickers.fire(1)
	waitIndex(t, l, 2)
}

func TestLoop_FailedLoadKeepsState(t *testing.T) {
	loader := &fakeLoader{records: map[string]*trajectory.Record{"a.csv": testRecord(t, 20, "a.csv")}}
	l, _, events := startLoop(t, loader)

	require.NoError(t, <-l.Load(context.Background(), "a.csv"))
	require.NoError(t, l.Scrub(7))
	_, err := l.Capture()
	require.NoError(t, err)

	err = <-l.Load(context.Background(), "broken.xlsx")
	require.ErrorIs(t, err, trajectory.ErrUnsupportedFileExtension)

	s, err := l.State()
	require.NoError(t, err)
	assert.Equal(t, "a.csv", s.Source)
	assert.Equal(t, 7, s.Index)
	assert.Equal(t, 1, s.Snapshots)

	sawError := false
	for len(events) > 0 {
		if ev := <-events; ev.Kind == EventError {
			sawError = true
			assert.ErrorIs(t, ev.Err, trajectory.ErrUnsupportedFileExtension)
		}
	}
	assert.True(t, sawError)
}

func TestLoop_NewerLoadWins(t *testing.T) {
	gate := make(chan struct{})
	loader := &fakeLoader{
		records: map[string]*trajectory.Record{
			"slow.csv": testRecord(t, 10, "slow.csv"),
			"fast.csv": testRecord(t, 30, "fast.csv"),
		},
		gates: map[string]chan struct{}{"slow.csv": gate},
	}
	l, _, _ := startLoop(t, loader)

	slow := l.Load(context.Background(), "slow.csv")
	require.NoError(t, <-l.Load(context.Background(), "fast.csv"))
	close(gate)
	assert.True(t, errors.Is(<-slow, context.Canceled))

	s, err := l.State()
	require.NoError(t, err)
	assert.Equal(t, "fast.csv", s.Source)
	assert.Equal(t, 30, s.Samples)
}

func TestLoop_LoadDemoAndPlayWhileLoading(t *testing.T) {
	loader := &fakeLoader{records: map[string]*trajectory.Record{"demo": testRecord(t, 40, "demo")}}
	l, tickers, _ := startLoop(t, loader)

	assert.ErrorIs(t, l.Play(), ErrNoTrajectory)
	require.NoError(t, <-l.LoadDemo(context.Background()))

	require.NoError(t, l.Play())
	require.Eventually(t, func() bool { return tickers.count() == 1 }, time.Second, time.Millisecond)
	tickers.fire(0)
	waitIndex(t, l, 1)

	// Installing a record detaches the running ticker.
	require.NoError(t, <-l.LoadDemo(context.Background()))
	require.Eventually(t, func() bool { return tickers.isStopped(0) }, time.Second, time.Millisecond)
	s, err := l.State()
	require.NoError(t, err)
	assert.Equal(t, 0, s.Index)
	assert.False(t, s.Playing)
}

func TestLoop_StoppedLoopRejectsCommands(t *testing.T) {
	ctrl := NewController(nil, nil, nil, nil)
	l := NewLoop(ctrl, &fakeLoader{}, time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.ErrorIs(t, l.Play(), ErrLoopStopped)
	assert.ErrorIs(t, <-l.Load(context.Background(), "x.csv"), ErrLoopStopped)
}
