// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry owns the OpenTelemetry instruments of the replay engine.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const instrumentationName = "github.com/relabs-tech/attitude_replay"

// Metrics groups the engine's counters. A nil *Metrics records nothing.
type Metrics struct {
	framesRendered metric.Int64Counter
	framesSkipped  metric.Int64Counter
	loads          metric.Int64Counter
	loadFailures   metric.Int64Counter
	snapshots      metric.Int64Counter
	frameDuration  metric.Float64Histogram
}

// New creates the instruments on m.
func New(m metric.Meter) (*Metrics, error) {
	var (
		out Metrics
		err error
	)

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&out.framesRendered, "attreplay.frames.rendered", "Frames rendered by a pipeline stage"},
		{&out.framesSkipped, "attreplay.frames.skipped", "Frames skipped after a transient stage error"},
		{&out.loads, "attreplay.loads", "Trajectories installed"},
		{&out.loadFailures, "attreplay.load.failures", "Trajectory loads that failed"},
		{&out.snapshots, "attreplay.snapshots", "Snapshots captured"},
	}
	for _, c := range counters {
		*c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}

	out.frameDuration, err = m.Float64Histogram(
		"attreplay.frame.duration",
		metric.WithDescription("Time spent in one pipeline stage"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frame duration histogram: %w", err)
	}

	return &out, nil
}

// Global creates the instruments on the global meter provider, which is a
// no-op unless Setup installed one.
func Global() (*Metrics, error) {
	return New(otel.Meter(instrumentationName))
}

// FrameRendered records a successful stage render.
func (m *Metrics) FrameRendered(stage string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("stage", stage))
	m.framesRendered.Add(context.Background(), 1, attrs)
	m.frameDuration.Record(context.Background(), float64(d)/float64(time.Millisecond), attrs)
}

// FrameSkipped records a stage that dropped a frame.
func (m *Metrics) FrameSkipped(stage string) {
	if m == nil {
		return
	}
	m.framesSkipped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// LoadFinished records the outcome of a trajectory load.
func (m *Metrics) LoadFinished(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.loadFailures.Add(context.Background(), 1)
		return
	}
	m.loads.Add(context.Background(), 1)
}

// SnapshotCaptured records a new snapshot.
func (m *Metrics) SnapshotCaptured() {
	if m == nil {
		return
	}
	m.snapshots.Add(context.Background(), 1)
}

// Provider wraps the SDK meter provider installed by Setup.
type Provider struct {
	mp *sdkmetric.MeterProvider
}

// Setup installs a meter provider exporting to w every interval when
// enabled. Disabled returns an empty Provider and leaves the global no-op
// provider in place.
func Setup(enabled bool, w io.Writer, interval time.Duration) (*Provider, error) {
	if !enabled {
		return &Provider{}, nil
	}

	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp)
	return &Provider{mp: mp}, nil
}

// Shutdown flushes and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.mp == nil {
		return nil
	}
	if err := p.mp.Shutdown(ctx); err != nil {
		return fmt.Errorf("metric shutdown failed: %w", err)
	}
	return nil
}
