// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := New(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_Counters(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.FrameRendered("scene", 4*time.Millisecond)
	m.FrameRendered("navball", time.Millisecond)
	m.FrameSkipped("scene")
	m.LoadFinished(nil)
	m.LoadFinished(errors.New("bad file"))
	m.LoadFinished(errors.New("bad file"))
	m.SnapshotCaptured()

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["attreplay.frames.rendered"]))
	assert.Equal(t, int64(1), sumOf(t, data["attreplay.frames.skipped"]))
	assert.Equal(t, int64(1), sumOf(t, data["attreplay.loads"]))
	assert.Equal(t, int64(2), sumOf(t, data["attreplay.load.failures"]))
	assert.Equal(t, int64(1), sumOf(t, data["attreplay.snapshots"]))

	hist, ok := data["attreplay.frame.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	var total float64
	for _, dp := range hist.DataPoints {
		count += dp.Count
		total += dp.Sum
	}
	assert.Equal(t, uint64(2), count)
	assert.InDelta(t, 5.0, total, 1e-9)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FrameRendered("scene", time.Millisecond)
		m.FrameSkipped("scene")
		m.LoadFinished(nil)
		m.SnapshotCaptured()
	})
}

func TestSetup(t *testing.T) {
	p, err := Setup(false, nil, time.Second)
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))

	var buf bytes.Buffer
	p, err = Setup(true, &buf, time.Hour)
	require.NoError(t, err)

	m, err := Global()
	require.NoError(t, err)
	m.LoadFinished(nil)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "attreplay.loads")
}
