// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	l := newLogger(&console, slog.LevelInfo, "", "replay")
	l.Debug("hidden")
	l.Info("loaded trajectory", "samples", 12)

	assert.Empty(t, l.LogFile)
	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "loaded trajectory")
	assert.Contains(t, console.String(), "samples=12")
	assert.NoError(t, l.Close())
}

func TestNew_RotatingFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	l := newLogger(&console, slog.LevelDebug, dir, "web")
	l.Warn("channel length mismatch", "channel", "fuel")
	require.NoError(t, l.Close())

	assert.Equal(t, filepath.Join(dir, "web.slog"), l.LogFile)
	data, err := os.ReadFile(l.LogFile)
	require.NoError(t, err)

	var last map[string]any
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, "channel length mismatch", last["msg"])
	assert.Equal(t, "fuel", last["channel"])
	assert.Equal(t, "WARN", last["level"])

	assert.Contains(t, console.String(), "logging started")
}

func TestMultiHandler_FansOut(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h1 := slog.NewTextHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelInfo})
	h2 := slog.NewTextHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelDebug})

	logger := slog.New(NewMultiHandler(h1, nil, h2))
	logger.Debug("debug only")
	logger.With("stage", "scene").WithGroup("frame").Info("fanned out", "index", 3)

	assert.NotContains(t, buf1.String(), "debug only")
	assert.Contains(t, buf2.String(), "debug only")
	for _, out := range []string{buf1.String(), buf2.String()} {
		assert.Contains(t, out, "stage=scene")
		assert.Contains(t, out, "frame.index=3")
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestMultiHandler_KeepsGoingOnError(t *testing.T) {
	var buf bytes.Buffer
	ok := slog.NewTextHandler(&buf, nil)
	bad := failingHandler{slog.NewTextHandler(&bytes.Buffer{}, nil)}

	multi := NewMultiHandler(bad, ok)
	err := multi.Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelInfo, "still written", 0))
	assert.ErrorContains(t, err, "disk full")
	assert.Contains(t, buf.String(), "still written")

	assert.False(t, NewMultiHandler().Enabled(context.Background(), slog.LevelError))
}
