// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package logging builds the slog logger shared by every command: text on
// stderr and, when a directory is configured, JSON lines in a rotating file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a slog.Logger that may own a rotating log file.
type Logger struct {
	*slog.Logger
	LogFile string

	file *lumberjack.Logger
}

// New returns a logger writing to stderr at level, plus a JSON log file
// under dir when dir is not empty.
func New(level slog.Level, dir, name string) *Logger {
	return newLogger(os.Stderr, level, dir, name)
}

func newLogger(console io.Writer, level slog.Level, dir, name string) *Logger {
	opts := &slog.HandlerOptions{Level: level}
	handlers := []slog.Handler{slog.NewTextHandler(console, opts)}

	l := &Logger{}
	if dir != "" {
		l.file = &lumberjack.Logger{
			Filename:   filepath.Join(dir, name+".slog"),
			MaxSize:    32, // MB
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
		l.LogFile = l.file.Filename
		handlers = append(handlers, slog.NewJSONHandler(l.file, opts))
	}
	l.Logger = slog.New(NewMultiHandler(handlers...))

	l.Debug("logging started",
		slog.String("GOOS", runtime.GOOS),
		slog.String("GOARCH", runtime.GOARCH),
		slog.String("file", l.LogFile))
	return l
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
