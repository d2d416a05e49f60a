// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package trajectory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type format int

const (
	formatUnknown format = iota
	formatText
	formatParquet
	formatMsgpack
)

var formatsByExt = map[string]format{
	".csv":     formatText,
	".tsv":     formatText,
	".txt":     formatText,
	".parquet": formatParquet,
	".msgpack": formatMsgpack,
	".mpk":     formatMsgpack,
}

// Loader turns trajectory files into Records.
type Loader struct {
	logger    *slog.Logger
	demoPaths []string
}

// NewLoader creates a loader. demoPaths is the ordered list of candidate
// locations tried by LoadDemo; nil selects DefaultDemoPaths().
func NewLoader(logger *slog.Logger, demoPaths []string) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if demoPaths == nil {
		demoPaths = DefaultDemoPaths()
	}
	return &Loader{logger: logger, demoPaths: demoPaths}
}

// DefaultDemoPaths lists where the example trajectory is looked for.
func DefaultDemoPaths() []string {
	paths := []string{
		filepath.Join("data", "rocket_traj.parquet"),
		filepath.Join("data", "rocket_traj.csv"),
	}
	if dir := dataHome(); dir != "" {
		paths = append(paths, filepath.Join(dir, "attitude_replay", "rocket_traj.csv"))
	}
	return paths
}

// dataHome is $XDG_DATA_HOME, or ~/.local/share when it is unset or not
// absolute.
func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); filepath.IsAbs(dir) {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return ""
}

// Supported reports whether path has an extension one of the loaders
// understands, looking through a trailing .gz or .zst.
func Supported(path string) bool {
	_, f := splitExt(path)
	return f != formatUnknown
}

func splitExt(path string) (compression string, f format) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".gz" || ext == ".zst" {
		compression = ext
		ext = strings.ToLower(filepath.Ext(strings.TrimSuffix(path, filepath.Ext(path))))
	}
	return compression, formatsByExt[ext]
}

// Load reads and decodes path. It fails with ErrUnsupportedFileExtension
// before touching the file when no decoder handles its extension.
func (l *Loader) Load(ctx context.Context, path string) (*Record, error) {
	compression, f := splitExt(path)
	if f == formatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileExtension, filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trajectory: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err = decompress(compression, data)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", filepath.Base(path), err)
	}

	var cols Columns
	switch f {
	case formatText:
		cols, err = readDelimited(bytes.NewReader(data))
	case formatParquet:
		cols, err = readParquet(bytes.NewReader(data), int64(len(data)))
	case formatMsgpack:
		cols, err = readMsgpack(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := NewRecord(path, cols, l.logger)
	if err != nil {
		return nil, err
	}

	l.logger.Info("trajectory loaded",
		"source", path, "samples", rec.Len(), "diagnostics", len(rec.Diagnostics))
	return rec, nil
}

// LoadDemo loads the first candidate demo location that exists.
func (l *Loader) LoadDemo(ctx context.Context) (*Record, error) {
	for _, p := range l.demoPaths {
		if _, err := os.Stat(p); err != nil {
			l.logger.Debug("demo candidate not found", "path", p)
			continue
		}
		return l.Load(ctx, p)
	}
	return nil, fmt.Errorf("%w (tried %s)", ErrDemoNotFound, strings.Join(l.demoPaths, ", "))
}

func decompress(compression string, data []byte) ([]byte, error) {
	switch compression {
	case ".gz":
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case ".zst":
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}
