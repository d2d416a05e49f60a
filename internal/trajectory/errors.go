// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package trajectory

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingRequiredChannel is returned when time, position, velocity or
	// quaternion data is absent. No record is produced.
	ErrMissingRequiredChannel = errors.New("missing required channel")

	// ErrChannelLengthMismatch is recoverable; it only appears in
	// Record.Diagnostics.
	ErrChannelLengthMismatch = errors.New("channel length mismatch")

	// ErrUnsupportedFileExtension is returned for files no loader handles.
	ErrUnsupportedFileExtension = errors.New("unsupported file extension")

	// ErrDemoNotFound is returned when no built-in example resolves.
	ErrDemoNotFound = errors.New("demo trajectory not found")
)

// MissingChannelError names the required columns a source lacks.
type MissingChannelError struct {
	Source  string
	Columns []string
	// Empty is set when the column exists but holds no samples.
	Empty bool
}

func (e *MissingChannelError) Error() string {
	what := "missing"
	if e.Empty {
		what = "empty"
	}
	return fmt.Sprintf("%s: %s: %s column(s) %s",
		ErrMissingRequiredChannel, e.Source, what, strings.Join(e.Columns, ", "))
}

func (e *MissingChannelError) Unwrap() error {
	return ErrMissingRequiredChannel
}
