// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package trajectory

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// readDelimited parses a header row followed by numeric rows. The delimiter
// is detected from the header: comma, tab or semicolon, falling back to runs
// of whitespace. Unparseable cells become NotAvailable and short rows are
// padded, so every column keeps one sample per row.
func readDelimited(r io.Reader) (Columns, error) {
	br := bufio.NewReader(r)

	header, err := firstLine(br)
	if err != nil {
		return nil, err
	}

	delim := detectDelimiter(header)
	var names []string
	var next func() ([]string, error)

	if delim == 0 {
		names = strings.Fields(header)
		next = func() ([]string, error) {
			for {
				line, err := br.ReadString('\n')
				if line == "" && err != nil {
					return nil, err
				}
				line = strings.TrimSpace(line)
				if line == "" || strings.HasPrefix(line, "#") {
					if err != nil {
						return nil, err
					}
					continue
				}
				return strings.Fields(line), nil
			}
		}
	} else {
		cr := csv.NewReader(io.MultiReader(strings.NewReader(header+"\n"), br))
		cr.Comma = delim
		cr.Comment = '#'
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		cr.LazyQuotes = true
		cr.ReuseRecord = true

		names, err = cr.Read()
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		names = append([]string(nil), names...)
		next = cr.Read
	}

	// Column index -> canonical name; first occurrence of a name wins.
	keys := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for i, n := range names {
		k := CanonicalColumn(n)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys[i] = k
	}

	values := make([][]float64, len(names))
	for row := 1; ; row++ {
		fields, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		for i := range names {
			if keys[i] == "" {
				continue
			}
			v := NotAvailable
			if i < len(fields) {
				v = parseCell(fields[i])
			}
			values[i] = append(values[i], v)
		}
	}

	cols := make(Columns, len(names))
	for i, k := range keys {
		if k == "" {
			continue
		}
		if values[i] == nil {
			values[i] = []float64{}
		}
		cols[k] = values[i]
	}
	return cols, nil
}

func parseCell(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return NotAvailable
	}
	return v
}

func firstLine(br *bufio.Reader) (string, error) {
	for {
		line, err := br.ReadString('\n')
		trimmed := strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			return trimmed, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%w: no header row", ErrMissingRequiredChannel)
			}
			return "", err
		}
	}
}

func detectDelimiter(header string) rune {
	best, bestCount := rune(0), 0
	for _, d := range []rune{',', '\t', ';'} {
		if c := strings.Count(header, string(d)); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}
