// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package trajectory

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/parquet-go/parquet-go"
)

// readParquet extracts every known numeric column by name. Nulls and
// non-numeric physical types become NotAvailable. Columns are read
// independently, so a short column surfaces as a length mismatch later.
func readParquet(r io.ReaderAt, size int64) (Columns, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	schema := f.Schema()
	cols := Columns{}
	for _, path := range schema.Columns() {
		if len(path) == 0 {
			continue
		}
		name := CanonicalColumn(path[len(path)-1])
		if !knownColumn(name) {
			continue
		}
		if _, dup := cols[name]; dup {
			continue
		}

		leaf, ok := schema.Lookup(path...)
		if !ok {
			continue
		}

		var values []float64
		for _, rg := range f.RowGroups() {
			chunk := rg.ColumnChunks()[leaf.ColumnIndex]
			values, err = appendChunk(values, chunk)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", name, err)
			}
		}
		if values == nil {
			values = []float64{}
		}
		cols[name] = values
	}
	return cols, nil
}

func appendChunk(dst []float64, chunk parquet.ColumnChunk) ([]float64, error) {
	pages := chunk.Pages()
	defer pages.Close()

	buf := make([]parquet.Value, 512)
	for {
		page, err := pages.ReadPage()
		if errors.Is(err, io.EOF) {
			return dst, nil
		}
		if err != nil {
			return nil, err
		}

		values := page.Values()
		for {
			n, err := values.ReadValues(buf)
			for _, v := range buf[:n] {
				dst = append(dst, parquetFloat(v))
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
		}
	}
}

func parquetFloat(v parquet.Value) float64 {
	if v.IsNull() {
		return NotAvailable
	}
	switch v.Kind() {
	case parquet.Double:
		return v.Double()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Int32:
		return float64(v.Int32())
	case parquet.Int64:
		return float64(v.Int64())
	case parquet.Boolean:
		if v.Boolean() {
			return 1
		}
		return 0
	default:
		return NotAvailable
	}
}

func knownColumn(name string) bool {
	return slices.Contains(RequiredColumns, name) || slices.Contains(OptionalColumns, name)
}
