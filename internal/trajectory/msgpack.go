// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package trajectory

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// readMsgpack decodes a columnar map {"t": [...], "x": [...], ...}. Nil
// entries and values that are not numbers become NotAvailable.
func readMsgpack(data []byte) (Columns, error) {
	var raw map[string][]any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal msgpack columns: %w", err)
	}

	cols := make(Columns, len(raw))
	for name, in := range raw {
		out := make([]float64, len(in))
		for i, v := range in {
			out[i] = msgpackFloat(v)
		}
		cols.Set(name, out)
	}
	return cols, nil
}

func msgpackFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case uint:
		return float64(x)
	case string:
		return parseCell(x)
	default:
		return NotAvailable
	}
}

// EncodeMsgpack writes a record's channels in the columnar msgpack layout
// understood by the loader. Unavailable samples are written as nil.
func EncodeMsgpack(rec *Record) ([]byte, error) {
	cols := make(map[string][]any, len(channelOrder))
	for _, name := range channelOrder {
		col := make([]any, rec.Len())
		for i := range col {
			if v := rec.sample(name, i); Available(v) {
				col[i] = v
			}
		}
		cols[name] = col
	}
	return msgpack.Marshal(cols)
}
