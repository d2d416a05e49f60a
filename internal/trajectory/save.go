// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package trajectory

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
)

// channelOrder is the column order of written files.
var channelOrder = []string{
	ColT, ColX, ColY, ColZ, ColVX, ColVY, ColVZ,
	ColQW, ColQX, ColQY, ColQZ, ColOmX, ColOmY, ColOmZ, ColFuel,
}

// sample returns the value of column name at index i.
func (r *Record) sample(name string, i int) float64 {
	p, v, w, q := r.Position[i], r.Velocity[i], r.AngularVelocity[i], r.Orientation[i]
	switch name {
	case ColT:
		return r.T[i]
	case ColX:
		return p[0]
	case ColY:
		return p[1]
	case ColZ:
		return p[2]
	case ColVX:
		return v[0]
	case ColVY:
		return v[1]
	case ColVZ:
		return v[2]
	case ColQW:
		return q.W
	case ColQX:
		return q.V[0]
	case ColQY:
		return q.V[1]
	case ColQZ:
		return q.V[2]
	case ColOmX:
		return w[0]
	case ColOmY:
		return w[1]
	case ColOmZ:
		return w[2]
	case ColFuel:
		return r.Fuel[i]
	default:
		return NotAvailable
	}
}

// Save writes rec to path in the format its extension names, compressed
// when it ends in .gz or .zst. Any file Save writes can be read back by
// Load.
func Save(rec *Record, path string) error {
	compression, f := splitExt(path)

	var (
		data []byte
		err  error
	)
	switch f {
	case formatText:
		data, err = encodeDelimited(rec)
	case formatParquet:
		data, err = encodeParquet(rec)
	case formatMsgpack:
		data, err = EncodeMsgpack(rec)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFileExtension, filepath.Base(path))
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	data, err = compress(compression, data)
	if err != nil {
		return fmt.Errorf("compress %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

// encodeDelimited writes a header row and one row per sample. Unavailable
// samples are left empty.
func encodeDelimited(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(channelOrder); err != nil {
		return nil, err
	}
	row := make([]string, len(channelOrder))
	for i := range rec.Len() {
		for k, name := range channelOrder {
			row[k] = ""
			if v := rec.sample(name, i); Available(v) {
				row[k] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// parquetSample is one row of a written parquet file. Unavailable values
// are stored as nulls.
type parquetSample struct {
	T    *float64 `parquet:"t,optional"`
	X    *float64 `parquet:"x,optional"`
	Y    *float64 `parquet:"y,optional"`
	Z    *float64 `parquet:"z,optional"`
	VX   *float64 `parquet:"vx,optional"`
	VY   *float64 `parquet:"vy,optional"`
	VZ   *float64 `parquet:"vz,optional"`
	QW   *float64 `parquet:"qw,optional"`
	QX   *float64 `parquet:"qx,optional"`
	QY   *float64 `parquet:"qy,optional"`
	QZ   *float64 `parquet:"qz,optional"`
	OmX  *float64 `parquet:"omx,optional"`
	OmY  *float64 `parquet:"omy,optional"`
	OmZ  *float64 `parquet:"omz,optional"`
	Fuel *float64 `parquet:"fuel,optional"`
}

func encodeParquet(rec *Record) ([]byte, error) {
	opt := func(v float64) *float64 {
		if !Available(v) {
			return nil
		}
		return &v
	}
	rows := make([]parquetSample, rec.Len())
	for i := range rows {
		s := func(name string) *float64 { return opt(rec.sample(name, i)) }
		rows[i] = parquetSample{
			T: s(ColT), X: s(ColX), Y: s(ColY), Z: s(ColZ),
			VX: s(ColVX), VY: s(ColVY), VZ: s(ColVZ),
			QW: s(ColQW), QX: s(ColQX), QY: s(ColQY), QZ: s(ColQZ),
			OmX: s(ColOmX), OmY: s(ColOmY), OmZ: s(ColOmZ),
			Fuel: s(ColFuel),
		}
	}
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compress(compression string, data []byte) ([]byte, error) {
	switch compression {
	case ".gz":
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := io.Copy(zw, bytes.NewReader(data)); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case ".zst":
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return data, nil
	}
}
