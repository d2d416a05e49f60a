// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package trajectory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave_ReloadsInEveryFormat(t *testing.T) {
	src := writeFile(t, "traj.csv", []byte(csvTrajectory(25, requiredHeader+",fuel", func(i int) string {
		if i == 7 {
			return ","
		}
		return fmt.Sprintf(",%g", 1.2-float64(i)*0.04)
	})))
	loader := newTestLoader(nil)
	orig, err := loader.Load(context.Background(), src)
	require.NoError(t, err)

	dir := t.TempDir()
	for _, name := range []string{"out.csv.gz", "out.parquet", "out.msgpack.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, Save(orig, path))

			rec, err := loader.Load(context.Background(), path)
			require.NoError(t, err)
			require.Equal(t, orig.Len(), rec.Len())
			for i := range rec.Len() {
				assert.Equal(t, orig.T[i], rec.T[i])
				assert.Equal(t, orig.Position[i], rec.Position[i])
				assert.Equal(t, orig.Orientation[i], rec.Orientation[i])
			}
			assert.False(t, Available(rec.Fuel[7]))
			assert.InDelta(t, 1.2, rec.Fuel[0], 1e-12)
			assert.False(t, VecAvailable(rec.AngularVelocity[3]), "absent channel stays absent")
			assert.Empty(t, rec.Diagnostics)
		})
	}

	err = Save(orig, filepath.Join(dir, "out.xlsx"))
	assert.ErrorIs(t, err, ErrUnsupportedFileExtension)
}
