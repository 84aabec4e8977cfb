// SPDX-License-Identifier: MIT
package buffer

import (
	"bytes"
	"fmt"
	"math"
	"testing"

	"filterstream/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioEightByThree(t *testing.T) {
	var snapshots [][]byte
	b, err := NewDoubleBlockBuffer(8, 3, func(ready []byte) {
		snapshots = append(snapshots, bytes.Clone(ready))
	})
	require.NoError(t, err)
	assert.Nil(t, b.Ready())

	require.NoError(t, b.InputChunk([]byte{1, 2, 3}))
	require.NoError(t, b.InputChunk([]byte{4, 5, 6}))
	assert.Equal(t, 6, b.Offset())
	assert.Empty(t, snapshots)

	require.NoError(t, b.InputChunk([]byte{7, 8, 9}))
	require.Len(t, snapshots, 1)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, snapshots[0])
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, b.Ready())
	assert.Equal(t, 1, b.Offset())
	assert.EqualValues(t, 1, b.Rotations())
}

func TestRotationWindows(t *testing.T) {
	tests := []struct {
		total, chunk, chunks int
	}{
		{8, 1, 40},
		{8, 2, 40},
		{8, 3, 40},
		{8, 8, 10},
		{10, 7, 33},
		{64, 48, 17},
		{1000, 333, 50},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("total=%d/chunk=%d", tt.total, tt.chunk), func(t *testing.T) {
			var snapshots [][]byte
			b, err := NewDoubleBlockBuffer(tt.total, tt.chunk, func(ready []byte) {
				snapshots = append(snapshots, bytes.Clone(ready))
			})
			require.NoError(t, err)

			var logical []byte
			chunk := make([]byte, tt.chunk)
			for c := range tt.chunks {
				for i := range chunk {
					chunk[i] = byte(c*tt.chunk + i)
				}
				logical = append(logical, chunk...)
				require.NoError(t, b.InputChunk(chunk))
			}

			want := len(logical) / tt.total
			require.Len(t, snapshots, want)
			assert.EqualValues(t, want, b.Rotations())
			assert.Equal(t, len(logical)%tt.total, b.Offset())
			for i, snap := range snapshots {
				assert.Equal(t, logical[i*tt.total:(i+1)*tt.total], snap, "window %d", i)
			}
		})
	}
}

func TestConstructorValidation(t *testing.T) {
	tests := []struct {
		name         string
		total, chunk int
	}{
		{"chunk larger than total", 8, 9},
		{"zero total", 0, 1},
		{"negative total", -8, 1},
		{"zero chunk", 8, 0},
		{"negative chunk", 8, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewDoubleBlockBuffer(tt.total, tt.chunk, nil)
			assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
			assert.Nil(t, b)
		})
	}
}

func TestWrongChunkSizeLeavesStateUntouched(t *testing.T) {
	b, err := NewDoubleBlockBuffer(8, 3, nil)
	require.NoError(t, err)
	require.NoError(t, b.InputChunk([]byte{1, 2, 3}))

	assert.ErrorIs(t, b.InputChunk([]byte{4, 5}), errs.ErrDimensionMismatch)
	assert.ErrorIs(t, b.InputChunk([]byte{4, 5, 6, 7}), errs.ErrDimensionMismatch)
	assert.Equal(t, 3, b.Offset())
	assert.Zero(t, b.Rotations())
}

func TestSetRotateFunc(t *testing.T) {
	b, err := NewDoubleBlockBuffer(4, 2, nil)
	require.NoError(t, err)
	require.NoError(t, b.InputChunk([]byte{1, 2}))
	require.NoError(t, b.InputChunk([]byte{3, 4}))
	assert.Equal(t, []byte{1, 2, 3, 4}, b.Ready())

	calls := 0
	b.SetRotateFunc(func([]byte) { calls++ })
	require.NoError(t, b.InputChunk([]byte{5, 6}))
	require.NoError(t, b.InputChunk([]byte{7, 8}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []byte{5, 6, 7, 8}, b.Ready())
	assert.Equal(t, 4, b.TotalSize())
	assert.Equal(t, 2, b.ChunkSize())
}

func TestInputChunkHotPath(t *testing.T) {
	b, err := NewDoubleBlockBuffer(4096, 1000, func([]byte) {})
	require.NoError(t, err)
	chunk := make([]byte, 1000)

	allocs := testing.AllocsPerRun(100, func() {
		_ = b.InputChunk(chunk)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in InputChunk hot path, got %.1f", allocs)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.25, 1, float32(math.Pi)}
	raw := make([]byte, len(samples)*BytesPerSample)
	require.NoError(t, PutFloat32s(raw, samples))

	decoded := make([]float64, len(samples))
	require.NoError(t, Float64sFromBytes(decoded, raw))
	for i, s := range samples {
		assert.Equal(t, float64(s), decoded[i])
	}

	assert.ErrorIs(t, PutFloat32s(raw[:3], samples), errs.ErrDimensionMismatch)
	assert.ErrorIs(t, Float64sFromBytes(decoded[:2], raw), errs.ErrDimensionMismatch)
	assert.ErrorIs(t, Float64sFromBytes(decoded, raw[:7]), errs.ErrDimensionMismatch)
}

func BenchmarkInputChunk(b *testing.B) {
	buf, _ := NewDoubleBlockBuffer(8192, 2048, nil)
	chunk := make([]byte, 2048)

	b.ReportAllocs()
	for b.Loop() {
		_ = buf.InputChunk(chunk)
	}
}
