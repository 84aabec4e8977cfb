// SPDX-License-Identifier: MIT
/*
Package buffer accumulates variable producer chunks into fixed-size analysis
blocks.

DoubleBlockBuffer owns two arenas of equal size. One is being written to, the
other holds the last completed block. When the writing arena fills up the
roles swap (a rotation) and a callback receives the newly completed block.
Both arenas are allocated once at construction; the write path never
allocates.

The buffer is designed for a single writer. The rotation callback runs
synchronously on the writer's goroutine, so a slow consumer stalls the
writer. That coupling is deliberate: there is no queue.
*/
package buffer

import (
	"fmt"

	"filterstream/internal/errs"
)

// RotateFunc receives the newly completed block. The slice stays valid until
// the next rotation, after which its arena is written over.
type RotateFunc func(ready []byte)

// DoubleBlockBuffer is an arena+index double buffer.
type DoubleBlockBuffer struct {
	arenas    [2][]byte
	write     int // index of the accumulation arena
	offset    int // next write position in the accumulation arena
	totalSize int
	chunkSize int
	rotations uint64
	hasReady  bool
	onRotate  RotateFunc
}

// NewDoubleBlockBuffer allocates both arenas. totalSize and inputChunkSize
// must be positive and the chunk may not exceed the block.
func NewDoubleBlockBuffer(totalSize, inputChunkSize int, onRotate RotateFunc) (*DoubleBlockBuffer, error) {
	if totalSize <= 0 {
		return nil, fmt.Errorf("%w: total size must be positive, got %d", errs.ErrInvalidConfiguration, totalSize)
	}
	if inputChunkSize <= 0 {
		return nil, fmt.Errorf("%w: input chunk size must be positive, got %d", errs.ErrInvalidConfiguration, inputChunkSize)
	}
	if inputChunkSize > totalSize {
		return nil, fmt.Errorf("%w: input chunk size %d exceeds total size %d",
			errs.ErrInvalidConfiguration, inputChunkSize, totalSize)
	}
	return &DoubleBlockBuffer{
		arenas:    [2][]byte{make([]byte, totalSize), make([]byte, totalSize)},
		totalSize: totalSize,
		chunkSize: inputChunkSize,
		onRotate:  onRotate,
	}, nil
}

// SetRotateFunc replaces the rotation callback. Call it from the writer's
// goroutine only.
func (b *DoubleBlockBuffer) SetRotateFunc(f RotateFunc) {
	b.onRotate = f
}

// InputChunk copies chunk into the accumulation arena. A chunk that does not
// fit completes the arena, triggers exactly one rotation, and its remainder
// starts the next arena at offset 0. The chunk must be exactly the configured
// chunk size; a wrong-sized chunk is rejected before anything is written.
func (b *DoubleBlockBuffer) InputChunk(chunk []byte) error {
	if len(chunk) != b.chunkSize {
		return fmt.Errorf("%w: chunk length %d, configured chunk size %d",
			errs.ErrDimensionMismatch, len(chunk), b.chunkSize)
	}

	n := copy(b.arenas[b.write][b.offset:], chunk)
	b.offset += n
	if b.offset < b.totalSize {
		return nil
	}

	b.rotate()
	b.offset = copy(b.arenas[b.write], chunk[n:])
	return nil
}

// rotate swaps the arena roles and notifies the consumer.
func (b *DoubleBlockBuffer) rotate() {
	ready := b.write
	b.write ^= 1
	b.offset = 0
	b.rotations++
	b.hasReady = true
	if b.onRotate != nil {
		b.onRotate(b.arenas[ready])
	}
}

// Ready returns the last completed block, or nil before the first rotation.
func (b *DoubleBlockBuffer) Ready() []byte {
	if !b.hasReady {
		return nil
	}
	return b.arenas[b.write^1]
}

// Offset returns the write position inside the accumulation arena.
func (b *DoubleBlockBuffer) Offset() int { return b.offset }

// Rotations returns how many blocks have been completed.
func (b *DoubleBlockBuffer) Rotations() uint64 { return b.rotations }

// TotalSize returns the block size in bytes.
func (b *DoubleBlockBuffer) TotalSize() int { return b.totalSize }

// ChunkSize returns the expected input chunk size in bytes.
func (b *DoubleBlockBuffer) ChunkSize() int { return b.chunkSize }
