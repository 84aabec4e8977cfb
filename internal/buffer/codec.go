// SPDX-License-Identifier: MIT
package buffer

import (
	"encoding/binary"
	"fmt"
	"math"

	"filterstream/internal/errs"
)

// BytesPerSample is the width of one little-endian float32 sample.
const BytesPerSample = 4

// PutFloat32s encodes samples into dst as little-endian float32 values. dst
// must hold exactly len(samples)*BytesPerSample bytes.
func PutFloat32s(dst []byte, samples []float32) error {
	if len(dst) != len(samples)*BytesPerSample {
		return fmt.Errorf("%w: %d bytes cannot hold %d samples", errs.ErrDimensionMismatch, len(dst), len(samples))
	}
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*BytesPerSample:], math.Float32bits(s))
	}
	return nil
}

// Float64sFromBytes decodes little-endian float32 samples from src into dst,
// widening them to float64. dst must have exactly len(src)/BytesPerSample
// elements.
func Float64sFromBytes(dst []float64, src []byte) error {
	if len(src)%BytesPerSample != 0 || len(dst) != len(src)/BytesPerSample {
		return fmt.Errorf("%w: %d bytes cannot fill %d samples", errs.ErrDimensionMismatch, len(src), len(dst))
	}
	for i := range dst {
		dst[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(src[i*BytesPerSample:])))
	}
	return nil
}
