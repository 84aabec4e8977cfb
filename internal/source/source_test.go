// SPDX-License-Identifier: MIT
package source

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"filterstream/internal/errs"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStereoWAV(t *testing.T, left, right []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	data := make([]int, 0, 2*len(left))
	for i := range left {
		data = append(data, left[i], right[i])
	}
	enc := wav.NewEncoder(f, 8000, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format: &audio.Format{NumChannels: 2, SampleRate: 8000},
		Data:   data,
	}))
	require.NoError(t, enc.Close())
	return path
}

func TestWAVDownmixAndBlocks(t *testing.T) {
	left := []int{16384, 16384, 0, -16384, 8192}
	right := []int{16384, -16384, 0, -16384, 8192}
	path := writeStereoWAV(t, left, right)

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 8000.0, src.SampleRate())

	block := make([]float64, 2)
	var got []float64
	for {
		n, err := src.ReadBlock(block)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, block[:n]...)
	}
	assert.InDeltaSlice(t, []float64{0.5, 0, 0, -0.5, 0.25}, got, 1e-9)

	n, err := src.ReadBlock(block)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

// writePCMWAV writes a mono PCM WAVE file with a hand-built header so that
// any bit depth can be declared.
func writePCMWAV(t *testing.T, bitDepth uint16, data []byte) string {
	t.Helper()
	const rate = 8000
	blockAlign := (bitDepth + 7) / 8

	b := make([]byte, 0, 44+len(data))
	b = append(b, "RIFF"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(36+len(data)))
	b = append(b, "WAVEfmt "...)
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = binary.LittleEndian.AppendUint16(b, 1) // PCM
	b = binary.LittleEndian.AppendUint16(b, 1) // mono
	b = binary.LittleEndian.AppendUint32(b, rate)
	b = binary.LittleEndian.AppendUint32(b, rate*uint32(blockAlign))
	b = binary.LittleEndian.AppendUint16(b, blockAlign)
	b = binary.LittleEndian.AppendUint16(b, bitDepth)
	b = append(b, "data"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(data)))
	b = append(b, data...)

	path := filepath.Join(t.TempDir(), "pcm.wav")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func TestWAV8BitIsCentred(t *testing.T) {
	silence := make([]byte, 64)
	for i := range silence {
		silence[i] = 128
	}
	src, err := OpenWAV(writePCMWAV(t, 8, silence))
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 8, src.BitDepth())

	block := make([]float64, 8)
	n, err := src.ReadBlock(block)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	assert.Equal(t, make([]float64, 8), block, "silence decodes to zero")

	src2, err := OpenWAV(writePCMWAV(t, 8, []byte{255, 0, 192, 64}))
	require.NoError(t, err)
	defer src2.Close()
	n, err = src2.ReadBlock(block)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	assert.InDeltaSlice(t, []float64{127.0 / 128, -1, 0.5, -0.5}, block[:n], 1e-12)
}

func TestWAVRejectsUnsupportedBitDepth(t *testing.T) {
	_, err := OpenWAV(writePCMWAV(t, 12, make([]byte, 16)))
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}

// readAll drains src in blocks of size n and returns the samples and the
// length of every block.
func readAll(t *testing.T, src Source, n int) ([]float64, []int) {
	t.Helper()
	block := make([]float64, n)
	var got []float64
	var sizes []int
	for {
		k, err := src.ReadBlock(block)
		if err == io.EOF {
			require.Zero(t, k)
			break
		}
		require.NoError(t, err)
		require.Positive(t, k)
		got = append(got, block[:k]...)
		sizes = append(sizes, k)
	}
	return got, sizes
}

// writeSilentMP3 writes frames MPEG-1 Layer III mono frames at 44.1 kHz and
// 128 kbit/s whose side information is all zero, which decodes to silence.
func writeSilentMP3(t *testing.T, frames int) string {
	t.Helper()
	const frameSize = 144 * 128000 / 44100
	frame := make([]byte, frameSize)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0xC0})

	data := make([]byte, 0, frames*frameSize)
	for range frames {
		data = append(data, frame...)
	}
	path := filepath.Join(t.TempDir(), "silence.mp3")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestMP3Blocks(t *testing.T) {
	const frames, samplesPerFrame = 10, 1152
	src, err := OpenMP3(writeSilentMP3(t, frames))
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 44100.0, src.SampleRate())

	got, sizes := readAll(t, src, 1000)
	require.Len(t, got, frames*samplesPerFrame)
	assert.Equal(t, frames*samplesPerFrame%1000, sizes[len(sizes)-1], "last block is short")
	for i, x := range got {
		if x != 0 {
			t.Fatalf("sample %d = %g, want silence", i, x)
		}
	}

	n, err := src.ReadBlock(make([]float64, 10))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestOggBlocks(t *testing.T) {
	src, err := OpenOgg(filepath.Join("testdata", "mono_44100.ogg"))
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 44100.0, src.SampleRate())
	assert.Equal(t, 1, src.Channels())

	got, sizes := readAll(t, src, 4096)
	require.Len(t, got, 44100)
	assert.Equal(t, 44100%4096, sizes[len(sizes)-1], "last block is short")

	var energy float64
	for _, x := range got {
		require.LessOrEqual(t, math.Abs(x), 1.0)
		energy += x * x
	}
	assert.Positive(t, energy)

	n, err := src.ReadBlock(make([]float64, 10))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenersRejectInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noise.bin")
	require.NoError(t, os.WriteFile(path, []byte("definitely not audio"), 0o644))

	_, err := OpenMP3(path)
	assert.Error(t, err)
	_, err = OpenOgg(path)
	assert.Error(t, err)
	_, err = OpenWAV(path)
	assert.Error(t, err)

	_, err = OpenMP3(filepath.Join(dir, "missing.mp3"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = OpenOgg(filepath.Join(dir, "missing.ogg"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenRejectsUnknownAndInvalid(t *testing.T) {
	_, err := Open("song.flac")
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)

	dir := t.TempDir()
	for _, name := range []string{"bad.wav", "bad.mp3", "bad.ogg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("definitely not audio"), 0o644))
		_, err := Open(path)
		assert.Error(t, err, name)
	}

	_, err = Open(filepath.Join(dir, "missing.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMemory(t *testing.T) {
	m := NewMemory([]float64{1, 2, 3}, 100)
	block := make([]float64, 2)

	n, err := m.ReadBlock(block)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, block[:n])

	n, err = m.ReadBlock(block)
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, block[:n])

	_, err = m.ReadBlock(block)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 100.0, m.SampleRate())
}

func TestDownmix(t *testing.T) {
	dst := make([]float64, 2)
	n := downmix(dst, []int16{100, 300, -200, 0, 7}, 2, 0.01)
	assert.Equal(t, 2, n, "a trailing partial frame is ignored")
	assert.InDeltaSlice(t, []float64{2, -1}, dst, 1e-12)
}
