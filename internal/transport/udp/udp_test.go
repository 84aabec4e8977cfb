// SPDX-License-Identifier: MIT
package udp

import (
	"net"
	"sync"
	"testing"
	"time"

	"filterstream/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticProvider struct {
	mags []float64
}

func (s staticProvider) GetMagnitudesInto(dst []float64) error {
	if len(dst) != len(s.mags) {
		return errs.ErrDimensionMismatch
	}
	copy(dst, s.mags)
	return nil
}

func (s staticProvider) GetFFTSize() int { return 2 * (len(s.mags) - 1) }

type chanSender struct {
	packets chan []byte
}

func (c chanSender) Send(data []byte) error {
	select {
	case c.packets <- append([]byte(nil), data...):
	default:
	}
	return nil
}

func TestPacketLayout(t *testing.T) {
	b := AppendPacket(nil, 3, 1234567890, []float64{0.5, 2})
	require.Len(t, b, HeaderSize+8)

	p, err := DecodePacket(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), p.Sequence)
	assert.Equal(t, int64(1234567890), p.Timestamp)
	assert.Equal(t, []float32{0.5, 2}, p.Magnitudes)

	_, err = DecodePacket(b[:HeaderSize-1])
	assert.Error(t, err)
	_, err = DecodePacket(b[:len(b)-1])
	assert.Error(t, err)
}

func TestPublisherSendsSequencedPackets(t *testing.T) {
	provider := staticProvider{mags: []float64{1, 2, 3, 4, 5}}
	sender := chanSender{packets: make(chan []byte, 16)}

	pub, err := NewUDPPublisher(time.Millisecond, sender, provider)
	require.NoError(t, err)
	pub.Start()
	pub.Start() // no-op while running

	var last uint32
	for range 3 {
		select {
		case b := <-sender.packets:
			p, err := DecodePacket(b)
			require.NoError(t, err)
			assert.Equal(t, []float32{1, 2, 3, 4, 5}, p.Magnitudes)
			assert.Greater(t, p.Sequence, last)
			last = p.Sequence
		case <-time.After(2 * time.Second):
			t.Fatal("no packet received")
		}
	}

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Stop())
}

func TestPublisherValidation(t *testing.T) {
	provider := staticProvider{mags: []float64{1, 2, 3}}
	_, err := NewUDPPublisher(time.Millisecond, nil, provider)
	assert.Error(t, err)
	_, err = NewUDPPublisher(time.Millisecond, chanSender{}, nil)
	assert.Error(t, err)

	pub, err := NewUDPPublisher(0, chanSender{}, provider)
	require.NoError(t, err)
	assert.Equal(t, 16*time.Millisecond, pub.interval)
}

type sizedProvider int

func (s sizedProvider) GetMagnitudesInto(dst []float64) error { return nil }
func (s sizedProvider) GetFFTSize() int                      { return int(s) }

func TestPublisherRejectsOversizedPackets(t *testing.T) {
	_, err := NewUDPPublisher(time.Millisecond, chanSender{}, sizedProvider(65536))
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)

	largest := 2 * (MaxMagnitudes - 1)
	pub, err := NewUDPPublisher(time.Millisecond, chanSender{}, sizedProvider(largest))
	require.NoError(t, err)
	assert.LessOrEqual(t, cap(pub.packetBuffer), MaxPacketSize)

	_, err = NewUDPPublisher(time.Millisecond, chanSender{}, sizedProvider(largest+2))
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}

func TestSenderOverLoopback(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ln.Close()

	s, err := NewUDPSender(ln.LocalAddr().String())
	require.NoError(t, err)

	var wg sync.WaitGroup
	var got []byte
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 64)
		_ = ln.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := ln.ReadFromUDP(buf)
		if err == nil {
			got = buf[:n]
		}
	}()

	require.NoError(t, s.Send([]byte("ping")))
	wg.Wait()
	assert.Equal(t, []byte("ping"), got)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Send([]byte("late")), ErrSenderClosed)
	assert.NoError(t, s.Close())
}

func TestSenderBadAddress(t *testing.T) {
	_, err := NewUDPSender("not an address")
	assert.Error(t, err)
}
