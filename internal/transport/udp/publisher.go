// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"filterstream/internal/errs"
	"filterstream/internal/log"
)

const (
	// HeaderSize is the fixed part of a packet: sequence, timestamp and count.
	HeaderSize = 4 + 8 + 2

	// MaxPacketSize is the largest UDP payload over IPv4.
	MaxPacketSize = 65507

	// MaxMagnitudes is the most bins one packet can carry.
	MaxMagnitudes = (MaxPacketSize - HeaderSize) / 4
)

// PacketSize returns the encoded length of a packet with n magnitudes.
func PacketSize(n int) int { return HeaderSize + 4*n }

// MagnitudeProvider supplies the latest magnitude spectrum.
type MagnitudeProvider interface {
	GetMagnitudesInto(dst []float64) error
	GetFFTSize() int
}

// Sender transmits one datagram. *UDPSender satisfies it.
type Sender interface {
	Send(data []byte) error
}

// UDPPublisher periodically fetches the latest magnitudes, packs them into a
// binary packet and sends them. It runs in a separate goroutine managed by
// Start and Stop.
type UDPPublisher struct {
	sender   Sender
	provider MagnitudeProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32

	// Pre-allocated buffers for the send path.
	magBuffer    []float64
	packetBuffer []byte
}

// NewUDPPublisher creates a publisher. If the interval is not positive it
// defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender Sender, provider MagnitudeProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("UDPPublisher: magnitude provider cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		log.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	bins := provider.GetFFTSize()/2 + 1
	if bins > MaxMagnitudes {
		return nil, fmt.Errorf("%w: UDPPublisher: %d bins need a %d byte packet, the limit is %d",
			errs.ErrInvalidConfiguration, bins, PacketSize(bins), MaxPacketSize)
	}
	log.Infof("UDPPublisher: Initializing (Interval: %s, Bins: %d)", interval, bins)

	return &UDPPublisher{
		sender:       sender,
		provider:     provider,
		interval:     interval,
		magBuffer:    make([]float64, bins),
		packetBuffer: make([]byte, 0, PacketSize(bins)),
	}, nil
}

// Start begins the periodic publishing process. Calling Start on a running
// publisher is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		log.Warnf("UDPPublisher: Start called but already running.")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket(time.Now())
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it.
// Calling Stop on a stopped publisher is a no-op.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	close(p.doneChan)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	log.Debugf("UDPPublisher: Publisher goroutine finished.")
	return nil
}

/*
UDP Packet Structure (BigEndian)

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |   Magnitude   |       Magnitudes        |
|      (uint32)     |  (int64, Unix nanos)  | Count (uint16)|      (N * float32)      |
+-------------------+-----------------------+---------------+-------------------------+
*/

// AppendPacket encodes one packet onto dst.
func AppendPacket(dst []byte, seq uint32, timestamp int64, magnitudes []float64) []byte {
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(timestamp))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(magnitudes)))
	for _, m := range magnitudes {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(m)))
	}
	return dst
}

// Packet is a decoded datagram.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	Magnitudes []float32
}

// DecodePacket parses a datagram produced by AppendPacket.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("udp packet: %d bytes is shorter than the header", len(b))
	}
	p := Packet{
		Sequence:  binary.BigEndian.Uint32(b[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:12])),
	}
	n := int(binary.BigEndian.Uint16(b[12:14]))
	if len(b) != PacketSize(n) {
		return Packet{}, fmt.Errorf("udp packet: %d bytes cannot hold %d magnitudes", len(b), n)
	}
	p.Magnitudes = make([]float32, n)
	for i := range p.Magnitudes {
		p.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(b[HeaderSize+4*i:]))
	}
	return p, nil
}

// buildAndSendPacket fetches the latest magnitudes and sends one packet.
func (p *UDPPublisher) buildAndSendPacket(now time.Time) {
	if err := p.provider.GetMagnitudesInto(p.magBuffer); err != nil {
		log.Errorf("UDPPublisher: Error getting magnitudes: %v", err)
		return
	}

	p.sequenceNum++
	p.packetBuffer = AppendPacket(p.packetBuffer[:0], p.sequenceNum, now.UnixNano(), p.magBuffer)

	if err := p.sender.Send(p.packetBuffer); err == nil {
		log.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(p.packetBuffer))
	}
}

// Close stops the publisher. The sender is not closed; its owner does that.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
