// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingTransport struct {
	mu     sync.Mutex
	sent   []any
	err    error
	closed bool
}

func (r *recordingTransport) Send(data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, data)
	return r.err
}

func (r *recordingTransport) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.err
}

func TestMultiFansOut(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recordingTransport{}, &recordingTransport{err: boom}
	m := Multi{a, b}

	err := m.Send("frame")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []any{"frame"}, a.sent)
	assert.Equal(t, []any{"frame"}, b.sent, "a failing transport still receives the message")

	assert.ErrorIs(t, m.Close(), boom)
	assert.True(t, a.closed)
	assert.True(t, b.closed)

	assert.NoError(t, Multi(nil).Send(1))
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	assert.NoError(t, lt.Send(map[string]float64{"rms": 0.5}))
	assert.NoError(t, lt.Send(func() {}), "unmarshalable values are still accepted")
	assert.NoError(t, lt.Close())
}

type fakePublisher struct {
	subject string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject = subject
	f.payload = data
	return f.err
}

func TestNATSTransport(t *testing.T) {
	pub := &fakePublisher{}
	nt := NewNATSTransportWithPublisher(pub, "filterstream.test")

	require.NoError(t, nt.Send(map[string]any{"sequence": 7}))
	assert.Equal(t, "filterstream.test", pub.subject)

	var got map[string]int
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, 7, got["sequence"])

	pub.err = errors.New("no responders")
	assert.ErrorIs(t, nt.Send(1), pub.err)

	assert.Error(t, nt.Send(make(chan int)))

	require.NoError(t, nt.Close())
	assert.ErrorIs(t, nt.Send(1), ErrClosed)
	assert.NoError(t, nt.Close())
}

func TestWebSocketBroadcast(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return wst.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, wst.Send(map[string]float64{"peak_hz": 440}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got map[string]float64
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, 440.0, got["peak_hz"])

	require.NoError(t, wst.Close())
	assert.ErrorIs(t, wst.Send(1), ErrClosed)
	assert.Equal(t, 0, wst.ClientCount())
	assert.NoError(t, wst.Close())
}

func TestWebSocketClientDisconnect(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	require.NoError(t, err)
	defer wst.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return wst.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return wst.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketStalledClientDoesNotBlockOthers(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	require.NoError(t, err)
	defer wst.Close()
	url := "ws://" + wst.Addr().String() + "/ws"

	stalled, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer stalled.Close()
	require.Eventually(t, func() bool { return wst.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	// stalled never reads, so once the socket buffers fill the broadcaster
	// sits in a write until writeTimeout.
	payload := strings.Repeat("x", 4<<20)
	for range 8 {
		require.NoError(t, wst.Send(payload))
	}
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	other, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer other.Close()
	require.Eventually(t, func() bool { return wst.ClientCount() == 2 }, writeTimeout/2, time.Millisecond)
	assert.Less(t, time.Since(start), writeTimeout/2)
}

func TestWebSocketListenError(t *testing.T) {
	_, err := NewWebSocketTransport("256.0.0.1:bad")
	assert.Error(t, err)
}
