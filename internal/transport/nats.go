// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"filterstream/internal/log"

	"github.com/nats-io/nats.go"
)

// Publisher is the part of a NATS connection the transport needs.
// *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSTransport publishes each message as JSON on a fixed subject.
type NATSTransport struct {
	pub     Publisher
	subject string
	conn    *nats.Conn // Owned connection, nil when the publisher was injected.

	mu     sync.Mutex
	closed bool
}

// NewNATSTransport connects to url and publishes on subject. The connection
// reconnects on its own; messages sent while disconnected are buffered by
// the client library.
func NewNATSTransport(url, subject string) (*NATSTransport, error) {
	conn, err := nats.Connect(url,
		nats.Name("filterstream"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("NATSTransport: disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Infof("NATSTransport: reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats transport: connect to %s: %w", url, err)
	}
	log.Infof("NATSTransport: publishing on %q via %s", subject, conn.ConnectedUrl())
	t := NewNATSTransportWithPublisher(conn, subject)
	t.conn = conn
	return t, nil
}

// NewNATSTransportWithPublisher publishes through pub, which the caller owns.
func NewNATSTransportWithPublisher(pub Publisher, subject string) *NATSTransport {
	return &NATSTransport{pub: pub, subject: subject}
}

// Send marshals data to JSON and publishes it.
func (t *NATSTransport) Send(data any) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("nats transport: marshal %T: %w", data, err)
	}
	if err := t.pub.Publish(t.subject, payload); err != nil {
		return fmt.Errorf("nats transport: publish on %q: %w", t.subject, err)
	}
	return nil
}

// Close drains an owned connection. Injected publishers are left alone.
func (t *NATSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn != nil {
		log.Debugf("NATSTransport: draining connection")
		if err := t.conn.Drain(); err != nil {
			t.conn.Close()
			return fmt.Errorf("nats transport: drain: %w", err)
		}
	}
	return nil
}

var _ Transport = (*NATSTransport)(nil)
