// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	applog "pulse/internal/log"
)

// Publisher is the subset of *nats.Conn the transport needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSTransport publishes each reading as JSON on a subject. Publishing is
// buffered by the NATS client, so Send does not wait on the network.
type NATSTransport struct {
	pub     Publisher
	conn    *nats.Conn // nil when built around a bare Publisher
	subject string
}

// ConnectNATS dials url and returns a transport publishing on subject.
func ConnectNATS(url, subject, name string) (*NATSTransport, error) {
	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	applog.Infof("NATSTransport: Connected to %s, subject %s", conn.ConnectedUrl(), subject)

	t, err := NewNATSTransport(conn, subject)
	if err != nil {
		conn.Close()
		return nil, err
	}
	t.conn = conn
	return t, nil
}

// NewNATSTransport wraps an existing publisher.
func NewNATSTransport(pub Publisher, subject string) (*NATSTransport, error) {
	if pub == nil {
		return nil, errors.New("nats transport: publisher required")
	}
	if subject == "" {
		return nil, errors.New("nats transport: subject required")
	}
	return &NATSTransport{pub: pub, subject: subject}, nil
}

func (t *NATSTransport) Send(r Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode reading: %w", err)
	}
	if err := t.pub.Publish(t.subject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close drains the connection when the transport owns it.
func (t *NATSTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	if err := t.conn.Drain(); err != nil {
		t.conn.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

var _ Transport = (*NATSTransport)(nil)
