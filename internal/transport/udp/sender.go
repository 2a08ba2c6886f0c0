package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	applog "pulse/internal/log"
)

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("udp sender: closed")

// UDPSender writes datagrams to one dialled peer and counts what it sent.
type UDPSender struct {
	mu     sync.Mutex // Serialises writes with Close.
	conn   *net.UDPConn
	target string

	packets atomic.Uint64
	bytes   atomic.Uint64
	errors  atomic.Uint64
}

// NewUDPSender dials target ("host:port").
func NewUDPSender(target string) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("udp sender: resolve %q: %w", target, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("udp sender: dial %q: %w", target, err)
	}

	applog.Infof("UDPSender: Sending readings to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn, target: conn.RemoteAddr().String()}, nil
}

// Send writes data as a single datagram.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return ErrSenderClosed
	}
	n, err := s.conn.Write(data)
	s.mu.Unlock()

	if err != nil {
		s.errors.Add(1)
		applog.Warnf("UDPSender: Write to %s failed: %v", s.target, err)
		return fmt.Errorf("udp sender: %w", err)
	}
	s.packets.Add(1)
	s.bytes.Add(uint64(n))
	return nil
}

// Stats returns the packets and bytes delivered and the failed writes.
func (s *UDPSender) Stats() (packets, bytes, failed uint64) {
	return s.packets.Load(), s.bytes.Load(), s.errors.Load()
}

// Close releases the socket. Later calls are no-ops.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil

	packets, bytes, failed := s.packets.Load(), s.bytes.Load(), s.errors.Load()
	applog.Debugf("UDPSender: Closed after %d packets (%d bytes, %d failed)", packets, bytes, failed)
	if err != nil {
		return fmt.Errorf("udp sender: close: %w", err)
	}
	return nil
}

var _ PacketSender = (*UDPSender)(nil)
