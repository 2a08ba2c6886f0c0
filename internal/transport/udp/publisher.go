// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	applog "pulse/internal/log"
	"pulse/internal/transport"
)

// LatestReading supplies the most recent reading, if any.
type LatestReading interface {
	Latest() (transport.Reading, bool)
}

// PacketSender transmits one datagram.
type PacketSender interface {
	Send(data []byte) error
}

// UDPPublisher periodically packs the latest reading into a fixed binary
// packet and sends it. Its rate is independent of the tick rate.
type UDPPublisher struct {
	sender   PacketSender
	source   LatestReading
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum  uint32
	packetBuffer *bytes.Buffer // Reused for every packet.
}

// NewUDPPublisher creates a publisher. A non-positive interval defaults to
// 100ms.
func NewUDPPublisher(interval time.Duration, sender PacketSender, source LatestReading) (*UDPPublisher, error) {
	if sender == nil {
		return nil, errors.New("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, errors.New("UDPPublisher: reading source cannot be nil")
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	applog.Infof("UDPPublisher: Initializing (Interval: %s)", interval)
	return &UDPPublisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		packetBuffer: bytes.NewBuffer(make([]byte, 0, PacketSize)),
	}, nil
}

// Start launches the publishing goroutine. Calling it while running is a
// no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
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

// Run starts the publisher and stops it when ctx is done.
func (p *UDPPublisher) Run(ctx context.Context) error {
	p.Start()
	<-ctx.Done()
	return p.Stop()
}

// Stop signals the goroutine and waits for it. Safe to call repeatedly.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Publisher goroutine finished.")
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Smoothed BPM      | float32        | 4            | 0 when unknown          |
| Raw BPM           | float32        | 4            | Latest accepted beat    |
| Envelope          | float32        | 4            | Fused deviation         |
| Status            | uint8          | 1            | unknown/normal/high/low |
| Phase             | uint8          | 1            | NORMAL/ARMED/ACTIVE     |
| Alert             | uint8          | 1            | 1 when status alerts    |
+-----------------------------------------------------------------------------+

Visual Layout:

|<-- 4 -->|<---- 8 ---->|<-- 4 -->|<-- 4 -->|<-- 4 -->|<1>|<1>|<1>|
+---------+-------------+---------+---------+---------+---+---+---+
|   Seq   |  Timestamp  |  BPM    |  Raw    |  Env    | S | P | A |
+---------+-------------+---------+---------+---------+---+---+---+
*/

// PacketSize is the fixed length of an encoded packet.
const PacketSize = 4 + 8 + 4 + 4 + 4 + 1 + 1 + 1

// Packet is the decoded form of one datagram.
type Packet struct {
	Sequence    uint32
	Timestamp   time.Time
	BPMSmoothed float32
	BPMRaw      float32
	Envelope    float32
	Status      uint8
	Phase       uint8
	Alert       bool
}

func (p *UDPPublisher) buildAndSendPacket(now time.Time) {
	r, ok := p.source.Latest()
	if !ok {
		return
	}

	p.sequenceNum++
	p.packetBuffer.Reset()
	encodePacket(p.packetBuffer, p.sequenceNum, now, r)

	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		return // The sender logs.
	}
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
}

func encodePacket(buf *bytes.Buffer, seq uint32, now time.Time, r transport.Reading) {
	var b [PacketSize]byte
	binary.BigEndian.PutUint32(b[0:], seq)
	binary.BigEndian.PutUint64(b[4:], uint64(now.UnixNano()))
	binary.BigEndian.PutUint32(b[12:], math.Float32bits(float32(r.BPMSmoothed)))
	binary.BigEndian.PutUint32(b[16:], math.Float32bits(float32(r.BPMRaw)))
	binary.BigEndian.PutUint32(b[20:], math.Float32bits(float32(r.Envelope)))
	b[24] = statusCode(r.Status)
	b[25] = phaseCode(r.Phase)
	if r.Alert {
		b[26] = 1
	}
	buf.Write(b[:])
}

// DecodePacket parses a datagram produced by the publisher.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) != PacketSize {
		return Packet{}, fmt.Errorf("udp packet: got %d bytes, want %d", len(data), PacketSize)
	}
	return Packet{
		Sequence:    binary.BigEndian.Uint32(data[0:]),
		Timestamp:   time.Unix(0, int64(binary.BigEndian.Uint64(data[4:]))),
		BPMSmoothed: math.Float32frombits(binary.BigEndian.Uint32(data[12:])),
		BPMRaw:      math.Float32frombits(binary.BigEndian.Uint32(data[16:])),
		Envelope:    math.Float32frombits(binary.BigEndian.Uint32(data[20:])),
		Status:      data[24],
		Phase:       data[25],
		Alert:       data[26] == 1,
	}, nil
}

func statusCode(s string) uint8 {
	switch s {
	case "normal":
		return 1
	case "high":
		return 2
	case "low":
		return 3
	default:
		return 0
	}
}

func phaseCode(p string) uint8 {
	switch p {
	case "ARMED":
		return 1
	case "ACTIVE":
		return 2
	default:
		return 0
	}
}

// Close stops the publisher.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
