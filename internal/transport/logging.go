package transport

import (
	applog "pulse/internal/log"
)

// LoggingTransport writes every reading to the debug log.
type LoggingTransport struct{}

func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

func (lt *LoggingTransport) Send(r Reading) error {
	applog.Debugf("Transport: bpm=%.1f raw=%.1f status=%s phase=%s env=%.2f",
		r.BPMSmoothed, r.BPMRaw, r.Status, r.Phase, r.Envelope)
	return nil
}

func (lt *LoggingTransport) Close() error {
	applog.Debugf("Transport: LoggingTransport closed")
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
