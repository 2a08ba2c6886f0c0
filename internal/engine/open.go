// SPDX-License-Identifier: MIT
package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pulse/internal/config"
	"pulse/internal/eventlog"
	applog "pulse/internal/log"
	"pulse/internal/metrics"
	"pulse/internal/sensor"
	"pulse/internal/transport"
)

// Open builds the source and every collaborator cfg enables, then the
// engine around them. On error everything opened so far is closed.
func Open(cfg *config.Config) (*Engine, error) {
	src, err := sensor.Open(cfg)
	if err != nil {
		return nil, err
	}
	if w, ok := src.(*sensor.WAVSource); ok && cfg.Sensor.TickInterval != w.TickInterval() {
		applog.Infof("Engine: Using the recording's tick interval %s", w.TickInterval())
		cfg.Sensor.TickInterval = w.TickInterval()
	}

	var deps Deps
	fail := func(err error) (*Engine, error) {
		closeDeps(deps)
		src.Close()
		return nil, err
	}

	if deps.Transport, err = BuildTransport(cfg); err != nil {
		return fail(err)
	}

	if cfg.EventLog.Enabled {
		if deps.Events, err = eventlog.NewWriter(cfg.EventLog.Path); err != nil {
			return fail(err)
		}
		applog.Infof("Engine: Logging events to %s", cfg.EventLog.Path)
	}

	if cfg.Recording.Enabled {
		if deps.Recorder, err = startRecorder(cfg, src.Channels()); err != nil {
			return fail(err)
		}
	}

	e, err := New(cfg, src, deps)
	if err != nil {
		return fail(err)
	}
	return e, nil
}

// BuildTransport fans readings out to every enabled transport. With none
// enabled it falls back to the logging transport.
func BuildTransport(cfg *config.Config) (transport.Transport, error) {
	t := cfg.Transport
	var multi transport.Multi

	if t.Logging {
		multi = append(multi, instrumented{"logging", transport.NewLoggingTransport()})
	}
	if t.WebSocket.Enabled {
		multi = append(multi, instrumented{"websocket", transport.NewWebSocketTransport(t.WebSocket.Addr, t.WebSocket.Path)})
	}
	if t.HTTP.Enabled {
		poster, err := transport.NewHTTPPoster(transport.HTTPOptions{
			URL:              t.HTTP.URL,
			MinInterval:      t.HTTP.MinInterval,
			Timeout:          t.HTTP.Timeout,
			QueueSize:        t.HTTP.QueueSize,
			JWTSecret:        t.HTTP.JWTSecret,
			JWTIssuer:        t.HTTP.JWTIssuer,
			Subject:          cfg.Device.ID,
			BreakerThreshold: t.HTTP.BreakerThreshold,
			BreakerCooldown:  t.HTTP.BreakerCooldown,
			OnError: func(error) {
				metrics.TransportFailures.WithLabelValues("http").Inc()
			},
		})
		if err != nil {
			multi.Close()
			return nil, err
		}
		multi = append(multi, instrumented{"http", poster})
	}
	if t.NATS.Enabled {
		name := cfg.Device.Name
		if name == "" {
			name = cfg.Device.ID
		}
		nt, err := transport.ConnectNATS(t.NATS.URL, t.NATS.Subject, name)
		if err != nil {
			multi.Close()
			return nil, err
		}
		multi = append(multi, instrumented{"nats", nt})
	}

	if len(multi) == 0 {
		return transport.NewLoggingTransport(), nil
	}
	return multi, nil
}

func startRecorder(cfg *config.Config, channels int) (*sensor.Recorder, error) {
	rate := int(time.Second / cfg.Sensor.TickInterval)
	rec, err := sensor.NewRecorder(channels, rate)
	if err != nil {
		return nil, err
	}

	dir := cfg.Recording.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}

	name := cfg.OutputFile
	if name == "" {
		name = "recording-" + time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}
	path := filepath.Join(dir, name)
	if err := rec.Start(path); err != nil {
		return nil, err
	}
	applog.Infof("Engine: Recording raw samples to %s", path)
	return rec, nil
}

func closeDeps(d Deps) {
	var errs []error
	if d.Recorder != nil {
		errs = append(errs, d.Recorder.Close())
	}
	if d.Events != nil {
		errs = append(errs, d.Events.Close())
	}
	if d.Transport != nil {
		errs = append(errs, d.Transport.Close())
	}
	if err := errors.Join(errs...); err != nil {
		applog.Warnf("Engine: cleanup: %v", err)
	}
}
