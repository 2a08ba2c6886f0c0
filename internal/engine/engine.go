// SPDX-License-Identifier: MIT
/*
Package engine drives the pulse pipeline in real time:
  - Reads one raw frame per tick from a sensor source
  - Runs the frame through the analysis controller
  - Publishes a reading per tick and persists completed events
  - Records raw frames to WAV when enabled

Threading:
  - The tick loop is the only caller of the controller
  - Transports never block the loop; network I/O runs on their own goroutines
  - Latest is safe to call from any goroutine
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pulse/internal/analysis"
	"pulse/internal/config"
	"pulse/internal/eventlog"
	applog "pulse/internal/log"
	"pulse/internal/metrics"
	"pulse/internal/sensor"
	"pulse/internal/transport"
	"pulse/internal/transport/udp"
)

// Deps are the collaborators an Engine publishes to. Nil members are
// skipped.
type Deps struct {
	Transport transport.Transport
	Events    *eventlog.Writer
	Recorder  *sensor.Recorder
}

type Engine struct {
	config     *config.Config
	source     sensor.Source
	controller *analysis.Controller
	deps       Deps

	frame  []int32 // Reused for every Read.
	ticks  int64
	epoch  time.Time
	mode   analysis.CalibrationMode
	onTick func(analysis.Tick)

	mu        sync.RWMutex // Protects latest.
	latest    transport.Reading
	hasLatest bool
}

// New builds an engine around an open source. The controller is sized to
// the source's channel count.
func New(cfg *config.Config, src sensor.Source, deps Deps) (*Engine, error) {
	if src == nil {
		return nil, errors.New("engine: source required")
	}
	if cfg.Sensor.TickInterval <= 0 {
		return nil, fmt.Errorf("engine: invalid tick interval %s", cfg.Sensor.TickInterval)
	}

	controller, err := analysis.NewController(cfg.Detector.Params(src.Channels()))
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:     cfg,
		source:     src,
		controller: controller,
		deps:       deps,
		frame:      make([]int32, src.Channels()),
		mode:       analysis.ModeCalibrating,
	}, nil
}

// OnTick registers a callback run on the tick goroutine after every tick.
// It must be set before Run or Replay.
func (e *Engine) OnTick(fn func(analysis.Tick)) { e.onTick = fn }

// Controller exposes the analysis state for inspection.
func (e *Engine) Controller() *analysis.Controller { return e.controller }

// Run ticks at the configured interval until ctx is done or a finite source
// ends. Metrics and UDP publishing run alongside the loop when enabled.
func (e *Engine) Run(ctx context.Context) error {
	// Everything that can fail is built before the first goroutine starts,
	// so an error here leaves nothing running.
	var (
		sender    *udp.UDPSender
		publisher *udp.UDPPublisher
	)
	if e.config.Transport.UDP.Enabled {
		var err error
		if sender, err = udp.NewUDPSender(e.config.Transport.UDP.TargetAddress); err != nil {
			return err
		}
		if publisher, err = udp.NewUDPPublisher(e.config.Transport.UDP.SendInterval, sender, e); err != nil {
			sender.Close()
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	if e.config.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Serve(gCtx, e.config.Metrics.Addr)
		})
	}

	if publisher != nil {
		g.Go(func() error {
			defer sender.Close()
			return publisher.Run(gCtx)
		})
	}

	g.Go(func() error {
		defer cancel() // A finished source stops the background servers.
		return e.loop(gCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (e *Engine) loop(ctx context.Context) error {
	interval := e.config.Sensor.TickInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.start()
	applog.Infof("Engine: Running %s source at %s per tick", e.config.Sensor.Source, interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := e.step(); err != nil {
				if errors.Is(err, sensor.ErrEndOfStream) {
					applog.Infof("Engine: Source ended after %d ticks", e.ticks)
					return nil
				}
				return err
			}
		}
	}
}

// Replay runs the pipeline as fast as the source delivers frames until it
// ends or ctx is done. It returns the number of ticks processed.
func (e *Engine) Replay(ctx context.Context) (int64, error) {
	e.start()
	for {
		if err := ctx.Err(); err != nil {
			return e.ticks, err
		}
		if _, err := e.step(); err != nil {
			if errors.Is(err, sensor.ErrEndOfStream) {
				return e.ticks, nil
			}
			return e.ticks, err
		}
	}
}

func (e *Engine) start() {
	e.epoch = time.Now()
	e.ticks = 0
}

// step processes one frame. Time advances one tick interval per frame, so
// replays see the same clock as the live run that recorded them.
func (e *Engine) step() (analysis.Tick, error) {
	began := time.Now()

	if err := e.source.Read(e.frame); err != nil {
		if errors.Is(err, sensor.ErrEndOfStream) {
			return analysis.Tick{}, err
		}
		// The previous frame is reused so the clock and statistics keep
		// moving.
		metrics.SourceErrors.Inc()
		applog.Warnf("Engine: Source read failed: %v", err)
	}

	now := time.Duration(e.ticks) * e.config.Sensor.TickInterval
	e.ticks++
	tick := e.controller.Update(now, e.frame)

	if r := e.deps.Recorder; r != nil && r.Recording() {
		if err := r.Write(e.frame); err != nil {
			metrics.RecordingErrors.Inc()
			applog.Warnf("Engine: Recording write failed: %v", err)
		}
	}

	e.report(tick)

	reading := e.reading(tick)
	e.mu.Lock()
	e.latest = reading
	e.hasLatest = true
	e.mu.Unlock()

	if t := e.deps.Transport; t != nil {
		if err := t.Send(reading); err != nil {
			applog.Debugf("Engine: Send failed: %v", err)
		}
	}

	if e.onTick != nil {
		e.onTick(tick)
	}

	mean, mad := e.controller.Statistics()
	observe(tick, mean, mad, time.Since(began))
	return tick, nil
}

// report logs state changes and persists completed events.
func (e *Engine) report(tick analysis.Tick) {
	if tick.Mode != e.mode {
		applog.Infof("Engine: Mode %s -> %s at %s", e.mode, tick.Mode, tick.At)
		e.mode = tick.Mode
	}

	switch tick.Peak.Outcome {
	case analysis.PeakAccepted:
		applog.Debugf("Engine: Beat at %s, %.1f BPM (avg %.1f over %d)",
			tick.At, tick.Peak.BPM, tick.SmoothedBPM, e.controller.BPMCount())
	case analysis.PeakTooFast, analysis.PeakTooSlow:
		applog.Debugf("Engine: Rejected release at %s (%s, %s)", tick.At, tick.Peak.Outcome, tick.Peak.Interval)
	}

	if tick.Transition.Changed() {
		if since, ok := e.controller.AlertSince(); ok {
			applog.Infof("Engine: Alert %s -> %s at %s (%.1f BPM, above %.0f since %s)",
				tick.Transition.From, tick.Transition.To, tick.At, tick.SmoothedBPM,
				e.config.Detector.EventUpper, since)
		} else {
			applog.Infof("Engine: Alert %s -> %s at %s (%.1f BPM)",
				tick.Transition.From, tick.Transition.To, tick.At, tick.SmoothedBPM)
		}
	}

	if !tick.Completed {
		return
	}
	s := tick.Summary
	applog.Infof("Engine: Event ended after %s, max %.1f BPM, avg %.1f BPM", s.Duration, s.MaxBPM, s.AvgBPM)
	if e.deps.Events == nil {
		return
	}
	if err := e.deps.Events.Write(eventlog.NewRecord(e.epoch, s)); err != nil {
		metrics.EventLogErrors.Inc()
		applog.Errorf("Engine: %v", err)
	}
}

func (e *Engine) reading(tick analysis.Tick) transport.Reading {
	return transport.Reading{
		DeviceID:    e.config.Device.ID,
		Envelope:    tick.Envelope,
		BPMRaw:      tick.RawBPM,
		BPMSmoothed: tick.SmoothedBPM,
		Status:      tick.Status.String(),
		Alert:       tick.Status.Alert(),
		Phase:       tick.Alert.String(),
		Source:      e.config.Sensor.Source,
		Timestamp:   e.epoch.Add(tick.At),
	}
}

// Latest returns the most recent reading, if a tick has run.
func (e *Engine) Latest() (transport.Reading, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest, e.hasLatest
}

// Ticks returns the number of ticks processed since the last start.
func (e *Engine) Ticks() int64 { return e.ticks }

// Close stops recording and releases every collaborator.
func (e *Engine) Close() error {
	var errs []error
	if r := e.deps.Recorder; r != nil {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("recorder: %w", err))
		}
	}
	if w := e.deps.Events; w != nil {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event log: %w", err))
		}
	}
	if t := e.deps.Transport; t != nil {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("transport: %w", err))
		}
	}
	if err := e.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}
	return errors.Join(errs...)
}

var _ udp.LatestReading = (*Engine)(nil)
