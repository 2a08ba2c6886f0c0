package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"pulse/cmd"
	"pulse/internal/analysis"
	"pulse/internal/config"
	"pulse/internal/engine"
	"pulse/internal/eventlog"
	applog "pulse/internal/log"
	"pulse/internal/sensor"
	"pulse/pkg/build"
)

// main is the entry point for the pulse monitor.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments and load configuration
//   - Initialize PortAudio when capturing from line-in
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Open the sensor source and transports
//   - Run the tick loop with metrics and UDP publishing alongside
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds run without ldflags and keep the default build info.
	if err := build.Initialize(); err != nil {
		applog.Warnf("Build: %v, using development build info", err)
	}

	// One thread for the tick loop, one for transports and I/O.
	runtime.GOMAXPROCS(2)

	// Parse command line arguments and build configuration
	cfg, err := cmd.ParseArgs()
	if err != nil {
		log.Fatal(err)
	}
	if cfg == nil {
		return // Help or version was printed.
	}
	configureLogging(cfg)

	// PortAudio is only needed to enumerate or capture line-in devices.
	if cfg.Command == cmd.CommandList || (cfg.Command == "" && cfg.Sensor.Source == config.SourceLineIn) {
		if err := sensor.Initialize(); err != nil {
			log.Fatal(err)
		}
		defer sensor.Terminate()
	}

	// Handle one-off commands that don't require the live loop.
	if cfg.Command != "" {
		if err := executeCommand(cfg); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := engine.Open(cfg)
	if err != nil {
		applog.Fatalf("%v", err)
	}

	fmt.Printf("%s monitoring device %s, press Ctrl+C to stop. '%s --help' for usage information.\n",
		build.GetBuildFlags().Name, cfg.Device.ID, build.GetBuildFlags().Name)

	// Blocks until a signal arrives or a finite source ends.
	runErr := e.Run(ctx)

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := e.Close(); err != nil {
		applog.Errorf("Error closing engine: %v", err)
	}
	if cfg.Recording.Enabled {
		fmt.Printf("\nRecording saved to: %s\n", cfg.Recording.OutputDir)
	}
	if runErr != nil {
		applog.Fatalf("%v", runErr)
	}
}

func configureLogging(cfg *config.Config) {
	level, _ := applog.ParseLevel(cfg.LogLevel)
	if cfg.Debug || cfg.Verbose {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)
}

// executeCommand handles one-off commands that don't require the live loop,
// such as listing devices or replaying a recording.
func executeCommand(cfg *config.Config) error {
	switch cfg.Command {
	case cmd.CommandList:
		return sensor.ListDevices()
	case cmd.CommandReplay:
		return replay(cfg, cfg.Args[0])
	case cmd.CommandExport:
		n, err := eventlog.ExportXLSX(cfg.Device.ID, cfg.Args[0], cfg.Args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d events to %s\n", n, cfg.Args[1])
		return nil
	default:
		return fmt.Errorf("unknown command %q", cfg.Command)
	}
}

// replay runs the detector over a recording without publishing anywhere.
func replay(cfg *config.Config, path string) error {
	cfg.Sensor.Source = config.SourceWAV
	cfg.Sensor.WAVPath = path
	cfg.Transport = config.TransportConfig{}
	cfg.EventLog.Enabled = false
	cfg.Recording.Enabled = false
	cfg.Metrics.Enabled = false

	e, err := engine.Open(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	var beats, events int
	var last analysis.Tick
	e.OnTick(func(t analysis.Tick) {
		last = t
		if t.Beat() {
			beats++
			fmt.Printf("%10s  beat  %6.1f BPM  (interval %s, avg %.1f)\n",
				t.At, t.Peak.BPM, t.Peak.Interval, t.SmoothedBPM)
		}
		if t.Transition.Changed() {
			fmt.Printf("%10s  alert %s -> %s\n", t.At, t.Transition.From, t.Transition.To)
		}
		if t.Completed {
			events++
			s := t.Summary
			fmt.Printf("%10s  event %s to %s, %s, max %.1f BPM, avg %.1f BPM\n",
				t.At, s.Start, s.End, s.Duration, s.MaxBPM, s.AvgBPM)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ticks, err := e.Replay(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\n%d ticks, %d beats, %d events, final %.1f BPM (%s)\n",
		ticks, beats, events, last.SmoothedBPM, last.Status)
	return nil
}
