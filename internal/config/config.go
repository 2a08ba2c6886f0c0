// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults for
// the monitor.
const (
	// Sensor sampling
	DefaultSource          = SourceSimulator
	DefaultTickInterval    = 20 * time.Millisecond // 50 Hz
	DefaultChannels        = 2                     // Two force pads
	DefaultInputDevice     = MinDeviceID           // System default device
	DefaultSampleRate      = 8000                  // Line-in capture rate (Hz)
	DefaultFramesPerBuffer = 160                   // One tick at 8 kHz
	DefaultLowLatency      = false
	DefaultFullScale       = 1000 // Line-in amplitude 1.0 maps to this reading

	// Simulator
	DefaultSimBPM        = 72
	DefaultSimRest       = 500
	DefaultSimAmplitude  = 40
	DefaultSimPulseWidth = 300 * time.Millisecond
	DefaultSimNoise      = 1
	DefaultSimSeed       = 1

	// Transport
	DefaultWebSocketAddr     = ":8080"
	DefaultWebSocketPath     = "/ws"
	DefaultIngestInterval    = time.Second
	DefaultIngestTimeout     = 2 * time.Second
	DefaultIngestQueue       = 64
	DefaultBreakerThreshold  = 5
	DefaultBreakerCooldown   = 30 * time.Second
	DefaultNATSSubject       = "pulse.readings"
	DefaultUDPTargetAddress  = "127.0.0.1:9090"
	DefaultUDPSendInterval   = 100 * time.Millisecond
	DefaultEventLogPath      = "events.csv"
	DefaultRecordingDir      = "./recordings"
	DefaultMetricsAddr       = ":9100"
	DefaultLogLevel          = "info"
	DefaultVerbosity         = false
	DefaultRecordInputStream = false

	// Hardware and processing limits
	MinDeviceID     = -1 // -1 represents the system default device
	MinSampleRate   = 1000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
	MinTickInterval = time.Millisecond
)

// Sensor source names.
const (
	SourceSimulator = "simulator"
	SourceWAV       = "wav"
	SourceLineIn    = "linein"
)

// NewConfig returns a Config populated with built-in defaults. The device id
// is left empty; LoadConfig assigns a generated one if nothing sets it.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Sensor: SensorConfig{
			Source:          DefaultSource,
			TickInterval:    DefaultTickInterval,
			Channels:        DefaultChannels,
			InputDevice:     DefaultInputDevice,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			FullScale:       DefaultFullScale,
			Simulator: SimulatorConfig{
				BPM:        DefaultSimBPM,
				Rest:       DefaultSimRest,
				Amplitude:  DefaultSimAmplitude,
				PulseWidth: DefaultSimPulseWidth,
				Noise:      DefaultSimNoise,
				Seed:       DefaultSimSeed,
			},
		},
		Detector: DefaultDetectorConfig(),
		Transport: TransportConfig{
			Logging: false,
			WebSocket: WebSocketConfig{
				Addr: DefaultWebSocketAddr,
				Path: DefaultWebSocketPath,
			},
			HTTP: HTTPConfig{
				MinInterval:      DefaultIngestInterval,
				Timeout:          DefaultIngestTimeout,
				QueueSize:        DefaultIngestQueue,
				BreakerThreshold: DefaultBreakerThreshold,
				BreakerCooldown:  DefaultBreakerCooldown,
			},
			NATS: NATSConfig{
				Subject: DefaultNATSSubject,
			},
			UDP: UDPConfig{
				TargetAddress: DefaultUDPTargetAddress,
				SendInterval:  DefaultUDPSendInterval,
			},
		},
		EventLog: EventLogConfig{
			Enabled: true,
			Path:    DefaultEventLogPath,
		},
		Recording: RecordingConfig{
			Enabled:   DefaultRecordInputStream,
			OutputDir: DefaultRecordingDir,
		},
		Metrics: MetricsConfig{
			Addr: DefaultMetricsAddr,
		},
	}
}
