// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	applog "pulse/internal/log"
)

// Config represents the main application configuration, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn" or "error".
	Device    DeviceConfig    `yaml:"device"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Detector  DetectorConfig  `yaml:"detector"`
	Transport TransportConfig `yaml:"transport"`
	EventLog  EventLogConfig  `yaml:"eventlog"`
	Recording RecordingConfig `yaml:"recording"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// Set from the command line only.
	Command    string   `yaml:"-"` // One-off command ("list", "replay", "export").
	Args       []string `yaml:"-"` // Positional arguments of Command.
	ConfigPath string   `yaml:"-"`
	Verbose    bool     `yaml:"-"`
	OutputFile string   `yaml:"-"` // Recording file name override.
}

// DeviceConfig identifies this monitor to downstream consumers.
type DeviceConfig struct {
	ID   string `yaml:"id"`   // Stable device id; generated when empty.
	Name string `yaml:"name"` // Human readable label.
}

// SensorConfig selects and configures the raw sample source.
type SensorConfig struct {
	Source       string        `yaml:"source"`        // "simulator", "wav" or "linein".
	TickInterval time.Duration `yaml:"tick_interval"` // Pipeline tick period.
	Channels     int           `yaml:"channels"`      // Number of force inputs.
	WAVPath      string        `yaml:"wav_path"`      // Input file for the "wav" source.

	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Line-in capture rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Rounded up to a power of two.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency from PortAudio.
	FullScale       float64 `yaml:"full_scale"`        // Reading for a full-scale line-in amplitude.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Noise gate as a fraction of full scale; 0 disables.

	Simulator SimulatorConfig `yaml:"simulator"`
}

// SimulatorConfig shapes the synthetic pulse train.
type SimulatorConfig struct {
	BPM        float64       `yaml:"bpm"`
	Rest       float64       `yaml:"rest"`        // Unloaded reading.
	Amplitude  float64       `yaml:"amplitude"`   // Pulse height above rest.
	PulseWidth time.Duration `yaml:"pulse_width"` // Base-to-base width of one pulse.
	Noise      float64       `yaml:"noise"`       // Peak uniform noise.
	Seed       int64         `yaml:"seed"`
	Channel    int           `yaml:"channel"` // Channel carrying the pulse.
}

// TransportConfig holds the reading publishers.
type TransportConfig struct {
	Logging   bool            `yaml:"logging"` // Log every reading at debug level.
	WebSocket WebSocketConfig `yaml:"websocket"`
	HTTP      HTTPConfig      `yaml:"http"`
	NATS      NATSConfig      `yaml:"nats"`
	UDP       UDPConfig       `yaml:"udp"`
}

type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// HTTPConfig configures the JSON ingestion poster.
type HTTPConfig struct {
	Enabled          bool          `yaml:"enabled"`
	URL              string        `yaml:"url"`
	MinInterval      time.Duration `yaml:"min_interval"` // Minimum time between posts.
	Timeout          time.Duration `yaml:"timeout"`      // Per request.
	QueueSize        int           `yaml:"queue_size"`
	JWTSecret        string        `yaml:"jwt_secret"` // HS256 bearer token when set.
	JWTIssuer        string        `yaml:"jwt_issuer"`
	BreakerThreshold int           `yaml:"breaker_threshold"` // Consecutive failures before opening.
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type UDPConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TargetAddress string        `yaml:"target_address"` // host:port
	SendInterval  time.Duration `yaml:"send_interval"`
}

type EventLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // Append-only CSV.
}

// RecordingConfig controls raw sample recording to WAV.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"` // Listen address for /metrics.
}

// LoadConfig loads configuration from the YAML file at path. If path is
// empty, it searches default locations ("pulse.yaml", "config.yaml"); if no
// file is found, it uses built-in defaults. Environment overrides are
// applied last, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{
			"pulse.yaml",
			"config.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.ConfigPath = path
	}

	cfg.applyEnvOverrides()

	if cfg.Device.ID == "" {
		cfg.Device.ID = uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations the monitor cannot run with.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not a known level", c.LogLevel)
	}

	s := c.Sensor
	switch s.Source {
	case SourceSimulator:
		if s.Simulator.BPM <= 0 {
			return errors.New("sensor.simulator.bpm must be positive")
		}
		if s.Simulator.Channel < 0 || s.Simulator.Channel >= s.Channels {
			return fmt.Errorf("sensor.simulator.channel %d out of range for %d channels", s.Simulator.Channel, s.Channels)
		}
	case SourceWAV:
		if s.WAVPath == "" {
			return errors.New("sensor.wav_path must be set for the wav source")
		}
	case SourceLineIn:
		if s.InputDevice < MinDeviceID {
			return fmt.Errorf("sensor.input_device %d is invalid", s.InputDevice)
		}
		if s.SampleRate < MinSampleRate || s.SampleRate > MaxSampleRate {
			return fmt.Errorf("sensor.sample_rate %.0f outside [%d, %d]", s.SampleRate, MinSampleRate, MaxSampleRate)
		}
		if s.FramesPerBuffer < 1 || s.FramesPerBuffer > MaxBufferFrames {
			return fmt.Errorf("sensor.frames_per_buffer %d outside [1, %d]", s.FramesPerBuffer, MaxBufferFrames)
		}
		if s.FullScale <= 0 {
			return errors.New("sensor.full_scale must be positive")
		}
		if s.GateThreshold < 0 || s.GateThreshold >= 1 {
			return fmt.Errorf("sensor.gate_threshold %.3f outside [0, 1)", s.GateThreshold)
		}
	default:
		return fmt.Errorf("sensor.source %q must be one of %s, %s, %s", s.Source, SourceSimulator, SourceWAV, SourceLineIn)
	}
	if s.TickInterval < MinTickInterval {
		return fmt.Errorf("sensor.tick_interval %s is below %s", s.TickInterval, MinTickInterval)
	}

	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}

	t := c.Transport
	if t.WebSocket.Enabled && t.WebSocket.Addr == "" {
		return errors.New("transport.websocket.addr must be set when enabled")
	}
	if t.HTTP.Enabled {
		if t.HTTP.URL == "" {
			return errors.New("transport.http.url must be set when enabled")
		}
		if t.HTTP.MinInterval <= 0 || t.HTTP.Timeout <= 0 {
			return errors.New("transport.http.min_interval and timeout must be positive")
		}
		if t.HTTP.QueueSize < 1 {
			return errors.New("transport.http.queue_size must be at least 1")
		}
	}
	if t.NATS.Enabled && (t.NATS.URL == "" || t.NATS.Subject == "") {
		return errors.New("transport.nats.url and subject must be set when enabled")
	}
	if t.UDP.Enabled {
		if !strings.Contains(t.UDP.TargetAddress, ":") {
			return fmt.Errorf("transport.udp.target_address '%s' appears invalid (missing port?)", t.UDP.TargetAddress)
		}
		if t.UDP.SendInterval <= 0 {
			return errors.New("transport.udp.send_interval must be positive when enabled")
		}
	}

	if c.EventLog.Enabled && c.EventLog.Path == "" {
		return errors.New("eventlog.path must be set when enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr must be set when enabled")
	}

	return nil
}

// applyEnvOverrides applies ENV_* variables on top of the file and defaults.
// Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			fmt.Printf("configuration: Overriding debug from env: %v\n", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		fmt.Printf("configuration: Overriding log_level from env: %s\n", val)
	}
	// ENV_DEVICE_ID
	if val, ok := os.LookupEnv("ENV_DEVICE_ID"); ok && val != "" {
		c.Device.ID = val
		fmt.Printf("configuration: Overriding device.id from env: %s\n", val)
	}
	// ENV_SENSOR_SOURCE
	if val, ok := os.LookupEnv("ENV_SENSOR_SOURCE"); ok {
		c.Sensor.Source = strings.ToLower(val)
		fmt.Printf("configuration: Overriding sensor.source from env: %s\n", val)
	}

	// ENV_INGEST_{...}
	// These are specific to the HTTP ingestion transport.

	// ENV_INGEST_URL
	if val, ok := os.LookupEnv("ENV_INGEST_URL"); ok {
		c.Transport.HTTP.URL = val
		c.Transport.HTTP.Enabled = val != ""
		fmt.Printf("configuration: Overriding transport.http.url from env: %s\n", val)
	}
	// ENV_INGEST_INTERVAL
	if val, ok := os.LookupEnv("ENV_INGEST_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.HTTP.MinInterval = dur
			fmt.Printf("configuration: Overriding transport.http.min_interval from env: %s\n", dur)
		}
	}
}
