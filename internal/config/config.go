// Package config loads the relay configuration.
//
// The YAML file is the source of truth; flags and ORION_RELAY_* environment
// variables override individual keys through viper (see Override).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete relay configuration
type Config struct {
	InstanceID string       `yaml:"instance_id"`
	Camera     CameraConfig `yaml:"camera"`
	Stream     StreamConfig `yaml:"stream"`
	HTTP       HTTPConfig   `yaml:"http"`
	MQTT       MQTTConfig   `yaml:"mqtt"`
	Log        LogConfig    `yaml:"log"`
}

// CameraConfig contains camera (ingest source) settings
type CameraConfig struct {
	Source       string          `yaml:"source"` // rtsp, mjpeg, synthetic
	URL          string          `yaml:"url"`
	Username     string          `yaml:"username"`
	Password     string          `yaml:"password"`
	Transport    string          `yaml:"transport"` // tcp, udp, auto (rtsp only)
	LatencyMS    int             `yaml:"latency_ms"`
	Decoder      string          `yaml:"decoder"` // auto, nvidia, vaapi, software
	Width        int             `yaml:"width"`
	Height       int             `yaml:"height"`
	MaxFPS       float64         `yaml:"max_fps"`
	JPEGQuality  int             `yaml:"jpeg_quality"`
	RestartDelay time.Duration   `yaml:"restart_delay"`
	Reconnect    ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig contains the source backoff policy
type ReconnectConfig struct {
	MaxRetries    int           `yaml:"max_retries"` // 0 = unlimited
	RetryDelay    time.Duration `yaml:"retry_delay"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
}

// StreamConfig contains per-client session settings
type StreamConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"` // frame-rate ceiling per client
	Notify       bool          `yaml:"notify"`        // wake on publish instead of polling
	StaleAfter   time.Duration `yaml:"stale_after"`   // readiness fails when the latest frame is older
}

// HTTPConfig contains transport settings
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	DisableWS       bool          `yaml:"disable_websocket"`
}

// MQTTConfig contains telemetry broker settings. Telemetry is off when Broker is empty.
type MQTTConfig struct {
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Topic    string        `yaml:"topic"`
	QoS      byte          `yaml:"qos"`
	Interval time.Duration `yaml:"interval"`
	Encoding string        `yaml:"encoding"` // json, msgpack
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses and validates YAML configuration bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a validated configuration serving the synthetic test pattern.
func Default() *Config {
	cfg := &Config{Camera: CameraConfig{Source: SourceSynthetic}}
	if err := Validate(cfg); err != nil {
		panic(fmt.Sprintf("config: default configuration invalid: %v", err))
	}
	return cfg
}
