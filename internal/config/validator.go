package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Camera source kinds.
const (
	SourceRTSP      = "rtsp"
	SourceMJPEG     = "mjpeg"
	SourceSynthetic = "synthetic"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks if the configuration is valid and applies defaults
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		cfg.InstanceID = "orion-relay"
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if err := validateCamera(&cfg.Camera); err != nil {
		return fmt.Errorf("camera: %w", err)
	}

	// Stream defaults: ~30fps ceiling per client
	if cfg.Stream.PollInterval == 0 {
		cfg.Stream.PollInterval = 33 * time.Millisecond
	}
	if cfg.Stream.PollInterval < time.Millisecond {
		return fmt.Errorf("stream.poll_interval must be >= 1ms")
	}
	if cfg.Stream.StaleAfter == 0 {
		cfg.Stream.StaleAfter = 5 * time.Second
	}
	if cfg.Stream.StaleAfter < 0 {
		return fmt.Errorf("stream.stale_after must be > 0")
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 5 * time.Second
	}

	if err := validateMQTT(&cfg.MQTT, cfg.InstanceID); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	switch cfg.Log.Level {
	case "":
		cfg.Log.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "":
		cfg.Log.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}

	return nil
}

func validateCamera(c *CameraConfig) error {
	c.Source = strings.ToLower(c.Source)
	if c.Source == "" {
		c.Source = SourceRTSP
	}

	switch c.Source {
	case SourceRTSP:
		if err := requireURL(c.URL, "rtsp", "rtsps"); err != nil {
			return err
		}
		if c.Transport == "" {
			c.Transport = "tcp"
		}
		if c.LatencyMS == 0 {
			c.LatencyMS = 50
		}
		if c.Decoder == "" {
			c.Decoder = "auto"
		}
		if c.JPEGQuality == 0 {
			c.JPEGQuality = 60
		}
	case SourceMJPEG:
		if err := requireURL(c.URL, "http", "https"); err != nil {
			return err
		}
	case SourceSynthetic:
		if c.MaxFPS == 0 {
			c.MaxFPS = 15
		}
		if c.JPEGQuality == 0 {
			c.JPEGQuality = 75
		}
	default:
		return fmt.Errorf("source must be rtsp, mjpeg or synthetic, got %q", c.Source)
	}

	if c.JPEGQuality < 0 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", c.JPEGQuality)
	}
	if c.MaxFPS < 0 || c.MaxFPS > 60 {
		return fmt.Errorf("max_fps must be between 0 and 60, got %.2f", c.MaxFPS)
	}
	if (c.Width > 0) != (c.Height > 0) {
		return fmt.Errorf("width and height must both be set or both be 0")
	}

	if c.RestartDelay <= 0 {
		c.RestartDelay = time.Second
	}
	if c.Reconnect.MaxRetries < 0 {
		return fmt.Errorf("reconnect.max_retries must be >= 0 (0 = unlimited)")
	}
	if c.Reconnect.RetryDelay <= 0 {
		c.Reconnect.RetryDelay = time.Second
	}
	if c.Reconnect.MaxRetryDelay <= 0 {
		c.Reconnect.MaxRetryDelay = 30 * time.Second
	}
	if c.Reconnect.MaxRetryDelay < c.Reconnect.RetryDelay {
		return fmt.Errorf("reconnect.max_retry_delay must be >= retry_delay")
	}

	return nil
}

func requireURL(raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("url scheme must be one of %v, got %q", schemes, u.Scheme)
}

func validateMQTT(m *MQTTConfig, instanceID string) error {
	if m.Broker == "" {
		return nil // telemetry disabled
	}
	if _, err := url.Parse(m.Broker); err != nil {
		return fmt.Errorf("invalid broker url: %w", err)
	}
	if m.ClientID == "" {
		m.ClientID = "orion-relay-" + instanceID
	}
	if m.Topic == "" {
		m.Topic = fmt.Sprintf("orion/relay/%s/health", instanceID)
	}
	if m.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", m.QoS)
	}
	if m.Interval <= 0 {
		m.Interval = 10 * time.Second
	}
	switch m.Encoding {
	case "":
		m.Encoding = "json"
	case "json", "msgpack":
	default:
		return fmt.Errorf("encoding must be json or msgpack, got %q", m.Encoding)
	}
	return nil
}
