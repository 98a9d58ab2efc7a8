package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment prefix for overrides: camera.url → ORION_RELAY_CAMERA_URL.
const EnvPrefix = "ORION_RELAY"

// NewViper returns a viper instance reading ORION_RELAY_* environment variables.
// Callers bind their flags to it (key names match the YAML paths).
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Override applies every key explicitly set in v (changed flag or
// environment variable) on top of cfg, then validates the result.
func Override(cfg *Config, v *viper.Viper) error {
	setString(v, "instance_id", &cfg.InstanceID)

	setString(v, "camera.source", &cfg.Camera.Source)
	setString(v, "camera.url", &cfg.Camera.URL)
	setString(v, "camera.username", &cfg.Camera.Username)
	setString(v, "camera.password", &cfg.Camera.Password)
	setString(v, "camera.transport", &cfg.Camera.Transport)
	setString(v, "camera.decoder", &cfg.Camera.Decoder)
	if v.IsSet("camera.max_fps") {
		cfg.Camera.MaxFPS = v.GetFloat64("camera.max_fps")
	}
	if v.IsSet("camera.jpeg_quality") {
		cfg.Camera.JPEGQuality = v.GetInt("camera.jpeg_quality")
	}

	if v.IsSet("stream.poll_interval") {
		cfg.Stream.PollInterval = v.GetDuration("stream.poll_interval")
	}
	if v.IsSet("stream.notify") {
		cfg.Stream.Notify = v.GetBool("stream.notify")
	}
	if v.IsSet("stream.stale_after") {
		cfg.Stream.StaleAfter = v.GetDuration("stream.stale_after")
	}

	setString(v, "http.addr", &cfg.HTTP.Addr)
	if v.IsSet("http.cors_origins") {
		cfg.HTTP.CORSOrigins = v.GetStringSlice("http.cors_origins")
	}

	setString(v, "mqtt.broker", &cfg.MQTT.Broker)
	setString(v, "mqtt.topic", &cfg.MQTT.Topic)
	setString(v, "mqtt.encoding", &cfg.MQTT.Encoding)
	if v.IsSet("mqtt.interval") {
		cfg.MQTT.Interval = v.GetDuration("mqtt.interval")
	}

	setString(v, "log.level", &cfg.Log.Level)
	setString(v, "log.format", &cfg.Log.Format)

	return Validate(cfg)
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}
