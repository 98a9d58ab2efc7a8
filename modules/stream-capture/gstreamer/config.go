package gstreamer

import (
	"fmt"
	"net/url"
	"strings"

	streamcapture "github.com/e7canasta/orion-relay/modules/stream-capture"
	"github.com/e7canasta/orion-relay/modules/stream-capture/internal/rtsp"
)

// Decoder selects the H.264 decoder element.
type Decoder = rtsp.Decoder

// Decoder modes.
const (
	DecoderAuto     = rtsp.DecoderAuto
	DecoderNVIDIA   = rtsp.DecoderNVIDIA
	DecoderVAAPI    = rtsp.DecoderVAAPI
	DecoderSoftware = rtsp.DecoderSoftware
)

// ParseDecoder maps a config name (auto, nvidia, vaapi, software) to a Decoder.
func ParseDecoder(s string) (Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return DecoderAuto, nil
	case "nvidia", "nvdec", "cuda":
		return DecoderNVIDIA, nil
	case "vaapi":
		return DecoderVAAPI, nil
	case "software", "cpu":
		return DecoderSoftware, nil
	default:
		return DecoderAuto, fmt.Errorf("gstreamer: unknown decoder %q (want auto, nvidia, vaapi or software)", s)
	}
}

// RTSPConfig contains configuration for RTSP capture.
type RTSPConfig struct {
	// URL is the RTSP stream URL (required)
	URL string
	// Username and Password are passed as rtspsrc user-id/user-pw
	Username string
	Password string
	// Transport is "tcp" (default), "udp" or "auto"
	Transport string
	// LatencyMS is the rtspsrc jitter buffer (default: 50)
	LatencyMS int
	// Decoder is the H.264 decoder mode (default: auto)
	Decoder Decoder
	// Width and Height rescale frames when both are set (0 = camera native)
	Width  int
	Height int
	// MaxFPS drops frames above this rate (0 = camera native, max 60)
	MaxFPS float64
	// JPEGQuality is the jpegenc quality 1-100 (default: 60)
	JPEGQuality int
	// Reconnect is the backoff policy (default: unlimited retries)
	Reconnect *streamcapture.ReconnectConfig
}

// withDefaults validates cfg and fills defaults. Fail-fast: every error here
// is a configuration error, reported before any pipeline is built.
func (cfg RTSPConfig) withDefaults() (RTSPConfig, error) {
	if cfg.URL == "" {
		return cfg, fmt.Errorf("gstreamer: RTSP URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return cfg, fmt.Errorf("gstreamer: invalid RTSP URL: %w", err)
	}
	if u.Scheme != "rtsp" && u.Scheme != "rtsps" {
		return cfg, fmt.Errorf("gstreamer: URL scheme must be rtsp or rtsps, got %q", u.Scheme)
	}

	if _, err := protocolsFor(cfg.Transport); err != nil {
		return cfg, err
	}

	if cfg.LatencyMS < 0 {
		return cfg, fmt.Errorf("gstreamer: latency must be >= 0, got %d", cfg.LatencyMS)
	}
	if cfg.LatencyMS == 0 {
		cfg.LatencyMS = 50
	}

	if (cfg.Width > 0) != (cfg.Height > 0) || cfg.Width < 0 || cfg.Height < 0 {
		return cfg, fmt.Errorf("gstreamer: width and height must both be set or both be 0 (got %dx%d)", cfg.Width, cfg.Height)
	}

	if cfg.MaxFPS < 0 || cfg.MaxFPS > 60 {
		return cfg, fmt.Errorf("gstreamer: max FPS must be between 0 and 60, got %.2f", cfg.MaxFPS)
	}

	if cfg.JPEGQuality == 0 {
		cfg.JPEGQuality = 60
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return cfg, fmt.Errorf("gstreamer: JPEG quality must be between 1 and 100, got %d", cfg.JPEGQuality)
	}

	if cfg.Reconnect == nil {
		rc := streamcapture.DefaultReconnectConfig()
		cfg.Reconnect = &rc
	}

	return cfg, nil
}

// protocolsFor maps a transport name to the rtspsrc protocols bitmask.
func protocolsFor(transport string) (int, error) {
	switch strings.ToLower(transport) {
	case "", "tcp":
		return rtsp.ProtocolTCP, nil
	case "udp":
		return rtsp.ProtocolUDP, nil
	case "auto":
		return rtsp.ProtocolUDP | rtsp.ProtocolUDPMcast | rtsp.ProtocolTCP, nil
	default:
		return 0, fmt.Errorf("gstreamer: unknown transport %q (want tcp, udp or auto)", transport)
	}
}
