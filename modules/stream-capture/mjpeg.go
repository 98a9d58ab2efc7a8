package streamcapture

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/mattn/go-mjpeg"

	"github.com/e7canasta/orion-relay/modules/stream-capture/internal/reconnect"
)

// MJPEGConfig contains configuration for an upstream HTTP MJPEG camera.
type MJPEGConfig struct {
	// URL is the multipart MJPEG endpoint (required, http or https)
	URL string
	// Username and Password enable HTTP basic auth when set
	Username string
	Password string
	// ConnectTimeout bounds the initial HTTP request (default: 10s)
	ConnectTimeout time.Duration
	// Reconnect is the backoff policy (default: reconnect.DefaultConfig())
	Reconnect *ReconnectConfig
}

// ReconnectConfig is the backoff policy shared by network sources.
type ReconnectConfig = reconnect.Config

// DefaultReconnectConfig returns unlimited retries, 1s initial delay, 30s cap.
func DefaultReconnectConfig() ReconnectConfig { return reconnect.DefaultConfig() }

// MJPEGSource reads JPEG frames from an HTTP multipart/x-mixed-replace camera.
//
// The payloads are forwarded raw: no decode, no re-encode.
type MJPEGSource struct {
	cfg    MJPEGConfig
	client *http.Client

	state     reconnect.State
	errors    reconnect.Counters
	connected atomic.Bool
}

// NewMJPEGSource creates an MJPEG source with fail-fast validation.
func NewMJPEGSource(cfg MJPEGConfig) (*MJPEGSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("stream-capture: mjpeg URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("stream-capture: invalid mjpeg URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("stream-capture: mjpeg URL must be http or https, got %q", u.Scheme)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.Reconnect == nil {
		rc := reconnect.DefaultConfig()
		cfg.Reconnect = &rc
	}

	return &MJPEGSource{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.ConnectTimeout,
			},
		},
	}, nil
}

// Name implements Source.
func (m *MJPEGSource) Name() string { return "mjpeg" }

// Run implements Source. It reconnects with exponential backoff until ctx is
// done or the retry policy gives up.
func (m *MJPEGSource) Run(ctx context.Context, handler FrameHandler) error {
	slog.Info("stream-capture: starting MJPEG source", "url", RedactURL(m.cfg.URL))

	err := reconnect.RunWithReconnect(ctx, m.Name(), func(ctx context.Context) error {
		return m.session(ctx, handler)
	}, *m.cfg.Reconnect, &m.state)

	m.connected.Store(false)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// session runs one HTTP connection until it breaks.
func (m *MJPEGSource) session(ctx context.Context, handler FrameHandler) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("stream-capture: build request: %w", err)
	}
	if m.cfg.Username != "" {
		req.SetBasicAuth(m.cfg.Username, m.cfg.Password)
	}

	res, err := m.client.Do(req)
	if err != nil {
		m.errors.Record(err.Error(), "")
		return fmt.Errorf("stream-capture: connect: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		m.errors.Record(res.Status, "")
		return fmt.Errorf("stream-capture: upstream returned %s", res.Status)
	}

	dec, err := mjpeg.NewDecoderFromResponse(res)
	if err != nil {
		m.errors.Record(err.Error(), "boundary")
		return fmt.Errorf("stream-capture: mjpeg decoder: %w", err)
	}
	defer m.connected.Store(false)

	for {
		data, err := dec.DecodeRaw()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			category := m.errors.Record(err.Error(), "")
			slog.Error("stream-capture: mjpeg read failed",
				"error", err,
				"category", category.String(),
			)
			return fmt.Errorf("stream-capture: mjpeg read [%s]: %w", category, err)
		}

		if !m.connected.Swap(true) {
			m.state.Reset()
			slog.Info("stream-capture: mjpeg stream flowing", "url", RedactURL(m.cfg.URL))
		}

		// DecodeRaw reuses no buffer across calls, so data can be handed over as is.
		if err := handler(data, ContentTypeJPEG); err != nil {
			slog.Debug("stream-capture: frame rejected", "error", err)
		}
	}
}

// SourceStats implements StatsReporter.
func (m *MJPEGSource) SourceStats() SourceStats {
	return SourceStats{
		Reconnects: m.state.Reconnects.Load(),
		Errors:     m.errors.Snapshot(),
		Connected:  m.connected.Load(),
	}
}

// RedactURL drops credentials embedded in a URL before logging it.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
