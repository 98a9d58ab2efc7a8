// Package gstreamer provides the RTSP camera Source for stream-capture.
//
// It is the only package of the module that needs cgo and the GStreamer
// runtime. Everything upstream of the appsink (RTSP session, depayload,
// H.264 decode, JPEG encode) happens inside GStreamer; Go only receives the
// encoded JPEG bytes and hands them to the ingest adapter.
//
//	src, err := gstreamer.NewRTSPSource(gstreamer.RTSPConfig{
//	    URL:      "rtsp://192.168.1.71:554/cam/realmonitor?channel=1&subtype=0",
//	    Username: "admin",
//	    Password: "...",
//	})
//	adapter, _ := streamcapture.NewAdapter(supplier, src, streamcapture.AdapterConfig{})
//	adapter.Start(ctx)
package gstreamer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	streamcapture "github.com/e7canasta/orion-relay/modules/stream-capture"
	"github.com/e7canasta/orion-relay/modules/stream-capture/internal/reconnect"
	"github.com/e7canasta/orion-relay/modules/stream-capture/internal/rtsp"
)

// RTSPSource captures an H.264 RTSP camera and emits JPEG frames.
//
// Implements streamcapture.Source and streamcapture.StatsReporter.
type RTSPSource struct {
	cfg         RTSPConfig
	pipelineCfg rtsp.PipelineConfig
	redacted    string

	state     reconnect.State
	errors    reconnect.Counters
	samples   atomic.Uint64
	rejected  atomic.Uint64
	connected atomic.Bool
}

var (
	_ streamcapture.Source        = (*RTSPSource)(nil)
	_ streamcapture.StatsReporter = (*RTSPSource)(nil)
)

// NewRTSPSource creates an RTSP source with fail-fast validation.
//
// Returns an error if:
//   - the configuration is invalid (URL, transport, size, FPS, quality)
//   - GStreamer is not available
//   - an explicitly requested hardware decoder is missing
func NewRTSPSource(cfg RTSPConfig) (*RTSPSource, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	protocols, _ := protocolsFor(cfg.Transport)

	if err := CheckAvailable(cfg.Decoder); err != nil {
		return nil, err
	}

	s := &RTSPSource{
		cfg: cfg,
		pipelineCfg: rtsp.PipelineConfig{
			URL:         cfg.URL,
			Username:    cfg.Username,
			Password:    cfg.Password,
			Protocols:   protocols,
			LatencyMS:   cfg.LatencyMS,
			Decoder:     cfg.Decoder,
			Width:       cfg.Width,
			Height:      cfg.Height,
			MaxFPS:      cfg.MaxFPS,
			JPEGQuality: cfg.JPEGQuality,
		},
		redacted: streamcapture.RedactURL(cfg.URL),
	}

	slog.Info("gstreamer: RTSP source created",
		"url", s.redacted,
		"transport", cfg.Transport,
		"latency_ms", cfg.LatencyMS,
		"decoder", cfg.Decoder.String(),
		"max_fps", cfg.MaxFPS,
		"jpeg_quality", cfg.JPEGQuality,
	)

	return s, nil
}

// Name implements streamcapture.Source.
func (s *RTSPSource) Name() string { return "rtsp" }

// Run implements streamcapture.Source.
//
// Each attempt builds a fresh pipeline, plays it and watches its bus until
// EOS, an error or cancellation. Failed attempts are retried with
// exponential backoff; the retry counter resets once the pipeline reaches
// PLAYING.
func (s *RTSPSource) Run(ctx context.Context, handler streamcapture.FrameHandler) error {
	err := reconnect.RunWithReconnect(ctx, s.Name(), func(ctx context.Context) error {
		return s.session(ctx, handler)
	}, *s.cfg.Reconnect, &s.state)

	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		slog.Error("gstreamer: RTSP source gave up",
			"url", s.redacted,
			"error", err,
			"reconnects", s.state.Reconnects.Load(),
		)
	}
	return err
}

// session runs one pipeline lifetime.
func (s *RTSPSource) session(ctx context.Context, handler streamcapture.FrameHandler) error {
	elements, err := rtsp.CreatePipeline(s.pipelineCfg)
	if err != nil {
		s.errors.Record(err.Error(), "")
		return fmt.Errorf("gstreamer: create pipeline: %w", err)
	}
	defer func() {
		s.connected.Store(false)
		if err := rtsp.DestroyPipeline(elements); err != nil {
			slog.Error("gstreamer: failed to destroy pipeline", "error", err)
		}
	}()

	cb := &rtsp.CallbackContext{
		OnFrame: func(data []byte) error {
			return handler(data, streamcapture.ContentTypeJPEG)
		},
		Samples:  &s.samples,
		Rejected: &s.rejected,
		OnFirst: func() {
			s.connected.Store(true)
			slog.Info("gstreamer: frames flowing", "url", s.redacted, "decoder", elements.DecoderName)
		},
	}

	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return rtsp.OnNewSample(sink, cb)
		},
	})

	depay := elements.Depay
	elements.RTSPSrc.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		rtsp.OnPadAdded(srcPad, depay)
	})

	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		s.errors.Record(err.Error(), "")
		return fmt.Errorf("gstreamer: failed to start pipeline: %w", err)
	}

	return rtsp.MonitorPipelineBus(ctx, elements.Pipeline, &s.errors, s.state.Reset, rtsp.MonitorMetrics{
		URL:       s.redacted,
		Samples:   s.samples.Load,
		StartedAt: time.Now(),
	})
}

// SourceStats implements streamcapture.StatsReporter.
func (s *RTSPSource) SourceStats() streamcapture.SourceStats {
	return streamcapture.SourceStats{
		Reconnects: s.state.Reconnects.Load(),
		Errors:     s.errors.Snapshot(),
		Connected:  s.connected.Load(),
	}
}

// CheckAvailable checks that GStreamer and the requested decoder exist.
//
// DecoderAuto only requires one of its candidates. Runs at construction time
// and from the probe command.
func CheckAvailable(d Decoder) error {
	gst.Init(nil)

	for _, name := range []string{"rtspsrc", "rtph264depay", "h264parse", "videoconvert", "jpegenc"} {
		elem, err := gst.NewElement(name)
		if err != nil {
			return fmt.Errorf("gstreamer: element %s not available (install gstreamer1.0-plugins-base/good/bad): %w", name, err)
		}
		elem.SetState(gst.StateNull)
	}

	for _, name := range d.Candidates() {
		elem, err := gst.NewElement(name)
		if err == nil {
			elem.SetState(gst.StateNull)
			slog.Debug("gstreamer: decoder available", "element", name)
			return nil
		}
	}
	return fmt.Errorf("gstreamer: no decoder available for mode %q (tried %v)", d.String(), d.Candidates())
}
