package rtsp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-relay/modules/stream-capture/internal/reconnect"
)

// MonitorMetrics holds stream metrics for monitoring logs
type MonitorMetrics struct {
	URL       string // already redacted
	Samples   func() uint64
	StartedAt time.Time
}

// MonitorPipelineBus monitors the GStreamer pipeline bus for messages
//
// This function:
//  1. Polls pipeline bus for messages (EOS, Error, StateChanged)
//  2. Classifies errors into counters for telemetry
//  3. Calls onPlaying when the pipeline reaches PLAYING
//
// Returns an error if the pipeline hits EOS or an error (triggers reconnection).
// Returns nil if context is cancelled (graceful shutdown).
func MonitorPipelineBus(
	ctx context.Context,
	pipeline *gst.Pipeline,
	counters *reconnect.Counters,
	onPlaying func(),
	metrics MonitorMetrics,
) error {
	if pipeline == nil {
		return fmt.Errorf("pipeline not initialized")
	}

	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("rtsp: context cancelled, stopping pipeline monitor")
			return nil
		default:
		}

		// Short timeout for responsive shutdown.
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("rtsp: end of stream received",
				"url", metrics.URL,
				"uptime", time.Since(metrics.StartedAt),
				"samples", metrics.Samples(),
			)
			return fmt.Errorf("end of stream")

		case gst.MessageError:
			gerr := msg.ParseError()
			category := counters.Record(gerr.Error(), gerr.DebugString())

			slog.Error("rtsp: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
				"url", metrics.URL,
				"uptime", time.Since(metrics.StartedAt),
				"samples", metrics.Samples(),
			)
			return fmt.Errorf("pipeline error [%s]: %s", category, gerr.Error())

		case gst.MessageStateChanged:
			if msg.Source() != pipeline.GetName() {
				continue
			}
			old, next := msg.ParseStateChanged()
			slog.Debug("rtsp: pipeline state changed", "from", old, "to", next)

			if next == gst.StatePlaying && onPlaying != nil {
				onPlaying()
			}
		}
	}
}
