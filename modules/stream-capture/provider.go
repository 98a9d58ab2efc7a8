package streamcapture

import (
	"context"
)

// FrameHandler receives one encoded frame from a Source.
//
// data is owned by the handler after the call: sources MUST NOT reuse the
// slice (GStreamer buffers are copied before the call). contentType is the
// format tag (e.g. "image/jpeg"); empty means "image/jpeg".
//
// A non-nil error is a negative acknowledgement: the frame was rejected.
// Sources log it and keep going; it never stops the pipeline.
type FrameHandler func(data []byte, contentType string) error

// Source defines the contract for encoded frame acquisition.
//
// Implementations must guarantee:
//   - Run blocks until ctx is done or the source gives up
//   - handler is called from one goroutine at a time
//   - Run returns nil (or ctx.Err()) on cancellation
//   - reconnects are the source's concern; a returned error means the source
//     exhausted its own retry policy
//
// Example:
//
//	src := streamcapture.NewSyntheticSource(streamcapture.SyntheticConfig{FPS: 10})
//	err := src.Run(ctx, func(data []byte, contentType string) error {
//	    log.Printf("frame: %d bytes (%s)", len(data), contentType)
//	    return nil
//	})
type Source interface {
	// Name identifies the source in logs and as the supplier writer owner.
	Name() string

	// Run produces frames into handler until ctx is done.
	Run(ctx context.Context, handler FrameHandler) error
}

// StatsReporter is implemented by sources that expose their own counters
// (reconnects, classified errors). The adapter includes them in IngestStats.
type StatsReporter interface {
	SourceStats() SourceStats
}
