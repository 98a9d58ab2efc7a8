// Package streamcapture is the ingest side of the relay: it runs a frame
// Source and publishes every encoded frame into a framesupplier.Supplier.
//
// # Quick Start
//
//	supplier := framesupplier.New()
//
//	src := streamcapture.NewSyntheticSource(streamcapture.SyntheticConfig{FPS: 15})
//	adapter, err := streamcapture.NewAdapter(supplier, src, streamcapture.AdapterConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := adapter.Start(ctx); err != nil {
//	    log.Fatal(err) // ErrWriterClaimed: another adapter already feeds this supplier
//	}
//	defer adapter.Stop()
//
//	// Optional: measure what the browser sessions will see
//	stats, err := streamcapture.Warmup(ctx, supplier, 5*time.Second)
//
// # Sources
//
//   - gstreamer.RTSPSource (subpackage, cgo): rtspsrc → H.264 decode → jpegenc → appsink
//   - MJPEGSource: upstream HTTP multipart MJPEG camera, payloads forwarded raw
//   - SyntheticSource: JPEG test pattern, no camera needed
//
// Sources own their reconnection policy (exponential backoff, unlimited
// retries by default). If a source still gives up, the adapter restarts it
// after AdapterConfig.RestartDelay, so ingest runs for the process lifetime.
//
// # Frame Hand-off
//
// The FrameHandler given to sources never blocks: it stamps the frame
// (Timestamp, TraceID, content type defaulting to image/jpeg) and calls
// Writer.Publish, which is a single atomic swap. Empty payloads are rejected
// with ErrEmptyFrame and counted; the source keeps running.
//
// # Error Categories
//
// Network sources classify upstream errors for telemetry:
//
//   - network: connection, timeout, DNS (reconnect usually helps)
//   - codec: negotiation, missing decoder plugin (needs an operator)
//   - auth: 401/403, bad credentials
//   - unknown
//
// Counts are exposed through IngestStats.SourceStats.Errors.
//
// # Thread Safety
//
//   - Adapter.Start/Stop/Stats: safe from any goroutine
//   - FrameHandler: called by one source goroutine (or GStreamer streaming thread) at a time
package streamcapture
