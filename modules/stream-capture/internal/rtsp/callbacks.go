package rtsp

import (
	"log/slog"
	"sync/atomic"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// CallbackContext holds state needed by GStreamer callbacks
type CallbackContext struct {
	// OnFrame receives the copied JPEG bytes. Called on the GStreamer
	// streaming thread, so it must not block.
	OnFrame func(data []byte) error

	Samples  *atomic.Uint64 // Samples pulled from appsink
	Rejected *atomic.Uint64 // Samples refused by OnFrame
	OnFirst  func()         // Called once per pipeline when the first sample arrives
	first    atomic.Bool
}

// OnNewSample is called by GStreamer when a new JPEG frame is available
//
// This callback:
//  1. Pulls the sample from the appsink
//  2. Maps the buffer to read the encoded bytes
//  3. Copies data (GStreamer will reuse the buffer)
//  4. Hands the copy to OnFrame
//
// Always returns gst.FlowOK: a bad sample or a rejected frame must not stop
// the pipeline.
func OnNewSample(sink *app.Sink, ctx *CallbackContext) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("rtsp: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("rtsp: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("rtsp: empty buffer received")
		return gst.FlowOK
	}

	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	ctx.Samples.Add(1)
	if ctx.OnFirst != nil && ctx.first.CompareAndSwap(false, true) {
		ctx.OnFirst()
	}

	if err := ctx.OnFrame(frameData); err != nil {
		ctx.Rejected.Add(1)
		slog.Debug("rtsp: frame rejected", "error", err, "size_bytes", len(frameData))
	}

	return gst.FlowOK
}

// OnPadAdded is called by GStreamer when rtspsrc creates a new dynamic pad
//
// rtspsrc has dynamic pads (not known at pipeline creation time), so they
// are linked to rtph264depay when they appear. Non-video pads (audio,
// backchannel) fail to link and are ignored.
func OnPadAdded(srcPad *gst.Pad, sinkElement *gst.Element) {
	slog.Debug("rtsp: pad-added signal received", "pad", srcPad.GetName())

	sinkPad := sinkElement.GetStaticPad("sink")
	if sinkPad == nil {
		slog.Error("rtsp: failed to get sink pad from rtph264depay")
		return
	}
	if sinkPad.IsLinked() {
		slog.Debug("rtsp: depay already linked, ignoring pad", "pad", srcPad.GetName())
		return
	}

	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		slog.Warn("rtsp: failed to link pads",
			"src_pad", srcPad.GetName(),
			"sink_pad", sinkPad.GetName(),
			"ret", ret,
		)
		return
	}

	slog.Debug("rtsp: pads linked successfully",
		"src_pad", srcPad.GetName(),
		"sink_pad", sinkPad.GetName(),
	)
}
