package rtsp

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Decoder selects the H.264 decoder element.
type Decoder int

const (
	// DecoderAuto tries NVIDIA, then VAAPI, then software.
	DecoderAuto Decoder = iota
	// DecoderNVIDIA uses nvh264dec (NVDEC).
	DecoderNVIDIA
	// DecoderVAAPI uses vaapih264dec (Intel/AMD).
	DecoderVAAPI
	// DecoderSoftware uses avdec_h264 (libav).
	DecoderSoftware
)

// String returns the config name of the decoder.
func (d Decoder) String() string {
	switch d {
	case DecoderNVIDIA:
		return "nvidia"
	case DecoderVAAPI:
		return "vaapi"
	case DecoderSoftware:
		return "software"
	default:
		return "auto"
	}
}

// Candidates returns the element factory names to try, in order.
func (d Decoder) Candidates() []string {
	switch d {
	case DecoderNVIDIA:
		return []string{"nvh264dec"}
	case DecoderVAAPI:
		return []string{"vaapih264dec"}
	case DecoderSoftware:
		return []string{"avdec_h264"}
	default:
		return []string{"nvh264dec", "vaapih264dec", "avdec_h264"}
	}
}

// GstRTSPLowerTrans flags for rtspsrc "protocols".
const (
	ProtocolUDP      = 0x1
	ProtocolUDPMcast = 0x2
	ProtocolTCP      = 0x4
)

// PipelineConfig contains configuration for GStreamer pipeline creation
type PipelineConfig struct {
	URL         string
	Username    string
	Password    string
	Protocols   int // GstRTSPLowerTrans bitmask
	LatencyMS   int
	Decoder     Decoder
	Width       int     // 0 = camera native
	Height      int     // 0 = camera native
	MaxFPS      float64 // 0 = camera native
	JPEGQuality int
}

// PipelineElements holds references to GStreamer pipeline elements
// needed for linking dynamic pads and cleanup.
type PipelineElements struct {
	Pipeline    *gst.Pipeline
	AppSink     *app.Sink
	RTSPSrc     *gst.Element
	Depay       *gst.Element
	DecoderName string
}

// CreatePipeline creates and configures a GStreamer pipeline for RTSP → JPEG.
//
// Pipeline structure:
//
//	rtspsrc → rtph264depay → h264parse → <decoder> → videoconvert →
//	[videoscale → ] [videorate → ] capsfilter → jpegenc → appsink
//
// videoscale and videorate are only inserted when a size or a max FPS is
// configured. rtspsrc pads are dynamic: the caller links them to Depay from
// the pad-added signal (see OnPadAdded).
//
// The pipeline is configured but NOT started (state remains NULL).
func CreatePipeline(cfg PipelineConfig) (*PipelineElements, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	rtspsrc, err := gst.NewElement("rtspsrc")
	if err != nil {
		return nil, fmt.Errorf("failed to create rtspsrc: %w", err)
	}
	rtspsrc.SetProperty("location", cfg.URL)
	rtspsrc.SetProperty("protocols", cfg.Protocols)
	rtspsrc.SetProperty("latency", cfg.LatencyMS)
	rtspsrc.SetProperty("ntp-sync", false)
	rtspsrc.SetProperty("tcp-timeout", uint64(10000000)) // 10s
	if cfg.Username != "" {
		rtspsrc.SetProperty("user-id", cfg.Username)
		rtspsrc.SetProperty("user-pw", cfg.Password)
	}

	depay, err := gst.NewElement("rtph264depay")
	if err != nil {
		return nil, fmt.Errorf("failed to create rtph264depay: %w", err)
	}
	// Request keyframes on packet loss for faster recovery.
	depay.SetProperty("request-keyframe", true)

	parse, err := gst.NewElement("h264parse")
	if err != nil {
		return nil, fmt.Errorf("failed to create h264parse: %w", err)
	}

	decoder, decoderName, err := newDecoder(cfg.Decoder)
	if err != nil {
		return nil, err
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0) // auto-detect cores

	chain := []*gst.Element{depay, parse, decoder, converter}

	if cfg.Width > 0 && cfg.Height > 0 {
		scaler, err := gst.NewElement("videoscale")
		if err != nil {
			return nil, fmt.Errorf("failed to create videoscale: %w", err)
		}
		chain = append(chain, scaler)
	}

	if cfg.MaxFPS > 0 {
		videorate, err := gst.NewElement("videorate")
		if err != nil {
			return nil, fmt.Errorf("failed to create videorate: %w", err)
		}
		videorate.SetProperty("drop-only", true)     // Only drop frames, never duplicate
		videorate.SetProperty("skip-to-first", true) // Skip to first frame on start
		chain = append(chain, videorate)
	}

	if capsStr := BuildCaps(cfg.Width, cfg.Height, cfg.MaxFPS); capsStr != "" {
		capsfilter, err := gst.NewElement("capsfilter")
		if err != nil {
			return nil, fmt.Errorf("failed to create capsfilter: %w", err)
		}
		capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))
		chain = append(chain, capsfilter)
	}

	encoder, err := gst.NewElement("jpegenc")
	if err != nil {
		return nil, fmt.Errorf("failed to create jpegenc: %w", err)
	}
	encoder.SetProperty("quality", cfg.JPEGQuality)
	chain = append(chain, encoder)

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // No sync with clock (real-time)
	appsink.SetProperty("max-buffers", 1) // Keep only latest frame
	appsink.SetProperty("drop", true)     // Drop old frames
	chain = append(chain, appsink.Element)

	if err := pipeline.AddMany(append([]*gst.Element{rtspsrc}, chain...)...); err != nil {
		return nil, fmt.Errorf("failed to add pipeline elements: %w", err)
	}
	if err := gst.ElementLinkMany(chain...); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	slog.Info("rtsp: pipeline created",
		"decoder", decoderName,
		"protocols", cfg.Protocols,
		"latency_ms", cfg.LatencyMS,
		"caps", BuildCaps(cfg.Width, cfg.Height, cfg.MaxFPS),
		"jpeg_quality", cfg.JPEGQuality,
	)

	return &PipelineElements{
		Pipeline:    pipeline,
		AppSink:     appsink,
		RTSPSrc:     rtspsrc,
		Depay:       depay,
		DecoderName: decoderName,
	}, nil
}

// newDecoder creates the first available decoder among the candidates.
func newDecoder(d Decoder) (*gst.Element, string, error) {
	var errs []string
	for _, name := range d.Candidates() {
		elem, err := gst.NewElement(name)
		if err != nil {
			slog.Debug("rtsp: decoder unavailable", "element", name, "error", err)
			errs = append(errs, name)
			continue
		}
		if name == "avdec_h264" {
			elem.SetProperty("max-threads", 0) // Multi-threaded decode
		}
		if d == DecoderAuto && len(errs) > 0 {
			slog.Warn("rtsp: hardware decoder unavailable, falling back",
				"tried", strings.Join(errs, ","),
				"using", name,
			)
		}
		return elem, name, nil
	}
	return nil, "", fmt.Errorf("no H.264 decoder available for mode %q (tried %s)", d, strings.Join(errs, ", "))
}

// DestroyPipeline cleans up GStreamer pipeline resources
//
// Sets pipeline state to NULL and releases all resources.
// Safe to call even if pipeline is already destroyed.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}

	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}

	return nil
}

// BuildCaps builds the raw video caps constraint, or "" when neither size nor
// rate is constrained.
//
// Handles fractional framerates:
//   - fps >= 1.0: framerate = fps/1 (e.g., 5.0 → 5/1)
//   - fps < 1.0: framerate = 1/(1/fps) (e.g., 0.5 → 1/2)
func BuildCaps(width, height int, fps float64) string {
	var parts []string
	if width > 0 && height > 0 {
		parts = append(parts, fmt.Sprintf("width=%d,height=%d", width, height))
	}
	if fps > 0 {
		numerator, denominator := 1, 1
		if fps < 1.0 {
			denominator = int(1.0 / fps)
		} else {
			numerator = int(fps)
		}
		parts = append(parts, fmt.Sprintf("framerate=%d/%d", numerator, denominator))
	}
	if len(parts) == 0 {
		return ""
	}
	return "video/x-raw," + strings.Join(parts, ",")
}
