package streamcapture

import "time"

// ContentTypeJPEG is the default frame format tag.
const ContentTypeJPEG = "image/jpeg"

// AdapterConfig contains configuration for the ingest adapter.
type AdapterConfig struct {
	// Owner is the writer owner registered with the supplier (default: source name)
	Owner string
	// RestartDelay is the pause before re-running a source that returned an error (default: 1s)
	RestartDelay time.Duration
	// Width and Height are stamped on frames when known (0 = unknown)
	Width  int
	Height int
}

// IngestStats contains current ingest statistics.
type IngestStats struct {
	// Source is the source name
	Source string
	// Running indicates if the adapter goroutine is active
	Running bool
	// Frames is the number of frames published to the supplier
	Frames uint64
	// Bytes is the total payload bytes published
	Bytes uint64
	// Rejected is the number of frames refused by the handler (empty payload, stopped)
	Rejected uint64
	// Restarts is the number of times the source was re-run after an error
	Restarts uint32
	// LastFrameAge is the time since the last published frame (0 before the first frame)
	LastFrameAge time.Duration
	// FPS is the measured publish rate since Start
	FPS float64
	// Uptime is the time since Start
	Uptime time.Duration
	// SourceStats holds source counters, if the source reports them
	SourceStats *SourceStats
}

// SourceStats contains counters reported by network sources.
type SourceStats struct {
	// Reconnects is the number of reconnection attempts
	Reconnects uint32
	// Errors counts classified upstream errors by category (network, codec, auth, unknown)
	Errors map[string]uint64
	// Connected indicates whether frames are currently flowing
	Connected bool
}

// WarmupStats contains statistics collected during the warm-up phase
type WarmupStats struct {
	// FramesReceived is the number of frames delivered to the warm-up reader
	FramesReceived int
	// FramesPublished is the number of sequences published between the first and last delivery
	FramesPublished int
	// SkippedRatio is the share of published sequences the reader never saw
	SkippedRatio float64
	// Duration is the actual warm-up duration
	Duration time.Duration
	// FPSMean is the ingest publish rate, measured from sequence numbers
	FPSMean float64
	// FPSStdDev is the spread of per-gap rates around FPSMean
	FPSStdDev float64
	// FPSMin is the slowest per-gap rate
	FPSMin float64
	// FPSMax is the fastest per-gap rate
	FPSMax float64
	// IsStable is true if rate spread < 15%, jitter < 20% of the interval and at most 25% skipped
	IsStable bool
	// JitterMean is the mean arrival error vs the publish interval (seconds)
	JitterMean float64
	// JitterStdDev is the standard deviation of jitter (seconds)
	JitterStdDev float64
	// JitterMax is the maximum jitter observed (seconds)
	JitterMax float64
	// SuggestedPollInterval is the session poll interval matching the measured rate
	SuggestedPollInterval time.Duration
}
