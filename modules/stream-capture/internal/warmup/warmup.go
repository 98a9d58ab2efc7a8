package warmup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrUnstable is returned (wrapped, alongside the stats) when the measured
// rate is not stable.
var ErrUnstable = errors.New("warmup: stream FPS unstable")

// Frame is the minimal view of a published frame needed for timing.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
}

// NextFunc blocks until the next frame or ctx is done.
type NextFunc func(ctx context.Context) (Frame, error)

// WarmupStats contains statistics collected during warm-up phase
type WarmupStats struct {
	FramesReceived  int           // Frames delivered to the warm-up reader
	FramesPublished int           // Sequences published between the first and last delivery
	SkippedRatio    float64       // Share of published sequences the reader never saw
	Duration        time.Duration // Actual warm-up duration
	FPSMean         float64       // Publish rate, from sequence numbers
	FPSStdDev       float64       // Spread of per-gap rates around FPSMean
	FPSMin          float64       // Slowest per-gap rate
	FPSMax          float64       // Fastest per-gap rate
	IsStable        bool          // Rate spread < 15%, jitter < 20% of interval, skipped <= 25%
	JitterMean      float64       // Mean arrival error vs the publish interval (seconds)
	JitterStdDev    float64       // Standard deviation of the arrival error (seconds)
	JitterMax       float64       // Largest arrival error (seconds)
}

// Collect measures frame timing for duration by pulling frames from next.
//
// This function:
//  1. Pulls frames without processing them
//  2. Records sequence and ingest timestamp of each delivery
//  3. Summarizes publish rate, jitter and skipped sequences (see Summarize)
//  4. Determines if the stream is stable
//
// Returns stats and nil on a stable stream. On an unstable stream it returns
// the stats AND an error wrapping ErrUnstable, so callers can report both.
// Returns (nil, err) if:
//   - next fails before the duration elapses
//   - Not enough frames received (< 2)
//   - ctx is cancelled
func Collect(ctx context.Context, next NextFunc, duration time.Duration) (*WarmupStats, error) {
	slog.Info("warmup: starting stream warm-up",
		"duration", duration,
		"reason", "measure real FPS before serving",
	)

	startTime := time.Now()
	frames := make([]Frame, 0, 100)

	warmupCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	for {
		frame, err := next(warmupCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("warmup: %w", ctx.Err())
			}
			if warmupCtx.Err() != nil {
				break // duration elapsed
			}
			return nil, fmt.Errorf("warmup: %w", err)
		}

		frames = append(frames, frame)

		slog.Debug("warmup: frame received",
			"seq", frame.Seq,
			"frames_collected", len(frames),
		)
	}

	elapsed := time.Since(startTime)

	if len(frames) < 2 {
		return nil, fmt.Errorf(
			"warmup: not enough frames received (got %d, need at least 2)",
			len(frames),
		)
	}

	stats := Summarize(frames, elapsed)

	slog.Info("warmup: stream warm-up complete",
		"frames", stats.FramesReceived,
		"duration", stats.Duration,
		"fps_mean", fmt.Sprintf("%.2f", stats.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", stats.FPSStdDev),
		"fps_range", fmt.Sprintf("%.1f-%.1f", stats.FPSMin, stats.FPSMax),
		"jitter_mean", fmt.Sprintf("%.3fs", stats.JitterMean),
		"skipped_ratio", fmt.Sprintf("%.2f", stats.SkippedRatio),
		"stable", stats.IsStable,
	)

	if !stats.IsStable {
		return stats, fmt.Errorf(
			"%w (mean=%.2f Hz, stddev=%.2f, jitter=%.3fs, skipped=%.0f%%)",
			ErrUnstable,
			stats.FPSMean,
			stats.FPSStdDev,
			stats.JitterMean,
			stats.SkippedRatio*100,
		)
	}

	return stats, nil
}
