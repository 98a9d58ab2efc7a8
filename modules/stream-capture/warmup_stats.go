package streamcapture

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-relay/modules/framesupplier"
	"github.com/e7canasta/orion-relay/modules/stream-capture/internal/warmup"
)

// ErrUnstable is returned (wrapped) by Warmup together with the stats when the
// measured rate is not stable.
var ErrUnstable = warmup.ErrUnstable

// defaultMaxFPS bounds SuggestedPollInterval (one poll per ~33ms).
const defaultMaxFPS = 30

// Warmup measures ingest FPS stability by following the supplier for duration.
//
// It subscribes a private cursor, so it sees exactly what a browser session
// would see: frames arriving faster than Warmup wakes up are skipped. The
// publish rate is still measured from sequence numbers, and the skipped
// share is reported as SkippedRatio.
//
// Returns stats and nil for a stable stream; stats and an error wrapping
// ErrUnstable for an unstable one; nil and an error if fewer than two frames
// arrived or ctx was cancelled.
func Warmup(ctx context.Context, supplier framesupplier.Supplier, duration time.Duration) (*WarmupStats, error) {
	cur := supplier.Subscribe("warmup-" + uuid.New().String())
	defer cur.Close()

	next := func(ctx context.Context) (warmup.Frame, error) {
		f, err := cur.Next(ctx)
		if err != nil {
			return warmup.Frame{}, err
		}
		if f == nil {
			return warmup.Frame{}, errors.New("cursor closed")
		}
		return warmup.Frame{Seq: f.Seq, Timestamp: f.Timestamp}, nil
	}

	internalStats, err := warmup.Collect(ctx, next, duration)
	if internalStats == nil {
		return nil, err
	}
	return toPublicStats(internalStats), err
}

func toPublicStats(s *warmup.WarmupStats) *WarmupStats {
	return &WarmupStats{
		FramesReceived:        s.FramesReceived,
		FramesPublished:       s.FramesPublished,
		SkippedRatio:          s.SkippedRatio,
		Duration:              s.Duration,
		FPSMean:               s.FPSMean,
		FPSStdDev:             s.FPSStdDev,
		FPSMin:                s.FPSMin,
		FPSMax:                s.FPSMax,
		IsStable:              s.IsStable,
		JitterMean:            s.JitterMean,
		JitterStdDev:          s.JitterStdDev,
		JitterMax:             s.JitterMax,
		SuggestedPollInterval: warmup.SuggestPollInterval(s, defaultMaxFPS),
	}
}
