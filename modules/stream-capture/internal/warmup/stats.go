package warmup

import (
	"math"
	"time"
)

const (
	// rateSpreadLimit bounds the per-gap rate standard deviation as a
	// fraction of the publish rate.
	rateSpreadLimit = 0.15

	// jitterLimit bounds the mean arrival error as a fraction of the
	// publish interval.
	jitterLimit = 0.20

	// skipLimit bounds the share of published sequences the reader never
	// saw. A reader woken on every publish only skips when frames arrive
	// in bursts tighter than it can drain them.
	skipLimit = 0.25
)

// spread is the mean, standard deviation and extremes of a sample.
type spread struct {
	mean, stddev, min, max float64
}

func describe(xs []float64) spread {
	if len(xs) == 0 {
		return spread{}
	}
	s := spread{min: xs[0], max: xs[0]}
	for _, x := range xs {
		s.mean += x
		s.min = math.Min(s.min, x)
		s.max = math.Max(s.max, x)
	}
	s.mean /= float64(len(xs))
	for _, x := range xs {
		s.stddev += (x - s.mean) * (x - s.mean)
	}
	s.stddev = math.Sqrt(s.stddev / float64(len(xs)))
	return s
}

// Summarize derives warm-up statistics from the frames a reader observed.
//
// Rates are measured on sequence numbers, not on deliveries: a gap of k
// sequences over dt counts as k frames, so FPSMean is the ingest publish
// rate even when the reader skipped frames. Jitter compares each gap with
// k publish intervals. SkippedRatio is the share of sequences in
// [first, last] that never reached the reader.
//
// frames must be in delivery order (strictly increasing Seq).
func Summarize(frames []Frame, window time.Duration) *WarmupStats {
	stats := &WarmupStats{
		FramesReceived: len(frames),
		Duration:       window,
	}
	if len(frames) < 2 {
		return stats
	}

	first, last := frames[0], frames[len(frames)-1]
	published := last.Seq - first.Seq + 1
	stats.FramesPublished = int(published)
	stats.SkippedRatio = float64(published-uint64(len(frames))) / float64(published)

	span := last.Timestamp.Sub(first.Timestamp).Seconds()
	if span <= 0 {
		return stats
	}
	stats.FPSMean = float64(last.Seq-first.Seq) / span
	interval := 1 / stats.FPSMean

	rates := make([]float64, 0, len(frames)-1)
	jitters := make([]float64, 0, len(frames)-1)
	for i := 1; i < len(frames); i++ {
		seqs := float64(frames[i].Seq - frames[i-1].Seq)
		dt := frames[i].Timestamp.Sub(frames[i-1].Timestamp).Seconds()
		if dt > 0 {
			rates = append(rates, seqs/dt)
		}
		jitters = append(jitters, math.Abs(dt-seqs*interval))
	}

	r := describe(rates)
	stats.FPSMin, stats.FPSMax = r.min, r.max
	// Spread around the publish rate, not around the mean of gap rates.
	var sq float64
	for _, x := range rates {
		sq += (x - stats.FPSMean) * (x - stats.FPSMean)
	}
	if len(rates) > 0 {
		stats.FPSStdDev = math.Sqrt(sq / float64(len(rates)))
	}

	j := describe(jitters)
	stats.JitterMean, stats.JitterStdDev, stats.JitterMax = j.mean, j.stddev, j.max

	stats.IsStable = stats.FPSStdDev < stats.FPSMean*rateSpreadLimit &&
		stats.JitterMean < interval*jitterLimit &&
		stats.SkippedRatio <= skipLimit

	return stats
}

// SuggestPollInterval returns a session poll interval for the measured
// stream, never shorter than 1/maxFPS.
//
// One poll per published frame is enough for a steady stream:
//   - maxFPS=30, stream 12 fps → 83ms
//   - maxFPS=30, stream 60 fps → 33ms (capped)
//
// When the warm-up reader itself skipped sequences, frames arrive in bursts
// and the interval is halved so sessions still catch most of them.
// Returns 1/maxFPS when stats are missing or empty.
func SuggestPollInterval(stats *WarmupStats, maxFPS float64) time.Duration {
	if maxFPS <= 0 {
		maxFPS = 30
	}
	floor := time.Duration(float64(time.Second) / maxFPS)
	if stats == nil || stats.FPSMean <= 0 {
		return floor
	}

	poll := time.Duration(float64(time.Second) / stats.FPSMean)
	if stats.SkippedRatio > 0 {
		poll /= 2
	}
	if poll < floor {
		return floor
	}
	return poll
}
