package warmup

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// deliveries builds frames for the given sequence numbers, each stamped at
// the instant a steady source publishing at fps would have produced it.
func deliveries(fps float64, seqs ...uint64) []Frame {
	interval := time.Duration(float64(time.Second) / fps)
	frames := make([]Frame, len(seqs))
	for i, seq := range seqs {
		frames[i] = Frame{Seq: seq, Timestamp: epoch.Add(time.Duration(seq) * interval)}
	}
	return frames
}

// seqRange returns from, from+step, ... up to and including to.
func seqRange(from, to, step uint64) []uint64 {
	var out []uint64
	for s := from; s <= to; s += step {
		out = append(out, s)
	}
	return out
}

func near(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

func TestSummarize(t *testing.T) {
	// Gaps alternate 20ms / 80ms: same 20 fps average, very uneven arrival.
	uneven := make([]Frame, 0, 21)
	at := epoch
	for seq := uint64(1); seq <= 21; seq++ {
		uneven = append(uneven, Frame{Seq: seq, Timestamp: at})
		if seq%2 == 1 {
			at = at.Add(20 * time.Millisecond)
		} else {
			at = at.Add(80 * time.Millisecond)
		}
	}

	tests := []struct {
		name          string
		frames        []Frame
		wantReceived  int
		wantPublished int
		wantFPS       float64
		wantSkipped   float64
		wantStable    bool
	}{
		{
			name:          "steady reader sees every frame",
			frames:        deliveries(30, seqRange(1, 30, 1)...),
			wantReceived:  30,
			wantPublished: 30,
			wantFPS:       30,
			wantSkipped:   0,
			wantStable:    true,
		},
		{
			name:          "reader woken every other publish",
			frames:        deliveries(30, seqRange(1, 29, 2)...),
			wantReceived:  15,
			wantPublished: 29,
			wantFPS:       30,
			wantSkipped:   14.0 / 29,
			wantStable:    false,
		},
		{
			name:          "single missed burst stays stable",
			frames:        deliveries(25, append(seqRange(1, 15, 1), seqRange(18, 40, 1)...)...),
			wantReceived:  38,
			wantPublished: 40,
			wantFPS:       25,
			wantSkipped:   2.0 / 40,
			wantStable:    true,
		},
		{
			name:          "uneven arrival",
			frames:        uneven,
			wantReceived:  21,
			wantPublished: 21,
			wantFPS:       20,
			wantSkipped:   0,
			wantStable:    false,
		},
		{
			name:          "single frame",
			frames:        deliveries(30, 7),
			wantReceived:  1,
			wantPublished: 0,
			wantFPS:       0,
			wantSkipped:   0,
			wantStable:    false,
		},
		{
			name: "identical timestamps",
			frames: []Frame{
				{Seq: 1, Timestamp: epoch},
				{Seq: 2, Timestamp: epoch},
			},
			wantReceived:  2,
			wantPublished: 2,
			wantFPS:       0,
			wantSkipped:   0,
			wantStable:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := Summarize(tt.frames, time.Second)

			if stats.FramesReceived != tt.wantReceived {
				t.Errorf("FramesReceived = %d, want %d", stats.FramesReceived, tt.wantReceived)
			}
			if stats.FramesPublished != tt.wantPublished {
				t.Errorf("FramesPublished = %d, want %d", stats.FramesPublished, tt.wantPublished)
			}
			if !near(stats.FPSMean, tt.wantFPS, 0.01) {
				t.Errorf("FPSMean = %.3f, want %.3f", stats.FPSMean, tt.wantFPS)
			}
			if !near(stats.SkippedRatio, tt.wantSkipped, 1e-9) {
				t.Errorf("SkippedRatio = %.3f, want %.3f", stats.SkippedRatio, tt.wantSkipped)
			}
			if stats.IsStable != tt.wantStable {
				t.Errorf("IsStable = %v, want %v (stddev=%.3f jitter=%.4fs)",
					stats.IsStable, tt.wantStable, stats.FPSStdDev, stats.JitterMean)
			}
			if stats.Duration != time.Second {
				t.Errorf("Duration = %v, want 1s", stats.Duration)
			}
		})
	}
}

func TestSummarize_GapsCountAsPublishIntervals(t *testing.T) {
	// Every third frame of a steady 30 fps source: the reader is slow but
	// each gap is exactly three publish intervals, so there is no jitter.
	stats := Summarize(deliveries(30, seqRange(3, 60, 3)...), time.Second)

	if !near(stats.FPSMin, 30, 0.01) || !near(stats.FPSMax, 30, 0.01) {
		t.Errorf("per-gap rates = [%.2f, %.2f], want 30", stats.FPSMin, stats.FPSMax)
	}
	if stats.JitterMax > 1e-6 {
		t.Errorf("JitterMax = %.6fs, want 0", stats.JitterMax)
	}
	if stats.IsStable {
		t.Error("IsStable = true, want false with two thirds of the stream skipped")
	}
}

func TestSuggestPollInterval(t *testing.T) {
	tests := []struct {
		name   string
		stats  *WarmupStats
		maxFPS float64
		want   time.Duration
	}{
		{"nil stats uses max", nil, 30, time.Second / 30},
		{"slow camera", &WarmupStats{FPSMean: 10}, 30, 100 * time.Millisecond},
		{"fast camera capped", &WarmupStats{FPSMean: 60}, 30, time.Second / 30},
		{"zero max defaults to 30", &WarmupStats{FPSMean: 0}, 0, time.Second / 30},
		{"skipping reader halves interval", &WarmupStats{FPSMean: 10, SkippedRatio: 0.5}, 30, 50 * time.Millisecond},
		{"skipping reader never below max", &WarmupStats{FPSMean: 25, SkippedRatio: 0.1}, 30, time.Second / 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestPollInterval(tt.stats, tt.maxFPS)
			if diff := got - tt.want; diff > time.Microsecond || diff < -time.Microsecond {
				t.Errorf("SuggestPollInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}

// tickingNext returns a NextFunc producing one frame every interval.
func tickingNext(interval time.Duration) NextFunc {
	var seq uint64
	return func(ctx context.Context) (Frame, error) {
		select {
		case <-time.After(interval):
			seq++
			return Frame{Seq: seq, Timestamp: time.Now()}, nil
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
}

func TestCollect_MeasuresRate(t *testing.T) {
	stats, err := Collect(context.Background(), tickingNext(10*time.Millisecond), 300*time.Millisecond)
	if err != nil && !errors.Is(err, ErrUnstable) {
		t.Fatalf("Collect() error = %v", err)
	}
	if stats == nil {
		t.Fatal("Collect() returned nil stats")
	}
	if stats.FramesReceived < 2 {
		t.Errorf("FramesReceived = %d, want >= 2", stats.FramesReceived)
	}
	t.Logf("measured %.1f fps (stable=%v)", stats.FPSMean, stats.IsStable)
}

func TestCollect_NotEnoughFrames(t *testing.T) {
	stats, err := Collect(context.Background(), tickingNext(time.Hour), 50*time.Millisecond)
	if err == nil {
		t.Fatal("Collect() expected error with no frames")
	}
	if stats != nil {
		t.Errorf("stats = %+v, want nil", stats)
	}
}

func TestCollect_NextError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Collect(context.Background(), func(ctx context.Context) (Frame, error) {
		return Frame{}, boom
	}, time.Second)
	if !errors.Is(err, boom) {
		t.Errorf("Collect() error = %v, want boom", err)
	}
}

func TestCollect_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, tickingNext(time.Millisecond), time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Collect() error = %v, want context.Canceled", err)
	}
}


// skippingNext delivers every other sequence of a source publishing once
// per interval, like a session that wakes up too late for half the frames.
func skippingNext(interval time.Duration) NextFunc {
	var seq uint64
	return func(ctx context.Context) (Frame, error) {
		select {
		case <-time.After(2 * interval):
			seq += 2
			return Frame{Seq: seq, Timestamp: time.Now()}, nil
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
}

func TestCollect_SkippingReader(t *testing.T) {
	stats, err := Collect(context.Background(), skippingNext(5*time.Millisecond), 300*time.Millisecond)
	if !errors.Is(err, ErrUnstable) {
		t.Fatalf("Collect() error = %v, want ErrUnstable", err)
	}
	if stats == nil {
		t.Fatal("Collect() returned nil stats")
	}
	if stats.SkippedRatio < 0.4 {
		t.Errorf("SkippedRatio = %.2f, want about 0.5", stats.SkippedRatio)
	}
	if stats.FramesPublished <= stats.FramesReceived {
		t.Errorf("FramesPublished = %d, want more than FramesReceived = %d",
			stats.FramesPublished, stats.FramesReceived)
	}

	full := time.Duration(float64(time.Second) / stats.FPSMean)
	if got := SuggestPollInterval(stats, 1000); got >= full {
		t.Errorf("SuggestPollInterval() = %v, want below one publish interval (%v)", got, full)
	}
}
