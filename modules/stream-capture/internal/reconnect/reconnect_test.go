package reconnect

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	cfg := Config{RetryDelay: time.Second, MaxRetryDelay: 30 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{100, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(tt.attempt, cfg); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRunWithReconnect_RetriesUntilSuccess(t *testing.T) {
	cfg := Config{MaxRetries: 5, RetryDelay: time.Millisecond, MaxRetryDelay: 5 * time.Millisecond}
	var state State

	calls := 0
	err := RunWithReconnect(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, cfg, &state)

	if err != nil {
		t.Fatalf("RunWithReconnect() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if got := state.Reconnects.Load(); got != 2 {
		t.Errorf("Reconnects = %d, want 2", got)
	}
	if state.CurrentRetries != 0 {
		t.Errorf("CurrentRetries = %d, want 0 after success", state.CurrentRetries)
	}
}

func TestRunWithReconnect_MaxRetriesExceeded(t *testing.T) {
	cfg := Config{MaxRetries: 2, RetryDelay: time.Millisecond, MaxRetryDelay: time.Millisecond}
	var state State
	boom := errors.New("boom")

	err := RunWithReconnect(context.Background(), "test", func(ctx context.Context) error {
		return boom
	}, cfg, &state)

	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped boom", err)
	}
	if got := state.Reconnects.Load(); got != 3 {
		t.Errorf("Reconnects = %d, want 3", got)
	}
}

func TestRunWithReconnect_UnlimitedStopsOnCancel(t *testing.T) {
	cfg := Config{MaxRetries: 0, RetryDelay: time.Millisecond, MaxRetryDelay: time.Millisecond}
	var state State

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RunWithReconnect(ctx, "test", func(ctx context.Context) error {
		calls++
		if calls == 50 {
			cancel()
		}
		return errors.New("timeout")
	}, cfg, &state)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 50 {
		t.Errorf("calls = %d, want 50 (no retry limit)", calls)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		debug string
		want  ErrorCategory
	}{
		{"auth 401", "Unauthorized", "RTSP 401", ErrCategoryAuth},
		{"codec negotiation", "Internal data stream error", "streaming stopped, reason not-negotiated (not negotiated)", ErrCategoryCodec},
		{"missing plugin", "Missing plugin: nvh264dec", "", ErrCategoryCodec},
		{"network", "Could not open resource for reading and writing.", "Failed to connect. (Generic error)", ErrCategoryNetwork},
		{"http eof", "unexpected EOF", "", ErrCategoryNetwork},
		{"empty", "", "", ErrCategoryUnknown},
		{"other", "something odd", "", ErrCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.msg, tt.debug); got != tt.want {
				t.Errorf("Classify(%q, %q) = %v, want %v", tt.msg, tt.debug, got, tt.want)
			}
		})
	}
}

func TestCounters(t *testing.T) {
	var c Counters
	c.Record("401 Unauthorized", "")
	c.Record("connection refused", "")
	c.Record("connection refused", "")

	snap := c.Snapshot()
	if snap["auth"] != 1 || snap["network"] != 2 || snap["codec"] != 0 {
		t.Errorf("Snapshot() = %v", snap)
	}
}
