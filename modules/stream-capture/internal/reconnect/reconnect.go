// Package reconnect holds the retry policy shared by the network sources:
// exponential backoff with a cap, and keyword classification of upstream
// errors for telemetry.
package reconnect

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Config contains configuration for exponential backoff reconnection.
type Config struct {
	MaxRetries    int           // Consecutive failures before giving up (0 = unlimited)
	RetryDelay    time.Duration // Initial retry delay (default: 1 second)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 30 seconds)
}

// DefaultConfig returns the default reconnection policy.
//
// A relay is expected to outlive camera reboots, so retries are unlimited.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    0,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// State tracks the current state of reconnection attempts.
//
// CurrentRetries is owned by the goroutine running RunWithReconnect;
// Reconnects may be read concurrently.
type State struct {
	CurrentRetries int
	Reconnects     atomic.Uint32
}

// Reset clears the consecutive failure counter. Sources call it once data
// flows again (first frame, or pipeline reached PLAYING).
func (s *State) Reset() {
	if s.CurrentRetries != 0 {
		slog.Debug("reconnect: state reset", "after_retries", s.CurrentRetries)
	}
	s.CurrentRetries = 0
}

// ConnectFunc runs one connection attempt. It blocks while the connection is
// healthy and returns an error when it breaks. Returning nil means the work
// is done and no retry is needed.
type ConnectFunc func(ctx context.Context) error

// RunWithReconnect executes connectFn with exponential backoff retry logic.
//
// Exponential backoff schedule (default config):
//   - Attempt 1: 1 second
//   - Attempt 2: 2 seconds
//   - Attempt 3: 4 seconds
//   - ...
//   - Capped at MaxRetryDelay
//
// Returns ctx.Err() on cancellation, nil when connectFn returns nil, and an
// error once MaxRetries consecutive failures are exceeded (if MaxRetries > 0).
func RunWithReconnect(ctx context.Context, name string, connectFn ConnectFunc, cfg Config, state *State) error {
	for {
		if err := ctx.Err(); err != nil {
			slog.Debug("reconnect: context cancelled, stopping", "source", name)
			return err
		}

		err := connectFn(ctx)
		if err == nil {
			state.Reset()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		state.CurrentRetries++
		state.Reconnects.Add(1)

		if cfg.MaxRetries > 0 && state.CurrentRetries > cfg.MaxRetries {
			return fmt.Errorf("reconnect: %s: max retries exceeded (%d attempts): %w", name, cfg.MaxRetries, err)
		}

		delay := Backoff(state.CurrentRetries, cfg)

		slog.Warn("reconnect: connection failed, retrying",
			"source", name,
			"error", err,
			"attempt", state.CurrentRetries,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Backoff returns the delay before retry number attempt (1-based).
//
// Formula: delay = RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Past 2^30 the multiplication overflows; the cap applies long before.
	shift := attempt - 1
	if shift > 30 {
		shift = 30
	}

	delay := cfg.RetryDelay * time.Duration(1<<uint(shift))
	if cfg.MaxRetryDelay > 0 && (delay > cfg.MaxRetryDelay || delay <= 0) {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
