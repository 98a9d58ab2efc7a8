package streamcapture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-relay/modules/framesupplier"
)

// ErrEmptyFrame is returned by the handler for a zero-length payload.
var ErrEmptyFrame = errors.New("stream-capture: empty frame payload")

// ErrAdapterStopped is returned by the handler once the adapter stopped.
var ErrAdapterStopped = errors.New("stream-capture: adapter stopped")

const (
	defaultRestartDelay = 1 * time.Second
	stopTimeout         = 3 * time.Second
)

// Adapter connects a Source to a framesupplier.Supplier.
//
// It is the supplier's only writer: Start claims the writer, and every frame
// the source hands over is wrapped (TraceID, Timestamp, default content type)
// and published. The handler never blocks, so a slow browser can never
// back-pressure the camera pipeline.
type Adapter struct {
	supplier framesupplier.Supplier
	source   Source
	cfg      AdapterConfig

	mu      sync.Mutex
	writer  framesupplier.Writer
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time

	running  atomic.Bool
	frames   atomic.Uint64
	bytes    atomic.Uint64
	rejected atomic.Uint64
	restarts atomic.Uint32
	lastAt   atomic.Int64 // unix nanos of last publish
}

// NewAdapter creates an ingest adapter for source.
//
// Fail-fast validation: supplier and source are required.
func NewAdapter(supplier framesupplier.Supplier, source Source, cfg AdapterConfig) (*Adapter, error) {
	if supplier == nil {
		return nil, fmt.Errorf("stream-capture: supplier is required")
	}
	if source == nil {
		return nil, fmt.Errorf("stream-capture: source is required")
	}
	if cfg.Owner == "" {
		cfg.Owner = source.Name()
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = defaultRestartDelay
	}

	return &Adapter{
		supplier: supplier,
		source:   source,
		cfg:      cfg,
	}, nil
}

// Start claims the supplier writer and runs the source in a goroutine.
//
// Returns immediately. Fails with framesupplier.ErrWriterClaimed (wrapped)
// when another adapter already feeds the supplier, and with an error when
// the adapter is already running.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return fmt.Errorf("stream-capture: adapter already started")
	}

	w, err := a.supplier.Claim(a.cfg.Owner)
	if err != nil {
		return fmt.Errorf("stream-capture: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.writer = w
	a.cancel = cancel
	a.done = make(chan struct{})
	a.started = time.Now()
	a.running.Store(true)

	slog.Info("stream-capture: starting ingest",
		"source", a.source.Name(),
		"owner", a.cfg.Owner,
		"restart_delay", a.cfg.RestartDelay,
	)

	go a.run(runCtx, w, a.done)
	return nil
}

// run re-runs the source until ctx is done.
func (a *Adapter) run(ctx context.Context, w framesupplier.Writer, done chan struct{}) {
	defer close(done)
	defer a.running.Store(false)

	handler := a.handler(w)

	for {
		err := a.source.Run(ctx, handler)
		if ctx.Err() != nil {
			slog.Debug("stream-capture: source stopped", "source", a.source.Name())
			return
		}

		a.restarts.Add(1)
		slog.Error("stream-capture: source exited, restarting",
			"source", a.source.Name(),
			"error", err,
			"delay", a.cfg.RestartDelay,
			"restarts", a.restarts.Load(),
		)

		timer := time.NewTimer(a.cfg.RestartDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// handler builds the FrameHandler bound to writer w.
func (a *Adapter) handler(w framesupplier.Writer) FrameHandler {
	return func(data []byte, contentType string) error {
		if len(data) == 0 {
			a.rejected.Add(1)
			slog.Warn("stream-capture: rejecting empty frame", "source", a.source.Name())
			return ErrEmptyFrame
		}
		if contentType == "" {
			contentType = ContentTypeJPEG
		}

		now := time.Now()
		frame := &framesupplier.Frame{
			Data:        data,
			ContentType: contentType,
			Width:       a.cfg.Width,
			Height:      a.cfg.Height,
			Timestamp:   now,
			TraceID:     uuid.New().String(),
		}

		seq := w.Publish(frame)
		if seq == 0 {
			a.rejected.Add(1)
			return ErrAdapterStopped
		}

		a.frames.Add(1)
		a.bytes.Add(uint64(len(data)))
		a.lastAt.Store(now.UnixNano())

		slog.Debug("stream-capture: frame published",
			"seq", seq,
			"size_bytes", len(data),
			"trace_id", frame.TraceID,
		)
		return nil
	}
}

// Stop cancels the source and waits for it to exit, then releases the writer.
//
// Safe to call multiple times. Returns an error if the source does not exit
// within 3 seconds.
func (a *Adapter) Stop() error {
	// Detach under the lock and wait without it, so Stats and health checks
	// stay responsive while a source is slow to honour cancellation.
	a.mu.Lock()
	cancel, done, w, started := a.cancel, a.done, a.writer, a.started
	a.cancel = nil
	a.writer = nil
	a.mu.Unlock()

	if cancel == nil {
		slog.Debug("stream-capture: adapter not started, nothing to stop")
		return nil
	}

	cancel()

	var err error
	select {
	case <-done:
	case <-time.After(stopTimeout):
		err = fmt.Errorf("stream-capture: stop timeout exceeded (%s)", stopTimeout)
		slog.Warn("stream-capture: stop timeout exceeded, source may still be running",
			"source", a.source.Name(),
		)
	}

	w.Release()

	slog.Info("stream-capture: ingest stopped",
		"source", a.source.Name(),
		"frames", a.frames.Load(),
		"restarts", a.restarts.Load(),
		"uptime", time.Since(started),
	)
	return err
}

func (a *Adapter) Stats() IngestStats {
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()

	frames := a.frames.Load()
	stats := IngestStats{
		Source:   a.source.Name(),
		Running:  a.running.Load(),
		Frames:   frames,
		Bytes:    a.bytes.Load(),
		Rejected: a.rejected.Load(),
		Restarts: a.restarts.Load(),
	}

	if !started.IsZero() {
		stats.Uptime = time.Since(started)
		if secs := stats.Uptime.Seconds(); secs > 0 {
			stats.FPS = float64(frames) / secs
		}
	}
	if last := a.lastAt.Load(); last > 0 {
		stats.LastFrameAge = time.Since(time.Unix(0, last))
	}
	if r, ok := a.source.(StatsReporter); ok {
		ss := r.SourceStats()
		stats.SourceStats = &ss
	}

	return stats
}
