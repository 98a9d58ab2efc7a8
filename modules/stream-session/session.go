package streamsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-relay/modules/framesupplier"
)

// DefaultPollInterval bounds polling to roughly 30 frames per second.
const DefaultPollInterval = 33 * time.Millisecond

// ErrSessionClosed is returned by Next and Run on a closed (or already run) session.
var ErrSessionClosed = errors.New("streamsession: session closed")

// Config contains configuration for a stream session.
type Config struct {
	// ID identifies the session's supplier cursor (default: random uuid)
	ID string
	// PollInterval is the sleep between empty polls (default: 33ms)
	PollInterval time.Duration
	// Boundary is the multipart boundary (default: "frame")
	Boundary string
	// Notify waits on the supplier's change notification instead of
	// sleeping PollInterval between empty polls. Emits are still spaced at
	// least PollInterval apart, and frames are delivered latest-wins.
	Notify bool
}

// Session is the per-client chunk producer.
//
// It owns a supplier cursor (last sequence seen, sentinel 0) and turns new
// frames into multipart chunks. A session is single-use: Run once, or call
// Next in a loop, then Close.
//
// Thread-safety: Next and Run MUST be called from one goroutine. Close is
// safe from any goroutine.
type Session struct {
	cfg     Config
	cur     *framesupplier.Cursor
	started time.Time
	emitAt  time.Time // last emit; only touched by the Next goroutine

	closed  atomic.Bool
	emitted atomic.Uint64
}

// New subscribes a session cursor on supplier.
func New(supplier framesupplier.Supplier, cfg Config) *Session {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Boundary == "" {
		cfg.Boundary = DefaultBoundary
	}

	return &Session{
		cfg:     cfg,
		cur:     supplier.Subscribe(cfg.ID),
		started: time.Now(),
	}
}

// ID returns the session (and cursor) identifier.
func (s *Session) ID() string { return s.cfg.ID }

// ContentType returns the HTTP content type of this session's stream.
func (s *Session) ContentType() string { return ContentType(s.cfg.Boundary) }

// Last returns the sequence of the last emitted frame (0 = none yet).
func (s *Session) Last() uint64 { return s.cur.Last() }

// Emitted returns the number of chunks produced so far.
func (s *Session) Emitted() uint64 { return s.emitted.Load() }

// Next blocks until a frame newer than the last one emitted exists and
// returns its chunk.
//
// "No new frame yet" is not an error: Next sleeps PollInterval (or waits for
// a publish in Notify mode) and retries. In Notify mode Next first waits out
// the rest of PollInterval since the previous emit. Returns ctx.Err() when ctx is done
// and ErrSessionClosed when the session or its cursor was closed.
func (s *Session) Next(ctx context.Context) (Chunk, error) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	sleep := func(d time.Duration) error {
		if timer == nil {
			timer = time.NewTimer(d)
		} else {
			timer.Reset(d)
		}
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if s.cfg.Notify && !s.emitAt.IsZero() {
		if wait := s.cfg.PollInterval - time.Since(s.emitAt); wait > 0 {
			if err := sleep(wait); err != nil {
				return Chunk{}, err
			}
		}
	}

	for {
		if s.closed.Load() || s.cur.Closed() {
			return Chunk{}, ErrSessionClosed
		}

		if s.cfg.Notify {
			f, err := s.cur.Next(ctx)
			if err != nil {
				return Chunk{}, err
			}
			if f == nil {
				continue // cursor closed, reported above
			}
			return s.chunk(f), nil
		}

		if f := s.cur.TryNext(); f != nil {
			return s.chunk(f), nil
		}

		if err := sleep(s.cfg.PollInterval); err != nil {
			return Chunk{}, err
		}
	}
}

func (s *Session) chunk(f *framesupplier.Frame) Chunk {
	s.emitted.Add(1)
	s.emitAt = time.Now()
	return Chunk{
		Seq:         f.Seq,
		ContentType: f.ContentType,
		Payload:     f.Data,
		Boundary:    s.cfg.Boundary,
	}
}

// Run produces chunks into emit until the client goes away.
//
// Returns nil when ctx is done (client disconnect is a stop signal, not an
// error). An emit error ends the session and is returned wrapped; it never
// affects other sessions or ingest. Run closes the session on return, so a
// second Run returns ErrSessionClosed.
func (s *Session) Run(ctx context.Context, emit func(Chunk) error) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	defer s.Close()

	slog.Debug("stream-session: started", "session_id", s.cfg.ID, "poll_interval", s.cfg.PollInterval, "notify", s.cfg.Notify)

	for {
		c, err := s.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := emit(c); err != nil {
			slog.Debug("stream-session: emit failed, ending session",
				"session_id", s.cfg.ID,
				"seq", c.Seq,
				"error", err,
			)
			return fmt.Errorf("streamsession: emit seq %d: %w", c.Seq, err)
		}
	}
}

// Close unsubscribes the session cursor. Idempotent.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.cur.Close()

	slog.Debug("stream-session: closed",
		"session_id", s.cfg.ID,
		"emitted", s.emitted.Load(),
		"last_seq", s.cur.Last(),
		"duration", time.Since(s.started),
	)
}
