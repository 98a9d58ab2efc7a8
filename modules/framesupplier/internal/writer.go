package internal

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Writer is the single producer handle of a supplier.
//
// Exactly one Writer may be live per supplier (single-producer invariant).
// Publish is safe to call from the producer's callback thread; it never
// blocks on readers.
type Writer interface {
	// Publish assigns the next sequence number to frame, makes it the current
	// value and returns the sequence. Nil frames and calls after Release are
	// ignored and return 0.
	Publish(frame *Frame) uint64

	// Release gives ownership back to the supplier. Idempotent.
	Release()

	// Owner returns the name passed to Claim.
	Owner() string
}

type writer struct {
	s        *supplier
	owner    string
	released atomic.Bool
}

// Claim grants the writer to owner.
//
// Returns ErrWriterClaimed when another owner holds it. The caller should
// treat that as fatal: two ingest adapters against one supplier would
// interleave sequences from unrelated sources.
func (s *supplier) Claim(owner string) (Writer, error) {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	if s.writer != nil {
		return nil, fmt.Errorf("%w (held by %q, requested by %q)", ErrWriterClaimed, s.writer.owner, owner)
	}

	w := &writer{s: s, owner: owner}
	s.writer = w

	slog.Debug("framesupplier: writer claimed", "owner", owner)
	return w, nil
}

func (w *writer) Publish(frame *Frame) uint64 {
	if frame == nil || w.released.Load() {
		return 0
	}
	return w.s.publish(frame)
}

func (w *writer) Release() {
	if !w.released.CompareAndSwap(false, true) {
		return
	}

	w.s.writerMu.Lock()
	if w.s.writer == w {
		w.s.writer = nil
	}
	w.s.writerMu.Unlock()

	slog.Debug("framesupplier: writer released", "owner", w.owner)
}

func (w *writer) Owner() string {
	return w.owner
}

// writerOwner returns the current owner name, empty when unclaimed.
func (s *supplier) writerOwner() string {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()
	if s.writer == nil {
		return ""
	}
	return s.writer.owner
}
