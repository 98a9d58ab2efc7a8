// Package internal implements FrameSupplier as a single-slot, latest-wins buffer.
//
// This package is INTERNAL - clients MUST use public API in parent package.
// Reason: Allows internal refactoring without breaking changes.
package internal

import (
	"context"
	"sync"
	"sync/atomic"
)

// supplier is the concrete implementation of framesupplier.Supplier.
//
// Shared state:
//   - current: the only frame held (atomic pointer, replaced whole on publish)
//   - notify: closed and replaced on every publish (wake-up for Wait/Changed)
//
// Goroutine topology:
//   - 0 owned goroutines. The writer publishes from its own goroutine and
//     readers pull from theirs. Nothing is queued, nothing is fanned out.
//
// Thread-safety: All public methods safe for concurrent use.
type supplier struct {
	// --- Slot ---

	current atomic.Pointer[slotEntry] // nil until first publish
	seq     atomic.Uint64             // last assigned sequence

	// --- Notification ---

	notifyMu sync.Mutex
	notify   chan struct{} // closed on next publish

	// --- Writer ownership ---

	writerMu sync.Mutex
	writer   *writer // nil = unclaimed

	// --- Readers ---

	cursors sync.Map // readerID (string) → *Cursor

	// --- Stats ---

	published   atomic.Uint64
	overwritten atomic.Uint64
}

// NewSupplier creates a new supplier instance (called by public New() in parent package).
func NewSupplier() *supplier {
	return &supplier{
		notify: make(chan struct{}),
	}
}

// ReadLatest returns the current frame if its sequence is strictly greater
// than since, nil otherwise.
//
// One atomic load: the frame pointer carries its own sequence, so a reader
// can never pair a new sequence with a stale payload.
//
// Never blocks. Repeated calls with the same since return the same answer
// until the next publish.
func (s *supplier) ReadLatest(since uint64) *Frame {
	e := s.current.Load()
	if e == nil || e.frame.Seq <= since {
		return nil
	}
	e.read.Mark()
	return e.frame
}

// Latest returns the current frame regardless of sequence (nil before the first publish).
func (s *supplier) Latest() *Frame {
	return s.ReadLatest(0)
}

// Changed returns a channel closed by the next publish.
//
// Callers must re-read after the channel fires; the channel says "something
// changed", not what. Fetch the channel BEFORE checking ReadLatest to avoid
// missing a publish that lands in between.
func (s *supplier) Changed() <-chan struct{} {
	s.notifyMu.Lock()
	ch := s.notify
	s.notifyMu.Unlock()
	return ch
}

// Wait blocks until a frame newer than since is available or ctx is done.
func (s *supplier) Wait(ctx context.Context, since uint64) (*Frame, error) {
	for {
		changed := s.Changed()
		if f := s.ReadLatest(since); f != nil {
			return f, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// publish replaces the slot content and wakes waiters.
//
// Called only through the claimed writer, so sequence assignment has a
// single owner. Cost is independent of the number of readers except for
// the channel close, which the runtime handles without blocking.
func (s *supplier) publish(frame *Frame) uint64 {
	frame.Seq = s.seq.Add(1)

	prev := s.current.Swap(&slotEntry{frame: frame})
	if prev != nil && !prev.read.Load() {
		s.overwritten.Add(1)
	}
	s.published.Add(1)

	s.notifyMu.Lock()
	close(s.notify)
	s.notify = make(chan struct{})
	s.notifyMu.Unlock()

	return frame.Seq
}
