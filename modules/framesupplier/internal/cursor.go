package internal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Cursor is a per-reader view of the supplier.
//
// It holds the reader's last delivered sequence (sentinel 0 before the
// first delivery) and guarantees that frames come out strictly increasing,
// each at most once. Frames published between two reads are skipped, not
// queued.
//
// Thread-safety:
//   - TryNext/Next: MUST be called from a single reader goroutine
//   - Stats fields: protected by mu (read by supplier.Stats)
type Cursor struct {
	s  *supplier
	id string

	// --- Reader State (owned by reader goroutine) ---

	last uint64

	// --- Operational Stats ---

	mu              sync.Mutex
	subscribedAt    time.Time
	lastDeliveredAt time.Time
	lastSeq         uint64
	delivered       uint64
	skipped         uint64

	// --- Lifecycle ---

	closed atomic.Bool
}

// Subscribe registers a reader cursor under readerID.
//
// A cursor already registered under the same ID is closed and replaced.
// Reader MUST call Unsubscribe (or Cursor.Close) when done.
func (s *supplier) Subscribe(readerID string) *Cursor {
	c := &Cursor{
		s:            s,
		id:           readerID,
		subscribedAt: time.Now(),
	}

	if prev, loaded := s.cursors.Swap(readerID, c); loaded {
		prev.(*Cursor).closed.Store(true)
	}

	return c
}

// Unsubscribe removes readerID. Idempotent.
func (s *supplier) Unsubscribe(readerID string) {
	val, ok := s.cursors.LoadAndDelete(readerID)
	if !ok {
		return
	}
	val.(*Cursor).closed.Store(true)
}

// ID returns the reader ID given to Subscribe.
func (c *Cursor) ID() string { return c.id }

// Last returns the sequence of the last delivered frame (0 = none yet).
func (c *Cursor) Last() uint64 { return c.last }

// Closed reports whether the cursor was unsubscribed.
func (c *Cursor) Closed() bool { return c.closed.Load() }

// Close unsubscribes the cursor. Idempotent.
func (c *Cursor) Close() {
	if c.closed.Swap(true) {
		return
	}
	// Only remove the map entry if it still points at us (Subscribe may have replaced it).
	c.s.cursors.CompareAndDelete(c.id, c)
}

// TryNext returns the current frame if it is newer than the last one this
// cursor delivered, nil otherwise (or when closed). Never blocks.
func (c *Cursor) TryNext() *Frame {
	if c.closed.Load() {
		return nil
	}

	f := c.s.ReadLatest(c.last)
	if f == nil {
		return nil
	}

	c.deliver(f)
	return f
}

// Next blocks until a newer frame is available, ctx is done or the cursor closes.
// Returns (nil, nil) when closed.
func (c *Cursor) Next(ctx context.Context) (*Frame, error) {
	for {
		if c.closed.Load() {
			return nil, nil
		}

		changed := c.s.Changed()
		if f := c.TryNext(); f != nil {
			return f, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Cursor) deliver(f *Frame) {
	c.mu.Lock()
	if c.last > 0 && f.Seq > c.last+1 {
		c.skipped += f.Seq - c.last - 1
	}
	c.delivered++
	c.lastSeq = f.Seq
	c.lastDeliveredAt = time.Now()
	c.mu.Unlock()

	c.last = f.Seq
}
