package internal

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrWriterClaimed is returned by Claim when another owner already holds the writer.
// Two producers on one supplier is a configuration error, not a runtime condition.
var ErrWriterClaimed = errors.New("framesupplier: writer already claimed")

// atomicBool is a read-mostly flag. Load before Store keeps the cache line
// shared when many readers mark the same entry.
type atomicBool struct{ v atomic.Bool }

func (b *atomicBool) Load() bool { return b.v.Load() }

func (b *atomicBool) Mark() {
	if !b.v.Load() {
		b.v.Store(true)
	}
}

// SupplierStats is a snapshot of supplier operational state.
type SupplierStats struct {
	// Published counts frames accepted by Writer.Publish.
	Published uint64

	// Overwritten counts frames replaced before any reader observed them.
	// Non-zero is normal when the source is faster than every reader.
	Overwritten uint64

	// LatestSeq is the sequence of the current frame (0 before the first publish).
	LatestSeq uint64

	// LatestAt is the Timestamp of the current frame (zero before the first publish).
	LatestAt time.Time

	// WriterOwner names the current writer, empty when unclaimed.
	WriterOwner string

	// Readers maps readerID to per-reader statistics.
	Readers map[string]ReaderStats
}

// ReaderStats tracks per-reader (per-session) delivery.
type ReaderStats struct {
	ReaderID string

	// SubscribedAt is when the cursor was created.
	SubscribedAt time.Time

	// LastDeliveredAt is the time of the last frame handed to this reader.
	LastDeliveredAt time.Time

	// LastDeliveredSeq is the sequence of the last frame handed to this reader.
	LastDeliveredSeq uint64

	// Delivered is the number of frames handed to this reader.
	Delivered uint64

	// Skipped counts sequences published between two deliveries that this
	// reader never saw. Expected when the reader polls slower than the source.
	Skipped uint64

	// IsIdle is true when nothing was delivered for idleThreshold.
	IsIdle bool
}
