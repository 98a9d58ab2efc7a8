package framesupplier

import (
	"context"

	"github.com/e7canasta/orion-relay/modules/framesupplier/internal"
)

// Frame is re-exported from internal package to avoid import cycles.
// See internal/frame.go for full documentation.
type Frame = internal.Frame

// Writer is the single producer handle. See internal/writer.go.
type Writer = internal.Writer

// Cursor is a per-reader view that delivers each sequence at most once.
// See internal/cursor.go.
type Cursor = internal.Cursor

// SupplierStats is re-exported from internal package to avoid import cycles.
type SupplierStats = internal.SupplierStats

// ReaderStats is re-exported from internal package to avoid import cycles.
type ReaderStats = internal.ReaderStats

// ErrWriterClaimed is returned by Claim when the writer is already held.
var ErrWriterClaimed = internal.ErrWriterClaimed

// Supplier is the latest-frame broadcast buffer.
//
// Design:
//   - Interface (not concrete type) so transports and tests depend on behavior
//   - Lifecycle: New() → Claim() by the ingest side → readers anytime
//   - Thread-safe: all methods safe for concurrent use
//
// Implementation is in internal/ (hidden from clients).
type Supplier interface {
	// Claim grants the single writer to owner.
	//
	// Returns ErrWriterClaimed (wrapped) if another owner holds it. That is a
	// configuration error: exactly one ingest adapter feeds a supplier.
	Claim(owner string) (Writer, error)

	// ReadLatest returns the current frame if frame.Seq > since, nil otherwise.
	//
	// Semantics:
	//   - Non-blocking: one atomic load
	//   - Never torn: sequence and payload travel in the same pointer
	//   - Latest wins: frames published between two calls are never returned
	//
	// since=0 is the sentinel "nothing seen yet".
	ReadLatest(since uint64) *Frame

	// Latest returns the current frame or nil before the first publish.
	Latest() *Frame

	// Changed returns a channel closed by the next publish.
	// Fetch it before calling ReadLatest to avoid a lost wake-up.
	Changed() <-chan struct{}

	// Wait blocks until a frame newer than since exists or ctx is done.
	Wait(ctx context.Context, since uint64) (*Frame, error)

	// Subscribe registers a reader and returns its cursor.
	//
	// Example:
	//   cur := supplier.Subscribe(sessionID)
	//   defer cur.Close()
	//   for {
	//       f := cur.TryNext()
	//       if f == nil { sleep(pollInterval); continue }
	//       send(f)
	//   }
	Subscribe(readerID string) *Cursor

	// Unsubscribe removes a reader; its cursor stops returning frames. Idempotent.
	Unsubscribe(readerID string)

	// Stats returns operational statistics (non-blocking snapshot).
	Stats() SupplierStats
}

// New creates an empty Supplier.
//
// Lifecycle:
//  1. supplier := framesupplier.New()
//  2. w, err := supplier.Claim("rtsp")   // Ingest side, once
//  3. w.Publish(frame)                    // Producer thread
//     supplier.Subscribe(id).TryNext()    // Any number of readers
//  4. w.Release()                         // Optional, on ingest shutdown
func New() Supplier {
	return internal.NewSupplier()
}
