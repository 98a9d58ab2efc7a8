package internal

import "time"

// Frame is one encoded image published into the supplier.
//
// IMMUTABILITY CONTRACT:
//   - Publisher: MUST NOT modify the frame (or Data) after Writer.Publish
//   - Readers: MUST NOT modify the frame; it is shared by every reader
//
// Zero-copy chain:
//
//	appsink (C) → copy (1) → *Frame.Data (Go heap)
//	                              ↓ (0 copies, atomic pointer swap)
//	                         supplier slot
//	                              ↓ (0 copies)
//	                         N stream sessions
type Frame struct {
	// Seq is assigned by Writer.Publish. Strictly increasing, first frame is 1.
	// Any value set by the publisher is overwritten.
	Seq uint64

	// Data is the encoded image payload (typically JPEG).
	Data []byte

	// ContentType is the MIME type of Data, e.g. "image/jpeg".
	ContentType string

	// Width and Height in pixels, zero when the source does not know them.
	Width  int
	Height int

	// Timestamp is when the frame left the decode pipeline.
	Timestamp time.Time

	// TraceID correlates log lines for one frame across components.
	TraceID string
}

// slotEntry pairs a frame with a read marker so the supplier can tell
// whether a frame was overwritten before any reader observed it.
type slotEntry struct {
	frame *Frame
	read  atomicBool
}
