package internal

import (
	"time"
)

// idleThreshold defines when a reader is considered idle (no delivery).
//
// A browser at the default 30fps ceiling receives a frame every ~33ms while
// the camera is live. 30 seconds without a delivery means either the camera
// is down (every reader idle) or this reader's connection is stuck.
const idleThreshold = 30 * time.Second

// Stats returns operational statistics snapshot (implements Supplier.Stats).
//
// Semantics:
//   - Non-blocking: Returns immediately (snapshot, not live view)
//   - Consistency: Per-reader fields are consistent, the overall snapshot may be slightly stale
func (s *supplier) Stats() SupplierStats {
	stats := SupplierStats{
		Published:   s.published.Load(),
		Overwritten: s.overwritten.Load(),
		WriterOwner: s.writerOwner(),
		Readers:     make(map[string]ReaderStats),
	}

	if e := s.current.Load(); e != nil {
		stats.LatestSeq = e.frame.Seq
		stats.LatestAt = e.frame.Timestamp
	}

	now := time.Now()
	s.cursors.Range(func(key, value any) bool {
		c := value.(*Cursor)

		c.mu.Lock()
		lastActivity := c.lastDeliveredAt
		if lastActivity.IsZero() {
			lastActivity = c.subscribedAt
		}
		stat := ReaderStats{
			ReaderID:         c.id,
			SubscribedAt:     c.subscribedAt,
			LastDeliveredAt:  c.lastDeliveredAt,
			LastDeliveredSeq: c.lastSeq,
			Delivered:        c.delivered,
			Skipped:          c.skipped,
			IsIdle:           now.Sub(lastActivity) > idleThreshold,
		}
		c.mu.Unlock()

		stats.Readers[c.id] = stat
		return true
	})

	return stats
}
