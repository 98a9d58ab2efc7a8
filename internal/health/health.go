// Package health derives the relay's health state from the frame supplier
// and the ingest adapter. The HTTP probes and MQTT telemetry both report it.
package health

import (
	"time"

	"github.com/e7canasta/orion-relay/modules/framesupplier"
	streamcapture "github.com/e7canasta/orion-relay/modules/stream-capture"
)

// Status values, from best to worst.
const (
	StatusHealthy   = "healthy"
	StatusStarting  = "starting"  // no frame published yet
	StatusStale     = "stale"     // latest frame older than StaleAfter
	StatusUnhealthy = "unhealthy" // ingest adapter not running
)

// IngestReporter is implemented by *streamcapture.Adapter.
type IngestReporter interface {
	Stats() streamcapture.IngestStats
}

// IngestHealth summarizes the ingest side.
type IngestHealth struct {
	Source     string            `json:"source" msgpack:"source"`
	Running    bool              `json:"running" msgpack:"running"`
	Connected  bool              `json:"connected" msgpack:"connected"`
	Frames     uint64            `json:"frames" msgpack:"frames"`
	Rejected   uint64            `json:"rejected" msgpack:"rejected"`
	Restarts   uint32            `json:"restarts" msgpack:"restarts"`
	Reconnects uint32            `json:"reconnects" msgpack:"reconnects"`
	FPS        float64           `json:"fps" msgpack:"fps"`
	Errors     map[string]uint64 `json:"errors,omitempty" msgpack:"errors,omitempty"`
}

// Status is one health snapshot.
type Status struct {
	InstanceID    string       `json:"instance_id" msgpack:"instance_id"`
	Status        string       `json:"status" msgpack:"status"`
	UptimeSeconds int64        `json:"uptime_s" msgpack:"uptime_s"`
	LatestSeq     uint64       `json:"latest_seq" msgpack:"latest_seq"`
	LatestAgeMS   int64        `json:"latest_age_ms" msgpack:"latest_age_ms"` // -1 before the first frame
	Published     uint64       `json:"published" msgpack:"published"`
	Overwritten   uint64       `json:"overwritten" msgpack:"overwritten"`
	Readers       int          `json:"readers" msgpack:"readers"`
	Ingest        IngestHealth `json:"ingest" msgpack:"ingest"`
	Timestamp     time.Time    `json:"timestamp" msgpack:"timestamp"`
}

// Ready reports whether clients would currently receive live frames.
func (s Status) Ready() bool {
	return s.Status == StatusHealthy
}

// Checker builds Status snapshots. Safe for concurrent use.
type Checker struct {
	instanceID string
	supplier   framesupplier.Supplier
	ingest     IngestReporter
	staleAfter time.Duration
	started    time.Time
	now        func() time.Time
}

// NewChecker creates a checker. ingest may be nil (tests, probe).
func NewChecker(instanceID string, supplier framesupplier.Supplier, ingest IngestReporter, staleAfter time.Duration) *Checker {
	return &Checker{
		instanceID: instanceID,
		supplier:   supplier,
		ingest:     ingest,
		staleAfter: staleAfter,
		started:    time.Now(),
		now:        time.Now,
	}
}

// Uptime returns the time since the checker was created.
func (c *Checker) Uptime() time.Duration {
	return c.now().Sub(c.started)
}

// Check returns the current health snapshot.
func (c *Checker) Check() Status {
	now := c.now()
	stats := c.supplier.Stats()

	st := Status{
		InstanceID:    c.instanceID,
		Status:        StatusHealthy,
		UptimeSeconds: int64(now.Sub(c.started).Seconds()),
		LatestSeq:     stats.LatestSeq,
		LatestAgeMS:   -1,
		Published:     stats.Published,
		Overwritten:   stats.Overwritten,
		Readers:       len(stats.Readers),
		Timestamp:     now,
	}

	var age time.Duration
	if stats.LatestSeq > 0 {
		age = now.Sub(stats.LatestAt)
		st.LatestAgeMS = age.Milliseconds()
	}

	ingestRunning := true
	if c.ingest != nil {
		is := c.ingest.Stats()
		st.Ingest = IngestHealth{
			Source:    is.Source,
			Running:   is.Running,
			Connected: is.Running,
			Frames:    is.Frames,
			Rejected:  is.Rejected,
			Restarts:  is.Restarts,
			FPS:       is.FPS,
		}
		if is.SourceStats != nil {
			st.Ingest.Connected = is.SourceStats.Connected
			st.Ingest.Reconnects = is.SourceStats.Reconnects
			st.Ingest.Errors = is.SourceStats.Errors
		}
		ingestRunning = is.Running
	}

	switch {
	case !ingestRunning:
		st.Status = StatusUnhealthy
	case stats.LatestSeq == 0:
		st.Status = StatusStarting
	case c.staleAfter > 0 && age > c.staleAfter:
		st.Status = StatusStale
	}

	return st
}
