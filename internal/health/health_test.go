package health

import (
	"testing"
	"time"

	"github.com/e7canasta/orion-relay/modules/framesupplier"
	streamcapture "github.com/e7canasta/orion-relay/modules/stream-capture"
)

type fakeIngest struct{ stats streamcapture.IngestStats }

func (f *fakeIngest) Stats() streamcapture.IngestStats { return f.stats }

func TestChecker_Transitions(t *testing.T) {
	supplier := framesupplier.New()
	w, err := supplier.Claim("test")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	defer w.Release()

	ingest := &fakeIngest{stats: streamcapture.IngestStats{Source: "synthetic", Running: true}}
	c := NewChecker("lobby-cam", supplier, ingest, time.Second)

	if st := c.Check(); st.Status != StatusStarting || st.LatestAgeMS != -1 || st.Ready() {
		t.Errorf("before first frame: %+v", st)
	}

	w.Publish(&framesupplier.Frame{Data: []byte("A"), ContentType: "image/jpeg", Timestamp: time.Now()})
	st := c.Check()
	if st.Status != StatusHealthy || !st.Ready() {
		t.Errorf("after publish: status = %s", st.Status)
	}
	if st.LatestSeq != 1 || st.Published != 1 || st.InstanceID != "lobby-cam" {
		t.Errorf("snapshot = %+v", st)
	}

	c.now = func() time.Time { return time.Now().Add(2 * time.Second) }
	if st := c.Check(); st.Status != StatusStale {
		t.Errorf("old frame: status = %s, want stale", st.Status)
	}

	ingest.stats.Running = false
	if st := c.Check(); st.Status != StatusUnhealthy {
		t.Errorf("adapter stopped: status = %s, want unhealthy", st.Status)
	}
}

func TestChecker_SourceStats(t *testing.T) {
	supplier := framesupplier.New()
	ingest := &fakeIngest{stats: streamcapture.IngestStats{
		Source:  "rtsp",
		Running: true,
		Frames:  42,
		SourceStats: &streamcapture.SourceStats{
			Reconnects: 3,
			Errors:     map[string]uint64{"network": 2},
			Connected:  false,
		},
	}}

	st := NewChecker("cam", supplier, ingest, 0).Check()
	if st.Ingest.Frames != 42 || st.Ingest.Reconnects != 3 || st.Ingest.Connected {
		t.Errorf("ingest = %+v", st.Ingest)
	}
	if st.Ingest.Errors["network"] != 2 {
		t.Errorf("errors = %v", st.Ingest.Errors)
	}
}

func TestChecker_NilIngest(t *testing.T) {
	supplier := framesupplier.New()
	cur := supplier.Subscribe("viewer")
	defer cur.Close()

	st := NewChecker("cam", supplier, nil, 0).Check()
	if st.Status != StatusStarting || st.Readers != 1 {
		t.Errorf("snapshot = %+v", st)
	}
}
