package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/e7canasta/orion-relay/internal/health"
	"github.com/e7canasta/orion-relay/modules/framesupplier"
	streamsession "github.com/e7canasta/orion-relay/modules/stream-session"
)

type fixture struct {
	srv      *Server
	http     *httptest.Server
	supplier framesupplier.Supplier
	writer   framesupplier.Writer
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	supplier := framesupplier.New()
	w, err := supplier.Claim("test")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Millisecond
	}

	srv := New(cfg, supplier, health.NewChecker("test", supplier, nil, time.Minute))
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		w.Release()
	})
	return &fixture{srv: srv, http: hs, supplier: supplier, writer: w}
}

func (f *fixture) publish(payload string) uint64 {
	return f.writer.Publish(&framesupplier.Frame{
		Data:        []byte(payload),
		ContentType: "image/jpeg",
		Timestamp:   time.Now(),
	})
}

func (f *fixture) waitSessions(t *testing.T, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for f.srv.ActiveSessions() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ActiveSessions() = %d, want %d", f.srv.ActiveSessions(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestIndex_EmbedsVideoFeed(t *testing.T) {
	f := newFixture(t, Config{})

	resp, body := get(t, f.http.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, `<img src="/video_feed"`) {
		t.Errorf("index page does not reference /video_feed:\n%s", body)
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t, Config{})

	resp, _ := get(t, f.http.URL+"/snapshot.jpg")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("before first frame: status = %d, want 503", resp.StatusCode)
	}

	f.publish("A")
	f.publish("B")
	resp, body := get(t, f.http.URL+"/snapshot.jpg")
	if resp.StatusCode != http.StatusOK || body != "B" {
		t.Errorf("snapshot = %d %q, want 200 \"B\"", resp.StatusCode, body)
	}
	if got := resp.Header.Get(headerFrameSeq); got != "2" {
		t.Errorf("%s = %q, want 2", headerFrameSeq, got)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	f := newFixture(t, Config{})

	if resp, _ := get(t, f.http.URL+"/health"); resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}

	resp, body := get(t, f.http.URL+"/readiness")
	if resp.StatusCode != http.StatusServiceUnavailable || !strings.Contains(body, health.StatusStarting) {
		t.Errorf("/readiness before frames = %d %s", resp.StatusCode, body)
	}

	f.publish("A")
	if resp, body := get(t, f.http.URL+"/readiness"); resp.StatusCode != http.StatusOK {
		t.Errorf("/readiness after publish = %d %s", resp.StatusCode, body)
	}
}

func TestMJPEG_WireFormat(t *testing.T) {
	f := newFixture(t, Config{})
	f.publish("A")

	resp, err := http.Get(f.http.URL + "/video_feed")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("Cache-Control = %q", cc)
	}
	if p := resp.Header.Get("Pragma"); p != "no-cache" {
		t.Errorf("Pragma = %q", p)
	}

	want := "--frame\r\nContent-Type: image/jpeg\r\n\r\nA\r\n"
	buf := make([]byte, len(want))
	if _, err := io.ReadFull(bufio.NewReader(resp.Body), buf); err != nil {
		t.Fatalf("read first chunk: %v", err)
	}
	if string(buf) != want {
		t.Errorf("first chunk = %q, want %q", buf, want)
	}

	f.waitSessions(t, 1)
	resp.Body.Close()
	f.waitSessions(t, 0)

	// The writer is unaffected by the disconnect.
	if seq := f.publish("B"); seq != 2 {
		t.Errorf("publish after disconnect = %d, want 2", seq)
	}
}

// A standard multipart reader (what browsers effectively do) sees strictly
// increasing frames.
func TestMJPEG_MultipartReader(t *testing.T) {
	f := newFixture(t, Config{Notify: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ticker := time.NewTicker(3 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.publish(strings.Repeat("x", i%7+1))
			}
		}
	}()

	resp, err := http.Get(f.http.URL + "/stream.mjpg")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("ParseMediaType() error = %v", err)
	}
	mr := multipart.NewReader(resp.Body, params["boundary"])
	for i := 0; i < 5; i++ {
		part, err := mr.NextPart()
		if err != nil {
			t.Fatalf("NextPart() %d error = %v", i, err)
		}
		if ct := part.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part %d Content-Type = %q", i, ct)
		}
		data, err := io.ReadAll(part)
		if err != nil || len(data) == 0 {
			t.Errorf("part %d = %q, %v", i, data, err)
		}
	}
}

func TestNewSession_IDsDoNotEvictEachOther(t *testing.T) {
	f := newFixture(t, Config{})

	// A repeated cursor ID would replace the earlier viewer's cursor and
	// close its session.
	var sessions []*streamsession.Session
	defer func() {
		for _, sess := range sessions {
			sess.Close()
		}
	}()
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		sess := f.srv.newSession("mjpeg")
		sessions = append(sessions, sess)
		id := sess.ID()
		if _, err := uuid.Parse(strings.TrimPrefix(id, "mjpeg-")); err != nil {
			t.Fatalf("session ID %q does not carry a full uuid: %v", id, err)
		}
		if seen[id] {
			t.Fatalf("duplicate session ID %q", id)
		}
		seen[id] = true
	}

	seq := f.publish("frame")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i, sess := range sessions {
		chunk, err := sess.Next(ctx)
		if err != nil {
			t.Fatalf("session %d Next() error = %v", i, err)
		}
		if chunk.Seq != seq {
			t.Errorf("session %d Seq = %d, want %d", i, chunk.Seq, seq)
		}
	}
}

func TestWebSocket_BinaryFrames(t *testing.T) {
	f := newFixture(t, Config{})
	f.publish("A")

	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	typ, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if typ != websocket.BinaryMessage || string(data) != "A" {
		t.Errorf("message = %d %q, want binary \"A\"", typ, data)
	}

	f.publish("B")
	if _, data, err := conn.ReadMessage(); err != nil || string(data) != "B" {
		t.Errorf("second message = %q, %v", data, err)
	}

	f.waitSessions(t, 1)
	conn.Close()
	f.waitSessions(t, 0)
}

func TestWebSocket_Disabled(t *testing.T) {
	f := newFixture(t, Config{DisableWS: true})

	if resp, _ := get(t, f.http.URL+"/ws"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("/ws status = %d, want 404", resp.StatusCode)
	}
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	f := newFixture(t, Config{CORSOrigins: []string{"http://allowed.example"}})
	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		t.Fatal("Dial() from foreign origin expected error")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://allowed.example"}})
	if err != nil {
		t.Fatalf("Dial() from allowed origin error = %v", err)
	}
	conn.Close()
}

func TestCORS(t *testing.T) {
	f := newFixture(t, Config{CORSOrigins: []string{"http://dashboard.local"}})

	req, _ := http.NewRequest(http.MethodGet, f.http.URL+"/stats", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://dashboard.local" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, Config{})
	f.publish("A")

	resp, body := get(t, f.http.URL+"/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var stats StatsResponse
	if err := json.Unmarshal([]byte(body), &stats); err != nil {
		t.Fatalf("decode /stats: %v\n%s", err, body)
	}
	if stats.Supplier.Published != 1 || stats.Health.LatestSeq != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestServe_ShutdownEndsStreams(t *testing.T) {
	supplier := framesupplier.New()
	srv := New(Config{PollInterval: 2 * time.Millisecond, ShutdownTimeout: 2 * time.Second},
		supplier, health.NewChecker("test", supplier, nil, 0))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/video_feed")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if n := len(supplier.Stats().Readers); n != 0 {
		t.Errorf("readers after shutdown = %d, want 0", n)
	}
}
