package main

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/e7canasta/orion-relay/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, config.LogConfig{Level: "info", Format: "json"}))
	logger.Info("server: listening", "addr", ":8080")

	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"addr":":8080"`) {
		t.Errorf("json output = %q", buf.String())
	}
}

func TestBuildSource(t *testing.T) {
	cfg := config.Default()
	src, err := buildSource(cfg.Camera)
	if err != nil || src.Name() != "synthetic" {
		t.Fatalf("buildSource(synthetic) = %v, %v", src, err)
	}

	cam := cfg.Camera
	cam.Source = config.SourceMJPEG
	cam.URL = "http://camera.local/video.mjpg"
	if src, err := buildSource(cam); err != nil || src.Name() != "mjpeg" {
		t.Errorf("buildSource(mjpeg) = %v, %v", src, err)
	}

	cam.Source = "usb"
	if _, err := buildSource(cam); err == nil {
		t.Error("buildSource(usb) expected error")
	}
}

func TestRunProbe_Synthetic(t *testing.T) {
	cfg := config.Default()
	dir := filepath.Join(t.TempDir(), "frames")

	var out bytes.Buffer
	err := runProbe(context.Background(), &out, cfg, &probeOptions{
		duration:  500 * time.Millisecond,
		outputDir: dir,
		maxFrames: 3,
	})
	if err != nil {
		t.Fatalf("runProbe() error = %v\n%s", err, out.String())
	}

	if !strings.Contains(out.String(), "Warmup Complete") {
		t.Errorf("output missing warm-up summary:\n%s", out.String())
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if len(files) != 3 {
		t.Fatalf("saved %d frames, want 3", len(files))
	}
	if data, err := os.ReadFile(files[0]); err != nil || len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Errorf("saved frame is not a JPEG")
	}
}

func TestRunServe_BadTelemetryConfigLeavesNothingRunning(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	cfg := config.Default()
	cfg.HTTP.Addr = addr
	cfg.MQTT.Broker = "tcp://127.0.0.1:1"
	cfg.MQTT.Encoding = "xml"

	done := make(chan error, 1)
	go func() { done <- runServe(context.Background(), cfg) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("runServe() expected error for unknown telemetry encoding")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServe() did not return")
	}

	// The HTTP server never started, so the port is still free.
	time.Sleep(50 * time.Millisecond)
	l, err = net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("port %s still in use after failed startup: %v", addr, err)
	}
	l.Close()
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "orion-relay "+version) {
		t.Errorf("version output = %q", out.String())
	}
}
