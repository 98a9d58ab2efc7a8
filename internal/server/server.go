// Package server is the HTTP transport of the relay.
//
// Every streaming connection (multipart or websocket) owns one
// streamsession.Session reading from the shared frame supplier; connections
// never share state and a failing socket only ends its own session.
//
// Routes:
//
//	GET /               embedded viewer page
//	GET /video_feed     multipart/x-mixed-replace MJPEG stream
//	GET /stream.mjpg    same as /video_feed
//	GET /ws             websocket, one binary message per frame
//	GET /snapshot.jpg   latest frame, 503 before the first one
//	GET /health         liveness
//	GET /readiness      503 until frames flow or when the latest frame is stale
//	GET /stats          supplier, ingest and session counters
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/e7canasta/orion-relay/internal/health"
	"github.com/e7canasta/orion-relay/modules/framesupplier"
)

// ErrNoFrame is reported by /snapshot.jpg before the first publish.
var ErrNoFrame = errors.New("server: no frame available yet")

// Config contains transport settings.
type Config struct {
	Addr            string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
	DisableWS       bool

	// PollInterval and Notify configure every stream session.
	PollInterval time.Duration
	Notify       bool
}

// Server serves the relay routes over one gin engine.
type Server struct {
	cfg      Config
	supplier framesupplier.Supplier
	checker  *health.Checker
	engine   *gin.Engine
	upgrader websocket.Upgrader

	sessions atomic.Int64 // active streaming connections
	served   atomic.Uint64
}

// New builds the gin engine and registers the routes.
func New(cfg Config, supplier framesupplier.Supplier, checker *health.Checker) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:      cfg,
		supplier: supplier,
		checker:  checker,
		engine:   gin.New(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.engine.Use(gin.Recovery(), requestLogger())
	if len(cfg.CORSOrigins) > 0 {
		s.engine.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	}

	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/video_feed", s.handleMJPEG)
	s.engine.GET("/stream.mjpg", s.handleMJPEG)
	if !cfg.DisableWS {
		s.engine.GET("/ws", s.handleWS)
	}
	s.engine.GET("/snapshot.jpg", s.handleSnapshot)
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/readiness", s.handleReadiness)
	s.engine.GET("/stats", s.handleStats)

	return s
}

// Handler returns the HTTP handler (used by tests and embedding).
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ActiveSessions returns the number of open streaming connections.
func (s *Server) ActiveSessions() int64 {
	return s.sessions.Load()
}

// Run listens on cfg.Addr until ctx is cancelled, then shuts down gracefully.
//
// Request contexts derive from ctx, so cancelling it also ends every open
// stream; Shutdown then only waits for handlers to return.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      0, // streams are long-lived
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	slog.Info("server: listening",
		"addr", ln.Addr().String(),
		"websocket", !s.cfg.DisableWS,
		"poll_interval", s.cfg.PollInterval,
		"notify", s.cfg.Notify,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	slog.Info("server: shutting down", "active_sessions", s.sessions.Load())
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		return fmt.Errorf("server: shutdown: %w", err)
	}
	slog.Info("server: stopped", "sessions_served", s.served.Load())
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	// Same-origin pages (the embedded viewer) are always allowed.
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", headerFrameSeq},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// requestLogger logs finished requests. Streaming requests log when the
// client disconnects, so duration is the session length.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("server: request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"duration", time.Since(start),
			"remote", c.ClientIP(),
		)
	}
}
