package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	streamsession "github.com/e7canasta/orion-relay/modules/stream-session"
)

const wsWriteTimeout = 10 * time.Second

func (s *Server) newSession(transport string) *streamsession.Session {
	return streamsession.New(s.supplier, streamsession.Config{
		ID:           transport + "-" + uuid.NewString(),
		PollInterval: s.cfg.PollInterval,
		Notify:       s.cfg.Notify,
	})
}

func (s *Server) track(sess *streamsession.Session, transport, remote string) func(err error) {
	s.sessions.Add(1)
	s.served.Add(1)
	start := time.Now()
	slog.Info("server: stream client connected",
		"session", sess.ID(),
		"transport", transport,
		"remote", remote,
		"active", s.sessions.Load(),
	)

	return func(err error) {
		active := s.sessions.Add(-1)
		attrs := []any{
			"session", sess.ID(),
			"transport", transport,
			"frames", sess.Emitted(),
			"duration", time.Since(start).Round(time.Millisecond),
			"active", active,
		}
		if err != nil {
			slog.Info("server: stream client dropped", append(attrs, "error", err)...)
			return
		}
		slog.Info("server: stream client disconnected", attrs...)
	}
}

// handleMJPEG streams multipart/x-mixed-replace until the client disconnects
// or a write fails.
func (s *Server) handleMJPEG(c *gin.Context) {
	sess := s.newSession("mjpeg")
	done := s.track(sess, "multipart", c.ClientIP())

	h := c.Writer.Header()
	h.Set("Content-Type", sess.ContentType())
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Connection", "close")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	err := sess.Run(c.Request.Context(), func(chunk streamsession.Chunk) error {
		if _, err := chunk.WriteTo(c.Writer); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	done(err)
}

// handleWS sends each frame payload as one binary message.
//
// Clients are not expected to send anything; a reader goroutine drains
// control frames and ends the session when the socket closes.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		slog.Warn("server: websocket upgrade failed", "remote", c.ClientIP(), "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sess := s.newSession("ws")
	done := s.track(sess, "websocket", c.ClientIP())

	err = sess.Run(ctx, func(chunk streamsession.Chunk) error {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			return err
		}
		return conn.WriteMessage(websocket.BinaryMessage, chunk.Payload)
	})
	done(err)

	if err == nil {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream ended")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
}
