package server

import (
	_ "embed"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/e7canasta/orion-relay/internal/health"
	"github.com/e7canasta/orion-relay/modules/framesupplier"
)

const headerFrameSeq = "X-Frame-Seq"

//go:embed web/index.html
var indexHTML []byte

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) handleSnapshot(c *gin.Context) {
	f := s.supplier.Latest()
	if f == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrNoFrame.Error()})
		return
	}
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header(headerFrameSeq, strconv.FormatUint(f.Seq, 10))
	c.Data(http.StatusOK, f.ContentType, f.Data)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
		"uptime": int64(s.checker.Uptime().Seconds()),
	})
}

func (s *Server) handleReadiness(c *gin.Context) {
	st := s.checker.Check()
	code := http.StatusOK
	if !st.Ready() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, st)
}

// StatsResponse is the /stats payload.
type StatsResponse struct {
	Health         health.Status               `json:"health"`
	Supplier       framesupplier.SupplierStats `json:"supplier"`
	ActiveSessions int64                       `json:"active_sessions"`
	SessionsServed uint64                      `json:"sessions_served"`
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		Health:         s.checker.Check(),
		Supplier:       s.supplier.Stats(),
		ActiveSessions: s.sessions.Load(),
		SessionsServed: s.served.Load(),
	})
}
