package server

import (
	"net/http"
	"time"

	"github.com/SolidHal/pwnagotchi-flipper/internal/supervisor"
	"github.com/SolidHal/pwnagotchi-flipper/internal/ui"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		status := s.status.Status()
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.started).Round(time.Second).String(),
			"service":   "pwnlink",
			"connected": status.Phase == supervisor.PhaseConnected,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.status.Status())
	})

	s.router.GET("/ws/status", s.streamStatus)

	s.router.GET("/ui", func(c *gin.Context) {
		snap, _, ok := s.mailbox.Latest()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot published"})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	s.router.POST("/ui", func(c *gin.Context) {
		var snap ui.Snapshot
		if err := c.ShouldBindJSON(&snap); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.mailbox.Publish(snap)
		version := s.mailbox.Version()
		log.Debug().Uint64("version", version).Msg("server.Server.postUI published")
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "version": version})
	})
}
