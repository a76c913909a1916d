// Package server exposes the link status, metrics and a snapshot intake
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/SolidHal/pwnagotchi-flipper/internal/observability"
	"github.com/SolidHal/pwnagotchi-flipper/internal/supervisor"
	"github.com/SolidHal/pwnagotchi-flipper/internal/ui"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

var ErrAddrRequired = errors.New("server: listen address is required")

// StatusProvider reports the current link status.
type StatusProvider interface {
	Status() supervisor.Status
}

type Config struct {
	Addr        string
	CORSOrigins []string
	// PushInterval is how often /ws/status checks for a status change.
	PushInterval time.Duration
}

type Server struct {
	addr    string
	status  StatusProvider
	mailbox *ui.Mailbox
	router  *gin.Engine
	started time.Time

	upgrader     websocket.Upgrader
	pushInterval time.Duration
	closing      chan struct{}
	closeOnce    sync.Once
}

func New(cfg Config, status StatusProvider, mailbox *ui.Mailbox) (*Server, error) {
	if cfg.Addr == "" {
		return nil, ErrAddrRequired
	}
	if status == nil || mailbox == nil {
		return nil, errors.New("server: status provider and mailbox are required")
	}

	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		addr:    cfg.Addr,
		status:  status,
		mailbox: mailbox,
		router:  r,
		started: time.Now(),

		pushInterval: cfg.PushInterval,
		closing:      make(chan struct{}),
	}
	if s.pushInterval <= 0 {
		s.pushInterval = DefaultPushInterval
	}
	s.upgrader = newUpgrader(cfg.CORSOrigins)
	s.registerRoutes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx ends, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("server.Server.Run listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen %s: %w", s.addr, err)
	case <-ctx.Done():
	}
	s.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	log.Info().Msg("server.Server.Run stopped")
	return nil
}

// Close ends open status streams. Run calls it on shutdown; http.Server
// does not track hijacked connections.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
}
