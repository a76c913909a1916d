package server

import (
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/SolidHal/pwnagotchi-flipper/internal/supervisor"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPushInterval = time.Second
	wsWriteTimeout      = 10 * time.Second
	wsPingInterval      = 30 * time.Second
	wsReadLimit         = 512
)

func newUpgrader(origins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(origins, origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// streamStatus pushes the link status to a websocket client whenever it
// changes. Client frames are read only to notice the close.
func (s *Server) streamStatus(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Err(err).Msg("server.Server.streamStatus upgrade failed")
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(wsReadLimit)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var last supervisor.Status
	sent := false
	push := func() error {
		st := s.status.Status()
		if sent && st == last {
			return nil
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(st); err != nil {
			return err
		}
		last, sent = st, true
		return nil
	}
	if err := push(); err != nil {
		return
	}

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
				time.Now().Add(wsWriteTimeout))
			return
		case <-ticker.C:
			if err := push(); err != nil {
				log.Debug().Err(err).Msg("server.Server.streamStatus write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
