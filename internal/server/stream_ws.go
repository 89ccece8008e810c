package server

import (
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"kiro-console/internal/constants"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const pongWait = constants.WSPingInterval * 3

// newUpgrader accepts same-host origins and any listed in allowed.
func newUpgrader(allowed func() []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := neturl.Parse(origin)
			if err != nil {
				return false
			}
			if strings.EqualFold(u.Host, r.Host) {
				return true
			}
			if allowed == nil {
				return false
			}
			for _, a := range allowed() {
				a = strings.TrimRight(strings.TrimSpace(a), "/")
				if a == "*" || strings.EqualFold(a, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ServeWS upgrades the request and streams hub events until either side
// goes away.
func (s *Stream) ServeWS(upgrader websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			log.WithError(err).Debug("notification stream upgrade failed")
			return
		}

		client, err := s.add(conn)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "maximum connections reached"),
				time.Now().Add(constants.WSWriteTimeout))
			conn.Close()
			return
		}

		go s.writePump(client)

		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				break
			}
		}
		s.remove(client)
	}
}

func (s *Stream) writePump(c *streamClient) {
	ticker := time.NewTicker(constants.WSPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(constants.WSWriteTimeout))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WSWriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("notification stream write failed")
				s.remove(c)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(constants.WSWriteTimeout)); err != nil {
				s.remove(c)
				return
			}
		}
	}
}
