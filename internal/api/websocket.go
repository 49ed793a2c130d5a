package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"packtrack/internal/notify"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboard runs on the same host
	},
}

// handleEventStream upgrades the connection and streams notification
// events (material added, purchase recorded, insufficient stock, ...) to
// the dashboard until the client disconnects.
func (s *Server) handleEventStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	id, events := s.notifier.Subscribe()
	s.log.WithField("subscriber", id).Info("event stream opened")

	go s.writePump(conn, id, events)
	go s.readPump(conn, id)
}

// readPump drains client messages so pings are answered; the stream is
// one-way, incoming payloads are discarded.
func (s *Server) readPump(conn *websocket.Conn, id string) {
	defer func() {
		s.notifier.Unsubscribe(id)
		conn.Close()
	}()

	conn.SetReadLimit(4 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.WithField("subscriber", id).WithError(err).Warn("event stream error")
			}
			return
		}
	}
}

// writePump forwards notifier events to the connection and keeps it alive
// with pings.
func (s *Server) writePump(conn *websocket.Conn, id string, events <-chan notify.Event) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case evt, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				s.log.WithError(err).Error("event marshal failed")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
