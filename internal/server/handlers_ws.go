package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/portpulse/portpulse/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // browser dashboards connect from arbitrary origins
	},
}

// maxInboundMessageSize bounds a single inbound frame. Client messages are
// small control frames; anything larger is abuse.
const maxInboundMessageSize = 4096

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	allowed, reason := s.limits.Acquire(ip)
	if !allowed {
		metrics.ConnectionsRejectedTotal.WithLabelValues(string(reason)).Inc()
		slog.Warn("Connection rejected", "ip", ip, "reason", string(reason))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "connection limit reached, try again later",
		})
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade websocket: %w", err)
	}

	conn.SetReadLimit(maxInboundMessageSize)

	client := s.hub.Register(conn)
	defer s.hub.Unregister(client)

	// Read pump. Blocks until the connection dies; the write pump lives on
	// the client and is owned by the hub.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if !client.Allow() {
			s.hub.RateLimited(client)
			continue
		}
		s.hub.Inbound(client, data)
	}

	return nil
}
