// handlers/ws.go - Live quest events over websocket
package handlers

import (
	"log"
	"time"

	"questlock/middleware"
	"questlock/services"
	"questlock/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketUpgrade authenticates the ?token= query parameter and rejects
// anything that is not an upgrade request.
func WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return utils.JSONError(c, fiber.StatusUpgradeRequired, "", "WebSocket upgrade required")
	}
	if broadcaster == nil {
		return utils.JSONError(c, fiber.StatusServiceUnavailable, "", "Live events are not available")
	}

	userID, _, err := middleware.ParseToken(c.Query("token"))
	if err != nil {
		return utils.JSONError(c, fiber.StatusUnauthorized, "", "Invalid or expired token")
	}
	c.Locals("userId", userID)
	return c.Next()
}

// WebSocketHandler streams the user's events as {type, data, at} JSON until
// the client disconnects. Incoming messages are ignored.
func WebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userId").(uint)
		if !ok {
			conn.Close()
			return
		}

		sub := broadcaster.Subscribe(userID)
		log.Printf("🔌 WebSocket connected for user %d (%d subscribers)", userID, broadcaster.Subscribers(userID))
		defer func() {
			broadcaster.Unsubscribe(sub)
			conn.Close()
			log.Printf("🔌 WebSocket disconnected for user %d", userID)
		}()

		done := make(chan struct{})
		go readPump(conn, done)
		writePump(conn, sub, done)
	})
}

// readPump drains client frames so pongs and closes are processed.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, sub *services.Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("WebSocket write error for user %d: %v", sub.UserID, err)
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
