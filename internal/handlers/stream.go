package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/hostpulse/hostpulse/internal/hub"
)

const (
	pingInterval = 4 * time.Second
	pongWait     = 10 * time.Second
	writeWait    = 5 * time.Second
)

type StreamHandler struct {
	hub *hub.Hub
	log *slog.Logger
}

func NewStreamHandler(h *hub.Hub, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{hub: h, log: logger}
}

// UpgradeCheck is middleware that checks if the request is a websocket upgrade
func (h *StreamHandler) UpgradeCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// HandleStream serves one live status stream. The subscription queues a
// full snapshot first, then every broadcast until the client disconnects
// or stops answering pings.
func (h *StreamHandler) HandleStream() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		sub := h.hub.Subscribe()
		defer sub.Close()

		c.SetReadDeadline(time.Now().Add(pongWait))
		c.SetPongHandler(func(string) error {
			c.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		// Read pump: discards client frames, drives pong handling, and
		// signals disconnect.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		pinger := time.NewTicker(pingInterval)
		defer pinger.Stop()

		for {
			select {
			case msg, ok := <-sub.C():
				if !ok {
					return
				}
				c.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.WriteJSON(msg); err != nil {
					h.log.Debug("Stream write failed", "id", sub.ID, "error", err)
					return
				}
			case <-pinger.C:
				c.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-gone:
				return
			}
		}
	})
}
