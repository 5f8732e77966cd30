package handlers

import (
	"github.com/anjiri1684/course_certificates/logger"
	"github.com/anjiri1684/course_certificates/middleware"
	"github.com/anjiri1684/course_certificates/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type RealtimeHandler struct {
	hub    *websocket.Hub
	secret string
	log    *logger.Logger
}

func NewRealtimeHandler(hub *websocket.Hub, secret string, log *logger.Logger) *RealtimeHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RealtimeHandler{hub: hub, secret: secret, log: log.With("handler", "realtime")}
}

type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ServeWs expects {"type":"auth","token":"..."} as the first frame, then
// keeps the connection registered until the client goes away.
func (h *RealtimeHandler) ServeWs(c *websocketcontrib.Conn) {
	var msg authMessage
	if err := c.ReadJSON(&msg); err != nil || msg.Type != "auth" {
		h.log.Debug("websocket auth failed: invalid or missing auth message", "error", err)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
		_ = c.Close()
		return
	}

	userID, _, err := middleware.ParseToken(h.secret, msg.Token)
	if err != nil {
		_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
		_ = c.Close()
		return
	}

	client := &websocket.Client{UserID: userID, Conn: c}
	h.hub.Register(client)
	defer func() {
		h.hub.Unregister(client)
		_ = c.Close()
	}()
	_ = c.WriteJSON(fiber.Map{"type": "ready"})

	// Nothing is expected from the client after auth; reading only detects
	// the close.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if !websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure, websocketcontrib.CloseAbnormalClosure) {
				h.log.Debug("websocket read error", "user_id", userID, "error", err)
			}
			return
		}
	}
}
