package websocket

import (
	"context"

	"github.com/anjiri1684/course_certificates/logger"
	"github.com/google/uuid"
)

// Conn is the part of a websocket connection the hub needs.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	UserID uuid.UUID
	Conn   Conn
}

type envelope struct {
	userID uuid.UUID
	event  interface{}
}

// Hub tracks one live connection per user. All state is owned by Run.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	publish    chan envelope
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan envelope, 256),
		log:        log.With("component", "websocket.Hub"),
	}
}

func (h *Hub) Register(c *Client)   { h.register <- c }
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Publish queues an event for userID. It never blocks; when the queue is
// full the event is dropped.
func (h *Hub) Publish(userID uuid.UUID, event interface{}) {
	select {
	case h.publish <- envelope{userID: userID, event: event}:
	default:
		h.log.Warn("realtime queue full, dropping event", "user_id", userID)
	}
}

func (h *Hub) Run(ctx context.Context) {
	clients := make(map[uuid.UUID]Conn)
	for {
		select {
		case <-ctx.Done():
			for _, conn := range clients {
				_ = conn.Close()
			}
			return
		case client := <-h.register:
			if old, ok := clients[client.UserID]; ok && old != client.Conn {
				_ = old.Close()
			}
			clients[client.UserID] = client.Conn
			h.log.Debug("client registered", "user_id", client.UserID)
		case client := <-h.unregister:
			if conn, ok := clients[client.UserID]; ok && conn == client.Conn {
				delete(clients, client.UserID)
				h.log.Debug("client unregistered", "user_id", client.UserID)
			}
		case msg := <-h.publish:
			conn, ok := clients[msg.userID]
			if !ok {
				continue
			}
			if err := conn.WriteJSON(msg.event); err != nil {
				h.log.Warn("error sending event to client", "user_id", msg.userID, "error", err)
				_ = conn.Close()
				delete(clients, msg.userID)
			}
		}
	}
}
