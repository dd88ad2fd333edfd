package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"vpnrotator/internal/api/dto"
	"vpnrotator/internal/rotation"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsSendBuffer   = 4
)

type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type snapshotSource interface {
	Snapshot() rotation.Snapshot
	Subscribe() (<-chan rotation.Snapshot, func())
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans controller snapshots out to websocket clients. A client that falls
// behind skips intermediate states.
type Hub struct {
	source     snapshotSource
	clients    map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
}

func NewHub(source snapshotSource) *Hub {
	return &Hub{
		source:     source,
		clients:    make(map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	updates, cancel := h.source.Subscribe()
	defer cancel()
	defer func() {
		close(h.done)
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			if msg, err := encodeState(h.source.Snapshot()); err == nil {
				c.enqueue(msg)
			}
			log.Debug("WebSocket client registered", "remote_addr", c.conn.RemoteAddr().String(), "clients", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				log.Debug("WebSocket client unregistered", "remote_addr", c.conn.RemoteAddr().String())
			}
		case snap, ok := <-updates:
			if !ok {
				return
			}
			msg, err := encodeState(snap)
			if err != nil {
				log.Error("Hub: failed to marshal state", "error", err)
				continue
			}
			for c := range h.clients {
				c.enqueue(msg)
			}
		}
	}
}

func encodeState(snap rotation.Snapshot) ([]byte, error) {
	return json.Marshal(WebSocketMessage{Type: "state", Data: dto.NewConnectionStatus(snap)})
}

func (c *wsClient) enqueue(msg []byte) {
	for {
		select {
		case c.send <- msg:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade websocket", "error", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go h.readPump(c)
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Warn("Error writing to websocket client", "remote_addr", c.conn.RemoteAddr().String(), "error", err)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump only exists to notice when the peer goes away.
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("Unexpected websocket close error", "error", err)
			}
			return
		}
	}
}
