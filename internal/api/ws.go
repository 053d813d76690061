package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"irrigation-control/internal/logging"
	"irrigation-control/internal/models"
)

// Hub manages WebSocket connections from supervisory UI sessions and
// broadcasts accepted state changes to all of them. Implements
// engine.Broadcaster.
type Hub struct {
	connections map[*websocket.Conn]bool
	mutex       sync.Mutex
	logger      *logging.Logger
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]bool),
		logger:      logger,
	}
}

func (h *Hub) AddConnection(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.connections[conn] = true
	h.logger.Infof("WebSocket connected, %d active", len(h.connections))
}

func (h *Hub) RemoveConnection(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.connections, conn)
	h.logger.Infof("WebSocket disconnected, %d active", len(h.connections))
}

// Publish fans an event out to every connected client. A failed write
// drops that connection; the UI reconnects and re-reads state.
func (h *Hub) Publish(ev models.Event) {
	message, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorf("Marshal event failed: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.connections {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Warnf("WebSocket write failed, dropping connection: %v", err)
			conn.Close()
			delete(h.connections, conn)
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and keeps the connection registered
// until the client goes away.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	h.AddConnection(conn)

	go func() {
		defer func() {
			h.RemoveConnection(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
