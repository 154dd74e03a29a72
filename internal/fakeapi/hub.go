package fakeapi

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Update is the stats_update message sent for every changed row.
type Update struct {
	Type    string  `json:"type"`
	Message string  `json:"message"`
	Model   string  `json:"model"`
	Action  string  `json:"action"`
	ID      *string `json:"id"`
}

// UpdateHub fans change notifications out to every connected dashboard.
type UpdateHub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan Update
	mu        sync.Mutex
	done      chan struct{}
	pubMu     sync.RWMutex
	closed    bool
	log       *logrus.Entry
}

func NewUpdateHub() *UpdateHub {
	hub := &UpdateHub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Update, 100),
		done:      make(chan struct{}),
		log:       logrus.WithField("component", "update-hub"),
	}
	go hub.run()
	return hub
}

func (h *UpdateHub) run() {
	defer close(h.done)
	for msg := range h.broadcast {
		h.mu.Lock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).WithField("conn_ptr", fmt.Sprintf("%p", conn)).Info("Client gone during broadcast, unregistering")
				delete(h.clients, conn)
				conn.Close()
			}
		}
		h.mu.Unlock()
	}
}

func (h *UpdateHub) register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	h.log.WithField("conn_ptr", fmt.Sprintf("%p", conn)).Info("Client registered")
}

func (h *UpdateHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[conn] {
		delete(h.clients, conn)
		h.log.WithField("conn_ptr", fmt.Sprintf("%p", conn)).Info("Client unregistered")
	}
}

// Clients returns the number of connected dashboards.
func (h *UpdateHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues an update; it is dropped when the queue is full.
func (h *UpdateHub) Publish(model, action, id string) {
	u := Update{Type: "stats_update", Message: model + " " + action, Model: model, Action: action}
	if id != "" {
		u.ID = &id
	}
	h.pubMu.RLock()
	defer h.pubMu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.broadcast <- u:
	default:
		h.log.WithField("model", model).Warn("Update broadcast channel full, dropping message")
	}
}

// Disconnect drops every client with the given close code.
func (h *UpdateHub) Disconnect(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		msg := websocket.FormatCloseMessage(code, "")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
		delete(h.clients, conn)
	}
}

// Close stops broadcasting and closes every connection.
func (h *UpdateHub) Close() {
	h.pubMu.Lock()
	if h.closed {
		h.pubMu.Unlock()
		return
	}
	h.closed = true
	close(h.broadcast)
	h.pubMu.Unlock()

	<-h.done
	h.Disconnect(websocket.CloseGoingAway)
}

// Serve upgrades the request and keeps the client registered until it
// goes away. Clients are not expected to send anything.
func (h *UpdateHub) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.register(conn)
	defer h.unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Info("Client closed the connection")
			} else {
				h.log.WithError(err).Debug("Client read failed")
			}
			return
		}
		h.log.Debug("Client sent unexpected message, ignoring")
	}
}
