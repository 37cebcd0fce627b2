package web

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lcr-sec/dualstrike/internal/core/services/coordinator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Same-origin requests carry no Origin header; the API binds to
		// loopback by default.
		return r.Header.Get("Origin") == "" ||
			r.Header.Get("Origin") == "http://"+r.Host
	},
}

// WSMessage is the envelope for status stream messages.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WSManager pushes attack status snapshots to connected clients once per
// second.
type WSManager struct {
	coordinator *coordinator.Coordinator

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewWSManager(co *coordinator.Coordinator) *WSManager {
	return &WSManager{
		coordinator: co,
		clients:     make(map[*websocket.Conn]struct{}),
	}
}

// Start launches the broadcast loop; it stops when ctx is cancelled.
func (m *WSManager) Start(ctx context.Context) {
	go m.broadcastLoop(ctx)
}

// HandleWebSocket upgrades the connection and registers the client.
func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WEB] WebSocket upgrade failed: %v", err)
		return
	}

	m.mu.Lock()
	m.clients[conn] = struct{}{}
	m.mu.Unlock()

	// Drain reads so pings and close frames are processed; drop the client
	// when the connection dies.
	go func() {
		defer m.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (m *WSManager) drop(conn *websocket.Conn) {
	m.mu.Lock()
	if _, ok := m.clients[conn]; ok {
		delete(m.clients, conn)
		conn.Close()
	}
	m.mu.Unlock()
}

func (m *WSManager) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			m.broadcastStatus()
		}
	}
}

func (m *WSManager) broadcastStatus() {
	var msg WSMessage
	if session, ok := m.coordinator.ActiveSession(); ok {
		msg = WSMessage{Type: "attack_status", Payload: session}
	} else {
		msg = WSMessage{Type: "idle", Payload: nil}
	}

	m.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(m.clients))
	for conn := range m.clients {
		conns = append(conns, conn)
	}
	m.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			m.drop(conn)
		}
	}
}

func (m *WSManager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		conn.Close()
		delete(m.clients, conn)
	}
}
