package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"runk/internal/protocol"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The listener is loopback-only; origin checks add nothing here.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// WSManager handles WebSocket connections and broadcasting
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.RWMutex
	broadcast  chan protocol.Message
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	shutdown   chan struct{}
	stopOnce   sync.Once
}

// WebSocketClient represents one connected status listener
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan protocol.Message, 16),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	for {
		select {
		case <-m.shutdown:
			return

		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			m.clientsMu.Unlock()
			log.Printf("WS: client connected from %s (%d total)", client.ip, m.clientCount())

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
			}
			m.clientsMu.Unlock()
			log.Printf("WS: client disconnected from %s (%d total)", client.ip, m.clientCount())

		case message := <-m.broadcast:
			m.broadcastMessage(message)
		}
	}
}

// stop ends the hub loop. Idempotent.
func (m *WSManager) stop() {
	m.stopOnce.Do(func() { close(m.shutdown) })
}

func (m *WSManager) clientCount() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

func (m *WSManager) broadcastMessage(msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WS: marshal failed: %v", err)
		return
	}

	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	for client := range m.clients {
		select {
		case client.send <- data:
		default:
			// slow client; drop the message rather than block the hub
		}
	}
}

// handleWebSocket upgrades GET /ws and streams status transitions.
func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: upgrade failed: %v", err)
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 16),
		ip:      r.RemoteAddr,
	}
	m.register <- client

	go client.writePump()
	go client.readPump()

	// Greet the new client with the current status so it does not have to
	// wait for the next transition.
	m.BroadcastStatus(m.server.engine.Status(), m.server.engine.RunID())
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.manager.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// The stream is one-way; clients only need to stay connected.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// BroadcastStatus publishes an engine status transition to all clients.
func (m *WSManager) BroadcastStatus(status, runID string) {
	msg := protocol.Message{
		Type: protocol.TypeStatus,
		Payload: protocol.StatusPayload{
			Status:    status,
			RunID:     runID,
			Timestamp: time.Now().UnixMilli(),
		},
	}

	select {
	case m.broadcast <- msg:
	default:
		log.Printf("WS: broadcast queue full, dropping status %q", status)
	}
}
