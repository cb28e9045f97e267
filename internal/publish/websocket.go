// Package publish relays tracker events to overlay clients over
// WebSocket. The rendering layer is a separate process; it connects
// here and paints whatever snapshots arrive.
package publish

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/croverlay/croverlay/internal/events"
)

// Message is the wire format sent to overlay clients.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// clientSubscription tracks which event types a client wants.
// Clients receive everything until they send an explicit subscribe.
type clientSubscription struct {
	mu           sync.RWMutex
	types        map[string]bool
	subscribeAll bool
}

func newClientSubscription() *clientSubscription {
	return &clientSubscription{
		types:        make(map[string]bool),
		subscribeAll: true,
	}
}

func (cs *clientSubscription) subscribe(eventTypes []string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.subscribeAll && len(eventTypes) > 0 {
		cs.subscribeAll = false
	}
	for _, t := range eventTypes {
		cs.types[t] = true
	}
}

func (cs *clientSubscription) wants(eventType string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.subscribeAll || cs.types[eventType]
}

// Server broadcasts tracker events to connected overlay clients. It
// implements events.Observer, so registering it on the dispatcher is
// all the wiring needed.
type Server struct {
	addr      string
	clients   map[*websocket.Conn]*clientSubscription
	clientsMu sync.RWMutex
	broadcast chan Message
	upgrader  websocket.Upgrader
	server    *http.Server
	closeOnce sync.Once
}

// NewServer creates a WebSocket publish server listening on addr.
func NewServer(addr string) *Server {
	s := &Server{
		addr:      addr,
		clients:   make(map[*websocket.Conn]*clientSubscription),
		broadcast: make(chan Message, 100),
	}
	// Overlay clients run on the same machine.
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return s
}

// Start runs the server. Blocks until shutdown.
func (s *Server) Start() error {
	go s.handleBroadcasts()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("[Publish] WebSocket server starting on %s", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("websocket server: %w", err)
	}
	return nil
}

// Stop closes all client connections and shuts the server down.
func (s *Server) Stop() error {
	log.Println("[Publish] Stopping WebSocket server...")

	s.clientsMu.Lock()
	for client := range s.clients {
		if err := client.Close(); err != nil {
			log.Printf("[Publish] Error closing client connection: %v", err)
		}
	}
	s.clients = make(map[*websocket.Conn]*clientSubscription)
	s.clientsMu.Unlock()

	s.closeOnce.Do(func() { close(s.broadcast) })

	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// OnEvent queues a dispatched tracker event for broadcast.
func (s *Server) OnEvent(event events.Event) error {
	msg := Message{
		Type:      event.Type,
		Data:      event.Payload,
		Timestamp: event.Timestamp,
	}
	select {
	case s.broadcast <- msg:
	default:
		log.Printf("[Publish] Broadcast channel full, dropping event %s", event.Type)
	}
	return nil
}

// GetName returns the observer's name.
func (s *Server) GetName() string {
	return "WebSocketPublisher"
}

// ShouldHandle accepts every event type; per-client filtering happens
// at send time.
func (s *Server) ShouldHandle(eventType string) bool {
	return true
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleBroadcasts() {
	for msg := range s.broadcast {
		s.clientsMu.RLock()
		conns := make(map[*websocket.Conn]*clientSubscription, len(s.clients))
		for conn, sub := range s.clients {
			conns[conn] = sub
		}
		s.clientsMu.RUnlock()

		for conn, sub := range conns {
			if !sub.wants(msg.Type) {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("[Publish] Write error, dropping client: %v", err)
				s.removeClient(conn)
			}
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.clientsMu.Unlock()
	_ = conn.Close()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Publish] WebSocket upgrade error: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = newClientSubscription()
	s.clientsMu.Unlock()

	log.Printf("[Publish] Client connected (total: %d)", s.ClientCount())

	welcome := Message{
		Type:      "overlay:connected",
		Data:      map[string]interface{}{"message": "Connected to croverlay tracker"},
		Timestamp: time.Now(),
	}
	if err := conn.WriteJSON(welcome); err != nil {
		log.Printf("[Publish] Error sending welcome message: %v", err)
	}

	go s.handleClient(conn)
}

func (s *Server) handleClient(conn *websocket.Conn) {
	defer func() {
		s.removeClient(conn)
		log.Printf("[Publish] Client disconnected (total: %d)", s.ClientCount())
	}()

	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Publish] WebSocket error: %v", err)
			}
			return
		}

		msgType, ok := msg["type"].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "ping":
			pong := Message{Type: "pong", Timestamp: time.Now()}
			if err := conn.WriteJSON(pong); err != nil {
				log.Printf("[Publish] Error sending pong: %v", err)
				return
			}
		case "subscribe":
			s.clientsMu.RLock()
			sub := s.clients[conn]
			s.clientsMu.RUnlock()
			if sub == nil {
				continue
			}
			sub.subscribe(extractEventTypes(msg["events"]))
		}
	}
}

// extractEventTypes pulls a string slice out of a decoded JSON value.
func extractEventTypes(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	types := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			types = append(types, s)
		}
	}
	return types
}
