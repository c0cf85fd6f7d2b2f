// Package statusserver exposes the fishing controller's status stream to a
// browser-based UI observer over WebSocket, the same register/unregister/
// broadcast hub shape the teacher's own WebSocketServer uses for its live
// run view.
package statusserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bailanluo/autofish/internal/fishing"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server is a read-only fishing.Publisher-compatible fanout: every Publish
// call is marshaled to JSON and broadcast to every connected WebSocket
// client. It is additive — the controller's in-process subscribe_status
// contract is the source of truth, this is just another subscriber.
type Server struct {
	logger *slog.Logger

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	currentMu sync.RWMutex
	current   fishing.Status

	httpServer *http.Server
}

// New builds a Server bound to addr. Call Run to start its broadcast loop
// and ListenAndServe to start accepting connections.
func New(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:     logger,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 1),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status/ws", s.handleWebSocket)
	mux.HandleFunc("/status", s.handleSnapshot)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// handleSnapshot serves the latest status as plain JSON, for clients that
// never open a WebSocket.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.currentMu.RLock()
	snapshot := s.current
	s.currentMu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}

// Publish implements fishing.Publisher: it records the snapshot and fans it
// out to every connected WebSocket client, never blocking on a slow one.
func (s *Server) Publish(status fishing.Status) {
	s.currentMu.Lock()
	s.current = status
	s.currentMu.Unlock()

	data, err := json.Marshal(status)
	if err != nil {
		s.logger.Error("statusserver: marshal status", slog.Any("error", err))
		return
	}
	select {
	case s.broadcast <- data:
	default:
		// broadcast already holds an undelivered update; replace it with
		// this newer one (drop-oldest) rather than block the controller.
		select {
		case <-s.broadcast:
		default:
		}
		select {
		case s.broadcast <- data:
		default:
		}
	}
}

// Run drives the register/unregister/broadcast hub loop until ctx is
// canceled.
func (s *Server) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-s.register:
			s.clients[c] = true
		case c := <-s.unregister:
			if _, ok := s.clients[c]; ok {
				delete(s.clients, c)
				close(c.send)
			}
		case message := <-s.broadcast:
			for c := range s.clients {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(s.clients, c)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("statusserver: upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	s.register <- c

	s.currentMu.RLock()
	snapshot := s.current
	s.currentMu.RUnlock()
	if seed, err := json.Marshal(snapshot); err == nil {
		c.send <- seed
	}

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for message := range c.send {
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)
		if err := w.Close(); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("statusserver: read error", slog.Any("error", err))
			}
			return
		}
	}
}

// ListenAndServe starts accepting HTTP/WebSocket connections; it blocks
// until Shutdown is called or the listener fails.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
