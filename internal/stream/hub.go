// Package stream serves the live event feed over websockets. Clients
// connecting to /ws receive every statistic event as a JSON envelope as
// the run produces them. The hub never blocks the simulation: when the
// broadcast buffer is full the event is dropped, not queued.
package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"marketsim/internal/stats"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// envelope is the wire format: the kind name plus the event itself.
type envelope struct {
	Kind  string      `json:"kind"`
	Event stats.Event `json:"event"`
}

// Hub fans simulation events out to connected websocket clients.
type Hub struct {
	log       *slog.Logger
	broadcast chan []byte
	done      chan struct{}

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub builds a hub with a bounded broadcast buffer.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:       log,
		broadcast: make(chan []byte, 1024),
		done:      make(chan struct{}),
		clients:   make(map[*websocket.Conn]bool),
	}
}

// Subscriber returns a bus handler that forwards events to the hub.
func (h *Hub) Subscriber() func(stats.Event) {
	return func(ev stats.Event) {
		msg, err := json.Marshal(envelope{Kind: ev.EventKind().String(), Event: ev})
		if err != nil {
			h.log.Warn("failed to marshal event", "err", err)
			return
		}
		select {
		case h.broadcast <- msg:
		default:
			// Slow consumers lose events rather than stalling the run.
		}
	}
}

// Run pumps broadcasts to clients until Stop. Call on its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop closes every client and ends Run.
func (h *Hub) Stop() { close(h.done) }

// Handler returns the websocket upgrade handler for /ws.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", "err", err)
			return
		}
		h.mu.Lock()
		h.clients[conn] = true
		h.mu.Unlock()
		h.log.Info("stream client connected", "remote", conn.RemoteAddr().String())
	})
}

// ListenAndServe serves the hub at addr until the listener fails.
func (h *Hub) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", h.Handler())
	h.log.Info("stream listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}
