package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientQueue    = 32
	broadcastQueue = 256
)

var upgrader = &websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Hub fans events out to every connected websocket client.
// Clients that cannot keep up are disconnected instead of blocking the fleet.
type Hub struct {
	clients   map[*client]struct{}
	queue     chan []byte
	done      chan struct{}
	lastSum   uint64
	mu        sync.Mutex
	closeOnce sync.Once
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. Run must be started to deliver events.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		queue:   make(chan []byte, broadcastQueue),
		done:    make(chan struct{}),
	}
}

// Run delivers queued events until Close.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case msg := <-h.queue:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					log.Debug().Str("remote", c.conn.RemoteAddr().String()).Msg("Websocket client too slow, dropping")
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Close stops the hub and disconnects every client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues ev for every client. Snapshots identical to the previous one are skipped.
func (h *Hub) Publish(ev event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode websocket event")
		return
	}

	if ev.Type == eventSnapshot {
		sum := xxhash.Sum64(msg)
		h.mu.Lock()
		same := sum == h.lastSum
		h.lastSum = sum
		h.mu.Unlock()
		if same {
			return
		}
	}

	select {
	case h.queue <- msg:
	case <-h.done:
	default:
		log.Warn().Str("type", ev.Type).Msg("Websocket queue full, event dropped")
	}
}

// Serve upgrades the request and registers the client. initial is sent first.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial event) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	first, err := json.Marshal(initial)
	if err != nil {
		_ = conn.Close()
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientQueue)}
	c.send <- first

	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		_ = conn.Close()
		return
	default:
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Websocket client connected")

	go c.writePump()
	go c.readPump(h)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

// readPump discards client messages and detects disconnects.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
