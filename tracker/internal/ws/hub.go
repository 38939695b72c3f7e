package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gradtrack/gradtrack/tracker/internal/api"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10 // must stay below pongWait
	maxInboundSize = 512
	outboxDepth    = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checks belong to the reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Source builds the payload broadcast to clients. *api.Handler implements it.
type Source interface {
	Snapshot() api.SnapshotResponse
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
}

// Hub broadcasts board snapshots to WebSocket clients. The client set is
// owned by the Run goroutine; ServeHTTP hands connections to it over
// channels.
type Hub struct {
	src      Source
	interval time.Duration

	join    chan *client
	leave   chan *client
	notify  chan struct{}
	stopped chan struct{} // closed when Run returns

	connected atomic.Int64
}

type client struct {
	conn *websocket.Conn
	out  chan []byte
}

// New creates a Hub that reads from src and broadcasts every interval.
func New(src Source, interval time.Duration) *Hub {
	return &Hub{
		src:      src,
		interval: interval,
		join:     make(chan *client),
		leave:    make(chan *client),
		notify:   make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
}

// Run owns the client set. It broadcasts on every tick and after every
// Notify, and blocks until ctx is cancelled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	clients := make(map[*client]bool)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for c := range clients {
				close(c.out)
			}
			h.connected.Store(0)
			return

		case c := <-h.join:
			clients[c] = true
			h.connected.Store(int64(len(clients)))
			slog.Debug("ws: client connected", "remote", c.conn.RemoteAddr().String(), "clients", len(clients))

		case c := <-h.leave:
			if clients[c] {
				delete(clients, c)
				close(c.out)
			}
			h.connected.Store(int64(len(clients)))

		case <-ticker.C:
			h.fanOut(clients)

		case <-h.notify:
			h.fanOut(clients)
		}
	}
}

// Notify requests a broadcast without waiting for the next tick. Calls made
// while one is already pending collapse into it.
func (h *Hub) Notify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int { return int(h.connected.Load()) }

// ServeHTTP upgrades the request, queues the current snapshot for the new
// client and serves it until the connection closes or the hub stops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade has replied with an HTTP error
	}

	c := &client{conn: conn, out: make(chan []byte, outboxDepth)}
	if msg, err := h.encode(); err == nil {
		c.out <- msg
	}

	select {
	case h.join <- c:
	case <-h.stopped:
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump()

	select {
	case h.leave <- c:
	case <-h.stopped:
	}
}

// fanOut sends the current snapshot to every client. A client whose outbox
// is full is dropped.
func (h *Hub) fanOut(clients map[*client]bool) {
	if len(clients) == 0 {
		return
	}
	msg, err := h.encode()
	if err != nil {
		slog.Error("ws: encode snapshot", "err", err)
		return
	}
	for c := range clients {
		select {
		case c.out <- msg:
		default:
			slog.Warn("ws: dropping slow client", "remote", c.conn.RemoteAddr().String())
			delete(clients, c)
			close(c.out)
		}
	}
	h.connected.Store(int64(len(clients)))
}

func (h *Hub) encode() ([]byte, error) {
	return json.Marshal(Message{Event: "snapshot", Data: h.src.Snapshot()})
}

// writePump is the only writer on the connection. It exits when the outbox
// is closed or a write fails.
func (c *client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		var (
			kind = websocket.TextMessage
			data []byte
		)
		select {
		case msg, open := <-c.out:
			if !open {
				kind = websocket.CloseMessage
			}
			data = msg
		case <-ping.C:
			kind = websocket.PingMessage
		}

		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
		if err := c.conn.WriteMessage(kind, data); err != nil || kind == websocket.CloseMessage {
			return
		}
	}
}

// readPump discards inbound frames so pongs and close frames are processed.
// It returns once the peer goes away.
func (c *client) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxInboundSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}
