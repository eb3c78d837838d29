package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/draftpace/draftpace/internal/api"
	"github.com/draftpace/draftpace/internal/store"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10 // must stay below pongWait

	// Dashboards only send control frames.
	maxInboundBytes = 512
)

// Event names carried in Message.Event.
const (
	EventOutput  = "output"
	EventWaiting = "waiting"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins; apply CORS at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope of every frame. Data is null while Event is
// "waiting".
type Message struct {
	Event string              `json:"event"`
	Data  *api.OutputResponse `json:"data"`
}

// Hub streams the store's latest Output to connected dashboards. Each tick it
// renders one frame and offers it to every client.
type Hub struct {
	store    *store.Store
	interval time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
}

// New creates a Hub that reads from st and renders a frame every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
}

// Run renders and fans out frames until ctx is cancelled, then disconnects
// every client.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.broadcast()
		}
	}
}

// ServeHTTP upgrades the request and streams frames until the client goes
// away. The current frame is offered before the client is registered, so it
// is always the first one written.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := newClient(conn)
	if frame, err := h.frame(); err == nil {
		c.offer(frame)
	}
	h.register(c)
	defer h.unregister(c)

	go c.writeLoop()
	c.readLoop()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Debug("ws: dashboard connected", "remote", c.conn.RemoteAddr().String())
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.stop()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.stop()
	}
}

// broadcast offers the current frame to a snapshot of the clients. Offering
// never blocks, so it runs outside the lock.
func (h *Hub) broadcast() {
	frame, err := h.frame()
	if err != nil {
		slog.Warn("ws: encode frame", "error", err)
		return
	}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.offer(frame)
	}
}

func (h *Hub) frame() ([]byte, error) {
	msg := Message{Event: EventWaiting}
	if resp, ok := api.BuildOutput(h.store); ok {
		msg.Event = EventOutput
		msg.Data = &resp
	}
	return json.Marshal(msg)
}

// client is one dashboard connection. pending holds at most one unwritten
// frame; a newer Output supersedes it, so a slow dashboard skips ahead
// instead of replaying old recommendations.
type client struct {
	conn    *websocket.Conn
	pending chan []byte
	done    chan struct{}
	once    sync.Once

	// last is the most recent frame offered. Only the goroutine currently
	// offering (ServeHTTP before register, then Run) touches it.
	last []byte
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:    conn,
		pending: make(chan []byte, 1),
		done:    make(chan struct{}),
	}
}

// offer queues frame for writing unless it repeats the previous one.
func (c *client) offer(frame []byte) {
	if c.last != nil && bytes.Equal(frame, c.last) {
		return
	}
	c.last = frame
	for {
		select {
		case c.pending <- frame:
			return
		default:
		}
		// Drop the superseded frame; the writer may have taken it already.
		select {
		case <-c.pending:
		default:
		}
	}
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// writeLoop writes pending frames and keepalive pings until the client is
// stopped or a write fails.
func (c *client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			bye := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			c.write(websocket.CloseMessage, bye) //nolint:errcheck
			return
		case frame := <-c.pending:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				slog.Debug("ws: write failed", "remote", c.conn.RemoteAddr().String(), "error", err)
				return
			}
		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(kind int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
	return c.conn.WriteMessage(kind, data)
}

// readLoop discards inbound frames so pongs and close frames are processed,
// and returns once the connection is gone.
func (c *client) readLoop() {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxInboundBytes)
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
