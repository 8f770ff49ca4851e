// Package gateway pushes periodic price cache snapshots to live WebSocket
// subscribers and to optional publish sinks.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marketpulse/internal/metrics"
	"marketpulse/internal/model"
)

// DefaultPushInterval is the snapshot cadence.
const DefaultPushInterval = 5 * time.Second

const sendBuffer = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:    1024,
	WriteBufferSize:   16 * 1024,
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub manages WebSocket subscribers and fans out the serialized cache.
// Delivery is push-only: a slow subscriber misses ticks, a dead one is
// removed, and neither affects the others.
type Hub struct {
	source model.SnapshotSource
	sinks  []model.Publisher

	mu      sync.RWMutex
	clients map[*Client]bool

	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewHub creates a hub broadcasting snapshots of source. Every payload is
// also handed to each sink.
func NewHub(source model.SnapshotSource, m *metrics.Metrics, log *slog.Logger, sinks ...model.Publisher) *Hub {
	return &Hub{
		source:  source,
		sinks:   sinks,
		clients: make(map[*Client]bool),
		metrics: m,
		log:     log.With("component", "gateway"),
	}
}

// Run broadcasts a snapshot every interval until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.log.Info("broadcast loop started", "interval", interval.String(), "sinks", len(h.sinks))
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.log.Info("broadcast loop stopped")
			return
		case <-ticker.C:
			h.Broadcast(ctx)
		}
	}
}

// Broadcast serializes the cache once and delivers it to every client and
// sink.
func (h *Hub) Broadcast(ctx context.Context) {
	payload, err := h.encode()
	if err != nil {
		h.log.Error("snapshot encode failed", "error", err)
		return
	}

	h.mu.RLock()
	for c := range h.clients {
		if c.enqueue(payload) {
			h.metrics.BroadcastBytes.Add(float64(len(payload)))
		} else {
			h.metrics.BroadcastDrops.Inc()
		}
	}
	n := len(h.clients)
	h.mu.RUnlock()

	for _, s := range h.sinks {
		if err := s.Publish(ctx, payload); err != nil {
			h.metrics.PublishFailures.Inc()
			h.log.Warn("snapshot publish failed", "error", err)
		}
	}
	h.log.Debug("snapshot broadcast", "clients", n, "bytes", len(payload))
}

func (h *Hub) encode() ([]byte, error) {
	return json.Marshal(h.source.Snapshot())
}

// ServeWS upgrades the request and registers the connection as a subscriber.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.EnableWriteCompression(true)

	c := newClient(h, conn, sendBuffer)
	h.Register(c)
	go c.writePump()
	go c.readPump()
}

// Register adds c and queues the current snapshot for it.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.Subscribers.Set(float64(n))
	h.log.Info("ws client connected", "clients", n)

	if payload, err := h.encode(); err == nil {
		c.enqueue(payload)
	}
}

// RemoveClient unregisters c and closes its send queue. Safe to call more
// than once.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	c.close()
	h.metrics.Subscribers.Set(float64(n))
	h.log.Info("ws client disconnected", "clients", n)
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
	h.metrics.Subscribers.Set(0)
}
