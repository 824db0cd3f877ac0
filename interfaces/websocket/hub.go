// Package websocket streams graph snapshots to connected canvases.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dipan99/mindmapper/domain/core/aggregates"
)

// MessageTypeGraphSnapshot is the only message type pushed to clients
const MessageTypeGraphSnapshot = "GRAPH_SNAPSHOT"

// Message is the envelope written to every client
type Message struct {
	Type      string                   `json:"type"`
	Timestamp int64                    `json:"timestamp"`
	Data      aggregates.GraphSnapshot `json:"data"`
}

// SnapshotSource returns the current graph
type SnapshotSource func() aggregates.GraphSnapshot

// HubMetrics tracks WebSocket metrics
type HubMetrics struct {
	ActiveConnections int64 `json:"activeConnections"`
	MessagesSent      int64 `json:"messagesSent"`
	MessagesDropped   int64 `json:"messagesDropped"`
}

// Hub fans graph snapshots out to clients. It is a graph observer; a slow
// client only ever misses intermediate snapshots, never the latest one.
type Hub struct {
	source     SnapshotSource
	sendBuffer int
	logger     *zap.Logger

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.Mutex
	pending []byte

	active  atomic.Int64
	sent    atomic.Int64
	dropped atomic.Int64
}

var _ aggregates.Observer = (*Hub)(nil)

// NewHub creates a hub. sendBuffer bounds each client's outbound queue.
func NewHub(source SnapshotSource, sendBuffer int, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sendBuffer < 1 {
		sendBuffer = 16
	}
	return &Hub{
		source:     source,
		sendBuffer: sendBuffer,
		logger:     logger,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client, 100),
		broadcast:  make(chan []byte, 1),
		done:       make(chan struct{}),
	}
}

// OnGraphChanged implements aggregates.Observer. It never blocks the graph.
func (h *Hub) OnGraphChanged(snapshot aggregates.GraphSnapshot) {
	data, err := encode(snapshot)
	if err != nil {
		h.logger.Error("Failed to marshal snapshot", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.pending = data
	h.mu.Unlock()

	select {
	case h.broadcast <- nil:
	default:
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down", zap.Int("clients", len(h.clients)))
			for client := range h.clients {
				h.remove(client)
			}
			return nil

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.active.Add(1)
			h.logger.Info("Client registered", zap.String("connectionID", client.id))
			if h.source != nil {
				if data, err := encode(h.source()); err == nil {
					h.deliver(client, data)
				}
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				h.logger.Info("Client unregistered", zap.String("connectionID", client.id))
			}

		case <-h.broadcast:
			h.mu.Lock()
			data := h.pending
			h.pending = nil
			h.mu.Unlock()
			if data == nil {
				continue
			}
			for client := range h.clients {
				h.deliver(client, data)
			}
		}
	}
}

// Register adds a client. It reports false once the hub has stopped. A true
// result means the event loop owns the client and closes its send channel
// on shutdown.
func (h *Hub) Register(client *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Metrics returns a copy of the hub counters
func (h *Hub) Metrics() HubMetrics {
	return HubMetrics{
		ActiveConnections: h.active.Load(),
		MessagesSent:      h.sent.Load(),
		MessagesDropped:   h.dropped.Load(),
	}
}

// deliver queues data for client, discarding the client's oldest queued
// snapshot when its buffer is full
func (h *Hub) deliver(client *Client, data []byte) {
	for {
		select {
		case client.send <- data:
			h.sent.Add(1)
			return
		default:
		}
		select {
		case <-client.send:
			h.dropped.Add(1)
		default:
		}
	}
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.active.Add(-1)
}

func encode(snapshot aggregates.GraphSnapshot) ([]byte, error) {
	return json.Marshal(Message{
		Type:      MessageTypeGraphSnapshot,
		Timestamp: time.Now().Unix(),
		Data:      snapshot,
	})
}
