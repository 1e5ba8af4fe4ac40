package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"botrelay/internal/metrics"
	"botrelay/internal/microservices/broadcast"
	"botrelay/internal/microservices/rpc"
)

// Hub relays broadcast events to every connected websocket client.
// Each connection runs its own read and write goroutines, and they all talk
// to the hub through channels, so the client set is only touched by Run.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	clients map[*Client]struct{}
	count   atomic.Int64

	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		logger:     logger,
		metrics:    m,
	}
}

// Run owns the client set until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Add(1)
			h.metrics.WebsocketClientConnected()
			h.logger.Info("websocket client connected", "client_id", c.ID)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.logger.Info("websocket client disconnected", "client_id", c.ID)
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow consumer
					h.drop(c)
					h.logger.Warn("dropping slow websocket client", "client_id", c.ID)
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Add(-1)
	h.metrics.WebsocketClientDisconnected()
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Publish queues one event for every client. It never blocks past ctx or
// the hub's shutdown.
func (h *Hub) Publish(ctx context.Context, ev broadcast.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("failed to encode broadcast event", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	case <-ctx.Done():
	}
}

func (h *Hub) Received(ctx context.Context, msg *rpc.BroadcastMessage) {
	h.Publish(ctx, broadcast.MessageEvent(msg))
}

func (h *Hub) Ended(ctx context.Context) {
	h.Publish(ctx, broadcast.EndedEvent())
}

func (h *Hub) Errored(ctx context.Context, err error) {
	h.Publish(ctx, broadcast.ErrorEvent(err))
}
