package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"voting-platform/internal/domain"
)

const EventPollsUpdated = "polls.updated"

// Event is the envelope pushed to websocket clients
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Publisher fans an encoded event out beyond this process
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// Hub tracks connected clients and broadcasts poll updates to all of them
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client

	publisher Publisher
	logger    *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		logger:     logger,
	}
}

// SetPublisher routes PollsUpdated through p instead of broadcasting locally.
// p is expected to deliver the payload back via Broadcast on every instance.
func (h *Hub) SetPublisher(p Publisher) {
	h.publisher = p
}

// Run processes registrations until ctx ends, then drops every client
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				delete(h.clients, id)
				close(c.Send)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			h.mu.Unlock()
			h.logger.Debug("Websocket client connected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID))
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.ID]; ok {
				delete(h.clients, c.ID)
				close(c.Send)
			}
			h.mu.Unlock()
			h.logger.Debug("Websocket client disconnected", zap.String("client_id", c.ID))
		}
	}
}

func (h *Hub) Register(c *Client) {
	h.register <- c
}

func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Broadcast sends payload to every connected client
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	for _, c := range h.clients {
		c.SendMessage(payload)
	}
	h.mu.RUnlock()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PollsUpdated encodes the refreshed list as a polls.updated event and fans it out
func (h *Hub) PollsUpdated(resp *domain.PollsResponse) {
	payload, err := json.Marshal(Event{Type: EventPollsUpdated, Data: resp})
	if err != nil {
		h.logger.Error("Failed to encode poll update", zap.Error(err))
		return
	}

	if h.publisher != nil {
		err := h.publisher.Publish(context.Background(), payload)
		if err == nil {
			return
		}
		h.logger.Warn("Failed to publish poll update, broadcasting locally", zap.Error(err))
	}
	h.Broadcast(payload)
}
