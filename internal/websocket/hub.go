package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a membership event pushed to connected clients.
type Message struct {
	Type        string         `json:"type"`
	Entity      string         `json:"entity"`
	Action      string         `json:"action"`
	ID          int64          `json:"id,omitempty"`
	HouseholdID int64          `json:"household_id,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub tracks connected clients and routes events to the household or user
// they concern.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// PublishHousehold sends msg to every client connected for householdID.
func (h *Hub) PublishHousehold(householdID int64, msg Message) {
	msg.HouseholdID = householdID
	h.publish(msg, func(c *Client) bool { return c.householdID == householdID })
}

// PublishUser sends msg to every connection of userID.
func (h *Hub) PublishUser(userID int64, msg Message) {
	h.publish(msg, func(c *Client) bool { return c.userID == userID })
}

func (h *Hub) publish(msg Message, match func(*Client) bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Debug("dropping event for slow client", "user_id", c.userID, "type", msg.Type)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
