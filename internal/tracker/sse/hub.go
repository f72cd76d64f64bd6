package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// 事件类型
const (
	EventProjectUpdate = "project_update"
	EventReportUpdate  = "report_update"
	EventTaskUpdate    = "task_update"
	EventWBSUpdate     = "wbs_update"
)

// 变更动作
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionLinked   = "linked"
	ActionImported = "imported"
)

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Change is the payload of every *_update event.
type Change struct {
	ProjectID uint   `json:"project_id"`
	ID        uint   `json:"id,omitempty"`
	Action    string `json:"action"`
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewHub creates a new SSE Hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("sse client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)))
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("sse client unregistered",
			zap.String("client_id", clientID),
			zap.Int("total", len(h.clients)))
	}
}

// Clients 当前连接数
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to all connected clients. Slow clients drop the event.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("sse client buffer full, skipping event",
				zap.String("client_id", client.ID),
				zap.String("event", event.EventType))
		}
	}
}

// Publish broadcasts a change notification. A nil hub discards it.
func (h *Hub) Publish(eventType string, change Change) {
	if h == nil {
		return
	}
	data, err := json.Marshal(change)
	if err != nil {
		h.logger.Error("sse marshal change", zap.Error(err))
		return
	}
	h.Broadcast(Event{EventType: eventType, Data: string(data)})
}
