package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xelth-com/eckvideo/internal/services/assignment"
)

// Message is the envelope pushed to connected workers
type Message struct {
	Type    string                  `json:"type"`
	MsgID   string                  `json:"msgId"`
	Payload assignment.Notification `json:"payload"`
	SentAt  time.Time               `json:"sentAt"`
}

// Hub keeps the connected clients by worker name and fans notifications out to them.
// Administrators receive every notification; workers only their own.
type Hub struct {
	// worker name -> open connections of that worker
	clients map[string]map[*Client]struct{}
	admins  map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex
}

var _ assignment.Notifier = (*Hub)(nil)

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		admins:     make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until ctx is cancelled, then closes every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			conns, ok := h.clients[client.Worker]
			if !ok {
				conns = make(map[*Client]struct{})
				h.clients[client.Worker] = conns
			}
			conns[client] = struct{}{}
			if client.Admin {
				h.admins[client] = struct{}{}
			}
			h.mu.Unlock()
			log.Printf("🔌 Worker connected: %s", client.Worker)

		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.Worker]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					delete(h.admins, client)
					close(client.send)
					if len(conns) == 0 {
						delete(h.clients, client.Worker)
					}
					log.Printf("📴 Worker disconnected: %s", client.Worker)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for worker, conns := range h.clients {
				for client := range conns {
					close(client.send)
				}
				delete(h.clients, worker)
			}
			h.admins = make(map[*Client]struct{})
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) subscribe(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unsubscribe(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Notify delivers n to the subject worker and to every connected administrator.
// It never blocks: a client with a full buffer misses the message.
func (h *Hub) Notify(n assignment.Notification) {
	raw, err := json.Marshal(Message{
		Type:    string(n.Type),
		MsgID:   uuid.NewString(),
		Payload: n,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		log.Printf("⚠️  Error marshaling notification: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	for client := range h.clients[n.Worker] {
		seen[client] = struct{}{}
		client.trySend(raw)
	}
	for client := range h.admins {
		if _, ok := seen[client]; !ok {
			client.trySend(raw)
		}
	}
}

// Connected returns the number of open connections of worker
func (h *Hub) Connected(worker string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[worker])
}
