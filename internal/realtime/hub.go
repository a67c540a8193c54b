// Package realtime fans queue events out to connected websocket viewers.
// Delivery is best-effort, at most once per subscriber per event: a slow
// client is dropped rather than buffered forever, and a client that missed
// an event re-pulls the authoritative list over HTTP.
package realtime

import (
	"context"
	"sync"
)

// TopicQueue is the general channel every client receives.
const TopicQueue = "queue"

// message is one payload destined for every subscriber of a topic.
type message struct {
	topic   string
	payload []byte
}

// Hub tracks connected clients grouped by topic and serializes
// register/unregister/broadcast through channels.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcasts chan message

	mu sync.RWMutex
}

// NewHub creates an empty hub. Call Run before broadcasting.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcasts: make(chan message, 64),
	}
}

// Run processes hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			for _, topic := range client.topics {
				if h.clients[topic] == nil {
					h.clients[topic] = make(map[*Client]bool)
				}
				h.clients[topic][client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(client)
			h.mu.Unlock()

		case msg := <-h.broadcasts:
			h.mu.Lock()
			for client := range h.clients[msg.topic] {
				select {
				case client.send <- msg.payload:
				default:
					h.dropLocked(client)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			return
		}
	}
}

// dropLocked removes a client from every topic it subscribed to. Caller
// holds h.mu.
func (h *Hub) dropLocked(client *Client) {
	dropped := false
	for _, topic := range client.topics {
		subscribers, ok := h.clients[topic]
		if !ok {
			continue
		}
		if subscribers[client] {
			delete(subscribers, client)
			dropped = true
		}
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
	if dropped {
		close(client.send)
	}
}

// Broadcast queues a payload for every subscriber of the topic. Never
// blocks the caller beyond the buffered channel send.
func (h *Hub) Broadcast(topic string, payload []byte) {
	select {
	case h.broadcasts <- message{topic: topic, payload: payload}:
	default:
		// Hub is saturated; observers recover via refresh pull.
	}
}

// SubscriberCount reports the current subscribers of a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}
