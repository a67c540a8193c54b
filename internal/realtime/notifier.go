package realtime

import (
	"encoding/json"
	"log"

	"consult-queue-backend/internal/queue"
)

// Event types carried on the websocket channel.
const (
	EventQueueUpdate = "queue:update"
	EventQueueStatus = "queue:status"
)

// Event is the wire shape of a realtime message.
type Event struct {
	Type    string            `json:"type"`
	Entries []queue.EntryView `json:"entries,omitempty"`
	Entry   *queue.EntryView  `json:"entry,omitempty"`
}

// Notifier adapts the hub to the engine's notification contract.
type Notifier struct {
	hub *Hub
}

// NewNotifier wraps a hub.
func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

// QueueUpdated broadcasts the refreshed authoritative list as a general
// refresh hint.
func (n *Notifier) QueueUpdated(entries []queue.EntryView) {
	n.publish(TopicQueue, Event{Type: EventQueueUpdate, Entries: entries})
}

// EntryStatusChanged broadcasts the changed entry generally and to the
// subscribers of its number.
func (n *Notifier) EntryStatusChanged(entry queue.EntryView) {
	ev := Event{Type: EventQueueStatus, Entry: &entry}
	n.publish(TopicQueue, ev)
	n.publish(NumberTopic(entry.Number), ev)
}

func (n *Notifier) publish(topic string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("realtime: marshal %s event: %v", ev.Type, err)
		return
	}
	n.hub.Broadcast(topic, payload)
}
