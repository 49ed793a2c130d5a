package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventType classifies a notification event.
type EventType string

const (
	// Notification event types
	EventMaterialAdded     EventType = "material_added"
	EventMaterialUpdated   EventType = "material_updated"
	EventMaterialDeleted   EventType = "material_deleted"
	EventPurchaseRecorded  EventType = "purchase_recorded"
	EventPurchaseEdited    EventType = "purchase_edited"
	EventUsageRecorded     EventType = "usage_recorded"
	EventInsufficientStock EventType = "insufficient_stock"
	EventLowStock          EventType = "low_stock"
	EventCostsRecalculated EventType = "costs_recalculated"
)

// Event is a structured success/failure notification emitted by the core
// for the UI layer to surface as a toast or alert.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Notifier fans events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event, the same policy the
// dashboard applies to its toast queue.
type Notifier struct {
	mu   sync.RWMutex
	subs map[string]chan Event
	log  *logrus.Entry
}

// NewNotifier creates a notifier with no subscribers.
func NewNotifier(log *logrus.Logger) *Notifier {
	return &Notifier{
		subs: make(map[string]chan Event),
		log:  log.WithField("component", "notify"),
	}
}

// Subscribe registers a new subscriber and returns its id and channel.
func (n *Notifier) Subscribe() (string, <-chan Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan Event, 64)
	n.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *Notifier) Unsubscribe(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if ch, ok := n.subs[id]; ok {
		close(ch)
		delete(n.subs, id)
	}
}

// Publish sends an event to every subscriber.
func (n *Notifier) Publish(typ EventType, message string, fields map[string]interface{}) {
	evt := Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Message:   message,
		Fields:    fields,
		Timestamp: time.Now(),
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for id, ch := range n.subs {
		select {
		case ch <- evt:
		default:
			n.log.WithField("subscriber", id).Warn("event buffer full, dropping event")
		}
	}

	n.log.WithFields(logrus.Fields{"type": typ, "event_id": evt.ID}).Debug(message)
}
