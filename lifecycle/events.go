package lifecycle

import (
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smart-grievance/grievance-api/models"
)

// Event kinds published on the live feed
const (
	EventSubmitted     = "case.submitted"
	EventStatusChanged = "case.status"
	EventEscalated     = "case.escalated"
	EventAssigned      = "case.assigned"
	EventMessaged      = "case.message"
)

// Event is one lifecycle change pushed to connected admin dashboards
type Event struct {
	Kind            string            `json:"kind"`
	CaseID          string            `json:"caseId"`
	Status          models.CaseStatus `json:"status"`
	EscalationLevel int               `json:"escalationLevel"`
	OfficerID       string            `json:"officerId,omitempty"`
	At              time.Time         `json:"at"`
}

// Broadcaster fans out lifecycle events to subscribers. Delivery is best
// effort: a slow subscriber loses events rather than blocking a mutation.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber and returns its event channel plus a
// cancel func that must be called when the subscriber goes away
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
}

// Publish sends the event to every subscriber without blocking
func (b *Broadcaster) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *Broadcaster) publishCase(kind string, c *models.Case) {
	if b == nil || c == nil {
		return
	}
	ev := Event{
		Kind:            kind,
		CaseID:          c.ID.Hex(),
		Status:          c.Status,
		EscalationLevel: c.EscalationLevel,
		At:              time.Now().UTC(),
	}
	if c.AssignedOfficerID != nil && *c.AssignedOfficerID != primitive.NilObjectID {
		ev.OfficerID = c.AssignedOfficerID.Hex()
	}
	b.Publish(ev)
}
