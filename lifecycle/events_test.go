package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smart-grievance/grievance-api/models"
)

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster()
	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	b.Publish(Event{Kind: EventSubmitted, CaseID: "abc", Status: models.StatusSubmitted})

	ev1 := <-ch1
	ev2 := <-ch2
	assert.Equal(t, EventSubmitted, ev1.Kind)
	assert.Equal(t, ev1, ev2)
}

func TestBroadcasterSlowSubscriberDropsEvents(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	defer cancel()

	// fill the buffer and keep going, publish must never block
	for i := 0; i < 100; i++ {
		b.Publish(Event{Kind: EventStatusChanged})
	}
	assert.Len(t, ch, cap(ch))
}

func TestBroadcasterCancelRemovesSubscriber(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	cancel()

	b.Publish(Event{Kind: EventEscalated})
	assert.Empty(t, ch)
}

func TestNilBroadcasterIsSafe(t *testing.T) {
	var b *Broadcaster
	b.Publish(Event{Kind: EventAssigned})
	b.publishCase(EventAssigned, &models.Case{})
}
