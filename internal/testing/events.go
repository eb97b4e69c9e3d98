package testing

import (
	"sync"

	"github.com/aristath/dealflow/internal/events"
	"github.com/rs/zerolog"
)

// EventRecorder captures every event emitted on a bus.
type EventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

// NewEventManager returns an event manager with a silent logger and a recorder
// subscribed to all of its events.
func NewEventManager() (*events.Manager, *EventRecorder) {
	log := zerolog.Nop()
	bus := events.NewBus(log)
	rec := &EventRecorder{}
	bus.SubscribeAll(func(e *events.Event) {
		rec.mu.Lock()
		rec.events = append(rec.events, *e)
		rec.mu.Unlock()
	})
	return events.NewManager(bus, log), rec
}

// All returns the recorded events in emission order.
func (r *EventRecorder) All() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded payloads of one event type.
func (r *EventRecorder) OfType(t events.EventType) []events.EventData {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.EventData
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e.Data)
		}
	}
	return out
}

// Reset forgets everything recorded so far.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
