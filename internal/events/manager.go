package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Manager stamps typed payloads into events, publishes them on the bus and
// keeps a per-type tally of what has gone out.
type Manager struct {
	bus *Bus
	log zerolog.Logger

	mu     sync.Mutex
	counts map[EventType]int64
	last   time.Time
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus:    bus,
		log:    log.With().Str("service", "events").Logger(),
		counts: make(map[EventType]int64),
	}
}

// Bus returns the underlying bus for subscribers.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// EmitTyped publishes data under its own event type.
func (m *Manager) EmitTyped(module string, data EventData) {
	eventType := data.EventType()

	m.mu.Lock()
	m.counts[eventType]++
	m.last = time.Now()
	m.mu.Unlock()

	m.bus.Emit(eventType, module, data)

	m.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Interface("data", data).
		Msg("Event emitted")
}

// EmitError publishes an ErrorOccurred event. A nil err is ignored.
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	if err == nil {
		return
	}
	m.EmitTyped(module, &ErrorEventData{
		Error:   err.Error(),
		Context: context,
	})
}

// Emitted is a snapshot of the per-type counters.
type Emitted struct {
	ByType map[EventType]int64 `json:"by_type"`
	Total  int64               `json:"total"`
	Last   time.Time           `json:"last,omitempty"`
}

// Emitted returns how many events of each type have been published.
func (m *Manager) Emitted() Emitted {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := Emitted{ByType: make(map[EventType]int64, len(m.counts)), Last: m.last}
	for t, n := range m.counts {
		out.ByType[t] = n
		out.Total += n
	}
	return out
}
