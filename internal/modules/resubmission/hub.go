package resubmission

import (
	"sync"
	"sync/atomic"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/rs/zerolog"
)

// Hub fans applicant notices out to live stream subscribers. A subscriber that
// does not keep up loses notices rather than slowing the pipeline; it can
// replay them from the outbox.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]chan domain.ApplicantNotice
	next    uint64
	buffer  int
	dropped atomic.Int64
	log     zerolog.Logger
}

// NewHub creates a hub whose subscribers buffer up to buffer notices.
func NewHub(buffer int, log zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[uint64]chan domain.ApplicantNotice),
		buffer: buffer,
		log:    log.With().Str("component", "resubmission_hub").Logger(),
	}
}

// Subscribe registers a subscriber. The returned cancel function must be called
// once the subscriber is done; it closes the channel.
func (h *Hub) Subscribe() (<-chan domain.ApplicantNotice, func()) {
	ch := make(chan domain.ApplicantNotice, h.buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
		})
	}
}

// Broadcast delivers notice to every subscriber without blocking.
func (h *Hub) Broadcast(notice domain.ApplicantNotice) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- notice:
		default:
			h.dropped.Add(1)
			h.log.Warn().Uint64("subscriber", id).Str("notice_id", notice.ID).Msg("Subscriber buffer full, dropping notice")
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were dropped.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
