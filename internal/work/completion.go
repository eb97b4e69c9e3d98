package work

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Completion is the last outcome recorded for one work item id.
type Completion struct {
	ID         string        `json:"id"`
	TypeID     string        `json:"type_id"`
	Subject    string        `json:"subject,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
}

// CompletionTracker tracks when work items last finished and how.
type CompletionTracker struct {
	completions map[string]Completion // key: item id
	mu          sync.RWMutex
}

// NewCompletionTracker creates a new completion tracker.
func NewCompletionTracker() *CompletionTracker {
	return &CompletionTracker{
		completions: make(map[string]Completion),
	}
}

// Record stores the outcome of an item.
func (t *CompletionTracker) Record(item *WorkItem, duration time.Duration, err error) {
	c := Completion{
		ID:         item.ID,
		TypeID:     item.TypeID,
		Subject:    item.Subject,
		FinishedAt: time.Now(),
		Duration:   duration,
	}
	if err != nil {
		c.Error = err.Error()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.completions[item.ID] = c
}

// Get returns the last completion of a work type/subject combination.
func (t *CompletionTracker) Get(typeID, subject string) (Completion, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, ok := t.completions[ItemID(typeID, subject)]
	return c, ok
}

// Clear removes the completion of one work type/subject combination.
func (t *CompletionTracker) Clear(typeID, subject string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.completions, ItemID(typeID, subject))
}

// ClearByPrefix removes all completions whose id starts with prefix.
func (t *CompletionTracker) ClearByPrefix(prefix string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.completions {
		if strings.HasPrefix(key, prefix) {
			delete(t.completions, key)
		}
	}
}

// Snapshot returns every completion, most recent first.
func (t *CompletionTracker) Snapshot() []Completion {
	t.mu.RLock()
	out := make([]Completion, 0, len(t.completions))
	for _, c := range t.completions {
		out = append(out, c)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.After(out[j].FinishedAt) })
	return out
}
