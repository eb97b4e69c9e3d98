package filters

import (
	"sort"
	"sync"

	"github.com/aristath/dealflow/internal/domain"
)

// Tracker holds the current filter set of every investor in memory. It is the
// authority the materializer checks before publishing a view.
type Tracker struct {
	mu   sync.RWMutex
	sets map[string]*domain.InvestorFilterSet
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{sets: make(map[string]*domain.InvestorFilterSet)}
}

// Set records set as current unless a newer version is already tracked.
func (t *Tracker) Set(set *domain.InvestorFilterSet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.sets[set.InvestorID]; ok && cur.Version >= set.Version {
		return
	}
	t.sets[set.InvestorID] = set.Clone()
}

// Remove forgets an investor.
func (t *Tracker) Remove(investorID string) {
	t.mu.Lock()
	delete(t.sets, investorID)
	t.mu.Unlock()
}

// Version returns the investor's current version and whether it exists.
func (t *Tracker) Version(investorID string) (int64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set, ok := t.sets[investorID]
	if !ok {
		return 0, false
	}
	return set.Version, true
}

// Snapshot returns a copy of the investor's current filter set.
func (t *Tracker) Snapshot(investorID string) (*domain.InvestorFilterSet, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set, ok := t.sets[investorID]
	if !ok {
		return nil, false
	}
	return set.Clone(), true
}

// Investors returns every tracked investor id, sorted.
func (t *Tracker) Investors() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.sets))
	for id := range t.sets {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of tracked investors.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sets)
}
