package filters

import (
	"sort"
	"sync"

	"github.com/aristath/dealflow/internal/domain"
)

// DimensionIndex maps each deal dimension to the investors whose rules
// reference it, so an attribute change only concerns those investors.
type DimensionIndex struct {
	mu          sync.RWMutex
	byDimension map[domain.Dimension]map[string]struct{}
	byInvestor  map[string][]domain.Dimension
}

// NewDimensionIndex creates an empty index.
func NewDimensionIndex() *DimensionIndex {
	return &DimensionIndex{
		byDimension: make(map[domain.Dimension]map[string]struct{}),
		byInvestor:  make(map[string][]domain.Dimension),
	}
}

// Set replaces the dimensions indexed for an investor.
func (idx *DimensionIndex) Set(investorID string, dims []domain.Dimension) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(investorID)
	for _, d := range dims {
		ids, ok := idx.byDimension[d]
		if !ok {
			ids = make(map[string]struct{})
			idx.byDimension[d] = ids
		}
		ids[investorID] = struct{}{}
	}
	idx.byInvestor[investorID] = append([]domain.Dimension(nil), dims...)
}

// Remove drops an investor from the index.
func (idx *DimensionIndex) Remove(investorID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(investorID)
}

func (idx *DimensionIndex) removeLocked(investorID string) {
	for _, d := range idx.byInvestor[investorID] {
		delete(idx.byDimension[d], investorID)
		if len(idx.byDimension[d]) == 0 {
			delete(idx.byDimension, d)
		}
	}
	delete(idx.byInvestor, investorID)
}

// Interested returns the investors referencing any of dims, sorted.
func (idx *DimensionIndex) Interested(dims []domain.Dimension) []string {
	idx.mu.RLock()
	seen := make(map[string]struct{})
	for _, d := range dims {
		for id := range idx.byDimension[d] {
			seen[id] = struct{}{}
		}
	}
	idx.mu.RUnlock()

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// References reports whether the investor's rules reference any of dims.
func (idx *DimensionIndex) References(investorID string, dims []domain.Dimension) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, d := range dims {
		if _, ok := idx.byDimension[d][investorID]; ok {
			return true
		}
	}
	return false
}
