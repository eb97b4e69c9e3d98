package domain

import "time"

// ViewEntry is one visible deal on an opportunity board.
type ViewEntry struct {
	DealID      string    `json:"deal_id" msgpack:"deal_id"`
	Score       *float64  `json:"score,omitempty" msgpack:"score,omitempty"`
	SubmittedAt time.Time `json:"submitted_date" msgpack:"submitted_at"`
}

// OpportunityView is the published, ordered set of deals one investor can see.
// A view is never modified after publication; every change produces a new value.
type OpportunityView struct {
	InvestorID       string      `json:"investor_id" msgpack:"investor_id"`
	FilterSetVersion int64       `json:"filter_set_version" msgpack:"filter_set_version"`
	CatalogRevision  int64       `json:"catalog_revision" msgpack:"catalog_revision"`
	GeneratedAt      time.Time   `json:"generated_at" msgpack:"generated_at"`
	Entries          []ViewEntry `json:"entries" msgpack:"entries"`
	// DealRevisions records the deal revision each evaluated deal was read at,
	// visible or not.
	DealRevisions map[string]int64 `json:"-" msgpack:"deal_revisions"`
}

// DealIDs returns the visible deal ids in board order.
func (v *OpportunityView) DealIDs() []string {
	ids := make([]string, len(v.Entries))
	for i, e := range v.Entries {
		ids[i] = e.DealID
	}
	return ids
}

// Contains reports whether dealID is on the board.
func (v *OpportunityView) Contains(dealID string) bool {
	for _, e := range v.Entries {
		if e.DealID == dealID {
			return true
		}
	}
	return false
}

// ViewPage is one page of an opportunity view.
type ViewPage struct {
	InvestorID       string      `json:"investor_id"`
	FilterSetVersion int64       `json:"filter_set_version"`
	GeneratedAt      time.Time   `json:"generated_at"`
	Total            int         `json:"total"`
	Offset           int         `json:"offset"`
	Limit            int         `json:"limit"`
	Entries          []ViewEntry `json:"entries"`
}
