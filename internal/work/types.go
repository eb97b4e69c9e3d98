package work

import (
	"context"
	"time"
)

// WorkTimeout is the default maximum duration a work item can run before being cancelled.
const WorkTimeout = 2 * time.Minute

// Priority defines the execution priority of work types.
type Priority int

const (
	// PriorityLow is for sweeps and maintenance.
	PriorityLow Priority = iota
	// PriorityMedium is for per-deal refreshes and status reconciliation.
	PriorityMedium
	// PriorityHigh is for full view recomputes after a filter-set change.
	PriorityHigh
	// PriorityCritical is reserved for operator-initiated work.
	PriorityCritical
)

// String returns a human-readable name for the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	case PriorityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// WorkType defines a type of work that can be executed.
type WorkType struct {
	// ID is the unique identifier for this work type (e.g., "opportunities:recompute").
	ID string

	// Priority determines execution order when multiple work items are queued.
	Priority Priority

	// Execute performs the work for a given subject. Payload is whatever the
	// latest submission for this subject carried.
	Execute func(ctx context.Context, subject string, payload any) error
}

// WorkItem represents a specific unit of work to be executed.
type WorkItem struct {
	// ID is the full work ID including subject (e.g., "opportunities:recompute:inv-42").
	ID string

	// TypeID is the work type ID (e.g., "opportunities:recompute").
	TypeID string

	// Subject identifies what the work is about; empty for global work.
	Subject string

	// Payload is opaque to the processor.
	Payload any

	// Priority is copied from the work type at submission.
	Priority Priority

	// Coalesced counts submissions merged into this item while it was queued.
	Coalesced int

	// CreatedAt is when this work item was first queued.
	CreatedAt time.Time
}

// NewWorkItem creates a new work item from a work type and subject.
func NewWorkItem(workType *WorkType, subject string, payload any) *WorkItem {
	return &WorkItem{
		ID:        ItemID(workType.ID, subject),
		TypeID:    workType.ID,
		Subject:   subject,
		Payload:   payload,
		Priority:  workType.Priority,
		CreatedAt: time.Now(),
	}
}

// ItemID builds the id shared by all submissions for a type and subject.
func ItemID(typeID, subject string) string {
	if subject == "" {
		return typeID
	}
	return typeID + ":" + subject
}
