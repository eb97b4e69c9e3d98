// Package events provides the in-process event bus and typed event payloads.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	// Catalog
	DealSubmitted     EventType = "DEAL_SUBMITTED"
	DealUpdated       EventType = "DEAL_UPDATED"
	DealStatusChanged EventType = "DEAL_STATUS_CHANGED"

	// Filter rule store
	FilterSetChanged EventType = "FILTER_SET_CHANGED"
	FilterSetDeleted EventType = "FILTER_SET_DELETED"

	// Matching and materialization
	EvaluationRecorded    EventType = "EVALUATION_RECORDED"
	ViewPublished         EventType = "VIEW_PUBLISHED"
	ViewDiscarded         EventType = "VIEW_DISCARDED"
	ResubmissionRequested EventType = "RESUBMISSION_REQUESTED"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// Event is one emission on the bus.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}
