package events

import (
	"time"

	"github.com/aristath/dealflow/internal/domain"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// DealSubmittedData contains data for DealSubmitted events
type DealSubmittedData struct {
	DealID   string `json:"deal_id"`
	Version  int64  `json:"version"`
	Revision int64  `json:"revision"`
}

// EventType returns the event type for DealSubmittedData
func (d *DealSubmittedData) EventType() EventType {
	return DealSubmitted
}

// DealUpdatedData contains data for DealUpdated events (applicant attribute edits)
type DealUpdatedData struct {
	DealID            string             `json:"deal_id"`
	Version           int64              `json:"version"`
	Revision          int64              `json:"revision"`
	ChangedDimensions []domain.Dimension `json:"changed_dimensions"`
	StatusReset       bool               `json:"status_reset"`
}

// EventType returns the event type for DealUpdatedData
func (d *DealUpdatedData) EventType() EventType {
	return DealUpdated
}

// Status change sources.
const (
	SourceOperator  = "operator"
	SourceApplicant = "applicant"
	SourceReconcile = "reconcile"
)

// DealStatusChangedData contains data for DealStatusChanged events
type DealStatusChangedData struct {
	DealID   string            `json:"deal_id"`
	From     domain.DealStatus `json:"from"`
	To       domain.DealStatus `json:"to"`
	Source   string            `json:"source"`
	Reason   string            `json:"reason,omitempty"`
	Revision int64             `json:"revision"`
}

// EventType returns the event type for DealStatusChangedData
func (d *DealStatusChangedData) EventType() EventType {
	return DealStatusChanged
}

// FilterSetChangedData contains data for FilterSetChanged events
type FilterSetChangedData struct {
	InvestorID string `json:"investor_id"`
	Version    int64  `json:"version"`
}

// EventType returns the event type for FilterSetChangedData
func (d *FilterSetChangedData) EventType() EventType {
	return FilterSetChanged
}

// FilterSetDeletedData contains data for FilterSetDeleted events
type FilterSetDeletedData struct {
	InvestorID string `json:"investor_id"`
	Version    int64  `json:"version"`
}

// EventType returns the event type for FilterSetDeletedData
func (d *FilterSetDeletedData) EventType() EventType {
	return FilterSetDeleted
}

// EvaluationRecordedData contains data for EvaluationRecorded events
type EvaluationRecordedData struct {
	DealID           string           `json:"deal_id"`
	InvestorID       string           `json:"investor_id"`
	DealVersion      int64            `json:"deal_version"`
	FilterSetVersion int64            `json:"filter_set_version"`
	Terminal         domain.PairState `json:"terminal_state"`
}

// EventType returns the event type for EvaluationRecordedData
func (d *EvaluationRecordedData) EventType() EventType {
	return EvaluationRecorded
}

// ViewPublishedData contains data for ViewPublished events
type ViewPublishedData struct {
	InvestorID       string    `json:"investor_id"`
	FilterSetVersion int64     `json:"filter_set_version"`
	CatalogRevision  int64     `json:"catalog_revision"`
	Visible          int       `json:"visible"`
	Trigger          string    `json:"trigger"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// EventType returns the event type for ViewPublishedData
func (d *ViewPublishedData) EventType() EventType {
	return ViewPublished
}

// ViewDiscardedData contains data for ViewDiscarded events
type ViewDiscardedData struct {
	InvestorID     string `json:"investor_id"`
	JobVersion     int64  `json:"job_version"`
	CurrentVersion int64  `json:"current_version"`
	Trigger        string `json:"trigger"`
	Reason         string `json:"reason"`
}

// EventType returns the event type for ViewDiscardedData
func (d *ViewDiscardedData) EventType() EventType {
	return ViewDiscarded
}

// ResubmissionRequestedData wraps the internal resubmission event
type ResubmissionRequestedData struct {
	domain.ResubmissionEvent
}

// EventType returns the event type for ResubmissionRequestedData
func (d *ResubmissionRequestedData) EventType() EventType {
	return ResubmissionRequested
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
