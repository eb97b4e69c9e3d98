package domain

import (
	"sort"
	"time"
)

// ResubmissionEvent is raised when a pair lands in NEEDS_RESUBMISSION. It carries
// investor context and full reasons and stays inside the pipeline.
type ResubmissionEvent struct {
	ID                string      `json:"id" msgpack:"id"`
	DealID            string      `json:"deal_id" msgpack:"deal_id"`
	InvestorID        string      `json:"investor_id" msgpack:"investor_id"`
	DealVersion       int64       `json:"deal_version" msgpack:"deal_version"`
	FilterSetVersion  int64       `json:"filter_set_version" msgpack:"filter_set_version"`
	Reasons           []string    `json:"reasons" msgpack:"reasons"`
	FailingDimensions []Dimension `json:"failing_dimensions" msgpack:"failing_dimensions"`
	Timestamp         time.Time   `json:"timestamp" msgpack:"timestamp"`
}

// ApplicantNotice is the applicant-facing projection of a ResubmissionEvent:
// which dimensions failed, never who asked or what the thresholds are.
type ApplicantNotice struct {
	ID                string      `json:"id" msgpack:"id"`
	DealID            string      `json:"deal_id" msgpack:"deal_id"`
	FailingDimensions []Dimension `json:"failing_dimensions" msgpack:"failing_dimensions"`
	Timestamp         time.Time   `json:"timestamp" msgpack:"timestamp"`
}

// Notice projects the event for the applicant. Dimensions are sorted and
// de-duplicated.
func (e *ResubmissionEvent) Notice() ApplicantNotice {
	seen := make(map[Dimension]bool, len(e.FailingDimensions))
	dims := make([]Dimension, 0, len(e.FailingDimensions))
	for _, d := range e.FailingDimensions {
		if !seen[d] {
			seen[d] = true
			dims = append(dims, d)
		}
	}
	sort.Slice(dims, func(i, j int) bool { return dims[i] < dims[j] })
	return ApplicantNotice{
		ID:                e.ID,
		DealID:            e.DealID,
		FailingDimensions: dims,
		Timestamp:         e.Timestamp,
	}
}
