package catalog

import (
	"time"

	"github.com/aristath/dealflow/internal/domain"
)

// ListFilter narrows a catalog listing. Zero values match everything.
type ListFilter struct {
	Statuses []domain.DealStatus
	Industry string
	Region   string
	Offset   int
	Limit    int
}

// StatusChange is one row of a deal's status history.
type StatusChange struct {
	ID        int64             `json:"id"`
	DealID    string            `json:"deal_id"`
	From      domain.DealStatus `json:"from"`
	To        domain.DealStatus `json:"to"`
	Reason    string            `json:"reason,omitempty"`
	Source    string            `json:"source"`
	ChangedAt time.Time         `json:"changed_at"`
}
