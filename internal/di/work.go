// Package di provides dependency injection for the work processor.
package di

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/dealflow/internal/config"
	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/work"
	"github.com/rs/zerolog"
)

// Work type ids.
const (
	WorkRecompute   = "opportunities:recompute"
	WorkRefreshDeal = "opportunities:refresh-deal"
	WorkDropView    = "opportunities:drop"
	WorkReconcile   = "catalog:reconcile-status"
	WorkSweep       = "opportunities:sweep"
)

// RefreshPayload is queued with refresh-deal work. Subjects are
// "<investor id>/<deal id>" so each pair coalesces on its own.
type RefreshPayload struct {
	DealID            string
	ChangedDimensions []domain.Dimension
	Trigger           string
}

func refreshSubject(investorID, dealID string) string {
	return investorID + "/" + dealID
}

func splitRefreshSubject(subject string) (investorID, dealID string, err error) {
	investorID, dealID, ok := strings.Cut(subject, "/")
	if !ok || investorID == "" || dealID == "" {
		return "", "", fmt.Errorf("malformed refresh subject %q", subject)
	}
	return investorID, dealID, nil
}

// InitializeWork creates and wires up all work processor components
func InitializeWork(container *Container, cfg *config.Config, log zerolog.Logger) (*WorkComponents, error) {
	registry := work.NewRegistry()
	completion := work.NewCompletionTracker()
	processor := work.NewProcessorWithTimeout(registry, completion, cfg.QueueWorkers, cfg.JobTimeout, log)
	processor.OnFailure(func(item *work.WorkItem, err error) {
		container.EventManager.EmitError("work", err, map[string]interface{}{
			"work_type": item.TypeID,
			"subject":   item.Subject,
		})
	})

	components := &WorkComponents{
		Registry:   registry,
		Completion: completion,
		Processor:  processor,
		Handlers:   work.NewHandlers(processor, registry, completion),
	}

	if err := registerOpportunityWork(registry, container, log); err != nil {
		return nil, err
	}
	if err := registerCatalogWork(registry, container, log); err != nil {
		return nil, err
	}

	container.Work = components
	registerTriggers(container, processor, completion, log)

	log.Info().Int("work_types", registry.Count()).Msg("Work processor initialized")
	return components, nil
}

func registerOpportunityWork(registry *work.Registry, container *Container, log zerolog.Logger) error {
	m := container.Materializer

	types := []*work.WorkType{
		{
			ID:       WorkRecompute,
			Priority: work.PriorityHigh,
			Execute: func(ctx context.Context, investorID string, payload any) error {
				trigger, _ := payload.(string)
				if trigger == "" {
					trigger = "recompute"
				}
				_, err := m.Recompute(ctx, investorID, trigger)
				if errors.Is(err, domain.ErrFilterSetNotFound) {
					log.Debug().Str("investor_id", investorID).Msg("Recompute skipped, investor removed")
					return nil
				}
				return err
			},
		},
		{
			ID:       WorkRefreshDeal,
			Priority: work.PriorityMedium,
			Execute: func(ctx context.Context, subject string, payload any) error {
				investorID, dealID, err := splitRefreshSubject(subject)
				if err != nil {
					return err
				}
				p, _ := payload.(RefreshPayload)
				set, ok := container.Filters.Snapshot(investorID)
				if !ok {
					return nil
				}
				trigger := p.Trigger
				if trigger == "" {
					trigger = "deal_changed"
				}
				_, err = m.RefreshDeal(ctx, set, dealID, p.ChangedDimensions, trigger)
				if errors.Is(err, domain.ErrDealNotFound) {
					return nil
				}
				return err
			},
		},
		{
			ID:       WorkDropView,
			Priority: work.PriorityHigh,
			Execute: func(ctx context.Context, investorID string, _ any) error {
				if _, ok := container.Filters.CurrentVersion(investorID); ok {
					// Filter set was re-created before the drop ran.
					return nil
				}
				return m.Drop(ctx, investorID)
			},
		},
		{
			ID:       WorkSweep,
			Priority: work.PriorityLow,
			Execute: func(ctx context.Context, _ string, _ any) error {
				return m.RecomputeAll(ctx, "sweep")
			},
		},
	}

	for _, wt := range types {
		if err := registry.Register(wt); err != nil {
			return fmt.Errorf("failed to register %s: %w", wt.ID, err)
		}
	}
	return nil
}

func registerCatalogWork(registry *work.Registry, container *Container, log zerolog.Logger) error {
	return registry.Register(&work.WorkType{
		ID:       WorkReconcile,
		Priority: work.PriorityMedium,
		Execute: func(ctx context.Context, dealID string, _ any) error {
			_, err := container.Reconciler.Reconcile(ctx, dealID)
			if errors.Is(err, domain.ErrDealNotFound) {
				log.Debug().Str("deal_id", dealID).Msg("Reconcile skipped, deal not found")
				return nil
			}
			return err
		},
	})
}
