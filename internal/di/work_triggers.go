/**
 * Package di provides dependency injection for work processor event triggers.
 *
 * Event triggers connect bus events to queued work: filter-set changes rebuild
 * the investor's view, deal changes refresh that deal in every investor's view,
 * recorded evaluations reconcile the deal's global status, and deleted filter
 * sets drop the investor's view. Handlers only submit; they never block the
 * emitting goroutine on evaluation or storage.
 */
package di

import (
	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/events"
	"github.com/aristath/dealflow/internal/work"
	"github.com/rs/zerolog"
)

// registerTriggers registers event listeners that submit work to the processor
func registerTriggers(container *Container, processor *work.Processor, completion *work.CompletionTracker, log zerolog.Logger) {
	bus := container.EventBus

	submit := func(typeID, subject string, payload any) {
		if err := processor.Submit(typeID, subject, payload); err != nil {
			log.Warn().Err(err).Str("work_type", typeID).Str("subject", subject).Msg("Failed to submit work")
		}
	}

	refreshEverywhere := func(dealID string, dims []domain.Dimension, trigger string) {
		for _, investorID := range container.Filters.Investors() {
			submit(WorkRefreshDeal, refreshSubject(investorID, dealID), RefreshPayload{
				DealID:            dealID,
				ChangedDimensions: dims,
				Trigger:           trigger,
			})
		}
	}

	// FilterSetChanged -> full recompute of that investor's view
	bus.Subscribe(events.FilterSetChanged, func(e *events.Event) {
		data, ok := e.Data.(*events.FilterSetChangedData)
		if !ok {
			return
		}
		submit(WorkRecompute, data.InvestorID, "filter_set_changed")
	})

	// FilterSetDeleted -> drop the view and forget the investor's completions
	bus.Subscribe(events.FilterSetDeleted, func(e *events.Event) {
		data, ok := e.Data.(*events.FilterSetDeletedData)
		if !ok {
			return
		}
		completion.Clear(WorkRecompute, data.InvestorID)
		completion.ClearByPrefix(work.ItemID(WorkRefreshDeal, data.InvestorID+"/"))
		submit(WorkDropView, data.InvestorID, nil)
	})

	// DealSubmitted -> evaluate the new deal for every investor
	bus.Subscribe(events.DealSubmitted, func(e *events.Event) {
		data, ok := e.Data.(*events.DealSubmittedData)
		if !ok {
			return
		}
		refreshEverywhere(data.DealID, nil, "deal_submitted")
	})

	// DealUpdated -> re-evaluate (or carry forward) for every investor
	bus.Subscribe(events.DealUpdated, func(e *events.Event) {
		data, ok := e.Data.(*events.DealUpdatedData)
		if !ok {
			return
		}
		refreshEverywhere(data.DealID, data.ChangedDimensions, "deal_updated")
	})

	// DealStatusChanged -> refresh views; reconciled moves never change visibility
	bus.Subscribe(events.DealStatusChanged, func(e *events.Event) {
		data, ok := e.Data.(*events.DealStatusChangedData)
		if !ok || data.Source == events.SourceReconcile {
			return
		}
		refreshEverywhere(data.DealID, nil, "deal_status_changed")
	})

	// EvaluationRecorded -> reconcile the deal's global status
	bus.Subscribe(events.EvaluationRecorded, func(e *events.Event) {
		data, ok := e.Data.(*events.EvaluationRecordedData)
		if !ok {
			return
		}
		submit(WorkReconcile, data.DealID, nil)
	})
}
