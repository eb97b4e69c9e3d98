// Package resubmission turns NEEDS_RESUBMISSION outcomes into applicant notices
// and fans them out to the outbox, live subscribers and external sinks.
package resubmission

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	moduleName  = "resubmission"
	sinkTimeout = 5 * time.Second
)

// Notifier raises resubmission events. Delivery is fire-and-forget: sink
// failures are logged and never reach the caller.
type Notifier struct {
	events *events.Manager
	outbox *Outbox
	hub    *Hub

	mu    sync.RWMutex
	sinks []Sink
	wg    sync.WaitGroup

	now func() time.Time
	log zerolog.Logger
}

// NewNotifier creates a notifier. outbox and hub may be nil.
func NewNotifier(eventManager *events.Manager, outbox *Outbox, hub *Hub, log zerolog.Logger) *Notifier {
	return &Notifier{
		events: eventManager,
		outbox: outbox,
		hub:    hub,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log.With().Str("module", moduleName).Logger(),
	}
}

// AddSink registers an external sink.
func (n *Notifier) AddSink(s Sink) {
	n.mu.Lock()
	n.sinks = append(n.sinks, s)
	n.mu.Unlock()
	n.log.Info().Str("sink", s.Name()).Msg("Resubmission sink registered")
}

// Notify raises the resubmission event for a NEEDS_RESUBMISSION result.
func (n *Notifier) Notify(ctx context.Context, result *domain.EvaluationResult) {
	if result == nil || result.Terminal != domain.StateNeedsResubmission {
		return
	}

	event := domain.ResubmissionEvent{
		ID:               uuid.New().String(),
		DealID:           result.DealID,
		InvestorID:       result.InvestorID,
		DealVersion:      result.DealVersion,
		FilterSetVersion: result.FilterSetVersion,
		Reasons:          []string{},
		Timestamp:        n.now(),
	}
	if risk := result.Stage(domain.StageRisk); risk != nil {
		event.Reasons = append(event.Reasons, risk.Reasons...)
		event.FailingDimensions = append(event.FailingDimensions, risk.FailingDimensions...)
	}

	if n.events != nil {
		n.events.EmitTyped(moduleName, &events.ResubmissionRequestedData{ResubmissionEvent: event})
	}

	notice := event.Notice()
	if n.outbox != nil {
		if _, err := n.outbox.Append(ctx, notice); err != nil {
			n.log.Error().Err(err).Str("deal_id", notice.DealID).Msg("Failed to store notice in outbox")
		}
	}
	if n.hub != nil {
		n.hub.Broadcast(notice)
	}

	n.mu.RLock()
	sinks := append([]Sink(nil), n.sinks...)
	n.mu.RUnlock()
	for _, sink := range sinks {
		n.wg.Add(1)
		go n.deliver(context.WithoutCancel(ctx), sink, notice)
	}
}

// Wait blocks until every in-flight sink delivery has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) deliver(ctx context.Context, sink Sink, notice domain.ApplicantNotice) {
	defer n.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()

	if err := sink.Publish(ctx, notice); err != nil {
		n.log.Warn().
			Err(err).
			Str("sink", sink.Name()).
			Str("deal_id", notice.DealID).
			Str("notice_id", notice.ID).
			Msg("Failed to deliver notice")
		return
	}
	n.log.Debug().Str("sink", sink.Name()).Str("notice_id", notice.ID).Msg("Notice delivered")
}
