package work

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Stats are cumulative processor counters.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Coalesced int64 `json:"coalesced"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Pending   int   `json:"pending"`
	Running   int   `json:"running"`
}

// Processor executes submitted work items on a fixed set of goroutines.
type Processor struct {
	registry   *Registry
	completion *CompletionTracker
	timeout    time.Duration
	workers    int
	log        zerolog.Logger
	onFailure  func(item *WorkItem, err error)

	mu      sync.Mutex
	queue   []*WorkItem          // submission order
	pending map[string]*WorkItem // queued items by id
	running map[string]bool      // ids currently executing
	stats   Stats

	wake    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// NewProcessor creates a new work processor.
func NewProcessor(registry *Registry, completion *CompletionTracker, workers int, log zerolog.Logger) *Processor {
	return NewProcessorWithTimeout(registry, completion, workers, WorkTimeout, log)
}

// NewProcessorWithTimeout creates a new work processor with a custom timeout.
func NewProcessorWithTimeout(registry *Registry, completion *CompletionTracker, workers int, timeout time.Duration, log zerolog.Logger) *Processor {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		registry:   registry,
		completion: completion,
		timeout:    timeout,
		workers:    workers,
		log:        log.With().Str("component", "work_processor").Logger(),
		pending:    make(map[string]*WorkItem),
		running:    make(map[string]bool),
		wake:       make(chan struct{}, workers),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// OnFailure installs a callback invoked after every failed execution.
// It must be set before Start.
func (p *Processor) OnFailure(fn func(item *WorkItem, err error)) {
	p.onFailure = fn
}

// Start launches the worker goroutines. Calling Start twice is a no-op.
func (p *Processor) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	p.log.Info().Int("workers", p.workers).Msg("Work processor started")
}

// Stop cancels running items, drops the queue and waits for workers to exit.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	dropped := len(p.queue)
	p.queue = nil
	p.pending = make(map[string]*WorkItem)
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	p.log.Info().Int("dropped", dropped).Msg("Work processor stopped")
}

// Submit queues work for typeID/subject. If an item with the same id is already
// queued, its payload is replaced and no new item is added.
func (p *Processor) Submit(typeID, subject string, payload any) error {
	wt := p.registry.Get(typeID)
	if wt == nil {
		return fmt.Errorf("unknown work type: %s", typeID)
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return errors.New("work processor stopped")
	}
	p.stats.Submitted++

	id := ItemID(typeID, subject)
	if queued, ok := p.pending[id]; ok {
		queued.Payload = payload
		queued.Coalesced++
		p.stats.Coalesced++
		p.mu.Unlock()
		return nil
	}

	item := NewWorkItem(wt, subject, payload)
	p.pending[id] = item
	p.queue = append(p.queue, item)
	p.mu.Unlock()

	p.signal()
	return nil
}

// ExecuteNow runs a work type synchronously on the caller's goroutine, bypassing
// the queue. Used by the CLI and tests.
func (p *Processor) ExecuteNow(ctx context.Context, typeID, subject string, payload any) error {
	wt := p.registry.Get(typeID)
	if wt == nil {
		return fmt.Errorf("unknown work type: %s", typeID)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return safeExecute(ctx, wt, NewWorkItem(wt, subject, payload))
}

// Stats returns a snapshot of the counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	s.Pending = len(p.queue)
	s.Running = len(p.running)
	return s
}

// Pending returns the queued items in submission order.
func (p *Processor) Pending() []WorkItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]WorkItem, 0, len(p.queue))
	for _, item := range p.queue {
		out = append(out, *item)
	}
	return out
}

// WaitIdle blocks until nothing is queued or running, or ctx is done.
func (p *Processor) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		p.mu.Lock()
		idle := len(p.queue) == 0 && len(p.running) == 0
		p.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Processor) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
		// All workers already have a wake-up pending
	}
}

func (p *Processor) run() {
	defer p.wg.Done()

	for {
		item, wt := p.next()
		if item == nil {
			select {
			case <-p.ctx.Done():
				return
			case <-p.wake:
				continue
			}
		}
		p.execute(item, wt)
	}
}

// next pops the highest-priority queued item whose id is not running.
func (p *Processor) next() (*WorkItem, *WorkType) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		best := -1
		for i, item := range p.queue {
			if p.running[item.ID] {
				continue
			}
			if best == -1 || item.Priority > p.queue[best].Priority {
				best = i
			}
		}
		if best == -1 {
			return nil, nil
		}

		item := p.queue[best]
		p.queue = append(p.queue[:best], p.queue[best+1:]...)
		delete(p.pending, item.ID)

		wt := p.registry.Get(item.TypeID)
		if wt == nil {
			p.log.Warn().Str("work", item.ID).Msg("Dropping work for unregistered type")
			continue
		}
		p.running[item.ID] = true

		if len(p.queue) > 0 {
			p.signal()
		}
		return item, wt
	}
}

func (p *Processor) execute(item *WorkItem, wt *WorkType) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := safeExecute(ctx, wt, item)
	duration := time.Since(start)

	// Recorded before the item leaves running so WaitIdle observes it.
	p.completion.Record(item, duration, err)
	if err != nil && p.onFailure != nil {
		p.onFailure(item, err)
	}

	p.mu.Lock()
	delete(p.running, item.ID)
	if err != nil {
		p.stats.Failed++
	} else {
		p.stats.Completed++
	}
	p.mu.Unlock()

	switch {
	case err == nil:
		p.log.Debug().
			Str("work", item.ID).
			Int("coalesced", item.Coalesced).
			Dur("duration", duration).
			Msg("Work completed")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		p.log.Error().Str("work", item.ID).Dur("timeout", p.timeout).Msg("Work timed out")
	case errors.Is(ctx.Err(), context.Canceled):
		p.log.Warn().Str("work", item.ID).Msg("Work cancelled")
	default:
		p.log.Error().Err(err).Str("work", item.ID).Msg("Work failed")
	}

	// A same-id item may have been blocked behind this one
	p.signal()
}

func safeExecute(ctx context.Context, wt *WorkType, item *WorkItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", item.ID, r)
		}
	}()
	return wt.Execute(ctx, item.Subject, item.Payload)
}
