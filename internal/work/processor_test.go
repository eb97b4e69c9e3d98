package work

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T, workers int, types ...*WorkType) (*Processor, *CompletionTracker) {
	t.Helper()
	registry := NewRegistry()
	for _, wt := range types {
		require.NoError(t, registry.Register(wt))
	}
	completion := NewCompletionTracker()
	p := NewProcessorWithTimeout(registry, completion, workers, time.Second, zerolog.Nop())
	t.Cleanup(p.Stop)
	return p, completion
}

func waitIdle(t *testing.T, p *Processor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.WaitIdle(ctx))
}

func TestProcessor_ExecutesSubmittedWork(t *testing.T) {
	var got atomic.Value
	p, completion := newTestProcessor(t, 2, &WorkType{
		ID: "test:work",
		Execute: func(ctx context.Context, subject string, payload any) error {
			got.Store(subject + "=" + payload.(string))
			return nil
		},
	})
	p.Start()

	require.NoError(t, p.Submit("test:work", "inv-1", "v1"))
	waitIdle(t, p)

	assert.Equal(t, "inv-1=v1", got.Load())
	c, ok := completion.Get("test:work", "inv-1")
	require.True(t, ok)
	assert.Empty(t, c.Error)
	assert.Equal(t, int64(1), p.Stats().Completed)
}

func TestProcessor_SubmitUnknownType(t *testing.T) {
	p, _ := newTestProcessor(t, 1)
	assert.Error(t, p.Submit("missing", "", nil))
}

func TestProcessor_CoalescesQueuedItems(t *testing.T) {
	var mu sync.Mutex
	var payloads []int

	p, _ := newTestProcessor(t, 1, &WorkType{
		ID: "test:work",
		Execute: func(ctx context.Context, subject string, payload any) error {
			mu.Lock()
			payloads = append(payloads, payload.(int))
			mu.Unlock()
			return nil
		},
	})

	// Not started yet: everything queues
	for i := 1; i <= 5; i++ {
		require.NoError(t, p.Submit("test:work", "inv-1", i))
	}
	require.NoError(t, p.Submit("test:work", "inv-2", 100))

	stats := p.Stats()
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, int64(4), stats.Coalesced)

	p.Start()
	waitIdle(t, p)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{5, 100}, payloads)
}

func TestProcessor_PriorityOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(ctx context.Context, subject string, payload any) error {
		mu.Lock()
		order = append(order, subject)
		mu.Unlock()
		return nil
	}

	p, _ := newTestProcessor(t, 1,
		&WorkType{ID: "low", Priority: PriorityLow, Execute: record},
		&WorkType{ID: "high", Priority: PriorityHigh, Execute: record},
		&WorkType{ID: "medium", Priority: PriorityMedium, Execute: record},
	)

	require.NoError(t, p.Submit("low", "a", nil))
	require.NoError(t, p.Submit("medium", "b", nil))
	require.NoError(t, p.Submit("high", "c", nil))
	require.NoError(t, p.Submit("medium", "d", nil))

	p.Start()
	waitIdle(t, p)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"c", "b", "d", "a"}, order)
}

func TestProcessor_SameIDNeverRunsConcurrently(t *testing.T) {
	var active, maxActive, runs atomic.Int32
	release := make(chan struct{})

	p, _ := newTestProcessor(t, 4, &WorkType{
		ID: "test:work",
		Execute: func(ctx context.Context, subject string, payload any) error {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			if runs.Add(1) == 1 {
				<-release
			}
			active.Add(-1)
			return nil
		},
	})
	p.Start()

	require.NoError(t, p.Submit("test:work", "inv-1", 1))
	require.Eventually(t, func() bool { return p.Stats().Running == 1 }, time.Second, time.Millisecond)

	// Queued behind the running item, not started alongside it
	require.NoError(t, p.Submit("test:work", "inv-1", 2))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	waitIdle(t, p)

	assert.Equal(t, int32(2), runs.Load())
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestProcessor_FailuresAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	p, completion := newTestProcessor(t, 2,
		&WorkType{ID: "fail", Execute: func(ctx context.Context, subject string, payload any) error {
			calls.Add(1)
			return errors.New("boom")
		}},
		&WorkType{ID: "panic", Execute: func(ctx context.Context, subject string, payload any) error {
			calls.Add(1)
			panic("corrupt")
		}},
	)
	var failed sync.Map
	p.OnFailure(func(item *WorkItem, err error) { failed.Store(item.ID, err.Error()) })
	p.Start()

	require.NoError(t, p.Submit("fail", "", nil))
	require.NoError(t, p.Submit("panic", "", nil))
	waitIdle(t, p)

	msg, ok := failed.Load("fail")
	require.True(t, ok)
	assert.Equal(t, "boom", msg)
	_, ok = failed.Load("panic")
	assert.True(t, ok)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(2), p.Stats().Failed)

	c, ok := completion.Get("panic", "")
	require.True(t, ok)
	assert.Contains(t, c.Error, "panic in panic")
}

func TestProcessor_TimeoutCancelsContext(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&WorkType{ID: "slow", Execute: func(ctx context.Context, subject string, payload any) error {
		<-ctx.Done()
		return ctx.Err()
	}}))
	completion := NewCompletionTracker()
	p := NewProcessorWithTimeout(registry, completion, 1, 20*time.Millisecond, zerolog.Nop())
	defer p.Stop()
	p.Start()

	require.NoError(t, p.Submit("slow", "", nil))
	waitIdle(t, p)

	c, ok := completion.Get("slow", "")
	require.True(t, ok)
	assert.Contains(t, c.Error, "deadline exceeded")
}

func TestProcessor_StopRejectsSubmissions(t *testing.T) {
	p, _ := newTestProcessor(t, 1, &WorkType{ID: "test:work", Execute: noop})
	p.Start()
	p.Stop()

	assert.Error(t, p.Submit("test:work", "", nil))
}

func TestProcessor_ExecuteNow(t *testing.T) {
	p, _ := newTestProcessor(t, 1, &WorkType{ID: "test:work", Execute: func(ctx context.Context, subject string, payload any) error {
		if subject != "x" {
			return errors.New("unexpected subject")
		}
		return nil
	}})

	assert.NoError(t, p.ExecuteNow(context.Background(), "test:work", "x", nil))
	assert.Error(t, p.ExecuteNow(context.Background(), "missing", "", nil))
}

func TestCompletionTracker(t *testing.T) {
	tracker := NewCompletionTracker()
	wt := &WorkType{ID: "opportunities:recompute", Execute: noop}

	tracker.Record(NewWorkItem(wt, "inv-1", nil), time.Millisecond, nil)
	tracker.Record(NewWorkItem(wt, "inv-2", nil), time.Millisecond, errors.New("boom"))

	c, ok := tracker.Get("opportunities:recompute", "inv-2")
	require.True(t, ok)
	assert.Equal(t, "boom", c.Error)
	assert.Len(t, tracker.Snapshot(), 2)

	tracker.ClearByPrefix("opportunities:recompute:inv-1")
	_, ok = tracker.Get("opportunities:recompute", "inv-1")
	assert.False(t, ok)
	assert.Len(t, tracker.Snapshot(), 1)
}

func TestCompletionTracker_ClearIsExact(t *testing.T) {
	tracker := NewCompletionTracker()
	wt := &WorkType{ID: "opportunities:recompute", Execute: noop}

	tracker.Record(NewWorkItem(wt, "inv-1", nil), time.Millisecond, nil)
	tracker.Record(NewWorkItem(wt, "inv-10", nil), time.Millisecond, nil)

	tracker.Clear("opportunities:recompute", "inv-1")
	_, ok := tracker.Get("opportunities:recompute", "inv-1")
	assert.False(t, ok)
	_, ok = tracker.Get("opportunities:recompute", "inv-10")
	assert.True(t, ok)
}
