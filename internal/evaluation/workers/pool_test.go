package workers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deals(n int) []domain.Deal {
	out := make([]domain.Deal, n)
	for i := range out {
		out[i] = domain.Deal{ID: fmt.Sprintf("DGT-2026-%03d", i+1)}
	}
	return out
}

func echo(_ context.Context, deal domain.Deal) (*domain.EvaluationResult, error) {
	return &domain.EvaluationResult{DealID: deal.ID, Terminal: domain.StateVisible}, nil
}

func TestNewWorkerPool(t *testing.T) {
	tests := []struct {
		name            string
		numWorkers      int
		expectedWorkers int
	}{
		{"positive workers", 5, 5},
		{"zero workers defaults to 10", 0, 10},
		{"negative workers defaults to 10", -1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewWorkerPool(tt.numWorkers)
			assert.Equal(t, tt.expectedWorkers, pool.Size())
		})
	}
}

func TestEvaluateBatch_Empty(t *testing.T) {
	pool := NewWorkerPool(2)
	results := pool.EvaluateBatch(context.Background(), nil, echo, nil)
	assert.Empty(t, results)
}

func TestEvaluateBatch_PreservesOrder(t *testing.T) {
	pool := NewWorkerPool(4)
	input := deals(25)

	var calls atomic.Int32
	results := pool.EvaluateBatch(context.Background(), input, echo, func(completed, total int) {
		calls.Add(1)
		assert.Equal(t, 25, total)
	})

	require.Len(t, results, 25)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, input[i].ID, r.DealID)
		assert.Equal(t, input[i].ID, r.Result.DealID)
	}
	assert.Equal(t, int32(25), calls.Load())
}

func TestEvaluateBatch_IsolatesFailures(t *testing.T) {
	pool := NewWorkerPool(3)
	input := deals(6)

	eval := func(ctx context.Context, deal domain.Deal) (*domain.EvaluationResult, error) {
		switch deal.ID {
		case "DGT-2026-002":
			panic("corrupt record")
		case "DGT-2026-004":
			return nil, errors.New("bad data")
		case "DGT-2026-005":
			return nil, nil
		}
		return echo(ctx, deal)
	}

	results := pool.EvaluateBatch(context.Background(), input, eval, nil)

	require.Len(t, results, 6)
	assert.NoError(t, results[0].Err)
	assert.ErrorContains(t, results[1].Err, "panic evaluating deal DGT-2026-002")
	assert.Nil(t, results[1].Result)
	assert.NoError(t, results[2].Err)
	assert.EqualError(t, results[3].Err, "bad data")
	assert.ErrorContains(t, results[4].Err, "no result")
	assert.NoError(t, results[5].Err)
}

func TestEvaluateBatch_CancelledContext(t *testing.T) {
	pool := NewWorkerPool(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var evaluated atomic.Int32
	results := pool.EvaluateBatch(ctx, deals(4), func(ctx context.Context, deal domain.Deal) (*domain.EvaluationResult, error) {
		evaluated.Add(1)
		return echo(ctx, deal)
	}, nil)

	require.Len(t, results, 4)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Equal(t, int32(0), evaluated.Load())
}
