// Package workers runs independent (deal, investor) evaluations in parallel.
package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/aristath/dealflow/internal/domain"
)

// DefaultWorkers is used when a non-positive worker count is requested.
const DefaultWorkers = 10

// PairEvaluator evaluates one deal for the investor the batch belongs to.
type PairEvaluator func(ctx context.Context, deal domain.Deal) (*domain.EvaluationResult, error)

// ProgressCallback is called after each finished evaluation.
type ProgressCallback func(completed, total int)

// PairResult is the outcome of one job. Exactly one of Result and Err is set.
type PairResult struct {
	DealID string
	Result *domain.EvaluationResult
	Err    error
}

// WorkerPool manages a pool of worker goroutines for parallel pair evaluation
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// Size returns the number of workers.
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

// EvaluateBatch evaluates every deal in parallel and returns results in input order.
//
// A panic or error in one evaluation is captured in that deal's PairResult and
// never affects the others. Once ctx is done, remaining deals are reported with
// the context error instead of being evaluated.
func (wp *WorkerPool) EvaluateBatch(
	ctx context.Context,
	deals []domain.Deal,
	eval PairEvaluator,
	progress ProgressCallback,
) []PairResult {
	numDeals := len(deals)
	if numDeals == 0 {
		return []PairResult{}
	}

	jobs := make(chan jobItem, numDeals)
	results := make(chan resultItem, numDeals)

	var wg sync.WaitGroup
	numActualWorkers := wp.numWorkers
	if numDeals < numActualWorkers {
		numActualWorkers = numDeals
	}

	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, eval)
		}()
	}

	for idx, deal := range deals {
		jobs <- jobItem{index: idx, deal: deal}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	resultSlice := make([]PairResult, numDeals)
	completed := 0
	for result := range results {
		resultSlice[result.index] = result.pair
		completed++
		if progress != nil {
			progress(completed, numDeals)
		}
	}

	return resultSlice
}

type jobItem struct {
	index int
	deal  domain.Deal
}

type resultItem struct {
	index int
	pair  PairResult
}

func worker(ctx context.Context, jobs <-chan jobItem, results chan<- resultItem, eval PairEvaluator) {
	for job := range jobs {
		results <- resultItem{
			index: job.index,
			pair:  evaluateOne(ctx, job.deal, eval),
		}
	}
}

func evaluateOne(ctx context.Context, deal domain.Deal, eval PairEvaluator) (pair PairResult) {
	pair.DealID = deal.ID
	if err := ctx.Err(); err != nil {
		pair.Err = err
		return pair
	}

	defer func() {
		if r := recover(); r != nil {
			pair.Result = nil
			pair.Err = fmt.Errorf("panic evaluating deal %s: %v", deal.ID, r)
		}
	}()

	res, err := eval(ctx, deal)
	if err != nil {
		pair.Err = err
		return pair
	}
	if res == nil {
		pair.Err = fmt.Errorf("no result for deal %s", deal.ID)
		return pair
	}
	pair.Result = res
	return pair
}
