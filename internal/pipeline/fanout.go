package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/recaplab/recap/internal/core/summary"
	"golang.org/x/sync/semaphore"
)

// Unit is one pending generation: the period it belongs to and the
// generation input. Consumed exactly once by the executor.
type Unit struct {
	Year        int
	Period      string // "March" or "Q1"
	MonthIndex  int    // 0-11; quarterly units carry the quarter's first month
	SourceCount int
	StartDate   string
	Input       GenerationInput
}

// FanOutResult partitions settled units: every unit contributes
// exactly one result or one error, never both.
type FanOutResult struct {
	Results summary.ResultSet
	Errors  []summary.GenerationError
}

// FanOutExecutor runs generation units concurrently with
// independent-failure isolation: one unit's failure never cancels or
// retries its siblings.
type FanOutExecutor struct {
	gen *Generator
	// maxConcurrent bounds in-flight generations; <= 0 means
	// unbounded, which matches the upstream behavior.
	maxConcurrent int64
}

// NewFanOutExecutor creates an executor. maxConcurrent <= 0 runs all
// units at once.
func NewFanOutExecutor(gen *Generator, maxConcurrent int) *FanOutExecutor {
	return &FanOutExecutor{gen: gen, maxConcurrent: int64(maxConcurrent)}
}

// Run executes all units and waits for every one to settle. With zero
// units it short-circuits without touching the service.
func (f *FanOutExecutor) Run(ctx context.Context, units []Unit) FanOutResult {
	out := FanOutResult{Results: make(summary.ResultSet)}
	if len(units) == 0 {
		return out
	}

	var sem *semaphore.Weighted
	if f.maxConcurrent > 0 {
		sem = semaphore.NewWeighted(f.maxConcurrent)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(units))
	for _, unit := range units {
		go func(u Unit) {
			defer wg.Done()

			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					mu.Lock()
					out.Errors = append(out.Errors, summary.GenerationError{
						Period:  periodLabel(u),
						Message: err.Error(),
					})
					mu.Unlock()
					return
				}
				defer sem.Release(1)
			}

			output, err := f.gen.Generate(ctx, u.Input)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("[FanOut] Generation failed",
					"period", periodLabel(u), "error", err)
				out.Errors = append(out.Errors, summary.GenerationError{
					Period:  periodLabel(u),
					Message: err.Error(),
				})
				return
			}
			out.Results.Put(summary.Result{
				Period:      u.Period,
				Year:        u.Year,
				MonthIndex:  u.MonthIndex,
				AIOutput:    output,
				SourceCount: u.SourceCount,
				StartDate:   u.StartDate,
			})
		}(unit)
	}
	wg.Wait()

	slog.Info("[FanOut] Batch settled",
		"units", len(units),
		"succeeded", out.Results.Count(),
		"failed", len(out.Errors))
	return out
}

func periodLabel(u Unit) string {
	return fmt.Sprintf("%s %d", u.Period, u.Year)
}
