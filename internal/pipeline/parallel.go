package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ErrNoItems is returned when a parallel run is started without work.
var ErrNoItems = errors.New("no items provided")

// ParallelConfig holds configuration for parallel processing.
type ParallelConfig struct {
	MaxWorkers       int                          // Number of parallel workers (0 = runtime.NumCPU())
	ContinueOnError  bool                         // Keep going after an item fails
	ProgressCallback ProgressCallback             // Optional progress reporting
	ErrorHandler     func(name string, err error) // Optional per-item error handler
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		MaxWorkers: runtime.NumCPU(),
	}
}

// ItemError reports the failure of one item in a batch run.
type ItemError struct {
	Index int
	Name  string
	Stage string
	Err   error
}

func (e *ItemError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Name, e.Stage, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Stage attaches a stage name to err unless it already carries one.
func Stage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var ie *ItemError
	if errors.As(err, &ie) {
		return err
	}
	return &ItemError{Stage: stage, Err: err}
}

// Item is one unit of work with a display name.
type Item[T any] struct {
	Name  string
	Value T
}

type job[T any] struct {
	index int
	item  Item[T]
}

type result[R any] struct {
	index int
	value R
	err   error
}

// RunParallel applies fn to every item on a worker pool and returns the
// results in input order. Failed items leave the zero value in their slot.
// Without ContinueOnError the first failure cancels the remaining work and
// the failure with the lowest index is returned as an *ItemError. With it,
// every item runs and all failures come back joined.
func RunParallel[T, R any](ctx context.Context, items []Item[T], cfg ParallelConfig,
	fn func(context.Context, Item[T]) (R, error),
) ([]R, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(items))

	if cfg.ProgressCallback != nil {
		cfg.ProgressCallback.OnStart(len(items))
		defer cfg.ProgressCallback.OnComplete()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job[T], len(items))
	results := make(chan result[R], len(items))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go worker(ctx, jobs, results, &wg, fn, stopOnError(cfg, cancel))
	}

	go func() {
		defer close(jobs)
		for i, it := range items {
			select {
			case jobs <- job[T]{index: i, item: it}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]R, len(items))
	errs := make(map[int]error)
	processed := 0
	for r := range results {
		processed++
		if r.err != nil {
			errs[r.index] = r.err
			if cfg.ProgressCallback != nil {
				cfg.ProgressCallback.OnError(r.index, r.err)
			}
			if !cfg.ContinueOnError {
				cancel()
			}
		} else {
			out[r.index] = r.value
		}
		if cfg.ProgressCallback != nil {
			cfg.ProgressCallback.OnProgress(processed, len(items))
		}
	}

	var failures []error
	for i := range items {
		err, ok := errs[i]
		if !ok {
			continue
		}
		ie := asItemError(i, items[i].Name, err)
		if cfg.ErrorHandler != nil {
			cfg.ErrorHandler(items[i].Name, ie)
		}
		failures = append(failures, ie)
	}
	switch {
	case len(failures) > 0 && !cfg.ContinueOnError:
		return out, failures[0]
	case len(failures) > 0:
		return out, errors.Join(failures...)
	case processed < len(items):
		// Cancelled from outside before every item ran.
		return out, ctx.Err()
	}
	return out, nil
}

func asItemError(index int, name string, err error) *ItemError {
	var ie *ItemError
	if errors.As(err, &ie) {
		return &ItemError{Index: index, Name: name, Stage: ie.Stage, Err: ie.Err}
	}
	return &ItemError{Index: index, Name: name, Err: err}
}

// stopOnError returns the function a worker calls after a failed item.
func stopOnError(cfg ParallelConfig, cancel context.CancelFunc) func() {
	if cfg.ContinueOnError {
		return func() {}
	}
	return cancel
}

// worker runs jobs until the channel closes or ctx ends. onError runs
// before the failure is reported so that no other queued job starts once
// the pool is cancelled.
func worker[T, R any](
	ctx context.Context,
	jobs <-chan job[T],
	results chan<- result[R],
	wg *sync.WaitGroup,
	fn func(context.Context, Item[T]) (R, error),
	onError func(),
) {
	defer wg.Done()

	for {
		select {
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			v, err := fn(ctx, j.item)
			if err != nil {
				onError()
			}
			results <- result[R]{index: j.index, value: v, err: err}
		case <-ctx.Done():
			return
		}
	}
}

// ParallelStats holds statistics about a parallel run.
type ParallelStats struct {
	TotalItems       int           `json:"total_items"`
	ProcessedItems   int           `json:"processed_items"`
	FailedItems      int           `json:"failed_items"`
	WorkerCount      int           `json:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	AveragePerItem   time.Duration `json:"average_per_item_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// CalculateParallelStats derives throughput figures from a finished run.
func CalculateParallelStats(total, failed int, duration time.Duration, workerCount int) ParallelStats {
	processed := total - failed
	stats := ParallelStats{
		TotalItems:     total,
		ProcessedItems: processed,
		FailedItems:    failed,
		WorkerCount:    workerCount,
		TotalDuration:  duration,
	}
	if processed > 0 && duration > 0 {
		stats.AveragePerItem = duration / time.Duration(processed)
		stats.ThroughputPerSec = float64(processed) / duration.Seconds()
	}
	return stats
}
