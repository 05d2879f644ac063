// Package batch runs one unit of work per item under a fixed concurrency cap
// and fans the results back into a single collector.
package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/catalogix/logger"
	"github.com/teranos/catalogix/sym"
)

// DefaultWorkers is the in-flight cap when Options.Workers is unset.
const DefaultWorkers = 10

// Options configure a Run.
type Options[T, R any] struct {
	// Workers caps the number of items in flight (default DefaultWorkers)
	Workers int

	// OnPanic turns a panic inside work into a result. When nil the item
	// yields the zero R.
	OnPanic func(index int, item T, cause interface{}) R

	// Logger defaults to the "pulse.batch" component logger
	Logger *zap.SugaredLogger
}

// Stats describe a finished Run.
type Stats struct {
	Total        int           `json:"total"`
	Panics       int           `json:"panics"`
	Workers      int           `json:"workers"`
	PeakInFlight int           `json:"peak_in_flight"`
	Duration     time.Duration `json:"duration"`
}

// pulseLogger adds opening/closing markers to the scheduler's log lines.
type pulseLogger struct {
	*zap.SugaredLogger
}

// Starting logs an opening event at debug level
func (l pulseLogger) Starting(msg string, keysAndValues ...interface{}) {
	l.Debugw(sym.PulseOpen+" "+msg, keysAndValues...)
}

// Closing logs a closing event at debug level
func (l pulseLogger) Closing(msg string, keysAndValues ...interface{}) {
	l.Debugw(sym.PulseClose+" "+msg, keysAndValues...)
}

type outcome[R any] struct {
	index  int
	result R
}

// Run calls work once per item with at most opts.Workers calls in flight.
// Every item gets its own goroutine, blocked on a counting semaphore until a
// slot frees up. collect runs in the caller's goroutine, once per item, in
// completion order. Run returns only after every item has been collected;
// there is no fail-fast path.
func Run[T, R any](ctx context.Context, items []T, opts Options[T, R], work func(ctx context.Context, index int, item T) R, collect func(index int, result R)) Stats {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	log := pulseLogger{opts.Logger}
	if log.SugaredLogger == nil {
		log.SugaredLogger = logger.ComponentLogger("pulse.batch")
	}

	if warning := checkMemoryPressure(workers); warning != "" {
		log.Warnw("Memory pressure warning", "warning", warning, logger.FieldWorkers, workers)
	}

	start := time.Now()
	log.Starting("batch started", logger.FieldCount, len(items), logger.FieldWorkers, workers)

	var (
		inFlight atomic.Int64
		peak     atomic.Int64
		panics   atomic.Int64
		wg       sync.WaitGroup
	)
	sem := make(chan struct{}, workers)
	results := make(chan outcome[R], workers)

	for i, item := range items {
		wg.Add(1)
		go func(index int, item T) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			observePeak(&peak, inFlight.Add(1))
			result, panicked := runOne(ctx, index, item, work, opts.OnPanic, log)
			inFlight.Add(-1)
			if panicked {
				panics.Add(1)
			}

			results <- outcome[R]{index: index, result: result}
		}(i, item)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for o := range results {
		collect(o.index, o.result)
	}

	stats := Stats{
		Total:        len(items),
		Panics:       int(panics.Load()),
		Workers:      workers,
		PeakInFlight: int(peak.Load()),
		Duration:     time.Since(start),
	}
	log.Closing("batch finished",
		logger.FieldCount, stats.Total,
		"panics", stats.Panics,
		"peak_in_flight", stats.PeakInFlight,
		logger.FieldDurationMS, stats.Duration.Milliseconds())
	return stats
}

// runOne executes work for a single item and converts a panic into a result.
func runOne[T, R any](ctx context.Context, index int, item T, work func(context.Context, int, T) R, onPanic func(int, T, interface{}) R, log pulseLogger) (result R, panicked bool) {
	defer func() {
		cause := recover()
		if cause == nil {
			return
		}
		panicked = true
		log.Errorw("work item panicked", logger.FieldIndex, index, logger.FieldError, cause)

		var zero R
		result = zero
		if onPanic != nil {
			result = onPanic(index, item, cause)
		}
	}()
	return work(ctx, index, item), false
}

func observePeak(peak *atomic.Int64, n int64) {
	for {
		cur := peak.Load()
		if n <= cur || peak.CompareAndSwap(cur, n) {
			return
		}
	}
}
