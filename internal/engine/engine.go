// Package engine runs probes over a target source in sequential batches,
// with bounded parallelism inside each batch.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	syncutil "github.com/projectdiscovery/utils/sync"

	"github.com/hazz-dev/sitecheck/internal/prober"
	"github.com/hazz-dev/sitecheck/internal/result"
	"github.com/hazz-dev/sitecheck/internal/target"
)

// Observer is notified as results are joined into the table.
type Observer interface {
	Observe(target string, r result.Result)
	BatchDone(size int, elapsed time.Duration)
}

// Options configures an Engine.
type Options struct {
	// BatchSize is the number of targets probed concurrently. Zero probes
	// one target at a time on the calling goroutine.
	BatchSize int
	// OnProgress is called after every batch with the number of targets
	// dispatched so far and the source total.
	OnProgress func(done, total int)
	Observer   Observer
	Logger     *slog.Logger
}

// Engine drives a Prober over a target.Source.
type Engine struct {
	prober     prober.Prober
	batchSize  int
	onProgress func(done, total int)
	observer   Observer
	logger     *slog.Logger
}

// New creates an Engine. Pass a nil Logger to use slog.Default().
func New(p prober.Prober, opts Options) (*Engine, error) {
	if opts.BatchSize < 0 {
		return nil, fmt.Errorf("batch size must not be negative, got %d", opts.BatchSize)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		prober:     p,
		batchSize:  opts.BatchSize,
		onProgress: opts.OnProgress,
		observer:   opts.Observer,
		logger:     opts.Logger,
	}, nil
}

// Sequential reports whether targets are probed one at a time.
func (e *Engine) Sequential() bool {
	return e.batchSize == 0
}

// Run probes every target src yields and returns the filled table.
//
// Batches never overlap: each one is fully joined before the next is pulled
// from src. A probe failure is recorded as result.Failure; only a read error
// from src stops the run early, returning the table collected so far.
func (e *Engine) Run(ctx context.Context, src target.Source) (*result.Table, error) {
	table := result.NewTable()
	if e.Sequential() {
		return table, e.runSequential(ctx, src, table)
	}

	awg, err := syncutil.New(syncutil.WithSize(e.batchSize))
	if err != nil {
		return nil, fmt.Errorf("creating wait group: %w", err)
	}

	for n := 1; ; n++ {
		batch, err := src.Next(e.batchSize)
		if err != nil {
			return table, fmt.Errorf("reading targets: %w", err)
		}
		if len(batch) == 0 {
			return table, nil
		}

		start := time.Now()
		slots := e.dispatch(ctx, awg, batch)
		e.join(table, batch, slots, time.Since(start))

		e.logger.Debug("batch joined", "batch", n, "size", len(batch), "elapsed", time.Since(start))
		e.progress(table.Dispatched(), src.Total())
	}
}

func (e *Engine) runSequential(ctx context.Context, src target.Source, table *result.Table) error {
	for {
		batch, err := src.Next(1)
		if err != nil {
			return fmt.Errorf("reading targets: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}
		for _, t := range batch {
			start := time.Now()
			r := e.probe(ctx, t)
			e.join(table, []string{t}, []result.Result{r}, time.Since(start))
			e.progress(table.Dispatched(), src.Total())
		}
	}
}

// dispatch probes every target of batch concurrently. Each goroutine writes
// only its own slot; slots are read after the barrier.
func (e *Engine) dispatch(ctx context.Context, awg *syncutil.AdaptiveWaitGroup, batch []string) []result.Result {
	slots := make([]result.Result, len(batch))
	for i, t := range batch {
		awg.Add()
		go func(i int, t string) {
			defer awg.Done()
			slots[i] = e.probe(ctx, t)
		}(i, t)
	}
	awg.Wait()
	return slots
}

func (e *Engine) join(table *result.Table, batch []string, slots []result.Result, elapsed time.Duration) {
	for i, t := range batch {
		table.Set(t, slots[i])
		if e.observer != nil {
			e.observer.Observe(t, slots[i])
		}
	}
	if e.observer != nil {
		e.observer.BatchDone(len(batch), elapsed)
	}
}

func (e *Engine) probe(ctx context.Context, t string) (r result.Result) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("probe panicked", "target", t, "panic", p)
			r = result.Failure
		}
	}()
	return e.prober.Probe(ctx, t)
}

func (e *Engine) progress(done, total int) {
	if e.onProgress != nil {
		e.onProgress(done, total)
	}
}
