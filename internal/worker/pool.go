// Package worker runs a function over a slice with a bounded number of
// goroutines, keeping results in input order.
package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultWorkers is used when Options.Workers is not positive.
const DefaultWorkers = 8

type Options struct {
	Workers int

	// RateLimitRPS is a global limit across all workers. Set to <=0 to disable.
	RateLimitRPS float64

	// Delay is slept by a worker after each item, for politeness towards
	// remote hosts. Zero disables it.
	Delay time.Duration
}

// Result holds the output for one input item. Done is false when the context
// ended before the item finished.
type Result[Out any] struct {
	Index  int
	Output Out
	Done   bool
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	return o
}

// Process runs processor over items with at most opts.Workers in flight.
// Results are indexed like items. When ctx ends, Process returns at once;
// items that were not finished, including any still running, are left with
// Done set to false and their late outputs are discarded.
func Process[In any, Out any](
	ctx context.Context,
	items []In,
	processor func(context.Context, In) Out,
	opts Options,
) []Result[Out] {
	opts = opts.withDefaults()

	out := make([]Result[Out], len(items))
	for i := range out {
		out[i].Index = i
	}
	if len(items) == 0 {
		return out
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	type job struct {
		idx int
		in  In
	}
	type completion struct {
		idx int
		out Out
	}

	jobs := make(chan job)
	// Buffered for every item so abandoned workers never block on send.
	done := make(chan completion, len(items))

	var wg sync.WaitGroup
	workerFn := func() {
		defer wg.Done()
		for j := range jobs {
			if runCtx.Err() != nil {
				return
			}
			if limiter != nil {
				if err := limiter.Wait(runCtx); err != nil {
					return
				}
			}
			result := processor(runCtx, j.in)
			if runCtx.Err() != nil {
				return
			}
			done <- completion{idx: j.idx, out: result}
			if opts.Delay > 0 && !sleep(runCtx, opts.Delay) {
				return
			}
		}
	}

	workers := min(opts.Workers, len(items))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go workerFn()
	}

	go func() {
		defer close(jobs)
		for i, item := range items {
			select {
			case jobs <- job{idx: i, in: item}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	collect := func(item completion) {
		out[item.idx] = Result[Out]{Index: item.idx, Output: item.out, Done: true}
	}
	for {
		select {
		case item, ok := <-done:
			if !ok {
				return out
			}
			collect(item)
		case <-runCtx.Done():
			// Keep completions that were queued before the deadline.
			for {
				select {
				case item, ok := <-done:
					if !ok {
						return out
					}
					collect(item)
				default:
					return out
				}
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
