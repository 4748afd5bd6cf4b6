package source

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/octobees/turmeric-buyers/internal/entity"
)

const defaultFanOut = 4

// MultiCollector runs every collector for every term and concatenates the
// results in term-then-collector order. A failing collector is logged and
// skipped; the run only fails when the context ends.
type MultiCollector struct {
	Collectors  []Collector
	MaxPerTerm  int
	Target      int
	Concurrency int
}

// WithLimits returns a copy using the given per-term and total caps. Zero
// keeps the current value.
func (m *MultiCollector) WithLimits(maxPerTerm, target int) *MultiCollector {
	clone := *m
	if maxPerTerm > 0 {
		clone.MaxPerTerm = maxPerTerm
	}
	if target > 0 {
		clone.Target = target
	}
	return &clone
}

type collectJob struct {
	term      string
	collector Collector
}

// Collect validates the terms and gathers up to Target records.
func (m *MultiCollector) Collect(ctx context.Context, terms []string) ([]entity.CandidateRecord, error) {
	var jobs []collectJob
	for _, raw := range terms {
		term, err := ValidateSearchTerm(raw)
		if err != nil {
			zap.L().Warn("skipping search term", zap.String("term", raw), zap.Error(err))
			continue
		}
		for _, c := range m.Collectors {
			jobs = append(jobs, collectJob{term: term, collector: c})
		}
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	concurrency := m.Concurrency
	if concurrency <= 0 {
		concurrency = defaultFanOut
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	results := make([][]entity.CandidateRecord, len(jobs))
	var (
		mu        sync.Mutex
		collected int
	)
	reached := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return m.Target > 0 && collected >= m.Target
	}

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if reached() || gctx.Err() != nil {
				return nil
			}
			log := zap.L().With(zap.String("collector", job.collector.Name()), zap.String("term", job.term))
			records, err := job.collector.Collect(gctx, job.term, m.MaxPerTerm)
			if err != nil {
				log.Warn("collector failed", zap.Error(err))
				return nil
			}
			tag(records, job.collector.Name(), job.term)
			results[i] = records
			mu.Lock()
			collected += len(records)
			mu.Unlock()
			log.Debug("collector finished", zap.Int("records", len(records)))
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []entity.CandidateRecord
	for _, records := range results {
		out = append(out, records...)
	}
	if m.Target > 0 && len(out) > m.Target {
		out = out[:m.Target]
	}
	return out, nil
}
