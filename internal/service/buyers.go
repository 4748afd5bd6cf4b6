package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/octobees/turmeric-buyers/internal/dto"
	"github.com/octobees/turmeric-buyers/internal/entity"
	"github.com/octobees/turmeric-buyers/internal/repository"
	"github.com/octobees/turmeric-buyers/internal/service/dedup"
	"github.com/octobees/turmeric-buyers/internal/service/scoring"
	"github.com/octobees/turmeric-buyers/internal/source"
)

// NoAcceptedHint is shown when a run finishes without accepted buyers.
const NoAcceptedHint = "no buyers passed validation; try broader search terms or a lower threshold (lenient)"

var (
	// ErrNoCollector is returned when a collection run is requested but no sources are configured.
	ErrNoCollector = errors.New("no collectors configured")
	// ErrNoStore is returned for persistence operations when no repository is configured.
	ErrNoStore = errors.New("no buyer store configured")
	// ErrInvalidThreshold wraps a threshold override that is neither a tier nor 0-100.
	ErrInvalidThreshold = errors.New("invalid threshold")
	// ErrBatchTooLarge is returned when a validation request exceeds MaxBatchSize.
	ErrBatchTooLarge = fmt.Errorf("batch exceeds %d records", MaxBatchSize)
)

// TermCollector gathers candidates for a list of search terms.
type TermCollector interface {
	Collect(ctx context.Context, terms []string) ([]entity.CandidateRecord, error)
}

var _ TermCollector = (*source.MultiCollector)(nil)

type limitedCollector interface {
	WithLimits(maxPerTerm, target int) *source.MultiCollector
}

// BuyersService ties collection, validation and persistence together.
type BuyersService struct {
	repo         repository.BuyersRepository
	pipeline     *Pipeline
	collector    TermCollector
	defaultTerms []string
}

// NewBuyersService wires the service. repo and collector may be nil, which
// disables persistence and collection respectively.
func NewBuyersService(repo repository.BuyersRepository, pipeline *Pipeline, collector TermCollector, defaultTerms []string) *BuyersService {
	if len(defaultTerms) == 0 {
		defaultTerms = source.DefaultSearchTerms
	}
	return &BuyersService{
		repo:         repo,
		pipeline:     pipeline,
		collector:    collector,
		defaultTerms: defaultTerms,
	}
}

// CollectOptions tune a collection run.
type CollectOptions struct {
	Terms      []string
	MaxPerTerm int
	Target     int
	Persist    bool
}

// RunOutcome is a finished batch plus what was written to the store.
type RunOutcome struct {
	Batch  entity.BatchResult
	Upsert repository.UpsertResult
	// Merged counts accepted records dropped because the stored dataset
	// already holds a copy at least as complete.
	Merged int
}

// Validate runs a batch through the pipeline. A non-empty threshold
// overrides the configured acceptance floor for this batch only.
func (s *BuyersService) Validate(ctx context.Context, records []entity.CandidateRecord, threshold string) (entity.BatchResult, error) {
	if err := CheckBatchSize(len(records)); err != nil {
		return entity.BatchResult{}, err
	}
	pipeline := s.pipeline
	if threshold != "" {
		value, err := scoring.ParseThreshold(threshold)
		if err != nil {
			return entity.BatchResult{}, fmt.Errorf("%w: %v", ErrInvalidThreshold, err)
		}
		if pipeline, err = s.pipeline.WithThreshold(value); err != nil {
			return entity.BatchResult{}, err
		}
	}
	return pipeline.Run(ctx, records), nil
}

// CheckBatchSize rejects validation requests larger than MaxBatchSize.
func CheckBatchSize(n int) error {
	if n > MaxBatchSize {
		return eris.Wrapf(ErrBatchTooLarge, "got %d", n)
	}
	return nil
}

// Collect gathers candidates from the configured sources, validates them and
// optionally merges the accepted buyers into the store.
func (s *BuyersService) Collect(ctx context.Context, opts CollectOptions) (RunOutcome, error) {
	if s.collector == nil {
		return RunOutcome{}, ErrNoCollector
	}
	terms := opts.Terms
	if len(terms) == 0 {
		terms = s.defaultTerms
	}

	collector := s.collector
	if lc, ok := collector.(limitedCollector); ok && (opts.MaxPerTerm > 0 || opts.Target > 0) {
		collector = lc.WithLimits(opts.MaxPerTerm, opts.Target)
	}

	candidates, err := collector.Collect(ctx, terms)
	if err != nil {
		return RunOutcome{}, eris.Wrap(err, "collect candidates")
	}
	zap.L().Info("collected candidates", zap.Int("count", len(candidates)), zap.Strings("terms", terms))

	outcome := RunOutcome{Batch: s.pipeline.Run(ctx, candidates)}
	if !opts.Persist || s.repo == nil || len(outcome.Batch.Accepted) == 0 {
		return outcome, nil
	}

	upsert, merged, err := s.Persist(ctx, outcome.Batch)
	if err != nil {
		return outcome, err
	}
	outcome.Upsert = upsert
	outcome.Merged = merged
	return outcome, nil
}

// Persist merges the accepted records of batch into the stored dataset.
func (s *BuyersService) Persist(ctx context.Context, batch entity.BatchResult) (repository.UpsertResult, int, error) {
	if s.repo == nil {
		return repository.UpsertResult{}, 0, ErrNoStore
	}
	stored, err := s.repo.LoadAll(ctx)
	if err != nil {
		return repository.UpsertResult{}, 0, eris.Wrap(err, "load stored buyers")
	}

	fresh, superseded, merged := mergeWithStored(stored, batch.Accepted, s.pipeline.SimilarityThreshold())
	result, err := s.repo.UpsertBuyers(ctx, batch.RunID, fresh, superseded)
	if err != nil {
		return result, merged, eris.Wrap(err, "store buyers")
	}

	zap.L().Info("stored buyers",
		zap.String("run_id", batch.RunID.String()),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("replaced", result.Replaced),
		zap.Int("merged", merged),
	)
	return result, merged, nil
}

// List returns stored buyers matching the filter.
func (s *BuyersService) List(ctx context.Context, filter dto.BuyerFilter) ([]entity.Buyer, error) {
	if s.repo == nil {
		return nil, ErrNoStore
	}
	buyers, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if buyers == nil {
		buyers = []entity.Buyer{}
	}
	return buyers, nil
}

// ExportRecords returns stored buyers as validated records for export.
func (s *BuyersService) ExportRecords(ctx context.Context, filter dto.BuyerFilter) ([]entity.ValidatedRecord, error) {
	if s.repo == nil {
		return nil, ErrNoStore
	}
	var (
		buyers []entity.Buyer
		err    error
	)
	if filter == (dto.BuyerFilter{}) {
		buyers, err = s.repo.LoadAll(ctx)
	} else {
		buyers, err = s.repo.List(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	records := make([]entity.ValidatedRecord, 0, len(buyers))
	for _, b := range buyers {
		records = append(records, b.Validated())
	}
	return records, nil
}

// Summarize flattens a run into the response payload.
func Summarize(outcome RunOutcome) dto.RunSummary {
	batch := outcome.Batch
	summary := dto.RunSummary{
		RunID:          batch.RunID.String(),
		TotalInput:     batch.TotalInput,
		AcceptedCount:  len(batch.Accepted),
		RejectedCount:  batch.RejectedCount,
		DuplicateCount: batch.DuplicateCount,
		Reasons:        batch.Reasons,
		TimedOut:       batch.TimedOut,
		DurationMS:     batch.Duration.Milliseconds(),
		Inserted:       outcome.Upsert.Inserted,
		Updated:        outcome.Upsert.Updated,
		Replaced:       outcome.Upsert.Replaced,
		Merged:         outcome.Merged,
	}
	if summary.AcceptedCount == 0 {
		summary.Hint = NoAcceptedHint
	}
	return summary
}

type mergeItem struct {
	record   entity.CandidateRecord
	incoming int
	stored   int
}

// mergeWithStored orders stored and incoming buyers by completeness (stored
// first on ties) and deduplicates them. It returns the incoming records that
// survive, the stored buyers they displace and how many incoming records
// were absorbed by stored copies.
func mergeWithStored(stored []entity.Buyer, accepted []entity.ValidatedRecord, threshold float64) ([]entity.ValidatedRecord, []uuid.UUID, int) {
	items := make([]mergeItem, 0, len(stored)+len(accepted))
	for i, b := range stored {
		items = append(items, mergeItem{record: b.Candidate(), incoming: -1, stored: i})
	}
	for i, record := range accepted {
		items = append(items, mergeItem{record: record.CandidateRecord, incoming: i, stored: -1})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].record.Completeness() > items[j].record.Completeness()
	})

	deduper := dedup.New(threshold)
	kept := make([]mergeItem, 0, len(items))
	survivors := make([]int, 0, len(accepted))
	var superseded []uuid.UUID
	for _, item := range items {
		pos := deduper.Resolve(item.record)
		if pos < 0 {
			kept = append(kept, item)
			if item.incoming >= 0 {
				survivors = append(survivors, item.incoming)
			}
			continue
		}
		if item.stored >= 0 && kept[pos].incoming >= 0 {
			superseded = append(superseded, stored[item.stored].ID)
		}
	}
	sort.Ints(survivors)

	fresh := make([]entity.ValidatedRecord, 0, len(survivors))
	for _, idx := range survivors {
		fresh = append(fresh, accepted[idx])
	}
	return fresh, superseded, len(accepted) - len(fresh)
}
