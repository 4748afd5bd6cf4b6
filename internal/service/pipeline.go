package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/octobees/turmeric-buyers/internal/entity"
	"github.com/octobees/turmeric-buyers/internal/service/dedup"
	"github.com/octobees/turmeric-buyers/internal/service/scoring"
	"github.com/octobees/turmeric-buyers/internal/worker"
)

const defaultBatchTimeout = 5 * time.Minute

// MaxBatchSize is the largest number of candidates accepted by one
// validation request, whether sent as JSON, an upload or a CLI input file.
const MaxBatchSize = 5000

// PipelineConfig is everything a run needs. It is copied into the pipeline
// and never changed afterwards.
type PipelineConfig struct {
	Rules               Rules
	Weights             scoring.Weights
	Threshold           int
	SimilarityThreshold float64
	Workers             int
	BatchTimeout        time.Duration
	RateLimitRPS        float64
	PerWorkerDelay      time.Duration
}

// DefaultPipelineConfig returns the moderate tier with default rules.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Rules:               DefaultRules(),
		Weights:             scoring.DefaultWeights(),
		Threshold:           scoring.ThresholdModerate,
		SimilarityThreshold: dedup.DefaultSimilarity,
		Workers:             worker.DefaultWorkers,
		BatchTimeout:        defaultBatchTimeout,
	}
}

// Pipeline deduplicates, validates and scores batches of candidates.
type Pipeline struct {
	cfg       PipelineConfig
	validator *FieldValidator
	scorer    *scoring.Scorer
	now       func() time.Time
}

// NewPipeline checks the configuration and builds the validator and scorer.
func NewPipeline(cfg PipelineConfig, opts ...FieldValidatorOption) (*Pipeline, error) {
	if cfg.Workers <= 0 {
		return nil, eris.New("pipeline: workers must be positive")
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		return nil, eris.Errorf("pipeline: similarity threshold %v outside (0,1]", cfg.SimilarityThreshold)
	}
	if cfg.BatchTimeout < 0 {
		return nil, eris.New("pipeline: batch timeout must not be negative")
	}
	scorer, err := scoring.NewScorer(cfg.Weights, cfg.Threshold)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: scorer")
	}
	validator, err := NewFieldValidator(cfg.Rules, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: validators")
	}
	return &Pipeline{
		cfg:       cfg,
		validator: validator,
		scorer:    scorer,
		now:       time.Now,
	}, nil
}

// Threshold returns the acceptance floor in use.
func (p *Pipeline) Threshold() int {
	return p.scorer.Threshold()
}

// WithThreshold returns a pipeline sharing this one's validators but
// accepting records at a different score floor.
func (p *Pipeline) WithThreshold(threshold int) (*Pipeline, error) {
	scorer, err := scoring.NewScorer(p.cfg.Weights, threshold)
	if err != nil {
		return nil, err
	}
	clone := *p
	clone.cfg.Threshold = threshold
	clone.scorer = scorer
	return &clone, nil
}

// SimilarityThreshold returns the fuzzy name-match floor used for deduplication.
func (p *Pipeline) SimilarityThreshold() float64 {
	return p.cfg.SimilarityThreshold
}

// ValidateRecord runs every validator for one candidate and scores it.
func (p *Pipeline) ValidateRecord(ctx context.Context, index int, candidate entity.CandidateRecord) entity.ValidatedRecord {
	return p.validateAt(ctx, index, candidate, p.now().UTC())
}

func (p *Pipeline) validateAt(ctx context.Context, index int, candidate entity.CandidateRecord, at time.Time) entity.ValidatedRecord {
	verdicts := p.validator.Validate(ctx, candidate)
	score := p.scorer.Score(verdicts)
	return entity.ValidatedRecord{
		CandidateRecord:  candidate,
		Index:            index,
		Verdicts:         verdicts,
		Score:            score.Score,
		Accepted:         score.Accepted,
		RejectionReasons: score.Reasons,
		ValidatedAt:      at,
	}
}

type indexedCandidate struct {
	index  int
	record entity.CandidateRecord
}

// Run processes one batch. Every input ends up accepted, rejected or counted
// as a duplicate; records still unfinished at the batch deadline, including
// those deduplication never reached, are rejected as timed out. Output order
// follows input order and every record of a run carries the same ValidatedAt.
func (p *Pipeline) Run(ctx context.Context, candidates []entity.CandidateRecord) entity.BatchResult {
	start := p.now()
	stamp := start.UTC()
	result := entity.BatchResult{
		RunID:      uuid.New(),
		TotalInput: len(candidates),
		Accepted:   []entity.ValidatedRecord{},
		Reasons:    map[string]int{},
	}

	runCtx := ctx
	if p.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.BatchTimeout)
		defer cancel()
	}

	deduper := dedup.New(p.cfg.SimilarityThreshold)
	unique := make([]indexedCandidate, 0, len(candidates))
	var unexamined []indexedCandidate
	for i, candidate := range candidates {
		if runCtx.Err() != nil {
			for j := i; j < len(candidates); j++ {
				unexamined = append(unexamined, indexedCandidate{index: j, record: candidates[j]})
			}
			break
		}
		if deduper.Add(candidate) {
			unique = append(unique, indexedCandidate{index: i, record: candidate})
			continue
		}
		result.DuplicateCount++
	}

	outcomes := worker.Process(runCtx, unique, func(ctx context.Context, item indexedCandidate) entity.ValidatedRecord {
		return p.validateAt(ctx, item.index, item.record, stamp)
	}, worker.Options{
		Workers:      p.cfg.Workers,
		RateLimitRPS: p.cfg.RateLimitRPS,
		Delay:        p.cfg.PerWorkerDelay,
	})

	records := make([]entity.ValidatedRecord, 0, len(unique)+len(unexamined))
	for i, outcome := range outcomes {
		if !outcome.Done {
			records = append(records, p.timedOut(unique[i], stamp))
			result.TimedOut = true
			continue
		}
		records = append(records, outcome.Output)
	}
	for _, item := range unexamined {
		records = append(records, p.timedOut(item, stamp))
		result.TimedOut = true
	}

	for _, record := range records {
		if record.Accepted {
			result.Accepted = append(result.Accepted, record)
			continue
		}
		result.Rejected = append(result.Rejected, record)
		result.RejectedCount++
		for _, reason := range record.RejectionReasons {
			result.Reasons[reason]++
		}
	}
	result.Duration = p.now().Sub(start)

	zap.L().Info("validation run finished",
		zap.String("run_id", result.RunID.String()),
		zap.Int("total", result.TotalInput),
		zap.Int("accepted", len(result.Accepted)),
		zap.Int("rejected", result.RejectedCount),
		zap.Int("duplicates", result.DuplicateCount),
		zap.Int("not_deduplicated", len(unexamined)),
		zap.Bool("timed_out", result.TimedOut),
		zap.Duration("duration", result.Duration),
	)
	return result
}

func (p *Pipeline) timedOut(item indexedCandidate, at time.Time) entity.ValidatedRecord {
	verdicts := make(map[entity.Field]entity.FieldVerdict, len(entity.Fields))
	for _, field := range entity.Fields {
		verdicts[field] = entity.Invalid(entity.KindTimeout, "batch deadline reached")
	}
	return entity.ValidatedRecord{
		CandidateRecord:  item.record,
		Index:            item.index,
		Verdicts:         verdicts,
		RejectionReasons: []string{scoring.ReasonTimeout},
		ValidatedAt:      at,
	}
}
