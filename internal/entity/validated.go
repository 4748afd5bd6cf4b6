package entity

import (
	"time"

	"github.com/google/uuid"
)

// ValidatedRecord is a candidate together with its verdicts and score.
// It is built once by the pipeline and never modified afterwards.
type ValidatedRecord struct {
	CandidateRecord
	Index            int                    `json:"-"`
	Verdicts         map[Field]FieldVerdict `json:"field_verdicts"`
	Score            int                    `json:"score"`
	Accepted         bool                   `json:"accepted"`
	RejectionReasons []string               `json:"rejection_reasons"`
	ValidatedAt      time.Time              `json:"validated_at"`
}

// Verdict returns the verdict recorded for field, or an empty invalid verdict.
func (r ValidatedRecord) Verdict(field Field) FieldVerdict {
	if v, ok := r.Verdicts[field]; ok {
		return v
	}
	return Invalid(KindEmpty, "not validated")
}

// BatchResult is the outcome of one pipeline run. Every input record lands in
// exactly one of accepted, rejected or duplicate.
type BatchResult struct {
	RunID          uuid.UUID         `json:"run_id"`
	Accepted       []ValidatedRecord `json:"accepted"`
	Rejected       []ValidatedRecord `json:"rejected,omitempty"`
	RejectedCount  int               `json:"rejected_count"`
	DuplicateCount int               `json:"duplicate_count"`
	TotalInput     int               `json:"total_input"`
	Reasons        map[string]int    `json:"rejection_reasons"`
	TimedOut       bool              `json:"timed_out"`
	Duration       time.Duration     `json:"duration"`
}

// Balanced reports whether the bucket counts add up to the input size.
func (b BatchResult) Balanced() bool {
	return b.TotalInput == len(b.Accepted)+b.RejectedCount+b.DuplicateCount
}
