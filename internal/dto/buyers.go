package dto

import "github.com/octobees/turmeric-buyers/internal/entity"

// BuyerFilter contains query parameters for the buyer listing endpoints.
type BuyerFilter struct {
	Q        string
	City     string
	Country  string
	MinScore *int
	Page     int
	PerPage  int
	// Limit overrides paging when positive.
	Limit int
}

// ValidateRequest is the payload accepted by POST /validate.
type ValidateRequest struct {
	Records   []entity.CandidateRecord `json:"records" validate:"required,min=1,max=5000"`
	Threshold string                   `json:"threshold,omitempty" validate:"omitempty,max=16"`
}

// CollectRequest triggers a collection run from the configured sources.
type CollectRequest struct {
	Terms      []string `json:"terms" validate:"omitempty,max=20,dive,min=3,max=100"`
	MaxPerTerm int      `json:"max_per_term,omitempty" validate:"omitempty,min=1,max=500"`
	Target     int      `json:"target,omitempty" validate:"omitempty,min=1,max=5000"`
	Persist    *bool    `json:"persist,omitempty"`
}

// ShouldPersist reports whether accepted buyers should be stored. Defaults to true.
func (r CollectRequest) ShouldPersist() bool {
	return r.Persist == nil || *r.Persist
}

// RunSummary is returned by validation and collection endpoints.
type RunSummary struct {
	RunID          string         `json:"run_id"`
	TotalInput     int            `json:"total_input"`
	AcceptedCount  int            `json:"accepted_count"`
	RejectedCount  int            `json:"rejected_count"`
	DuplicateCount int            `json:"duplicate_count"`
	Reasons        map[string]int `json:"rejection_reasons"`
	TimedOut       bool           `json:"timed_out"`
	DurationMS     int64          `json:"duration_ms"`
	Inserted       int            `json:"inserted,omitempty"`
	Updated        int            `json:"updated,omitempty"`
	Replaced       int            `json:"replaced,omitempty"`
	Merged         int            `json:"merged,omitempty"`
	Hint           string         `json:"hint,omitempty"`
}

// ValidateResponse carries the summary and every validated record.
type ValidateResponse struct {
	Summary  RunSummary               `json:"summary"`
	Accepted []entity.ValidatedRecord `json:"accepted"`
	Rejected []entity.ValidatedRecord `json:"rejected"`
}
