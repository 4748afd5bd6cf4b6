package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Buyer is an accepted buyer persisted in the accumulated dataset.
type Buyer struct {
	ID            uuid.UUID       `json:"id"`
	NameKey       string          `json:"-"`
	RunID         *uuid.UUID      `json:"run_id,omitempty"`
	CompanyName   string          `json:"company_name"`
	ContactPerson *string         `json:"contact_person,omitempty"`
	Email         *string         `json:"email,omitempty"`
	Phone         *string         `json:"phone,omitempty"`
	Website       *string         `json:"website,omitempty"`
	City          *string         `json:"city,omitempty"`
	State         *string         `json:"state,omitempty"`
	Country       *string         `json:"country,omitempty"`
	Description   *string         `json:"description,omitempty"`
	Products      *string         `json:"products,omitempty"`
	SearchTerm    *string         `json:"search_term,omitempty"`
	Source        string          `json:"source"`
	Score         int             `json:"score"`
	Verdicts      json.RawMessage `json:"field_verdicts"`
	ValidatedAt   *time.Time      `json:"validated_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Candidate converts the stored buyer back into a candidate record so it can
// take part in deduplication against fresh results.
func (b Buyer) Candidate() CandidateRecord {
	return CandidateRecord{
		CompanyName:   b.CompanyName,
		ContactPerson: deref(b.ContactPerson),
		Email:         deref(b.Email),
		Phone:         deref(b.Phone),
		Website:       deref(b.Website),
		City:          deref(b.City),
		State:         deref(b.State),
		Country:       deref(b.Country),
		Description:   deref(b.Description),
		Products:      deref(b.Products),
		SearchTerm:    deref(b.SearchTerm),
		Source:        b.Source,
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// Validated presents the stored buyer as an accepted validated record.
func (b Buyer) Validated() ValidatedRecord {
	record := ValidatedRecord{
		CandidateRecord: b.Candidate(),
		Score:           b.Score,
		Accepted:        true,
	}
	if b.ValidatedAt != nil {
		record.ValidatedAt = *b.ValidatedAt
	} else {
		record.ValidatedAt = b.CreatedAt
	}
	if len(b.Verdicts) > 0 {
		var verdicts map[Field]FieldVerdict
		if err := json.Unmarshal(b.Verdicts, &verdicts); err == nil {
			record.Verdicts = verdicts
		}
	}
	return record
}
