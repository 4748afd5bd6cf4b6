package entity

import "strings"

// CandidateRecord is an unvalidated prospective buyer as supplied by a source collector.
// Optional fields are empty strings when the source did not provide them.
type CandidateRecord struct {
	CompanyName   string `json:"company_name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Website       string `json:"website,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	Country       string `json:"country,omitempty"`
	Description   string `json:"description,omitempty"`
	Products      string `json:"products,omitempty"`
	Source        string `json:"source"`
	SearchTerm    string `json:"search_term,omitempty"`
}

// Completeness rates how much contact data a record carries. Higher is better;
// it is used to pick which duplicate survives when datasets are merged.
func (r CandidateRecord) Completeness() int {
	score := 0
	if present(r.CompanyName) {
		score += 3
	}
	if present(r.Phone) {
		score += 2
	}
	if present(r.Email) {
		score += 2
	}
	for _, v := range []string{r.City, r.State, r.ContactPerson, r.Website, r.Description} {
		if present(v) {
			score++
		}
	}
	return score
}

func present(v string) bool {
	return strings.TrimSpace(v) != ""
}

// DuplicateKeys are the normalized identities used to detect duplicates.
// Empty keys never match.
type DuplicateKeys struct {
	Name  string
	Email string
	Phone string
}
