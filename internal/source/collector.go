// Package source gathers candidate buyers from directories, spreadsheets and
// the remote scrape worker.
package source

import (
	"context"
	"errors"
	"strings"

	"github.com/octobees/turmeric-buyers/internal/entity"
)

// Collector returns up to limit candidate records for a search term. A limit
// of zero or less means no limit.
type Collector interface {
	Name() string
	Collect(ctx context.Context, term string, limit int) ([]entity.CandidateRecord, error)
}

const minTermLength = 3

// ErrInvalidTerm is returned for search terms that are too short or carry markup.
var ErrInvalidTerm = errors.New("search term must be at least 3 characters without <>\"' characters")

// DefaultSearchTerms seed a collection run when none are configured.
var DefaultSearchTerms = []string{
	"turmeric buyer",
	"turmeric importer",
	"turmeric powder buyer",
	"haldi buyer",
	"curcuma importer",
	"spice importer",
	"turmeric wholesaler",
	"turmeric distributor",
}

// ValidateSearchTerm normalizes whitespace and rejects unusable terms.
func ValidateSearchTerm(term string) (string, error) {
	term = strings.Join(strings.Fields(term), " ")
	if len([]rune(term)) < minTermLength || strings.ContainsAny(term, `<>"'`) {
		return "", ErrInvalidTerm
	}
	return term, nil
}

func truncate(records []entity.CandidateRecord, limit int) []entity.CandidateRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

func tag(records []entity.CandidateRecord, source, term string) {
	for i := range records {
		if records[i].Source == "" {
			records[i].Source = source
		}
		if records[i].SearchTerm == "" {
			records[i].SearchTerm = term
		}
	}
}
