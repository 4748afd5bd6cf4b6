package source

import (
	"context"

	"github.com/octobees/turmeric-buyers/internal/entity"
)

// StaticCollector returns a fixed record set for every term. It backs offline
// runs and tests.
type StaticCollector struct {
	Label   string
	Records []entity.CandidateRecord
	Err     error
}

func (c StaticCollector) Name() string {
	if c.Label == "" {
		return "static"
	}
	return c.Label
}

func (c StaticCollector) Collect(ctx context.Context, term string, limit int) ([]entity.CandidateRecord, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := make([]entity.CandidateRecord, len(c.Records))
	copy(records, c.Records)
	tag(records, c.Name(), term)
	return truncate(records, limit), nil
}
