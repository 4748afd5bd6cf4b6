package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/octobees/turmeric-buyers/internal/entity"
)

// CSVValidationError indicates that the provided CSV payload is invalid.
type CSVValidationError struct {
	Message string
}

// Error implements the error interface.
func (e CSVValidationError) Error() string {
	return e.Message
}

// headerAliases maps accepted column names onto record fields.
var headerAliases = map[string]string{
	"company_name":   "company_name",
	"company":        "company_name",
	"name":           "company_name",
	"business_name":  "company_name",
	"email":          "email",
	"email_address":  "email",
	"phone":          "phone",
	"mobile":         "phone",
	"contact_number": "phone",
	"website":        "website",
	"url":            "website",
	"city":           "city",
	"state":          "state",
	"country":        "country",
	"description":    "description",
	"contact_person": "contact_person",
	"contact":        "contact_person",
	"products":       "products",
	"source":         "source",
	"search_term":    "search_term",
}

// ReadCSV parses candidate records from CSV with a header row. Rows without
// any value are skipped; rows without a company name are kept so that the
// pipeline can report them.
func ReadCSV(r io.Reader, source string) ([]entity.CandidateRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, CSVValidationError{Message: "csv file is empty"}
		}
		return nil, eris.Wrap(err, "read csv header")
	}

	index, err := buildHeaderIndex(header)
	if err != nil {
		return nil, err
	}

	var records []entity.CandidateRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read csv row")
		}
		record, ok := recordFromRow(index, row, source)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// recordFromRow maps a row onto a record using the header index. It reports
// false for rows without any value.
func recordFromRow(index map[string]int, row []string, source string) (entity.CandidateRecord, bool) {
	get := func(field string) string {
		i, ok := index[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	record := entity.CandidateRecord{
		CompanyName:   get("company_name"),
		ContactPerson: get("contact_person"),
		Email:         get("email"),
		Phone:         get("phone"),
		Website:       get("website"),
		City:          get("city"),
		State:         get("state"),
		Country:       get("country"),
		Description:   get("description"),
		Products:      get("products"),
		Source:        get("source"),
		SearchTerm:    get("search_term"),
	}
	if record == (entity.CandidateRecord{}) {
		return record, false
	}
	if record.Source == "" {
		record.Source = source
	}
	return record, true
}

func buildHeaderIndex(header []string) (map[string]int, error) {
	index := make(map[string]int)
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "_")
		field, ok := headerAliases[key]
		if !ok {
			continue
		}
		if _, dup := index[field]; !dup {
			index[field] = i
		}
	}
	if _, ok := index["company_name"]; !ok {
		return nil, CSVValidationError{Message: fmt.Sprintf("missing required column: company_name (got %s)", strings.Join(header, ", "))}
	}
	return index, nil
}

// CSVCollector serves records from a CSV file. The search term only tags the
// records, since a spreadsheet is not searchable.
type CSVCollector struct {
	Path string
}

func (c CSVCollector) Name() string {
	return "csv"
}

func (c CSVCollector) Collect(_ context.Context, term string, limit int) ([]entity.CandidateRecord, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", c.Path)
	}
	defer f.Close()

	records, err := ReadCSV(f, c.Name())
	if err != nil {
		return nil, err
	}
	tag(records, c.Name(), term)
	return truncate(records, limit), nil
}
