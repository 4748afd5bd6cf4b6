package source

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/octobees/turmeric-buyers/internal/entity"
)

// ReadXLSX parses candidate records from the first sheet of a workbook file.
func ReadXLSX(path, source string) ([]entity.CandidateRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	return readWorkbook(f, source)
}

// ReadXLSXBytes parses candidate records from an uploaded workbook.
func ReadXLSXBytes(data []byte, source string) ([]entity.CandidateRecord, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, CSVValidationError{Message: "file is not a valid xlsx workbook"}
	}
	return readWorkbook(f, source)
}

func readWorkbook(f *xlsx.File, source string) ([]entity.CandidateRecord, error) {
	if len(f.Sheets) == 0 || len(f.Sheets[0].Rows) == 0 {
		return nil, CSVValidationError{Message: "xlsx workbook is empty"}
	}
	rows := f.Sheets[0].Rows

	index, err := buildHeaderIndex(rowToStrings(rows[0]))
	if err != nil {
		return nil, err
	}

	var records []entity.CandidateRecord
	for _, row := range rows[1:] {
		if row == nil {
			continue
		}
		record, ok := recordFromRow(index, rowToStrings(row), source)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// XLSXCollector serves records from a workbook on disk.
type XLSXCollector struct {
	Path string
}

func (c XLSXCollector) Name() string {
	return "xlsx"
}

func (c XLSXCollector) Collect(_ context.Context, term string, limit int) ([]entity.CandidateRecord, error) {
	records, err := ReadXLSX(c.Path, c.Name())
	if err != nil {
		return nil, err
	}
	tag(records, c.Name(), term)
	return truncate(records, limit), nil
}
