// Package export writes accepted buyers as CSV, JSON or XLSX.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/octobees/turmeric-buyers/internal/entity"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet that holds buyers in XLSX exports.
const SheetName = "Turmeric Buyers"

const (
	filenamePrefix = "turmeric_buyers"
	dateLayout     = "2006-01-02 15:04:05"
)

// Columns is the column order used by every format.
var Columns = []string{
	"company_name",
	"contact_person",
	"city",
	"state",
	"country",
	"phone",
	"email",
	"website",
	"products",
	"description",
	"source",
	"search_term",
	"data_quality_score",
	"date_added",
}

// ParseFormat accepts csv, json, xlsx and the excel alias.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

// Filename builds turmeric_buyers_YYYYMMDD_HHMMSS.<ext>.
func Filename(at time.Time, f Format) string {
	return filenamePrefix + "_" + at.Format("20060102_150405") + "." + string(f)
}

// row mirrors Columns; field order matters for JSON output.
type row struct {
	CompanyName   string `json:"company_name"`
	ContactPerson string `json:"contact_person"`
	City          string `json:"city"`
	State         string `json:"state"`
	Country       string `json:"country"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Website       string `json:"website"`
	Products      string `json:"products"`
	Description   string `json:"description"`
	Source        string `json:"source"`
	SearchTerm    string `json:"search_term"`
	Score         int    `json:"data_quality_score"`
	DateAdded     string `json:"date_added"`
}

func (r row) values() []string {
	return []string{
		r.CompanyName,
		r.ContactPerson,
		r.City,
		r.State,
		r.Country,
		r.Phone,
		r.Email,
		r.Website,
		r.Products,
		r.Description,
		r.Source,
		r.SearchTerm,
		strconv.Itoa(r.Score),
		r.DateAdded,
	}
}

func toRow(record entity.ValidatedRecord) row {
	phone := strings.TrimSpace(record.Phone)
	if v, ok := record.Verdicts[entity.FieldPhone]; ok && v.Valid && v.Canonical != "" {
		phone = v.Canonical
	}
	email := strings.TrimSpace(record.Email)
	if v, ok := record.Verdicts[entity.FieldEmail]; ok && v.Valid && v.Canonical != "" {
		email = v.Canonical
	}
	var added string
	if !record.ValidatedAt.IsZero() {
		added = record.ValidatedAt.Format(dateLayout)
	}
	return row{
		CompanyName:   FormatCompanyName(record.CompanyName),
		ContactPerson: strings.TrimSpace(record.ContactPerson),
		City:          strings.TrimSpace(record.City),
		State:         strings.TrimSpace(record.State),
		Country:       strings.TrimSpace(record.Country),
		Phone:         phone,
		Email:         email,
		Website:       strings.TrimSpace(record.Website),
		Products:      strings.TrimSpace(record.Products),
		Description:   strings.TrimSpace(record.Description),
		Source:        record.Source,
		SearchTerm:    record.SearchTerm,
		Score:         record.Score,
		DateAdded:     added,
	}
}

// Write encodes the records in the requested format.
func Write(w io.Writer, f Format, records []entity.ValidatedRecord) error {
	rows := make([]row, len(records))
	for i, record := range records {
		rows[i] = toRow(record)
	}
	switch f {
	case FormatCSV:
		return writeCSV(w, rows)
	case FormatJSON:
		return writeJSON(w, rows)
	case FormatXLSX:
		return writeXLSX(w, rows)
	default:
		return eris.Errorf("export: unsupported format %q", f)
	}
}

func writeCSV(w io.Writer, rows []row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, r := range rows {
		if err := cw.Write(r.values()); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

func writeJSON(w io.Writer, rows []row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(rows), "export: encode json")
}

func writeXLSX(w io.Writer, rows []row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	header := sheet.AddRow()
	for _, col := range Columns {
		header.AddCell().SetString(col)
	}
	for _, r := range rows {
		xr := sheet.AddRow()
		for i, value := range r.values() {
			cell := xr.AddCell()
			if Columns[i] == "data_quality_score" {
				cell.SetInt(r.Score)
				continue
			}
			cell.SetString(value)
		}
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}
