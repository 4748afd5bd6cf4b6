package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Buyers")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "buyers.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSXMapsHeaderAliases(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"Business Name", "Email", "Contact Number", "City"},
		{"Erode Haldi Exports", "info@erodehaldi.com", "9876543210", "Erode"},
		{"", "", "", ""},
		{"Salem Masala Mart", "", "", "Salem"},
	})

	records, err := ReadXLSX(path, "xlsx")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Erode Haldi Exports", records[0].CompanyName)
	assert.Equal(t, "info@erodehaldi.com", records[0].Email)
	assert.Equal(t, "9876543210", records[0].Phone)
	assert.Equal(t, "xlsx", records[0].Source)
	assert.Equal(t, "Salem", records[1].City)
}

func TestReadXLSXBytesRequiresCompanyColumn(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"Email", "City"},
		{"a@example.com", "Erode"},
	})
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = ReadXLSXBytes(data, "upload")
	var verr CSVValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "company_name")
}

func TestReadXLSXBytesRejectsGarbage(t *testing.T) {
	_, err := ReadXLSXBytes([]byte("not a workbook"), "upload")
	var verr CSVValidationError
	require.ErrorAs(t, err, &verr)
}

func TestXLSXCollectorTagsAndLimits(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"Company", "City"},
		{"Alpha Spices", "Erode"},
		{"Beta Spices", "Salem"},
		{"Gamma Spices", "Kochi"},
	})

	records, err := XLSXCollector{Path: path}.Collect(context.Background(), "turmeric importer", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "xlsx", r.Source)
		assert.Equal(t, "turmeric importer", r.SearchTerm)
	}
}
