package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/octobees/turmeric-buyers/internal/dto"
	"github.com/octobees/turmeric-buyers/internal/entity"
	"github.com/octobees/turmeric-buyers/internal/export"
	"github.com/octobees/turmeric-buyers/internal/source"
)

// readCandidates loads records from a CSV or XLSX file, chosen by extension.
func readCandidates(path, label string) ([]entity.CandidateRecord, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return source.ReadXLSX(path, label)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return source.ReadCSV(f, label)
}

// resolveOutput picks the export format and file name. An explicit format
// wins over the output extension; without either the output is CSV.
func resolveOutput(output, format string, now time.Time) (string, export.Format, error) {
	if format == "" && output != "" {
		format = strings.TrimPrefix(filepath.Ext(output), ".")
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return "", "", err
	}
	if output == "" {
		output = export.Filename(now, f)
	}
	return output, f, nil
}

func writeExport(path string, f export.Format, records []entity.ValidatedRecord) error {
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := export.Write(out, f, records); err != nil {
		out.Close()
		return err
	}
	return eris.Wrapf(out.Close(), "close %s", path)
}

func printSummary(w io.Writer, summary dto.RunSummary, output string) {
	fmt.Fprintf(w, "run %s: %d input, %d accepted, %d rejected, %d duplicates (%dms)\n",
		summary.RunID, summary.TotalInput, summary.AcceptedCount, summary.RejectedCount, summary.DuplicateCount, summary.DurationMS)
	reasons := make([]string, 0, len(summary.Reasons))
	for reason := range summary.Reasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(w, "  %-28s %d\n", reason, summary.Reasons[reason])
	}
	if summary.TimedOut {
		fmt.Fprintln(w, "batch deadline reached; unfinished records were rejected")
	}
	if summary.Inserted+summary.Updated > 0 {
		fmt.Fprintf(w, "stored: %d new, %d updated, %d replaced, %d merged\n", summary.Inserted, summary.Updated, summary.Replaced, summary.Merged)
	}
	if summary.Hint != "" {
		fmt.Fprintln(w, summary.Hint)
		return
	}
	if output != "" {
		fmt.Fprintf(w, "wrote %s\n", output)
	}
}
