package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"arkimedes/internal/anvl"
)

// WriteANVL appends every successful result to w as a multi-record ANVL
// document headed by ":: <identifier>" lines, the same shape a registry batch
// download uses.
func WriteANVL(w io.Writer, report Report) error {
	records := make([]anvl.Record, 0, report.Summary.Succeeded)
	for _, res := range report.Results {
		if !res.OK() || report.DryRun {
			continue
		}
		rec := res.Record
		if res.Identifier != "" {
			rec = rec.WithFirst(anvl.KeyIdentifier, res.Identifier)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil
	}
	if err := anvl.WriteAll(w, records...); err != nil {
		return fmt.Errorf("batch: write anvl: %w", err)
	}
	return nil
}

// ReportColumns are the columns written by WriteTSV.
var ReportColumns = []string{"row", "status", "action", "identifier", "target", "attempts", "class", "message"}

// WriteTSV writes one line per result with a header row.
func WriteTSV(w io.Writer, report Report) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'
	if err := writer.Write(ReportColumns); err != nil {
		return fmt.Errorf("batch: write report header: %w", err)
	}
	for _, res := range report.Results {
		line := []string{
			strconv.Itoa(res.Row),
			string(res.Status),
			res.Action.String(),
			res.Identifier,
			res.Record.Target(),
			strconv.Itoa(res.Attempts),
			res.Class,
			singleLine(res.Message()),
		}
		if err := writer.Write(line); err != nil {
			return fmt.Errorf("batch: write report row %d: %w", res.Row, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("batch: flush report: %w", err)
	}
	return nil
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
