package pipeline

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/maltedev/listing-toolkit/internal/csvio"
	"github.com/maltedev/listing-toolkit/internal/models"
	"github.com/maltedev/listing-toolkit/internal/observability"
	"github.com/maltedev/listing-toolkit/internal/parser"
	"github.com/maltedev/listing-toolkit/internal/report"
)

type CleanCSVRequest struct {
	Input string
	// Output defaults to <stem>_cleaned_<timestamp><ext>.
	Output string
}

type CleanCSVResult struct {
	Output       string
	Rows         int
	CellsChanged int
	CharChanges  int
	Run          *models.RunSummary
}

// CleanCSV runs the text cleaner over every cell, header included.
func (s *Service) CleanCSV(ctx context.Context, req CleanCSVRequest) (res *CleanCSVResult, err error) {
	run := models.NewRunSummary(JobCleanCSV, req.Input, s.now())
	defer func() { s.finish(ctx, run, err) }()

	output := req.Output
	if output == "" {
		output = csvio.DerivedPath(req.Input, "_cleaned_"+s.now().Format("20060102_150405"))
	}
	run.Output = output

	fmt.Fprintln(s.out, "Starting comprehensive CSV cleaning...")
	fmt.Fprintf(s.out, "Input file: %s\nOutput file: %s\n\n", req.Input, output)

	table, err := csvio.Load(req.Input)
	if err != nil {
		return nil, err
	}

	res = &CleanCSVResult{Output: output, Run: run}

	header := res.cleanRow(table.Schema.Columns())
	schema := models.NewSchema(header)
	out := &models.Table{
		Source:    output,
		Delimiter: table.Delimiter,
		Schema:    schema,
		Records:   make([]models.Record, 0, len(table.Records)),
	}

	for _, rec := range table.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out.Records = append(out.Records, models.NewRecord(schema, res.cleanRow(rec.Values), rec.Line))

		if res.Rows%1000 == 0 {
			s.logger.Debug("cleaning rows", "rows", res.Rows, "cells_changed", res.CellsChanged)
		}
	}

	if _, err := s.backup(req.Input); err != nil {
		return nil, err
	}
	if err := csvio.Write(output, out); err != nil {
		return nil, err
	}

	fmt.Fprintf(s.out, "Successfully cleaned %s rows\n", report.Number(res.Rows))
	fmt.Fprintf(s.out, "Modified %s cells\n", report.Number(res.CellsChanged))
	fmt.Fprintf(s.out, "Total character changes: %s\n", report.Number(res.CharChanges))
	fmt.Fprintf(s.out, "Output saved to: %s\n", output)

	observability.RowsProcessed.WithLabelValues(JobCleanCSV).Add(float64(res.Rows))
	observability.FixesApplied.WithLabelValues(JobCleanCSV).Add(float64(res.CellsChanged))
	run.Counts["rows_processed"] = res.Rows
	run.Counts["cells_changed"] = res.CellsChanged
	run.Counts["character_changes"] = res.CharChanges

	return res, nil
}

func (r *CleanCSVResult) cleanRow(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = parser.CleanText(v)
		if out[i] != v {
			r.CellsChanged++
			r.CharChanges += abs(utf8.RuneCountInString(v) - utf8.RuneCountInString(out[i]))
		}
	}
	r.Rows++
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
