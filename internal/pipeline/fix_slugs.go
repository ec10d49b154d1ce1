package pipeline

import (
	"context"
	"fmt"

	"github.com/maltedev/listing-toolkit/internal/csvio"
	"github.com/maltedev/listing-toolkit/internal/dedup"
	"github.com/maltedev/listing-toolkit/internal/models"
	"github.com/maltedev/listing-toolkit/internal/observability"
	"github.com/maltedev/listing-toolkit/internal/parser"
	"github.com/maltedev/listing-toolkit/internal/report"
)

// SlugColumn is recomputed from the title when a fixed file carries one.
const SlugColumn = "slug"

type FixSlugsRequest struct {
	Input string
	// Output defaults to <stem>_fixed<ext> next to Input.
	Output string
	// IDColumn and TitleColumn are header names or spreadsheet letters;
	// they default to "A" and "B".
	IDColumn    string
	TitleColumn string
}

type FixSlugsResult struct {
	Output string
	Backup string
	Report string
	Stats  dedup.Stats
	Run    *models.RunSummary
}

// FixSlugs makes every title in a CSV file produce a distinct slug by
// appending the product ID to repeated titles. Every row is kept.
func (s *Service) FixSlugs(ctx context.Context, req FixSlugsRequest) (res *FixSlugsResult, err error) {
	run := models.NewRunSummary(JobFixSlugs, req.Input, s.now())
	defer func() { s.finish(ctx, run, err) }()

	output := req.Output
	if output == "" {
		output = csvio.DerivedPath(req.Input, "_fixed")
	}
	run.Output = output

	fmt.Fprintf(s.out, "Reading CSV file: %s\n", req.Input)
	table, err := csvio.Load(req.Input)
	if err != nil {
		return nil, err
	}

	idCol, err := table.Schema.Resolve(orDefault(req.IDColumn, "A"))
	if err != nil {
		return nil, err
	}
	titleCol, err := table.Schema.Resolve(orDefault(req.TitleColumn, "B"))
	if err != nil {
		return nil, err
	}

	opts := dedup.Options{
		Key:      dedup.SlugKey(titleCol, idCol),
		Strategy: dedup.StrategyAppendID,
		Field:    titleCol,
		IDField:  idCol,
		Logger:   s.logger,
	}
	if table.Schema.Has(SlugColumn) && titleCol != SlugColumn {
		opts.Derived = map[string]func(string) string{SlugColumn: parser.GenerateSlug}
	}

	result, err := dedup.New(opts).Run(ctx, table.Records)
	if err != nil {
		return nil, err
	}

	res = &FixSlugsResult{Output: output, Stats: result.Stats, Run: run}

	if res.Backup, err = s.backup(req.Input); err != nil {
		return nil, err
	}
	if res.Backup != "" {
		fmt.Fprintf(s.out, "Created backup: %s\n", res.Backup)
		run.Backup = res.Backup
	}

	for i, f := range result.Stats.Fixes {
		fmt.Fprintf(s.out, "  Fixed duplicate #%d: %s -> ...%s\n", i+1, report.Truncate(f.Original, 50), f.ID)
	}

	fmt.Fprintf(s.out, "\nWriting fixed CSV to: %s\n", output)
	out := &models.Table{
		Source:    output,
		Delimiter: table.Delimiter,
		Schema:    table.Schema,
		Records:   result.Records,
	}
	if err := csvio.Write(output, out); err != nil {
		return nil, err
	}

	st := result.Stats
	report.PrintDedupSummary(s.out, st, output)

	if s.cfg.Files.Report {
		res.Report = csvio.ReportPath(output)
		fmt.Fprintf(s.out, "\nWriting detailed report to: %s\n", res.Report)
		r := report.SlugFixes(st, output, s.now())
		r.RunID = run.ID
		if err := r.Save(res.Report); err != nil {
			return nil, err
		}
	}

	observability.ObserveDedup(JobFixSlugs, st.Total, st.InternalDuplicates, st.ExternalDuplicates, len(st.Fixes))
	run.Counts["total_rows"] = st.Total
	run.Counts["unique_slugs"] = st.UniqueKeys
	run.Counts["duplicate_slugs"] = st.DuplicateKeys
	run.Counts["fixes_applied"] = len(st.Fixes)

	return res, nil
}
