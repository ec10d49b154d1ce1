package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/maltedev/listing-toolkit/internal/csvio"
	"github.com/maltedev/listing-toolkit/internal/models"
	"github.com/maltedev/listing-toolkit/internal/observability"
	"github.com/maltedev/listing-toolkit/internal/parser"
	"github.com/maltedev/listing-toolkit/internal/report"
)

const maxSlugSamples = 10

type CleanSlugsRequest struct {
	Input string
	// Output defaults to <stem>_cleaned_slugs_<timestamp><ext>.
	Output string
}

type SlugSample struct {
	ProductID string
	Title     string
	Original  string
	Cleaned   string
}

type CleanSlugsResult struct {
	Output    string
	Total     int
	Encoded   int
	Cleaned   int
	Empty     int
	Unchanged int
	Samples   []SlugSample
	Run       *models.RunSummary
}

// CleanEncodedSlugs rewrites slugs that contain percent-encoded sequences
// into plain ASCII slugs. Other rows are copied unchanged.
func (s *Service) CleanEncodedSlugs(ctx context.Context, req CleanSlugsRequest) (res *CleanSlugsResult, err error) {
	run := models.NewRunSummary(JobCleanSlugs, req.Input, s.now())
	defer func() { s.finish(ctx, run, err) }()

	output := req.Output
	if output == "" {
		output = csvio.DerivedPath(req.Input, "_cleaned_slugs_"+s.now().Format("20060102_150405"))
	}
	run.Output = output

	fmt.Fprintln(s.out, "Analyzing CSV for URL-encoded slugs...")
	fmt.Fprintf(s.out, "Input: %s\nOutput: %s\n\n", req.Input, output)

	table, err := csvio.Load(req.Input)
	if err != nil {
		return nil, err
	}
	if err := table.Schema.Require(SlugColumn); err != nil {
		return nil, err
	}

	res = &CleanSlugsResult{Output: output, Run: run}

	for i := range table.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := &table.Records[i]
		res.Total++

		original := rec.Get(SlugColumn)
		if !parser.HasURLEncoding(original) {
			res.Unchanged++
			continue
		}
		res.Encoded++

		cleaned := parser.CleanEncodedSlug(original)
		if cleaned == "" {
			cleaned = parser.FallbackSlug(productID(*rec))
			res.Empty++
		}
		rec.Set(SlugColumn, cleaned)
		res.Cleaned++

		if len(res.Samples) < maxSlugSamples {
			res.Samples = append(res.Samples, SlugSample{
				ProductID: rec.Get("product_id"),
				Title:     report.Truncate(firstNonEmpty(rec.Get("post_title"), rec.Get("title")), 50),
				Original:  original,
				Cleaned:   cleaned,
			})
		}

		if res.Cleaned%100 == 0 {
			s.logger.Debug("cleaning slugs", "cleaned", res.Cleaned, "processed", res.Total)
		}
	}

	if _, err := s.backup(req.Input); err != nil {
		return nil, err
	}
	if err := csvio.Write(output, table); err != nil {
		return nil, err
	}

	s.printSlugStats(res)

	observability.RowsProcessed.WithLabelValues(JobCleanSlugs).Add(float64(res.Total))
	observability.FixesApplied.WithLabelValues(JobCleanSlugs).Add(float64(res.Cleaned))
	run.Counts["total_products"] = res.Total
	run.Counts["encoded_slugs"] = res.Encoded
	run.Counts["cleaned_slugs"] = res.Cleaned
	run.Counts["empty_slugs"] = res.Empty
	run.Counts["unchanged_slugs"] = res.Unchanged

	return res, nil
}

func (s *Service) printSlugStats(res *CleanSlugsResult) {
	w := s.out
	fmt.Fprintln(w, "\n"+report.Rule('=', 70))
	fmt.Fprintln(w, "CLEANING STATISTICS")
	fmt.Fprintln(w, report.Rule('=', 70))
	fmt.Fprintf(w, "Total products processed:     %s\n", report.Number(res.Total))
	fmt.Fprintf(w, "Products with encoded slugs:  %s\n", report.Number(res.Encoded))
	fmt.Fprintf(w, "Successfully cleaned:         %s\n", report.Number(res.Cleaned))
	fmt.Fprintf(w, "Empty after cleaning:         %s\n", report.Number(res.Empty))
	fmt.Fprintf(w, "Unchanged products:           %s\n", report.Number(res.Unchanged))

	if len(res.Samples) > 0 {
		fmt.Fprintln(w, "\n"+report.Rule('=', 70))
		fmt.Fprintf(w, "SAMPLE CLEANED SLUGS (first %d)\n", maxSlugSamples)
		fmt.Fprintln(w, report.Rule('=', 70))
		for i, smp := range res.Samples {
			fmt.Fprintf(w, "\n%d. Product ID: %s\n", i+1, smp.ProductID)
			fmt.Fprintf(w, "   Title: %s\n", smp.Title)
			fmt.Fprintf(w, "   Original: %s\n", report.Truncate(smp.Original, 60))
			fmt.Fprintf(w, "   Cleaned:  %s\n", smp.Cleaned)
		}
	}

	fmt.Fprintln(w, "\n"+report.Rule('=', 70))
	fmt.Fprintf(w, "Successfully cleaned %s encoded slugs\n", report.Number(res.Cleaned))
	fmt.Fprintf(w, "Output saved to: %s\n", res.Output)
}

// productID is the row's product_id or id, or its line number when both are empty.
func productID(rec models.Record) string {
	if id := firstNonEmpty(rec.Get("product_id"), rec.Get("id")); id != "" {
		return id
	}
	return strconv.Itoa(rec.Line)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
