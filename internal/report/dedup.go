package report

import (
	"fmt"
	"io"
	"time"

	"github.com/maltedev/listing-toolkit/internal/dedup"
)

// TopDuplicateCount is how many keys the duplicate listing shows.
const TopDuplicateCount = 10

// SheetStats is the outcome of deduplicating one CSV file or workbook sheet.
type SheetStats struct {
	Sheet string
	Stats dedup.Stats
}

// SlugFixes builds the report for an append-id slug run.
func SlugFixes(stats dedup.Stats, output string, now time.Time) *Report {
	r := New("CSV slug deduplication report", now)
	r.Add("total_rows", stats.Total).
		Add("total_unique_slugs", stats.UniqueKeys).
		Add("duplicate_slugs", stats.DuplicateKeys).
		Add("total_fixes_applied", len(stats.Fixes)).
		Add("output_file", output)

	fixes := Section{Title: "Duplicates fixed"}
	for _, f := range stats.Fixes {
		fixes.Blocks = append(fixes.Blocks, []string{
			fmt.Sprintf("Product ID: %s", f.ID),
			fmt.Sprintf("Original: %s", f.Original),
			fmt.Sprintf("Modified: %s", f.Rewritten),
			fmt.Sprintf("Slug: %s", f.Key),
			fmt.Sprintf("Occurrence #: %d", f.Occurrence),
		})
	}
	return r.AddSection(fixes)
}

// FolderDedup builds the report for a newest-file deduplication run.
func FolderDedup(input, backup string, referenceKeys int, skipped []string, sheets []SheetStats, now time.Time) *Report {
	r := New("Folder deduplication report", now)
	r.Add("input_file", input).
		Add("backup_file", backup).
		Add("reference_keys", referenceKeys).
		Add("skipped_files", len(skipped))

	per := Section{Title: "Sheets"}
	for _, s := range sheets {
		per.Blocks = append(per.Blocks, sheetLines(s))
	}
	r.AddSection(per)

	if len(skipped) > 0 {
		r.AddSection(Section{Title: "Skipped files", Blocks: [][]string{skipped}})
	}
	return r
}

// PrintDedupSummary writes the console summary of a slug run.
func PrintDedupSummary(w io.Writer, stats dedup.Stats, output string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, Rule('=', 60))
	fmt.Fprintln(w, "DEDUPLICATION SUMMARY")
	fmt.Fprintln(w, Rule('=', 60))
	fmt.Fprintf(w, "Total rows processed: %s\n", Number(stats.Total))
	fmt.Fprintf(w, "Unique slugs found: %s\n", Number(stats.UniqueKeys))
	fmt.Fprintf(w, "Duplicate slugs found: %s\n", Number(stats.DuplicateKeys))
	fmt.Fprintf(w, "Fixes applied: %s\n", Number(len(stats.Fixes)))
	fmt.Fprintf(w, "Output file: %s\n", output)

	top := stats.TopDuplicates(TopDuplicateCount)
	if len(top) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, Rule('-', 60))
	fmt.Fprintf(w, "TOP DUPLICATE SLUGS (showing first %d):\n", TopDuplicateCount)
	fmt.Fprintln(w, Rule('-', 60))
	for _, kc := range top {
		fmt.Fprintf(w, "  %dx: %s\n", kc.Count, Truncate(kc.Key, 60))
		for _, s := range kc.Samples {
			fmt.Fprintf(w, "      - ID: %s, Title: %s\n", s.ID, Truncate(s.Value, 50))
		}
		if more := kc.Count - len(kc.Samples); more > 0 {
			fmt.Fprintf(w, "      ... and %d more\n", more)
		}
	}
}

// PrintSheetStats writes per-sheet removal statistics.
func PrintSheetStats(w io.Writer, sheets []SheetStats) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Duplication Removal Statistics:")
	fmt.Fprintln(w, Rule('=', 50))
	for _, s := range sheets {
		fmt.Fprintln(w)
		for i, line := range sheetLines(s) {
			if i > 0 {
				line = "  " + line
			}
			fmt.Fprintln(w, line)
		}
	}
}

func sheetLines(s SheetStats) []string {
	st := s.Stats
	return []string{
		fmt.Sprintf("Sheet: %s", s.Sheet),
		fmt.Sprintf("Original rows: %s", Number(st.Total)),
		fmt.Sprintf("Internal duplicates removed: %s", Number(st.InternalDuplicates)),
		fmt.Sprintf("External duplicates removed: %s", Number(st.ExternalDuplicates)),
		fmt.Sprintf("Total duplicates removed: %s", Number(st.Removed())),
		fmt.Sprintf("Remaining unique rows: %s", Number(st.Survivors)),
		fmt.Sprintf("Reduction percentage: %.1f%%", st.ReductionPercent()),
	}
}
