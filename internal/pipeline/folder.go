package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/maltedev/listing-toolkit/internal/csvio"
	"github.com/maltedev/listing-toolkit/internal/dedup"
	"github.com/maltedev/listing-toolkit/internal/models"
	"github.com/maltedev/listing-toolkit/internal/observability"
	"github.com/maltedev/listing-toolkit/internal/report"
)

type FolderRequest struct {
	Dir string
	// Target overrides the newest file as the one to deduplicate.
	Target string
	// Columns are header names or spreadsheet letters; defaults to the
	// configured comparison columns.
	Columns []string
}

type FolderResult struct {
	Target        string
	Backup        string
	Report        string
	Files         []string
	Skipped       []string
	ReferenceKeys int
	Sheets        []report.SheetStats
	Run           *models.RunSummary
}

// DedupFolder removes from the newest file in a folder every row whose key
// repeats within that file or appears in any other file of the folder.
// The file is rewritten in place.
func (s *Service) DedupFolder(ctx context.Context, req FolderRequest) (res *FolderResult, err error) {
	run := models.NewRunSummary(JobDedupFolder, req.Dir, s.now())
	defer func() { s.finish(ctx, run, err) }()

	files, err := Discover(req.Dir)
	if err != nil {
		return nil, err
	}

	target, others, err := pickTarget(files, req.Target)
	if err != nil {
		return nil, err
	}
	run.Input = target
	run.Output = target

	fmt.Fprintf(s.out, "\nNewest file detected: %s\n", files[0])
	fmt.Fprintln(s.out, "\nAll Excel and CSV files found (newest first):")
	for i, f := range files {
		fmt.Fprintf(s.out, "%d: %s\n", i+1, f)
	}

	tables, err := loadTables(target)
	if err != nil {
		return nil, err
	}

	refs := req.Columns
	if len(refs) == 0 {
		refs = s.cfg.Files.CompareWith
	}

	columns := make([][]string, len(tables))
	for i, t := range tables {
		if columns[i], err = resolveColumns(t.Schema, refs); err != nil {
			return nil, fmt.Errorf("%s sheet %s: %w", target, t.Name(), err)
		}
	}

	res = &FolderResult{Target: target, Files: files, Run: run}

	fmt.Fprintln(s.out, "\nLoading older files...")
	var reference []*models.Table
	for _, path := range others {
		ts, err := loadTables(path)
		if err != nil {
			s.logger.Warn("skipping unreadable file", "path", path, "error", err)
			fmt.Fprintf(s.out, "Error reading file %s: %v\n", path, err)
			res.Skipped = append(res.Skipped, path)
			continue
		}
		reference = append(reference, ts...)
	}

	set := dedup.NewMemoryKeySet()
	if res.ReferenceKeys, err = dedup.LoadReference(ctx, set, reference, refs, s.logger); err != nil {
		return nil, err
	}
	fmt.Fprintf(s.out, "Found %s unique rows in older files\n", report.Number(res.ReferenceKeys))

	outTables := make([]*models.Table, len(tables))

	fmt.Fprintln(s.out, "\nProcessing newest file...")
	for i, t := range tables {
		key := dedup.ColumnKey(columns[i]...)
		opts := dedup.Options{
			Key:      key,
			Strategy: dedup.StrategyDrop,
			External: set,
			Logger:   s.logger,
		}
		if s.keySet != nil {
			opts.External = dedup.Union(set, s.keySet)
		}

		result, err := dedup.New(opts).Run(ctx, t.Records)
		if err != nil {
			return nil, err
		}
		if err := s.rememberKeys(ctx, key, result.Records); err != nil {
			return nil, err
		}

		outTables[i] = &models.Table{
			Source:    target,
			Sheet:     t.Sheet,
			Delimiter: t.Delimiter,
			Schema:    t.Schema,
			Records:   result.Records,
		}
		res.Sheets = append(res.Sheets, report.SheetStats{Sheet: t.Name(), Stats: result.Stats})

		st := result.Stats
		observability.ObserveDedup(JobDedupFolder, st.Total, st.InternalDuplicates, st.ExternalDuplicates, 0)
		run.Counts["original_rows"] += st.Total
		run.Counts["internal_duplicates_removed"] += st.InternalDuplicates
		run.Counts["external_duplicates_removed"] += st.ExternalDuplicates
		run.Counts["remaining_rows"] += st.Survivors
	}
	run.Counts["skipped_files"] = len(res.Skipped)
	run.Counts["reference_keys"] = res.ReferenceKeys

	if res.Backup, err = s.backup(target); err != nil {
		return nil, err
	}
	run.Backup = res.Backup

	if err := writeTables(target, outTables); err != nil {
		return nil, err
	}

	fmt.Fprintf(s.out, "\nSuccessfully processed file: %s\n", target)
	if res.Backup != "" {
		fmt.Fprintf(s.out, "Backup created at: %s\n", res.Backup)
	}
	report.PrintSheetStats(s.out, res.Sheets)

	if s.cfg.Files.Report {
		res.Report = csvio.ReportPath(target)
		r := report.FolderDedup(target, res.Backup, res.ReferenceKeys, res.Skipped, res.Sheets, s.now())
		r.RunID = run.ID
		if err := r.Save(res.Report); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// rememberKeys adds the keys of surviving records to the shared key set so
// later runs treat them as already published.
func (s *Service) rememberKeys(ctx context.Context, key dedup.KeyFunc, records []models.Record) error {
	if s.keySet == nil || len(records) == 0 {
		return nil
	}
	keys := make([]string, len(records))
	for i, rec := range records {
		keys[i] = key(rec)
	}
	if err := s.keySet.Add(ctx, keys...); err != nil {
		return fmt.Errorf("failed to update shared key set: %w", err)
	}
	return nil
}

// pickTarget returns the file to deduplicate and the remaining files. An
// empty override selects the newest file.
func pickTarget(files []string, override string) (string, []string, error) {
	if override == "" {
		return files[0], files[1:], nil
	}

	want := filepath.Clean(override)
	var others []string
	found := ""
	for _, f := range files {
		if found == "" && (filepath.Clean(f) == want || filepath.Base(f) == want) {
			found = f
			continue
		}
		others = append(others, f)
	}
	if found == "" {
		return "", nil, fmt.Errorf("file %s is not among the discovered files", override)
	}
	return found, others, nil
}

func resolveColumns(schema *models.Schema, refs []string) ([]string, error) {
	out := make([]string, len(refs))
	for i, ref := range refs {
		name, err := schema.Resolve(ref)
		if err != nil {
			return nil, err
		}
		out[i] = name
	}
	return out, nil
}
