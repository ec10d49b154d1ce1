package dedup

import (
	"context"
	"log/slog"

	"github.com/maltedev/listing-toolkit/internal/models"
)

// LoadReference adds the key of every row of tables to set and returns the
// number of distinct keys added. Column references are header names or
// spreadsheet letters and are resolved per table, so "B" means the second
// column even where headers differ. Tables lacking a referenced column are
// skipped with a warning.
func LoadReference(ctx context.Context, set KeySet, tables []*models.Table, refs []string, logger *slog.Logger) (int, error) {
	seen := make(map[string]struct{})
	var batch []string

	for _, t := range tables {
		columns, err := resolve(t.Schema, refs)
		if err != nil {
			logger.Warn("skipping reference table",
				"source", t.Source,
				"sheet", t.Name(),
				"error", err)
			continue
		}

		key := ColumnKey(columns...)
		for _, rec := range t.Records {
			k := key(rec)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			batch = append(batch, k)
		}
	}

	if err := set.Add(ctx, batch...); err != nil {
		return 0, err
	}

	logger.Debug("reference keys loaded", "tables", len(tables), "keys", len(batch))
	return len(batch), nil
}

func resolve(schema *models.Schema, refs []string) ([]string, error) {
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
