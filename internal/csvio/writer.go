package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/maltedev/listing-toolkit/internal/models"
)

// Encode writes the header and every record using the table's delimiter.
func Encode(w io.Writer, t *models.Table) error {
	cw := csv.NewWriter(w)
	if t.Delimiter != 0 {
		cw.Comma = t.Delimiter
	}

	if err := cw.Write(t.Schema.Columns()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, rec := range t.Records {
		if err := cw.Write(rec.Values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", rec.Line, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Write encodes t to path. Output goes to a temp file first which is then
// renamed over path, so an interrupted run never leaves a truncated file.
func Write(path string, t *models.Table) error {
	return writeAtomic(path, func(f *os.File) error {
		return Encode(f, t)
	})
}

func writeAtomic(path string, fill func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if err := fill(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output into place at %s: %w", path, err)
	}

	return nil
}
