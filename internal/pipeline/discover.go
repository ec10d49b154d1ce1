package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/maltedev/listing-toolkit/internal/csvio"
	"github.com/maltedev/listing-toolkit/internal/models"
)

var ErrNoFiles = errors.New("no Excel or CSV files found")

type sourceFile struct {
	path    string
	modTime time.Time
}

// Discover lists the CSV and Excel files below dir, newest first. Backups
// written by this toolkit are ignored.
func Discover(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("folder not found: %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a folder: %s", dir)
	}

	var files []sourceFile
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isDataFile(path) || csvio.IsBackup(path) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, sourceFile{path: path, modTime: fi.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.After(files[j].modTime)
		}
		return files[i].path < files[j].path
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

func isDataFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv") || csvio.IsSpreadsheet(path)
}

// loadTables reads a CSV file as one table or a workbook as one table per sheet.
func loadTables(path string) ([]*models.Table, error) {
	if csvio.IsSpreadsheet(path) {
		return csvio.LoadWorkbook(path)
	}
	t, err := csvio.Load(path)
	if err != nil {
		return nil, err
	}
	return []*models.Table{t}, nil
}

func writeTables(path string, tables []*models.Table) error {
	if csvio.IsSpreadsheet(path) {
		return csvio.WriteWorkbook(path, tables)
	}
	return csvio.Write(path, tables[0])
}
