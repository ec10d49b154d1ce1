package csvio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maltedev/listing-toolkit/internal/models"
	"github.com/xuri/excelize/v2"
)

// IsSpreadsheet reports whether path has an Excel extension.
func IsSpreadsheet(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xls":
		return true
	default:
		return false
	}
}

// LoadWorkbook returns one table per sheet that has at least a header row.
// Legacy .xls files are not supported.
func LoadWorkbook(path string) ([]*models.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		return nil, fmt.Errorf("failed to open %s: legacy .xls workbooks are not supported", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var tables []*models.Table
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheet, path, err)
		}
		if len(rows) == 0 {
			continue
		}

		schema := models.NewSchema(rows[0])
		t := &models.Table{Source: path, Sheet: sheet, Schema: schema}
		for i, row := range rows[1:] {
			t.Records = append(t.Records, models.NewRecord(schema, row, i+2))
		}
		tables = append(tables, t)
	}

	return tables, nil
}

// WriteWorkbook writes each table to its own sheet, replacing path atomically.
func WriteWorkbook(path string, tables []*models.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	for i, t := range tables {
		name := t.Sheet
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}

		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return fmt.Errorf("failed to name sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %q: %w", name, err)
		}

		if err := setRow(f, name, 1, t.Schema.Columns()); err != nil {
			return err
		}
		for j, rec := range t.Records {
			if err := setRow(f, name, j+2, rec.Values); err != nil {
				return err
			}
		}
	}

	return writeAtomic(path, func(out *os.File) error {
		_, err := f.WriteTo(out)
		return err
	})
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d of sheet %q: %w", row, sheet, err)
	}
	return nil
}
