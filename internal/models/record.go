package models

import (
	"fmt"
	"strings"
)

// MissingColumnError reports a required column that is absent from a table header.
type MissingColumnError struct {
	Column    string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not found (available: %s)", e.Column, strings.Join(e.Available, ", "))
}

// Schema is the ordered header of a table. Records share one Schema.
type Schema struct {
	columns []string
	index   map[string]int
}

func NewSchema(columns []string) *Schema {
	s := &Schema{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range s.columns {
		if _, exists := s.index[c]; !exists {
			s.index[c] = i
		}
	}
	return s
}

func (s *Schema) Columns() []string {
	return append([]string(nil), s.columns...)
}

func (s *Schema) Len() int {
	return len(s.columns)
}

func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Resolve maps a column reference to a column name. An exact header name
// wins; otherwise a spreadsheet letter reference ("A", "B", ..., "AA") is
// taken as a position.
func (s *Schema) Resolve(ref string) (string, error) {
	if s.Has(ref) {
		return ref, nil
	}
	if pos, ok := letterIndex(ref); ok && pos < len(s.columns) {
		return s.columns[pos], nil
	}
	return "", &MissingColumnError{Column: ref, Available: s.Columns()}
}

// Require checks that every named column exists.
func (s *Schema) Require(names ...string) error {
	for _, n := range names {
		if !s.Has(n) {
			return &MissingColumnError{Column: n, Available: s.Columns()}
		}
	}
	return nil
}

func letterIndex(ref string) (int, bool) {
	if ref == "" || len(ref) > 3 {
		return 0, false
	}
	n := 0
	for _, r := range strings.ToUpper(ref) {
		if r < 'A' || r > 'Z' {
			return 0, false
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1, true
}

// Record is one row of a table: an ordered mapping of column names to values.
type Record struct {
	Schema *Schema
	Values []string
	// Line is the 1-based line of the row in its source (header is line 1).
	Line int
}

func NewRecord(schema *Schema, values []string, line int) Record {
	return Record{Schema: schema, Values: values, Line: line}
}

// Get returns the named field, or "" when the column is unknown or the row is short.
func (r Record) Get(name string) string {
	i, ok := r.Schema.Index(name)
	if !ok || i >= len(r.Values) {
		return ""
	}
	return r.Values[i]
}

// Set overwrites the named field, padding a short row. It reports whether
// the column exists.
func (r *Record) Set(name, value string) bool {
	i, ok := r.Schema.Index(name)
	if !ok {
		return false
	}
	for len(r.Values) <= i {
		r.Values = append(r.Values, "")
	}
	r.Values[i] = value
	return true
}

func (r Record) Clone() Record {
	return Record{
		Schema: r.Schema,
		Values: append([]string(nil), r.Values...),
		Line:   r.Line,
	}
}

// Table is a header plus its rows, as loaded from one CSV file or spreadsheet sheet.
type Table struct {
	Source    string
	Sheet     string
	Delimiter rune
	Schema    *Schema
	Records   []Record
}

func (t *Table) Name() string {
	if t.Sheet != "" {
		return t.Sheet
	}
	return "CSV"
}
