package export

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/listing-toolkit/internal/csvio"
	"github.com/maltedev/listing-toolkit/internal/models"
	_ "modernc.org/sqlite"
)

const listingsSchema = `
CREATE TABLE IF NOT EXISTS listings (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	title TEXT NOT NULL,
	raw_price TEXT,
	price REAL,
	image_url TEXT,
	url TEXT,
	category TEXT,
	short_description TEXT,
	description TEXT,
	source TEXT,
	extracted_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_listings_run ON listings(run_id);
CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category);
`

// SQLite stores listings in a local SQLite file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, listingsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create listings schema: %w", err)
	}

	return &SQLite{db: db, logger: logger.With("component", "sqlite_export")}, nil
}

func (s *SQLite) Name() string {
	return "sqlite"
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveListings inserts listings in one transaction and returns how many
// rows were written.
func (s *SQLite) SaveListings(ctx context.Context, runID uuid.UUID, listings []*models.Listing) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO listings (id, run_id, title, raw_price, price, image_url, url, category,
			short_description, description, source, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range listings {
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(), runID.String(), l.Title, l.RawPrice, priceValue(l.Price),
			l.ImageURL, l.URL, l.Category, l.ShortDescription, l.Description, l.Source,
			l.ExtractedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return 0, fmt.Errorf("failed to insert listing %q: %w", l.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit listings: %w", err)
	}

	s.logger.Info("listings saved", "run_id", runID, "count", len(listings))
	return len(listings), nil
}

// WriteTable replaces table name in the SQLite file at path with the rows
// of t. Every column is stored as TEXT.
func WriteTable(ctx context.Context, path, name string, t *models.Table) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	defer db.Close()

	cols := t.Schema.Columns()
	if len(cols) == 0 {
		return fmt.Errorf("table %s has no columns", name)
	}

	defs := make([]string, len(cols))
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		defs[i] = quoted[i] + " TEXT"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(name)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE TABLE `+quoteIdent(name)+` (`+strings.Join(defs, ",")+`)`); err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}

	ph := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+quoteIdent(name)+` (`+strings.Join(quoted, ",")+`) VALUES (`+ph+`)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range t.Records {
		args := make([]any, len(cols))
		for i, c := range cols {
			args[i] = rec.Get(c)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", rec.Line, err)
		}
	}

	return tx.Commit()
}

// TableName derives a SQLite table name from a file or sheet name.
func TableName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "records"
	}
	return name
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// priceValue stores normalized prices as numbers and an unparsed
// original-string fallback as NULL.
func priceValue(p string) any {
	v, err := strconv.ParseFloat(p, 64)
	if err != nil {
		return nil
	}
	return v
}

// WriteFile copies a CSV file, or every sheet of a workbook, into the
// SQLite file at dbPath. Tables are named after the file and sheet.
func WriteFile(ctx context.Context, dbPath, path string) ([]string, error) {
	var tables []*models.Table
	if csvio.IsSpreadsheet(path) {
		sheets, err := csvio.LoadWorkbook(path)
		if err != nil {
			return nil, err
		}
		tables = sheets
	} else {
		t, err := csvio.Load(path)
		if err != nil {
			return nil, err
		}
		tables = []*models.Table{t}
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		name := stem
		if t.Sheet != "" && len(tables) > 1 {
			name += "_" + t.Sheet
		}
		name = TableName(name)
		if err := WriteTable(ctx, dbPath, name, t); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}
