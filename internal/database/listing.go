package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maltedev/listing-toolkit/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	id UUID PRIMARY KEY,
	run_id UUID NOT NULL,
	title TEXT NOT NULL,
	raw_price TEXT,
	price NUMERIC(14,2),
	image_url TEXT,
	url TEXT,
	category TEXT,
	short_description TEXT,
	description TEXT,
	source TEXT,
	extracted_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_listings_run_id ON listings(run_id);
CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category);

CREATE TABLE IF NOT EXISTS job_runs (
	id UUID PRIMARY KEY,
	job TEXT NOT NULL,
	input TEXT NOT NULL,
	output TEXT,
	backup TEXT,
	counts JSONB NOT NULL DEFAULT '{}'::jsonb,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
`

var listingColumns = []string{
	"id", "run_id", "title", "raw_price", "price", "image_url", "url", "category",
	"short_description", "description", "source", "extracted_at",
}

// ListingRepository imports listings and records job runs in Postgres.
type ListingRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewListingRepository(db *DB, logger *slog.Logger) *ListingRepository {
	return &ListingRepository{
		db:     db,
		logger: logger.With("component", "listing_repository"),
	}
}

// EnsureSchema creates the listings and job_runs tables when missing.
func (r *ListingRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *ListingRepository) Name() string {
	return "postgres"
}

// SaveListings bulk-loads listings with COPY inside one transaction.
func (r *ListingRepository) SaveListings(ctx context.Context, runID uuid.UUID, listings []*models.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	var copied int64
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"listings"}, listingColumns, pgx.CopyFromRows(listingRows(runID, listings)))
		if err != nil {
			return fmt.Errorf("failed to copy listings: %w", err)
		}
		copied = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Info("listings imported", "run_id", runID, "count", copied)
	return int(copied), nil
}

func (r *ListingRepository) CountByRun(ctx context.Context, runID uuid.UUID) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM listings WHERE run_id = $1`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return n, nil
}

// PublishRun stores a run summary in job_runs.
func (r *ListingRepository) PublishRun(ctx context.Context, run *models.RunSummary) error {
	counts, err := json.Marshal(run.Counts)
	if err != nil {
		return fmt.Errorf("failed to marshal counts: %w", err)
	}

	query := `
		INSERT INTO job_runs (id, job, input, output, backup, counts, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.Exec(ctx, query,
		run.ID, run.Job, run.Input, run.Output, run.Backup, counts, run.StartedAt, run.FinishedAt,
	); err != nil {
		return fmt.Errorf("failed to insert job run: %w", err)
	}
	return nil
}

func listingRows(runID uuid.UUID, listings []*models.Listing) [][]any {
	rows := make([][]any, 0, len(listings))
	for _, l := range listings {
		rows = append(rows, []any{
			uuid.New(), runID, l.Title, l.RawPrice, numericPrice(l.Price), l.ImageURL, l.URL,
			l.Category, l.ShortDescription, l.Description, l.Source, l.ExtractedAt,
		})
	}
	return rows
}

// numericPrice returns nil for prices that kept their original text.
func numericPrice(p string) any {
	v, err := strconv.ParseFloat(p, 64)
	if err != nil {
		return nil
	}
	return v
}
