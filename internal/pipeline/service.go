package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/listing-toolkit/internal/config"
	"github.com/maltedev/listing-toolkit/internal/csvio"
	"github.com/maltedev/listing-toolkit/internal/dedup"
	"github.com/maltedev/listing-toolkit/internal/models"
	"github.com/maltedev/listing-toolkit/internal/observability"
	"github.com/maltedev/listing-toolkit/internal/parser"
)

const (
	JobFixSlugs    = "fix-slugs"
	JobDedupFolder = "dedup-folder"
	JobCleanSlugs  = "clean-slugs"
	JobCleanCSV    = "clean-csv"
	JobListings    = "listings"
)

// RunPublisher announces completed runs, e.g. on a Redis stream.
type RunPublisher interface {
	PublishRun(ctx context.Context, run *models.RunSummary) error
}

// ListingSink stores the listings produced by BuildListings.
type ListingSink interface {
	Name() string
	SaveListings(ctx context.Context, runID uuid.UUID, listings []*models.Listing) (int, error)
}

// Service runs the batch jobs. Console summaries go to the output writer,
// diagnostics to the logger.
type Service struct {
	cfg        *config.Config
	logger     *slog.Logger
	out        io.Writer
	now        func() time.Time
	parser     parser.Parser
	publishers []RunPublisher
	keySet     dedup.KeySet
	sinks      []ListingSink
}

type Option func(*Service)

func WithOutput(w io.Writer) Option {
	return func(s *Service) { s.out = w }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithParser(p parser.Parser) Option {
	return func(s *Service) { s.parser = p }
}

// WithPublisher adds a destination for run summaries.
func WithPublisher(p RunPublisher) Option {
	return func(s *Service) { s.publishers = append(s.publishers, p) }
}

// WithKeySet adds a shared key set, such as a Redis set, to the reference
// keys of the folder deduplicator. Surviving keys are added to it.
func WithKeySet(ks dedup.KeySet) Option {
	return func(s *Service) { s.keySet = ks }
}

func WithListingSinks(sinks ...ListingSink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

func NewService(cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		logger: logger.With("component", "pipeline"),
		out:    os.Stdout,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = parser.NewListingParser(logger, parser.DefaultStrategies()...)
	}
	return s
}

// finish stamps the run, records metrics and publishes successful runs.
// Publishing failures are logged and do not fail the job.
func (s *Service) finish(ctx context.Context, run *models.RunSummary, err error) {
	run.FinishedAt = s.now()
	observability.ObserveRun(run.Job, err)

	if err != nil {
		s.logger.Error("job failed", "job", run.Job, "run_id", run.ID, "input", run.Input, "error", err)
		return
	}

	s.logger.Info("job completed",
		"job", run.Job,
		"run_id", run.ID,
		"input", run.Input,
		"output", run.Output,
		"duration", run.Duration())

	for _, p := range s.publishers {
		if perr := p.PublishRun(ctx, run); perr != nil {
			s.logger.Warn("failed to publish run summary", "run_id", run.ID, "error", perr)
		}
	}
}

func (s *Service) backup(path string) (string, error) {
	if !s.cfg.Files.Backup {
		return "", nil
	}
	return csvio.Backup(path, s.now())
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
