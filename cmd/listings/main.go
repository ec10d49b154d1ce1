package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/listing-toolkit/internal/bootstrap"
	"github.com/maltedev/listing-toolkit/internal/config"
	"github.com/maltedev/listing-toolkit/internal/pipeline"
	"github.com/maltedev/listing-toolkit/pkg/logger"
)

// defaultMultiplier converts scraped USD prices into the shop's currency.
const defaultMultiplier = 200.0

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var (
		pages      = flag.String("pages", "pages", "Folder with saved search result pages (<keyword>.html)")
		keywords   = flag.String("keywords", "", "CSV file with a Keywords column (default: every page in -pages)")
		output     = flag.String("output", "output.csv", "Listing CSV to write")
		perKeyword = flag.Int("per-keyword", pipeline.DefaultPerKeyword, "Listings kept per keyword")
		limit      = flag.Int("limit", pipeline.DefaultListingsLimit, "Total listings kept")
		multiplier = flag.Float64("multiplier", defaultMultiplier, "Price multiplier")
		fallback   = flag.String("price-fallback", cfg.Pricing.Fallback, "Value for unparseable prices: zero or original")
		sqlite     = flag.String("sqlite", cfg.Files.SQLitePath, "Also store listings in this SQLite file")
		pg         = flag.Bool("pg", cfg.Database.Enabled, "Also import listings into Postgres")
	)
	flag.Parse()

	cfg.Pricing.Multiplier = *multiplier
	cfg.Pricing.Fallback = *fallback
	cfg.Files.SQLitePath = *sqlite
	cfg.Database.Enabled = *pg
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid flags", "error", err)
		os.Exit(2)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log, pipeline.ListingsRequest{
		PagesDir:     *pages,
		KeywordsFile: *keywords,
		Output:       *output,
		PerKeyword:   *perKeyword,
		Limit:        *limit,
	}); err != nil {
		log.Error("listings failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, req pipeline.ListingsRequest) error {
	app, err := bootstrap.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	svc := pipeline.NewService(cfg, log, app.ServiceOptions()...)
	res, err := svc.BuildListings(ctx, req)
	if err != nil {
		return err
	}

	log.Info("listings written", "output", res.Output, "count", len(res.Listings), "saved", res.Saved)
	return nil
}
