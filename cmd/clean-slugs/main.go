package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/listing-toolkit/internal/bootstrap"
	"github.com/maltedev/listing-toolkit/internal/config"
	"github.com/maltedev/listing-toolkit/internal/pipeline"
	"github.com/maltedev/listing-toolkit/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var (
		input  = flag.String("input", "", "CSV file with a slug column (or first argument)")
		output = flag.String("output", "", "Output file (default <input>_cleaned_slugs_<timestamp>.csv)")
		sqlite = flag.String("sqlite", cfg.Files.SQLitePath, "Also export the output to this SQLite file")
	)
	flag.Parse()

	if *input == "" {
		*input = flag.Arg(0)
	}
	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: clean-slugs [flags] <file.csv>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	cfg.Files.SQLitePath = *sqlite

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log, pipeline.CleanSlugsRequest{Input: *input, Output: *output}); err != nil {
		log.Error("clean-slugs failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, req pipeline.CleanSlugsRequest) error {
	app, err := bootstrap.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	svc := pipeline.NewService(cfg, log, app.ServiceOptions()...)
	res, err := svc.CleanEncodedSlugs(ctx, req)
	if err != nil {
		return err
	}

	app.ExportFile(ctx, res.Output)
	return nil
}
