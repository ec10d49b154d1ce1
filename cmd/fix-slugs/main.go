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
		input    = flag.String("input", "", "CSV file to fix (or first argument)")
		output   = flag.String("output", "", "Output file (default <input>_fixed.csv)")
		idCol    = flag.String("id-column", "A", "Product ID column, header name or letter")
		titleCol = flag.String("title-column", "B", "Title column, header name or letter")
		backup   = flag.Bool("backup", cfg.Files.Backup, "Back up the input before writing")
		report   = flag.Bool("report", cfg.Files.Report, "Write a report next to the output")
		sqlite   = flag.String("sqlite", cfg.Files.SQLitePath, "Also export the output to this SQLite file")
	)
	flag.Parse()

	if *input == "" {
		*input = flag.Arg(0)
	}
	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: fix-slugs [flags] <file.csv>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg.Files.Backup = *backup
	cfg.Files.Report = *report
	cfg.Files.SQLitePath = *sqlite

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log, pipeline.FixSlugsRequest{
		Input:       *input,
		Output:      *output,
		IDColumn:    *idCol,
		TitleColumn: *titleCol,
	}); err != nil {
		log.Error("fix-slugs failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, req pipeline.FixSlugsRequest) error {
	app, err := bootstrap.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	svc := pipeline.NewService(cfg, log, app.ServiceOptions()...)
	res, err := svc.FixSlugs(ctx, req)
	if err != nil {
		return err
	}

	app.ExportFile(ctx, res.Output)
	return nil
}
