package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
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
		dir     = flag.String("dir", cfg.Files.DataDir, "Folder with CSV and XLSX files")
		target  = flag.String("target", "", "File to deduplicate instead of the newest one")
		columns = flag.String("columns", strings.Join(cfg.Files.CompareWith, ","), "Comma-separated key columns, header names or letters")
		backup  = flag.Bool("backup", cfg.Files.Backup, "Back up the target before writing")
		report  = flag.Bool("report", cfg.Files.Report, "Write a report next to the target")
		sqlite  = flag.String("sqlite", cfg.Files.SQLitePath, "Also export the result to this SQLite file")
	)
	flag.Parse()

	cfg.Files.Backup = *backup
	cfg.Files.Report = *report
	cfg.Files.SQLitePath = *sqlite

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	req := pipeline.FolderRequest{Dir: *dir, Target: *target}
	for _, c := range strings.Split(*columns, ",") {
		if c = strings.TrimSpace(c); c != "" {
			req.Columns = append(req.Columns, c)
		}
	}

	if err := run(ctx, cfg, log, req); err != nil {
		log.Error("dedup-folder failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, req pipeline.FolderRequest) error {
	app, err := bootstrap.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	svc := pipeline.NewService(cfg, log, app.ServiceOptions()...)
	res, err := svc.DedupFolder(ctx, req)
	if err != nil {
		return err
	}

	app.ExportFile(ctx, res.Target)
	return nil
}
