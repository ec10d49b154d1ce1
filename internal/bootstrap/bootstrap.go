// Package bootstrap connects the optional stores named in the configuration
// and turns them into pipeline options shared by every command.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/listing-toolkit/internal/config"
	"github.com/maltedev/listing-toolkit/internal/database"
	"github.com/maltedev/listing-toolkit/internal/dedup"
	"github.com/maltedev/listing-toolkit/internal/events"
	"github.com/maltedev/listing-toolkit/internal/export"
	"github.com/maltedev/listing-toolkit/internal/pipeline"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB       *database.DB
	Listings *database.ListingRepository
	Redis    *redis.Client
	KeySet   dedup.KeySet
	SQLite   *export.SQLite

	closers []func()
}

// Connect opens Postgres, Redis and SQLite when the configuration enables
// them. Everything opened is released by Close.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			Database:    cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			MaxConns:    cfg.Database.MaxConns,
			MinConns:    1,
			MaxConnLife: 5 * time.Minute,
			MaxConnIdle: 1 * time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)

		a.Listings = database.NewListingRepository(db, logger)
		if err := a.Listings.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("connected to database", "host", cfg.Database.Host, "database", cfg.Database.DBName)
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Redis = client
		a.KeySet = dedup.NewRedisKeySet(client, cfg.Redis.KeySet)
		a.closers = append(a.closers, func() { client.Close() })
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	if cfg.Files.SQLitePath != "" {
		s, err := export.OpenSQLite(ctx, cfg.Files.SQLitePath, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.SQLite = s
		a.closers = append(a.closers, func() { s.Close() })
	}

	return a, nil
}

// ServiceOptions wires the connected stores into a pipeline.Service.
func (a *App) ServiceOptions() []pipeline.Option {
	var opts []pipeline.Option

	if a.Listings != nil {
		opts = append(opts, pipeline.WithPublisher(a.Listings), pipeline.WithListingSinks(a.Listings))
	}
	if a.Redis != nil {
		opts = append(opts,
			pipeline.WithPublisher(events.NewPublisher(a.Redis, a.Config.Redis.Stream, a.Logger)),
			pipeline.WithKeySet(a.KeySet),
		)
	}
	if a.SQLite != nil {
		opts = append(opts, pipeline.WithListingSinks(a.SQLite))
	}

	return opts
}

// ExportFile copies a job's output file into the SQLite file, if configured.
func (a *App) ExportFile(ctx context.Context, path string) {
	if a.Config.Files.SQLitePath == "" {
		return
	}
	names, err := export.WriteFile(ctx, a.Config.Files.SQLitePath, path)
	if err != nil {
		a.Logger.Warn("failed to export to sqlite", "path", path, "error", err)
		return
	}
	a.Logger.Info("exported to sqlite", "path", a.Config.Files.SQLitePath, "tables", names)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
