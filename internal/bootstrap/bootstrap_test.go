package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/maltedev/listing-toolkit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestConnect_NothingEnabled(t *testing.T) {
	cfg := &config.Config{}

	a, err := Connect(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	assert.Nil(t, a.Redis)
	assert.Nil(t, a.SQLite)
	assert.Empty(t, a.ServiceOptions())
}

func TestConnect_SQLite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &config.Config{Files: config.FilesConfig{SQLitePath: filepath.Join(dir, "out.sqlite")}}

	a, err := Connect(ctx, cfg, slog.Default())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.SQLite)
	assert.Len(t, a.ServiceOptions(), 1)

	csvPath := filepath.Join(dir, "items_fixed.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id,Title\n1,Lamp\n"), 0o644))
	a.ExportFile(ctx, csvPath)

	db, err := sql.Open("sqlite", cfg.Files.SQLitePath)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items_fixed`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestConnect_RedisUnreachable(t *testing.T) {
	cfg := &config.Config{Redis: config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}}

	_, err := Connect(context.Background(), cfg, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}
