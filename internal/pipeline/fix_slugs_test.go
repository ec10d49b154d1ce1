package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/maltedev/listing-toolkit/internal/csvio"
	"github.com/maltedev/listing-toolkit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const productsCSV = `product_id,post_title,slug
101,Blue Shirt,blue-shirt
102,Blue Shirt,blue-shirt
103,Red Hat,red-hat
104,blue shirt!,blue-shirt
`

func TestFixSlugs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "products.csv")
	writeFile(t, input, productsCSV, testNow.Add(-24*time.Hour))

	pub := new(MockPublisher)
	pub.On("PublishRun", mock.Anything, mock.MatchedBy(func(r *models.RunSummary) bool {
		return r.Job == JobFixSlugs && r.Counts["fixes_applied"] == 2
	})).Return(nil)

	svc, out := newTestService(t, testConfig(), WithPublisher(pub))
	res, err := svc.FixSlugs(context.Background(), FixSlugsRequest{Input: input})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "products_fixed.csv"), res.Output)
	assert.Equal(t, filepath.Join(dir, "products_backup_20240601_120000.csv"), res.Backup)
	assert.Equal(t, filepath.Join(dir, "products_fixed_report.txt"), res.Report)

	assert.Equal(t, `product_id,post_title,slug
101,Blue Shirt,blue-shirt
102,Blue Shirt - 102,blue-shirt-102
103,Red Hat,red-hat
104,blue shirt! - 104,blue-shirt-104
`, readFile(t, res.Output))
	assert.Equal(t, productsCSV, readFile(t, res.Backup))

	assert.Equal(t, 4, res.Stats.Total)
	assert.Equal(t, 2, res.Stats.UniqueKeys)
	assert.Equal(t, 1, res.Stats.DuplicateKeys)
	assert.Len(t, res.Stats.Fixes, 2)

	rep := readFile(t, res.Report)
	assert.Contains(t, rep, "Run ID: "+res.Run.ID.String())
	assert.Contains(t, rep, "Modified: Blue Shirt - 102")

	assert.Contains(t, out.String(), "Fixes applied: 2")
	assert.Contains(t, out.String(), "3x: blue-shirt")
	pub.AssertExpectations(t)
}

func TestFixSlugs_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "products.csv")
	writeFile(t, input, productsCSV, testNow)

	cfg := testConfig()
	cfg.Files.Backup = false
	cfg.Files.Report = false
	svc, _ := newTestService(t, cfg)

	first, err := svc.FixSlugs(context.Background(), FixSlugsRequest{Input: input})
	require.NoError(t, err)
	assert.Empty(t, first.Backup)
	assert.Empty(t, first.Report)

	second, err := svc.FixSlugs(context.Background(), FixSlugsRequest{
		Input:  first.Output,
		Output: filepath.Join(dir, "again.csv"),
	})
	require.NoError(t, err)
	assert.Empty(t, second.Stats.Fixes)
	assert.Equal(t, readFile(t, first.Output), readFile(t, second.Output))
}

func TestFixSlugs_NamedColumnsAndDelimiter(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "export.csv")
	writeFile(t, input, "title;sku\nLamp;A1\nLamp;A2\n", testNow)

	cfg := testConfig()
	cfg.Files.Backup = false
	svc, _ := newTestService(t, cfg)

	res, err := svc.FixSlugs(context.Background(), FixSlugsRequest{
		Input:       input,
		Output:      filepath.Join(dir, "out.csv"),
		IDColumn:    "sku",
		TitleColumn: "title",
	})
	require.NoError(t, err)
	assert.Equal(t, "title;sku\nLamp;A1\nLamp - A2;A2\n", readFile(t, res.Output))
}

func TestFixSlugs_MissingColumnWritesNothing(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "single.csv")
	writeFile(t, input, "only\nx\n", testNow)

	svc, _ := newTestService(t, testConfig())
	_, err := svc.FixSlugs(context.Background(), FixSlugsRequest{Input: input})

	var missing *models.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "B", missing.Column)

	files, _ := filepath.Glob(filepath.Join(dir, "*"))
	assert.Equal(t, []string{input}, files)
}

func TestFixSlugs_MissingInput(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	_, err := svc.FixSlugs(context.Background(), FixSlugsRequest{Input: filepath.Join(t.TempDir(), "nope.csv")})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, csvio.ErrEmptyFile))
}
