package csvio

import (
	"path/filepath"
	"testing"

	"github.com/maltedev/listing-toolkit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSpreadsheet(t *testing.T) {
	assert.True(t, IsSpreadsheet("a.xlsx"))
	assert.True(t, IsSpreadsheet("a.XLSX"))
	assert.True(t, IsSpreadsheet("a.xls"))
	assert.False(t, IsSpreadsheet("a.csv"))
}

func TestWorkbookRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")

	first := models.NewSchema([]string{"id", "Title"})
	second := models.NewSchema([]string{"Title"})
	tables := []*models.Table{
		{
			Sheet:  "Shirts",
			Schema: first,
			Records: []models.Record{
				models.NewRecord(first, []string{"1", "Blue Shirt"}, 2),
				models.NewRecord(first, []string{"2", "Red Shirt"}, 3),
			},
		},
		{
			Sheet:   "Hats",
			Schema:  second,
			Records: []models.Record{models.NewRecord(second, []string{"Sun Hat"}, 2)},
		},
	}

	require.NoError(t, WriteWorkbook(path, tables))

	loaded, err := LoadWorkbook(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "Shirts", loaded[0].Name())
	assert.Equal(t, []string{"id", "Title"}, loaded[0].Schema.Columns())
	require.Len(t, loaded[0].Records, 2)
	assert.Equal(t, "Red Shirt", loaded[0].Records[1].Get("Title"))
	assert.Equal(t, 3, loaded[0].Records[1].Line)

	assert.Equal(t, "Hats", loaded[1].Name())
	assert.Equal(t, "Sun Hat", loaded[1].Records[0].Get("Title"))
}

func TestLoadWorkbook_LegacyXLS(t *testing.T) {
	_, err := LoadWorkbook("old.xls")
	assert.Error(t, err)
}
