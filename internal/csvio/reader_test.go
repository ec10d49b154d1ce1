package csvio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	data := []byte("product_id,Title,Regular Price\n1,Blue Shirt,$10\n2,\"Hat, red\",$5\n")

	table, err := Parse(data, "products.csv")
	require.NoError(t, err)

	assert.Equal(t, ',', table.Delimiter)
	assert.Equal(t, []string{"product_id", "Title", "Regular Price"}, table.Schema.Columns())
	require.Len(t, table.Records, 2)
	assert.Equal(t, "Hat, red", table.Records[1].Get("Title"))
	assert.Equal(t, 2, table.Records[0].Line)
	assert.Equal(t, 3, table.Records[1].Line)
}

func TestParse_StripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Title;slug\nShirt;shirt\n")...)

	table, err := Parse(data, "bom.csv")
	require.NoError(t, err)

	assert.Equal(t, ';', table.Delimiter)
	assert.True(t, table.Schema.Has("Title"))
	assert.Equal(t, "shirt", table.Records[0].Get("slug"))
}

func TestParse_Windows1252(t *testing.T) {
	// "Café" with é as 0xE9
	data := []byte("Title\nCaf\xe9\n")

	table, err := Parse(data, "legacy.csv")
	require.NoError(t, err)

	assert.Equal(t, "Café", table.Records[0].Get("Title"))
}

func TestParse_RaggedRows(t *testing.T) {
	data := []byte("a,b,c\n1,2\n1,2,3,4\n")

	table, err := Parse(data, "ragged.csv")
	require.NoError(t, err)

	require.Len(t, table.Records, 2)
	assert.Equal(t, "", table.Records[0].Get("c"))
	assert.Equal(t, []string{"1", "2", "3", "4"}, table.Records[1].Values)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(nil, "empty.csv")
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestParse_HeaderOnly(t *testing.T) {
	table, err := Parse([]byte("Title,slug\n"), "header.csv")
	require.NoError(t, err)

	assert.Empty(t, table.Records)
	assert.Equal(t, 2, table.Schema.Len())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("Title\nShirt\n"), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, table.Source)
	assert.Equal(t, "CSV", table.Name())

	_, err = Load(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
