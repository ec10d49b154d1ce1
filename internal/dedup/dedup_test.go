package dedup

import (
	"context"
	"fmt"
	"testing"

	"github.com/maltedev/listing-toolkit/internal/models"
	"github.com/maltedev/listing-toolkit/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productRecords(rows ...[]string) []models.Record {
	schema := models.NewSchema([]string{"product_id", "Title", "slug"})
	out := make([]models.Record, len(rows))
	for i, r := range rows {
		out[i] = models.NewRecord(schema, r, i+2)
	}
	return out
}

func slugOptions(strategy Strategy) Options {
	return Options{
		Key:      SlugKey("Title", "product_id"),
		Strategy: strategy,
		Field:    "Title",
		IDField:  "product_id",
		Derived:  map[string]func(string) string{"slug": parser.GenerateSlug},
	}
}

func keysOf(records []models.Record, key KeyFunc) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = key(r)
	}
	return out
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"drop", StrategyDrop, false},
		{"", StrategyDrop, false},
		{"append-id", StrategyAppendID, false},
		{"APPEND_ID", StrategyAppendID, false},
		{"merge", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Strategy {
	t.Helper()
	st, err := ParseStrategy(s)
	require.NoError(t, err)
	return st
}

func TestRun_Drop(t *testing.T) {
	records := productRecords(
		[]string{"1", "Blue Shirt", ""},
		[]string{"2", "Red Hat", ""},
		[]string{"3", "blue shirt!", ""},
		[]string{"4", "Green Sock", ""},
		[]string{"5", "Red  Hat", ""},
	)

	res, err := New(slugOptions(StrategyDrop)).Run(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, res.Records, 3)
	assert.Equal(t, "1", res.Records[0].Get("product_id"))
	assert.Equal(t, "2", res.Records[1].Get("product_id"))
	assert.Equal(t, "4", res.Records[2].Get("product_id"))

	s := res.Stats
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.InternalDuplicates)
	assert.Equal(t, 0, s.ExternalDuplicates)
	assert.Equal(t, 3, s.Survivors)
	assert.Equal(t, 3, s.UniqueKeys)
	assert.Equal(t, 2, s.DuplicateKeys)
	assert.Equal(t, 2, s.Removed())
	assert.InDelta(t, 40.0, s.ReductionPercent(), 0.001)
	assert.Empty(t, s.Fixes)
}

func TestRun_DropLeavesDistinctKeys(t *testing.T) {
	var rows [][]string
	for i := 0; i < 50; i++ {
		rows = append(rows, []string{fmt.Sprint(i), fmt.Sprintf("Item %d", i%7), ""})
	}
	records := productRecords(rows...)
	opts := slugOptions(StrategyDrop)

	res, err := New(opts).Run(context.Background(), records)
	require.NoError(t, err)

	keys := keysOf(res.Records, opts.Key)
	assert.Len(t, keys, 7)
	assert.ElementsMatch(t, keys, uniqueStrings(keys))
}

func TestRun_AppendID(t *testing.T) {
	records := productRecords(
		[]string{"101", "Blue Shirt", "blue-shirt"},
		[]string{"102", "Blue Shirt", "blue-shirt"},
		[]string{"103", "Blue Shirt", "blue-shirt"},
		[]string{"104", "Red Hat", "red-hat"},
	)
	opts := slugOptions(StrategyAppendID)

	res, err := New(opts).Run(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, res.Records, 4)
	assert.Equal(t, "Blue Shirt", res.Records[0].Get("Title"))
	assert.Equal(t, "Blue Shirt - 102", res.Records[1].Get("Title"))
	assert.Equal(t, "blue-shirt-102", res.Records[1].Get("slug"))
	assert.Equal(t, "Blue Shirt - 103", res.Records[2].Get("Title"))

	s := res.Stats
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 4, s.Survivors)
	assert.Equal(t, 2, s.InternalDuplicates)
	assert.Equal(t, 2, s.UniqueKeys)
	assert.Equal(t, 1, s.DuplicateKeys)

	require.Len(t, s.Fixes, 2)
	assert.Equal(t, Fix{
		ID:         "102",
		Line:       3,
		Original:   "Blue Shirt",
		Rewritten:  "Blue Shirt - 102",
		Key:        "blue-shirt",
		Occurrence: 2,
	}, s.Fixes[0])
	assert.Equal(t, 3, s.Fixes[1].Occurrence)

	assert.Equal(t, "Blue Shirt", records[1].Get("Title"), "input must not be modified")
}

func TestRun_AppendIDResolvesSecondaryCollision(t *testing.T) {
	records := productRecords(
		[]string{"7", "Lamp - 9", ""},
		[]string{"8", "Lamp", ""},
		[]string{"9", "Lamp", ""},
	)
	opts := slugOptions(StrategyAppendID)

	res, err := New(opts).Run(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, res.Records, 3)
	assert.Equal(t, "Lamp - 9 2", res.Records[2].Get("Title"))

	keys := keysOf(res.Records, opts.Key)
	assert.Equal(t, uniqueStrings(keys), keys)
}

func TestRun_AppendIDIsIdempotent(t *testing.T) {
	var rows [][]string
	for i := 0; i < 40; i++ {
		rows = append(rows, []string{fmt.Sprint(i), fmt.Sprintf("Widget %d", i%4), ""})
	}
	rows = append(rows, []string{"", "", ""}, []string{"", "", ""})
	records := productRecords(rows...)
	opts := slugOptions(StrategyAppendID)

	first, err := New(opts).Run(context.Background(), records)
	require.NoError(t, err)
	assert.Len(t, first.Records, len(records))
	assert.NotEmpty(t, first.Stats.Fixes)

	keys := keysOf(first.Records, opts.Key)
	assert.Equal(t, uniqueStrings(keys), keys)

	second, err := New(opts).Run(context.Background(), first.Records)
	require.NoError(t, err)
	assert.Empty(t, second.Stats.Fixes)
	assert.Equal(t, 0, second.Stats.InternalDuplicates)
}

func TestRun_EmptySlugUsesFallback(t *testing.T) {
	records := productRecords(
		[]string{"55", "!!!", ""},
		[]string{"", "???", ""},
		[]string{"56", "", ""},
	)
	opts := slugOptions(StrategyDrop)

	res, err := New(opts).Run(context.Background(), records)
	require.NoError(t, err)

	assert.Len(t, res.Records, 3)
	assert.Equal(t, []string{"product-55", "product-3", "product-56"}, keysOf(res.Records, opts.Key))
}

func TestRun_External(t *testing.T) {
	ctx := context.Background()
	schema := models.NewSchema([]string{"id", "name"})
	records := []models.Record{
		models.NewRecord(schema, []string{"1", "alpha"}, 2),
		models.NewRecord(schema, []string{"2", "beta"}, 3),
		models.NewRecord(schema, []string{"3", "alpha"}, 4),
		models.NewRecord(schema, []string{"4", "gamma"}, 5),
		models.NewRecord(schema, []string{"5", "beta"}, 6),
	}

	t.Run("drop counts internal before external", func(t *testing.T) {
		ext := NewMemoryKeySet("beta")
		res, err := New(Options{Key: ColumnKey("name"), External: ext}).Run(ctx, records)
		require.NoError(t, err)

		assert.Equal(t, []string{"alpha", "gamma"}, keysOf(res.Records, ColumnKey("name")))
		assert.Equal(t, 2, res.Stats.InternalDuplicates)
		assert.Equal(t, 1, res.Stats.ExternalDuplicates)
		assert.Equal(t, 2, res.Stats.Survivors)
	})

	t.Run("remember adds survivors", func(t *testing.T) {
		ext := NewMemoryKeySet()
		_, err := New(Options{Key: ColumnKey("name"), External: ext, Remember: true}).Run(ctx, records)
		require.NoError(t, err)

		assert.Equal(t, 3, ext.Len())
	})

	t.Run("append-id rewrites external matches", func(t *testing.T) {
		ext := NewMemoryKeySet("gamma")
		res, err := New(Options{
			Key:      ColumnKey("name"),
			Strategy: StrategyAppendID,
			External: ext,
			Field:    "name",
			IDField:  "id",
		}).Run(ctx, records)
		require.NoError(t, err)

		require.Len(t, res.Records, 5)
		assert.Equal(t, "gamma - 4", res.Records[3].Get("name"))
		assert.Equal(t, 1, res.Stats.ExternalDuplicates)
		require.Len(t, res.Stats.Fixes, 3)
		assert.True(t, res.Stats.Fixes[1].External)
	})
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	records := productRecords([]string{"1", "a", ""}, []string{"2", "a", ""})

	_, err := New(Options{}).Run(ctx, records)
	assert.ErrorIs(t, err, ErrNoKeyFunc)

	_, err = New(Options{Key: ColumnKey("Title"), Strategy: StrategyAppendID}).Run(ctx, records)
	assert.ErrorIs(t, err, ErrNoField)

	_, err = New(Options{
		Key:      ColumnKey("Title"),
		Strategy: StrategyAppendID,
		Field:    "slug",
	}).Run(ctx, records)
	assert.ErrorIs(t, err, ErrKeyUnchanged)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = New(Options{Key: ColumnKey("Title")}).Run(cancelled, records)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStats_TopDuplicates(t *testing.T) {
	records := productRecords(
		[]string{"1", "a", ""},
		[]string{"2", "b", ""},
		[]string{"3", "b", ""},
		[]string{"4", "c", ""},
		[]string{"5", "c", ""},
		[]string{"6", "c", ""},
		[]string{"7", "c", ""},
		[]string{"8", "a", ""},
	)

	res, err := New(slugOptions(StrategyDrop)).Run(context.Background(), records)
	require.NoError(t, err)

	top := res.Stats.TopDuplicates(10)
	require.Len(t, top, 3)
	assert.Equal(t, "c", top[0].Key)
	assert.Equal(t, 4, top[0].Count)
	assert.Len(t, top[0].Samples, samplesPerKey)
	assert.Equal(t, Sample{ID: "4", Value: "c"}, top[0].Samples[0])
	assert.Equal(t, "a", top[1].Key)
	assert.Equal(t, "b", top[2].Key)

	assert.Len(t, res.Stats.TopDuplicates(1), 1)
	assert.Equal(t, 4, res.Stats.Count("c"))
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
