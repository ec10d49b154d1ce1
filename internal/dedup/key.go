package dedup

import (
	"strconv"
	"strings"

	"github.com/maltedev/listing-toolkit/internal/models"
	"github.com/maltedev/listing-toolkit/internal/parser"
)

// KeyFunc extracts the dedup key from a record.
type KeyFunc func(rec models.Record) string

// keySeparator joins the parts of a multi-column key. It cannot appear in
// CSV text produced by the tools that feed this package.
const keySeparator = "\x1f"

// ColumnKey keys records by the raw values of the given columns.
func ColumnKey(columns ...string) KeyFunc {
	if len(columns) == 1 {
		col := columns[0]
		return func(rec models.Record) string {
			return rec.Get(col)
		}
	}

	return func(rec models.Record) string {
		parts := make([]string, len(columns))
		for i, c := range columns {
			parts[i] = rec.Get(c)
		}
		return strings.Join(parts, keySeparator)
	}
}

// SlugKey keys records by the slug of titleCol. When the title yields an
// empty slug the key becomes product-<id>, or product-<line> for rows
// without an identifier, so the key is never empty.
func SlugKey(titleCol, idCol string) KeyFunc {
	return func(rec models.Record) string {
		return parser.SlugOr(rec.Get(titleCol), fallbackSlug(rec, idCol))
	}
}

func fallbackSlug(rec models.Record, idCol string) string {
	if id := strings.TrimSpace(rec.Get(idCol)); id != "" {
		return parser.FallbackSlug(id)
	}
	return parser.FallbackSlug(strconv.Itoa(rec.Line))
}
