package csvio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/maltedev/listing-toolkit/internal/models"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

var ErrEmptyFile = errors.New("file has no header row")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads a whole CSV file. The delimiter and character encoding are
// detected from the first SampleSize bytes.
func Load(path string) (*models.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	t, err := Parse(data, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return t, nil
}

func Parse(data []byte, source string) (*models.Table, error) {
	data, err := decode(data)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	sample := data
	if len(sample) > SampleSize {
		sample = sample[:SampleSize]
	}
	delim := SniffDelimiter(sample)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	schema := models.NewSchema(header)
	table := &models.Table{
		Source:    source,
		Delimiter: delim,
		Schema:    schema,
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		line, _ := r.FieldPos(0)
		table.Records = append(table.Records, models.NewRecord(schema, rec, line))
	}

	return table, nil
}

// decode converts non-UTF-8 input to UTF-8. Encodings are recognised from a
// BOM; input that is not valid UTF-8 is taken as windows-1252.
func decode(data []byte) ([]byte, error) {
	_, name, _ := charset.DetermineEncoding(data, "text/csv")
	if name == "utf-8" {
		return data, nil
	}

	enc, _ := charset.Lookup(name)
	if enc == nil {
		return data, nil
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s input: %w", name, err)
	}
	return out, nil
}
