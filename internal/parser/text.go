package parser

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

var (
	bracketedName = regexp.MustCompile(`\(([A-Za-z]{5,}|[A-Za-z]+\s+[A-Za-z]+(?:\s+[A-Za-z]+)*)\)`)
	whitespaceRun = regexp.MustCompile(`\s+`)

	spreadsheetArtifacts = []string{"=-", "-=", "=--", "--=", "===", "=="}
	excelErrors          = []string{"#NAME?", "#VALUE!", "#REF!", "#DIV/0!", "#N/A"}

	mojibake = buildMojibakeTable([]struct {
		r           rune
		replacement string
	}{
		{'–', "-"},
		{'—', "-"},
		{'“', `"`},
		{'”', `"`},
		{'‘', "'"},
		{'’', "'"},
		{'…', "..."},
		{'\u00a0', " "},
	})
)

type replacement struct {
	from, to string
}

// buildMojibakeTable computes how each rune looks after its UTF-8 bytes
// were decoded as windows-1252, which is what spreadsheet round trips leave
// behind.
func buildMojibakeTable(targets []struct {
	r           rune
	replacement string
}) []replacement {
	dec := charmap.Windows1252.NewDecoder()
	out := make([]replacement, 0, len(targets)+1)
	for _, t := range targets {
		garbled, err := dec.String(string(t.r))
		if err != nil || garbled == string(t.r) {
			continue
		}
		out = append(out, replacement{from: garbled, to: t.replacement})
	}
	// Truncated three-byte sequences.
	if prefix, err := dec.String("\xe2\x80"); err == nil {
		out = append(out, replacement{from: prefix, to: `"`})
	}
	return out
}

// CleanText strips spreadsheet and encoding artifacts from a cell:
// bracketed worker names, "=-" style prefixes, Excel error literals,
// mojibake and HTML entities. Whitespace is collapsed and trimmed.
func CleanText(text string) string {
	if text == "" {
		return text
	}

	text = bracketedName.ReplaceAllString(text, "")

	for _, a := range spreadsheetArtifacts {
		text = strings.ReplaceAll(text, a, "")
	}

	for _, m := range mojibake {
		text = strings.ReplaceAll(text, m.from, m.to)
	}

	for _, e := range excelErrors {
		text = strings.ReplaceAll(text, e, "")
	}

	text = html.UnescapeString(text)

	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}
