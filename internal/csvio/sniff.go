package csvio

// SampleSize is how much of a file is inspected to detect its delimiter and encoding.
const SampleSize = 1024

var candidateDelimiters = []rune{',', ';', '\t', '|'}

// SniffDelimiter guesses the field delimiter of a CSV sample. The candidate
// whose per-record count is the most consistent across records wins; ties
// go to the higher count, then to the earlier candidate. It falls back to
// a comma.
func SniffDelimiter(sample []byte) rune {
	records := splitRecords(sample)
	if len(records) == 0 {
		return ','
	}

	best := ','
	bestConsistency, bestCount := 0, 0

	for _, d := range candidateDelimiters {
		counts := make(map[int]int)
		for _, rec := range records {
			counts[countOutsideQuotes(rec, d)]++
		}

		modal, freq := 0, 0
		for c, f := range counts {
			if c == 0 {
				continue
			}
			if f > freq || (f == freq && c > modal) {
				modal, freq = c, f
			}
		}
		if modal == 0 {
			continue
		}

		if freq > bestConsistency || (freq == bestConsistency && modal > bestCount) {
			best, bestConsistency, bestCount = d, freq, modal
		}
	}

	return best
}

// splitRecords splits a sample on newlines that are not inside quotes. A
// trailing partial record is dropped when the sample was cut at SampleSize.
func splitRecords(sample []byte) []string {
	var records []string
	inQuote := false
	start := 0

	for i, b := range sample {
		switch b {
		case '"':
			inQuote = !inQuote
		case '\n':
			if !inQuote {
				if rec := trimCR(string(sample[start:i])); rec != "" {
					records = append(records, rec)
				}
				start = i + 1
			}
		}
	}

	if start < len(sample) && (len(sample) < SampleSize || len(records) == 0) {
		if rec := trimCR(string(sample[start:])); rec != "" {
			records = append(records, rec)
		}
	}

	return records
}

func countOutsideQuotes(record string, delim rune) int {
	n := 0
	inQuote := false
	for _, r := range record {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == delim && !inQuote:
			n++
		}
	}
	return n
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}
