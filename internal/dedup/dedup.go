package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/maltedev/listing-toolkit/internal/models"
)

// Strategy selects what happens to a record whose key was already seen.
type Strategy int

const (
	// StrategyDrop keeps the first occurrence of a key and drops the rest.
	StrategyDrop Strategy = iota
	// StrategyAppendID keeps every record and rewrites the duplicate's field
	// to "<value> - <id>".
	StrategyAppendID
)

const (
	maxRewriteAttempts = 1000
	samplesPerKey      = 3
)

var (
	ErrNoKeyFunc       = errors.New("dedup: key function is required")
	ErrNoField         = errors.New("dedup: append-id strategy requires a field to rewrite")
	ErrKeyUnchanged    = errors.New("dedup: rewriting the field does not change the key")
	ErrUnknownStrategy = errors.New("dedup: unknown strategy")
)

// ParseStrategy accepts "drop" (or empty) and "append-id".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drop", "":
		return StrategyDrop, nil
	case "append-id", "append_id", "append":
		return StrategyAppendID, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

func (s Strategy) String() string {
	switch s {
	case StrategyDrop:
		return "drop"
	case StrategyAppendID:
		return "append-id"
	default:
		return "unknown"
	}
}

// Options configures a Deduplicator. Key is required.
type Options struct {
	Key      KeyFunc
	Strategy Strategy
	// External holds keys from earlier files. Records matching it count as
	// external duplicates. May be nil.
	External KeySet
	// Remember adds the keys of surviving records to External after the run.
	Remember bool

	// Field is rewritten by StrategyAppendID.
	Field string
	// IDField identifies a record in fixes and reports. Rows without one are
	// identified by their line number.
	IDField string
	// Derived recomputes other columns from the rewritten Field value, e.g.
	// a slug column.
	Derived map[string]func(string) string

	Logger *slog.Logger
}

// Fix describes one record rewritten by StrategyAppendID.
type Fix struct {
	ID         string
	Line       int
	Original   string
	Rewritten  string
	Key        string
	Occurrence int
	External   bool
}

// Sample identifies one record that produced a key.
type Sample struct {
	ID    string
	Value string
}

// KeyCount is a repeated key with its occurrence count and the first few
// records that produced it.
type KeyCount struct {
	Key     string
	Count   int
	Samples []Sample
}

// Stats counts what a run saw and did.
type Stats struct {
	Total              int
	InternalDuplicates int
	ExternalDuplicates int
	Survivors          int
	// UniqueKeys is the number of distinct input keys; DuplicateKeys the
	// number of those seen more than once.
	UniqueKeys    int
	DuplicateKeys int
	Fixes         []Fix

	counts  map[string]int
	order   []string
	samples map[string][]Sample
}

// Removed is the number of input records missing from the result.
func (s Stats) Removed() int {
	return s.Total - s.Survivors
}

// ReductionPercent is the share of input rows removed, 0 for empty input.
func (s Stats) ReductionPercent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Removed()) / float64(s.Total) * 100
}

// Count returns how often key occurred in the input.
func (s Stats) Count(key string) int {
	return s.counts[key]
}

// TopDuplicates returns up to n keys seen more than once, most frequent
// first and in first-seen order among equals.
func (s Stats) TopDuplicates(n int) []KeyCount {
	var out []KeyCount
	for _, k := range s.order {
		if c := s.counts[k]; c > 1 {
			out = append(out, KeyCount{Key: k, Count: c, Samples: s.samples[k]})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})

	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Result holds the surviving records, in input order, and the run stats.
type Result struct {
	Records []models.Record
	Stats   Stats
}

// Deduplicator removes or rewrites records with repeated keys.
type Deduplicator struct {
	opts   Options
	logger *slog.Logger
}

// New returns a Deduplicator. Options are checked when Run is called.
func New(opts Options) *Deduplicator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{
		opts:   opts,
		logger: logger.With("component", "dedup", "strategy", opts.Strategy.String()),
	}
}

// Run deduplicates records in a single pass. The input slice is not
// modified. Within the result no two records share a key.
func (d *Deduplicator) Run(ctx context.Context, records []models.Record) (*Result, error) {
	if d.opts.Key == nil {
		return nil, ErrNoKeyFunc
	}
	if d.opts.Strategy == StrategyAppendID && d.opts.Field == "" {
		return nil, ErrNoField
	}

	stats := Stats{
		counts:  make(map[string]int),
		samples: make(map[string][]Sample),
	}
	seen := make(map[string]struct{}, len(records))
	out := make([]models.Record, 0, len(records))
	var survivorKeys []string

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats.Total++

		key := d.opts.Key(rec)
		stats.count(key, d.sample(rec, key))

		_, internal := seen[key]
		external := false
		if !internal {
			var err error
			if external, err = d.isExternal(ctx, key); err != nil {
				return nil, err
			}
		}
		seen[key] = struct{}{}

		if !internal && !external {
			out = append(out, rec)
			survivorKeys = append(survivorKeys, key)
			continue
		}

		if internal {
			stats.InternalDuplicates++
		} else {
			stats.ExternalDuplicates++
		}

		if d.opts.Strategy == StrategyDrop {
			continue
		}

		fixed := rec.Clone()
		fix, newKey, err := d.rewrite(ctx, &fixed, key, seen)
		if err != nil {
			return nil, err
		}
		fix.Occurrence = stats.counts[key]
		fix.External = external
		stats.Fixes = append(stats.Fixes, fix)

		seen[newKey] = struct{}{}
		out = append(out, fixed)
		survivorKeys = append(survivorKeys, newKey)

		d.logger.Debug("fixed duplicate",
			"id", fix.ID,
			"original", fix.Original,
			"rewritten", fix.Rewritten)
	}

	stats.Survivors = len(out)
	stats.UniqueKeys = len(stats.order)
	for _, c := range stats.counts {
		if c > 1 {
			stats.DuplicateKeys++
		}
	}

	if d.opts.Remember && d.opts.External != nil {
		if err := d.opts.External.Add(ctx, survivorKeys...); err != nil {
			return nil, fmt.Errorf("failed to record surviving keys: %w", err)
		}
	}

	d.logger.Info("dedup completed",
		"total", stats.Total,
		"internal_duplicates", stats.InternalDuplicates,
		"external_duplicates", stats.ExternalDuplicates,
		"survivors", stats.Survivors,
		"fixes", len(stats.Fixes))

	return &Result{Records: out, Stats: stats}, nil
}

// rewrite appends the record's identifier to Field until the resulting key
// is neither seen in this run nor present in the external set.
func (d *Deduplicator) rewrite(ctx context.Context, rec *models.Record, key string, seen map[string]struct{}) (Fix, string, error) {
	original := rec.Get(d.opts.Field)
	id := d.identifier(*rec)

	for n := 1; n <= maxRewriteAttempts; n++ {
		candidate := original + " - " + id
		if n > 1 {
			candidate += " " + strconv.Itoa(n)
		}
		d.apply(rec, candidate)

		newKey := d.opts.Key(*rec)
		if newKey == key {
			return Fix{}, "", fmt.Errorf("%w: field %q at line %d", ErrKeyUnchanged, d.opts.Field, rec.Line)
		}
		if _, dup := seen[newKey]; dup {
			continue
		}
		external, err := d.isExternal(ctx, newKey)
		if err != nil {
			return Fix{}, "", err
		}
		if external {
			continue
		}

		return Fix{
			ID:        id,
			Line:      rec.Line,
			Original:  original,
			Rewritten: candidate,
			Key:       key,
		}, newKey, nil
	}

	return Fix{}, "", fmt.Errorf("dedup: no unique value for line %d after %d attempts", rec.Line, maxRewriteAttempts)
}

func (d *Deduplicator) apply(rec *models.Record, value string) {
	rec.Set(d.opts.Field, value)
	for col, derive := range d.opts.Derived {
		rec.Set(col, derive(value))
	}
}

func (d *Deduplicator) isExternal(ctx context.Context, key string) (bool, error) {
	if d.opts.External == nil {
		return false, nil
	}
	return d.opts.External.Contains(ctx, key)
}

func (d *Deduplicator) identifier(rec models.Record) string {
	if d.opts.IDField != "" {
		if id := strings.TrimSpace(rec.Get(d.opts.IDField)); id != "" {
			return id
		}
	}
	return strconv.Itoa(rec.Line)
}

func (d *Deduplicator) sample(rec models.Record, key string) Sample {
	value := key
	if d.opts.Field != "" {
		value = rec.Get(d.opts.Field)
	}
	return Sample{ID: d.identifier(rec), Value: value}
}

func (s *Stats) count(key string, sample Sample) {
	if _, ok := s.counts[key]; !ok {
		s.order = append(s.order, key)
	}
	s.counts[key]++
	if len(s.samples[key]) < samplesPerKey {
		s.samples[key] = append(s.samples[key], sample)
	}
}
