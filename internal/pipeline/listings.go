package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maltedev/listing-toolkit/internal/csvio"
	"github.com/maltedev/listing-toolkit/internal/dedup"
	"github.com/maltedev/listing-toolkit/internal/models"
	"github.com/maltedev/listing-toolkit/internal/observability"
	"github.com/maltedev/listing-toolkit/internal/parser"
)

const (
	DefaultPerKeyword    = 10
	DefaultListingsLimit = 20
	KeywordsColumn       = "Keywords"
)

type ListingsRequest struct {
	// PagesDir holds one saved search results page per keyword, named
	// <keyword>.html.
	PagesDir string
	// KeywordsFile is an optional CSV with a Keywords column. Without it
	// every page in PagesDir is used and named after its file.
	KeywordsFile string
	Output       string
	PerKeyword   int
	Limit        int
	// Multiplier overrides the configured price multiplier when > 0.
	Multiplier float64
}

type ListingsResult struct {
	Output     string
	Listings   []*models.Listing
	Pages      int
	Extracted  int
	Duplicates int
	Saved      map[string]int
	Run        *models.RunSummary
}

type page struct {
	category string
	path     string
}

// BuildListings extracts listings from saved search pages, normalizes their
// prices, drops repeated titles and writes the listing CSV.
func (s *Service) BuildListings(ctx context.Context, req ListingsRequest) (res *ListingsResult, err error) {
	run := models.NewRunSummary(JobListings, req.PagesDir, s.now())
	defer func() { s.finish(ctx, run, err) }()

	perKeyword := req.PerKeyword
	if perKeyword <= 0 {
		perKeyword = DefaultPerKeyword
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultListingsLimit
	}
	multiplier := req.Multiplier
	if multiplier <= 0 {
		multiplier = s.cfg.Pricing.Multiplier
	}
	output := orDefault(req.Output, "output.csv")
	run.Output = output

	fallback, err := parser.ParseFallbackPolicy(s.cfg.Pricing.Fallback)
	if err != nil {
		return nil, err
	}
	normalizer := parser.NewPriceNormalizer(multiplier, fallback, s.logger)
	normalizer.OnFallback = func(string) { observability.PriceFallbacks.Inc() }

	pages, err := s.listingPages(req)
	if err != nil {
		return nil, err
	}

	res = &ListingsResult{Output: output, Run: run, Saved: make(map[string]int)}

	var all []*models.Listing
	for _, p := range pages {
		if p.path == "" {
			s.logger.Warn("no saved page for keyword", "keyword", p.category, "dir", req.PagesDir)
			fmt.Fprintf(s.out, "No results found for %s\n", p.category)
			continue
		}

		html, err := os.ReadFile(p.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %s: %w", p.path, err)
		}
		res.Pages++

		listings, err := s.parser.ParseListingPage(string(html), p.category)
		if err != nil {
			s.logger.Warn("skipping unparseable page", "path", p.path, "error", err)
			continue
		}
		listings = validListings(s.logger, listings)
		if len(listings) > perKeyword {
			listings = listings[:perKeyword]
		}
		fmt.Fprintf(s.out, "Found %d results for %s\n", len(listings), p.category)

		short, long := CategoryCopy(p.category)
		for _, l := range listings {
			l.Category = p.category
			l.ShortDescription = short
			l.Description = long
			l.Price = normalizer.Normalize(l.RawPrice)
		}
		all = append(all, listings...)
	}
	res.Extracted = len(all)

	table := models.ListingTable(all)
	result, err := dedup.New(dedup.Options{
		Key:    dedup.ColumnKey("Title"),
		Logger: s.logger,
	}).Run(ctx, table.Records)
	if err != nil {
		return nil, err
	}
	res.Duplicates = result.Stats.InternalDuplicates

	for _, rec := range result.Records {
		if len(res.Listings) >= limit {
			fmt.Fprintf(s.out, "Reached total results limit of %d\n", limit)
			break
		}
		res.Listings = append(res.Listings, all[rec.Line-2])
	}

	if err := csvio.Write(output, models.ListingTable(res.Listings)); err != nil {
		return nil, err
	}
	fmt.Fprintf(s.out, "Total results written: %d\n", len(res.Listings))

	for _, sink := range s.sinks {
		n, err := sink.SaveListings(ctx, run.ID, res.Listings)
		if err != nil {
			return nil, fmt.Errorf("failed to save listings to %s: %w", sink.Name(), err)
		}
		res.Saved[sink.Name()] = n
		run.Counts["saved_"+sink.Name()] = n
	}

	observability.ObserveDedup(JobListings, res.Extracted, res.Duplicates, 0, 0)
	run.Counts["pages"] = res.Pages
	run.Counts["extracted"] = res.Extracted
	run.Counts["duplicate_titles"] = res.Duplicates
	run.Counts["written"] = len(res.Listings)

	return res, nil
}

func validListings(logger *slog.Logger, listings []*models.Listing) []*models.Listing {
	valid := listings[:0]
	for _, l := range listings {
		if problems := l.Validate(); len(problems) > 0 {
			logger.Debug("skipping invalid listing", "title", l.Title, "problems", problems)
			continue
		}
		valid = append(valid, l)
	}
	return valid
}

// CategoryCopy returns the short and long description used for every
// listing of a category.
func CategoryCopy(category string) (string, string) {
	return fmt.Sprintf("Quality %s products", category),
		fmt.Sprintf("Discover our selection of %s products with competitive prices and excellent quality", category)
}

func (s *Service) listingPages(req ListingsRequest) ([]page, error) {
	if req.KeywordsFile == "" {
		return discoverPages(req.PagesDir)
	}

	t, err := csvio.Load(req.KeywordsFile)
	if err != nil {
		return nil, err
	}
	if err := t.Schema.Require(KeywordsColumn); err != nil {
		return nil, fmt.Errorf("%s: %w", req.KeywordsFile, err)
	}

	var pages []page
	for _, rec := range t.Records {
		kw := strings.TrimSpace(rec.Get(KeywordsColumn))
		if kw == "" {
			continue
		}
		pages = append(pages, page{category: kw, path: findPage(req.PagesDir, kw)})
	}
	return pages, nil
}

func discoverPages(dir string) ([]page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read pages folder %s: %w", dir, err)
	}

	var pages []page
	for _, e := range entries {
		if e.IsDir() || !isPage(e.Name()) {
			continue
		}
		name := e.Name()
		pages = append(pages, page{
			category: strings.TrimSuffix(name, filepath.Ext(name)),
			path:     filepath.Join(dir, name),
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].path < pages[j].path })
	return pages, nil
}

func findPage(dir, keyword string) string {
	for _, ext := range []string{".html", ".htm"} {
		p := filepath.Join(dir, keyword+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func isPage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".html" || ext == ".htm"
}
