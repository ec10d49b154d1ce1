package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/listing-toolkit/internal/models"
)

// ListingStrategy extracts listings from a parsed results page. Strategies
// are tried in order; the first one that yields anything wins.
type ListingStrategy interface {
	Name() string
	Extract(doc *goquery.Document) []*models.Listing
}

// SelectorStrategy reads one listing per Item match using CSS selectors
// relative to the item.
type SelectorStrategy struct {
	Label string
	Item  string
	Title string
	Price string
	Image string
	Link  string
	// SkipTitles drops placeholder cards such as "Shop on eBay".
	SkipTitles []string
}

func (s *SelectorStrategy) Name() string {
	return s.Label
}

func (s *SelectorStrategy) Extract(doc *goquery.Document) []*models.Listing {
	var listings []*models.Listing

	doc.Find(s.Item).Each(func(i int, item *goquery.Selection) {
		title := cleanInlineText(item.Find(s.Title).First().Text())
		if title == "" || s.skip(title) {
			return
		}

		price := "N/A"
		if s.Price != "" {
			if text := cleanInlineText(item.Find(s.Price).First().Text()); text != "" {
				price = strings.ReplaceAll(text, "$ ", "$")
			}
		}

		l := models.NewListing(title, price, imageSource(item.Find(s.Image).First()))
		if s.Link != "" {
			l.URL, _ = item.Find(s.Link).First().Attr("href")
		}
		l.Source = s.Label
		listings = append(listings, l)
	})

	return listings
}

func (s *SelectorStrategy) skip(title string) bool {
	for _, t := range s.SkipTitles {
		if strings.EqualFold(title, t) {
			return true
		}
	}
	return false
}

// CurrencyTextStrategy is the last resort for unknown markup: every list
// item holding a text node with a currency sign becomes a listing.
type CurrencyTextStrategy struct {
	Symbols []string
}

func (c *CurrencyTextStrategy) Name() string {
	return "currency_text"
}

func (c *CurrencyTextStrategy) Extract(doc *goquery.Document) []*models.Listing {
	var listings []*models.Listing

	doc.Find("li").Each(func(i int, item *goquery.Selection) {
		if item.Find("li").Length() > 0 {
			return
		}

		var price string
		item.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
			text := cleanInlineText(span.Text())
			if c.hasSymbol(text) && len(text) < 40 {
				price = text
				return false
			}
			return true
		})
		if price == "" {
			return
		}

		title := cleanInlineText(item.Find("h3, h2, a").First().Text())
		if title == "" {
			return
		}

		l := models.NewListing(title, price, imageSource(item.Find("img").First()))
		l.Source = c.Name()
		listings = append(listings, l)
	})

	return listings
}

func (c *CurrencyTextStrategy) hasSymbol(text string) bool {
	for _, s := range c.Symbols {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func DefaultStrategies() []ListingStrategy {
	return []ListingStrategy{
		&SelectorStrategy{
			Label:      "ebay_item",
			Item:       "li.s-item, li.s-card",
			Title:      ".s-item__title, .s-card__title",
			Price:      ".s-item__price, .s-card__price",
			Image:      ".s-item__image img, .s-card__image img, img",
			Link:       "a.s-item__link, a.su-link, a",
			SkipTitles: []string{"Shop on eBay"},
		},
		&SelectorStrategy{
			Label: "aliexpress_card",
			Item:  "a.search-card-item, div.search-item-card-wrapper-gallery",
			Title: "h3, [class*='title']",
			Price: "[class*='price-sale'], [class*='price']",
			Image: "img",
			Link:  "a",
		},
		&SelectorStrategy{
			Label: "microdata",
			Item:  "[itemtype$='/Product'], .product-card, .product",
			Title: "[itemprop='name'], .product-title, h2, h3",
			Price: "[itemprop='price'], .price",
			Image: "img",
			Link:  "a",
		},
		&CurrencyTextStrategy{Symbols: []string{"$", "€", "£", "US "}},
	}
}

type ListingParser struct {
	strategies []ListingStrategy
	logger     *slog.Logger
}

func NewListingParser(logger *slog.Logger, strategies ...ListingStrategy) *ListingParser {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingParser{
		strategies: strategies,
		logger:     logger.With("component", "listing_parser"),
	}
}

func (p *ListingParser) ParseListingPage(html string, category string) ([]*models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	for _, s := range p.strategies {
		listings := s.Extract(doc)
		if len(listings) == 0 {
			p.logger.Debug("strategy found nothing", "strategy", s.Name())
			continue
		}

		for _, l := range listings {
			l.Category = category
		}
		p.logger.Debug("strategy matched", "strategy", s.Name(), "count", len(listings))
		return listings, nil
	}

	return nil, nil
}

func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		if v, ok := img.Attr(attr); ok && v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

func cleanInlineText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
