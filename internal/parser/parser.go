package parser

import (
	"github.com/maltedev/listing-toolkit/internal/models"
)

// Parser turns a saved search-results page into listings.
type Parser interface {
	ParseListingPage(html string, category string) ([]*models.Listing, error)
}
