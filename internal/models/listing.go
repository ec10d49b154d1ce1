package models

import "time"

// ListingColumns is the header of a listing export.
var ListingColumns = []string{"Image", "Title", "Regular Price", "Category", "Short_description", "description"}

type Listing struct {
	Title            string    `json:"title"`
	RawPrice         string    `json:"raw_price"`
	Price            string    `json:"price"`
	ImageURL         string    `json:"image_url"`
	URL              string    `json:"url,omitempty"`
	Category         string    `json:"category"`
	ShortDescription string    `json:"short_description"`
	Description      string    `json:"description"`
	Source           string    `json:"source"`
	ExtractedAt      time.Time `json:"extracted_at"`
}

func NewListing(title, rawPrice, imageURL string) *Listing {
	return &Listing{
		Title:       title,
		RawPrice:    rawPrice,
		ImageURL:    imageURL,
		ExtractedAt: time.Now(),
	}
}

func (l *Listing) Validate() []string {
	var errors []string

	if l.Title == "" {
		errors = append(errors, "Title is required")
	}

	if l.RawPrice == "" {
		errors = append(errors, "Price is required")
	}

	return errors
}

// Values returns the listing in ListingColumns order.
func (l *Listing) Values() []string {
	return []string{l.ImageURL, l.Title, l.Price, l.Category, l.ShortDescription, l.Description}
}

// ListingTable converts listings into a table with the listing export header.
func ListingTable(listings []*Listing) *Table {
	schema := NewSchema(ListingColumns)
	t := &Table{Delimiter: ',', Schema: schema, Records: make([]Record, 0, len(listings))}
	for i, l := range listings {
		t.Records = append(t.Records, NewRecord(schema, l.Values(), i+2))
	}
	return t
}
