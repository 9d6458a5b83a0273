package crawler

import (
	"fmt"
	"strings"
	"time"
)

// Product is a single storefront item identified by its canonical URL.
type Product struct {
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}

// Extraction is what the field extractor pulls from a product page.
type Extraction struct {
	Product     Product
	Price       int64
	PriceParsed bool
}

// Observation is one product sighting handed to a Store.
type Observation struct {
	Product     Product
	Price       int64
	PriceParsed bool
	ObservedAt  time.Time
}

// PriceObservation is one row of a product's price history.
type PriceObservation struct {
	Price      int64     `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Summary reports counters for a finished (or aborted) crawl run.
type Summary struct {
	Fetched          int `json:"fetched"`
	FetchFailed      int `json:"fetch_failed"`
	Products         int `json:"products"`
	ExtractionFailed int `json:"extraction_failed"`
	PriceDefaulted   int `json:"price_defaulted"`
	StoreFailed      int `json:"store_failed"`
}

// MetadataPolicy decides what happens to a stored product's name, description
// and images when the same URL is observed again.
type MetadataPolicy string

// Supported metadata policies.
const (
	// MetadataKeepFirst preserves the metadata from the first observation.
	MetadataKeepFirst MetadataPolicy = "keep_first"
	// MetadataOverwrite refreshes metadata on every observation.
	MetadataOverwrite MetadataPolicy = "overwrite"
)

// ParseMetadataPolicy maps a config string to a MetadataPolicy. Empty means keep_first.
func ParseMetadataPolicy(raw string) (MetadataPolicy, error) {
	switch MetadataPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", MetadataKeepFirst:
		return MetadataKeepFirst, nil
	case MetadataOverwrite:
		return MetadataOverwrite, nil
	default:
		return "", fmt.Errorf("unknown metadata policy %q", raw)
	}
}

// ImageSeparator joins image references in flat storage columns. It is not
// escaped, so a URL containing it cannot be split back losslessly.
const ImageSeparator = "|"

// JoinImages serializes image references for a TEXT column or CSV cell.
func JoinImages(images []string) string {
	return strings.Join(images, ImageSeparator)
}

// SplitImages is the inverse of JoinImages for values without embedded separators.
func SplitImages(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return strings.Split(raw, ImageSeparator)
}
