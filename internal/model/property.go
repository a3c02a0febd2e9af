// Package model defines the domain types shared across the ingestion pipeline.
package model

import "time"

// ListingType distinguishes rental listings from sale listings.
type ListingType string

const (
	ListingRent     ListingType = "rent"
	ListingPurchase ListingType = "purchase"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PropertyListing is one property as reported by one upstream source.
// Coordinates and every enrichment category are optional; sources report
// whatever subset they know about.
type PropertyListing struct {
	Address     string      `json:"address"`
	Postcode    string      `json:"postcode"`
	City        string      `json:"city,omitempty"`
	Coordinates *Coordinate `json:"coordinates,omitempty"`
	Bedrooms    int         `json:"bedrooms,omitempty"`
	Bathrooms   int         `json:"bathrooms,omitempty"`
	ListingType ListingType `json:"listing_type,omitempty"`
	UPRN        string      `json:"uprn,omitempty"`
	ExternalID  string      `json:"external_id,omitempty"`
	Source      string      `json:"source"`

	Licensing    *Licensing    `json:"licensing,omitempty"`
	EPC          *EPC          `json:"epc,omitempty"`
	Ownership    *Ownership    `json:"ownership,omitempty"`
	Planning     *Planning     `json:"planning,omitempty"`
	Connectivity *Connectivity `json:"connectivity,omitempty"`

	RentPCM  *int `json:"rent_pcm,omitempty"`
	PriceGBP *int `json:"price_gbp,omitempty"`
}

// StoredProperty is the canonical record for a real-world property,
// accumulated from listings merged over time. The store owns it; the
// pipeline only reads it and proposes sparse patches.
type StoredProperty struct {
	ID          string      `json:"id"`
	Address     string      `json:"address"`
	Postcode    string      `json:"postcode"`
	City        string      `json:"city,omitempty"`
	Coordinates *Coordinate `json:"coordinates,omitempty"`
	Bedrooms    int         `json:"bedrooms,omitempty"`
	Bathrooms   int         `json:"bathrooms,omitempty"`
	ListingType ListingType `json:"listing_type,omitempty"`
	UPRN        string      `json:"uprn,omitempty"`

	// ExternalIDs maps source name to that source's identifier for this
	// property, so an exact-id re-sync skips fuzzy matching entirely.
	ExternalIDs map[string]string `json:"external_ids,omitempty"`

	Licensing    *Licensing    `json:"licensing,omitempty"`
	EPC          *EPC          `json:"epc,omitempty"`
	Ownership    *Ownership    `json:"ownership,omitempty"`
	Planning     *Planning     `json:"planning,omitempty"`
	Connectivity *Connectivity `json:"connectivity,omitempty"`

	RentPCM  *int `json:"rent_pcm,omitempty"`
	PriceGBP *int `json:"price_gbp,omitempty"`

	// Provenance maps enrichment category to the source that last wrote it.
	Provenance map[string]string `json:"provenance,omitempty"`

	FirstSeenAt    time.Time  `json:"first_seen_at"`
	LastEnrichedAt *time.Time `json:"last_enriched_at,omitempty"`
}

// HasCoordinates reports whether the listing carries a usable coordinate pair.
func (l *PropertyListing) HasCoordinates() bool {
	return l.Coordinates != nil
}
