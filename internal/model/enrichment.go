package model

import "time"

// Enrichment categories. Each category is merged as a unit with its own
// rule hook, rather than one flat struct with implicit nullability.

// Licensing holds HMO licence register fields.
type Licensing struct {
	Status       string     `json:"status,omitempty"` // licensed, expired, pending, revoked
	LicenceRef   string     `json:"licence_ref,omitempty"`
	MaxOccupants int        `json:"max_occupants,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// EPC holds Energy Performance Certificate fields.
type EPC struct {
	Rating string `json:"rating,omitempty"` // A-G
	Score  int    `json:"score,omitempty"`  // 0-100
}

// Ownership holds Land Registry / Companies House fields.
type Ownership struct {
	Owner      string `json:"owner,omitempty"`
	CompanyNo  string `json:"company_no,omitempty"`
	TenureType string `json:"tenure_type,omitempty"` // freehold, leasehold
}

// Planning holds planning-constraint fields.
type Planning struct {
	UseClass string `json:"use_class,omitempty"` // C3, C4, sui generis
	Article4 bool   `json:"article4,omitempty"`
}

// Connectivity holds Ofcom broadband availability fields.
type Connectivity struct {
	MaxDownloadMbps float64 `json:"max_download_mbps,omitempty"`
	ProviderCount   int     `json:"provider_count,omitempty"`
}

// Patch is a sparse update against a StoredProperty. Nil pointers mean
// "leave alone"; the store must never interpret a patch as a full replace.
type Patch struct {
	PropertyID string `json:"property_id,omitempty"` // empty for a create

	Address     *string      `json:"address,omitempty"`
	Postcode    *string      `json:"postcode,omitempty"`
	City        *string      `json:"city,omitempty"`
	Coordinates *Coordinate  `json:"coordinates,omitempty"`
	Bedrooms    *int         `json:"bedrooms,omitempty"`
	Bathrooms   *int         `json:"bathrooms,omitempty"`
	ListingType *ListingType `json:"listing_type,omitempty"`
	UPRN        *string      `json:"uprn,omitempty"`

	// ExternalIDs entries are added to the stored map, never removed.
	ExternalIDs map[string]string `json:"external_ids,omitempty"`

	Licensing    *Licensing    `json:"licensing,omitempty"`
	EPC          *EPC          `json:"epc,omitempty"`
	Ownership    *Ownership    `json:"ownership,omitempty"`
	Planning     *Planning     `json:"planning,omitempty"`
	Connectivity *Connectivity `json:"connectivity,omitempty"`

	RentPCM  *int `json:"rent_pcm,omitempty"`
	PriceGBP *int `json:"price_gbp,omitempty"`

	Provenance map[string]string `json:"provenance,omitempty"`

	LastEnrichedAt *time.Time `json:"last_enriched_at,omitempty"`
}

// IsEmpty reports whether the patch carries no field changes at all.
// LastEnrichedAt alone does not count as a change worth persisting.
func (p *Patch) IsEmpty() bool {
	return p.Address == nil && p.Postcode == nil && p.City == nil &&
		p.Coordinates == nil && p.Bedrooms == nil && p.Bathrooms == nil &&
		p.ListingType == nil && p.UPRN == nil && len(p.ExternalIDs) == 0 &&
		p.Licensing == nil && p.EPC == nil && p.Ownership == nil &&
		p.Planning == nil && p.Connectivity == nil &&
		p.RentPCM == nil && p.PriceGBP == nil
}
