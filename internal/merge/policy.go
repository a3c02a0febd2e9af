// Package merge decides which incoming fields may overwrite stored ones.
// The output is always a sparse patch: fields a rule did not approve are
// absent, so parallel enrichment from another source is never wiped.
package merge

import (
	"time"

	"github.com/hmoscout/ingest-cli/internal/model"
)

// Enrichment category names used for provenance bookkeeping.
const (
	CategoryLicensing    = "licensing"
	CategoryEPC          = "epc"
	CategoryOwnership    = "ownership"
	CategoryPlanning     = "planning"
	CategoryConnectivity = "connectivity"
)

// Options adjusts a single merge invocation.
type Options struct {
	// ForceUpdate lets non-zero numeric re-derivations (rent, price,
	// bedroom counts) replace existing values. It never permits writing
	// an empty value over a populated one.
	ForceUpdate bool

	Now time.Time // injectable for tests; zero means time.Now
}

// Policy applies the non-destructive merge rules with source-priority
// tie-breaking.
type Policy struct {
	// priority maps source name to rank; higher rank wins conflicts.
	// Unknown sources rank 0.
	priority map[string]int
}

// NewPolicy builds a Policy from an ordered source list, most
// authoritative first.
func NewPolicy(sourceOrder []string) *Policy {
	p := &Policy{priority: make(map[string]int, len(sourceOrder))}
	for i, name := range sourceOrder {
		p.priority[name] = len(sourceOrder) - i
	}
	return p
}

func (p *Policy) rank(source string) int {
	return p.priority[source]
}

// Merge computes the sparse patch to apply an incoming listing onto an
// existing stored record. A populated stored field is never overwritten
// by an empty incoming one; enrichment categories are replaced only when
// the incoming source outranks the one recorded in provenance.
func (p *Policy) Merge(existing *model.StoredProperty, incoming model.PropertyListing, opts Options) model.Patch {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	patch := model.Patch{PropertyID: existing.ID}

	if existing.Address == "" && incoming.Address != "" {
		patch.Address = &incoming.Address
	}
	if existing.Postcode == "" && incoming.Postcode != "" {
		patch.Postcode = &incoming.Postcode
	}
	if existing.City == "" && incoming.City != "" {
		patch.City = &incoming.City
	}
	if existing.UPRN == "" && incoming.UPRN != "" {
		patch.UPRN = &incoming.UPRN
	}
	if existing.ListingType == "" && incoming.ListingType != "" {
		lt := incoming.ListingType
		patch.ListingType = &lt
	}
	if existing.Coordinates == nil && incoming.Coordinates != nil {
		c := *incoming.Coordinates
		patch.Coordinates = &c
	}

	if incoming.Bedrooms > 0 && (existing.Bedrooms == 0 || opts.ForceUpdate && incoming.Bedrooms != existing.Bedrooms) {
		b := incoming.Bedrooms
		patch.Bedrooms = &b
	}
	if incoming.Bathrooms > 0 && (existing.Bathrooms == 0 || opts.ForceUpdate && incoming.Bathrooms != existing.Bathrooms) {
		b := incoming.Bathrooms
		patch.Bathrooms = &b
	}
	if incoming.RentPCM != nil && *incoming.RentPCM > 0 && (existing.RentPCM == nil || opts.ForceUpdate && *incoming.RentPCM != *existing.RentPCM) {
		v := *incoming.RentPCM
		patch.RentPCM = &v
	}
	if incoming.PriceGBP != nil && *incoming.PriceGBP > 0 && (existing.PriceGBP == nil || opts.ForceUpdate && *incoming.PriceGBP != *existing.PriceGBP) {
		v := *incoming.PriceGBP
		patch.PriceGBP = &v
	}

	if incoming.ExternalID != "" && incoming.Source != "" {
		if existing.ExternalIDs[incoming.Source] != incoming.ExternalID {
			patch.ExternalIDs = map[string]string{incoming.Source: incoming.ExternalID}
		}
	}

	prov := make(map[string]string)
	if lic := mergeLicensing(existing.Licensing, incoming.Licensing, p.categoryWins(existing, CategoryLicensing, incoming.Source)); lic != nil {
		patch.Licensing = lic
		prov[CategoryLicensing] = incoming.Source
	}
	if epc := mergeEPC(existing.EPC, incoming.EPC, p.categoryWins(existing, CategoryEPC, incoming.Source)); epc != nil {
		patch.EPC = epc
		prov[CategoryEPC] = incoming.Source
	}
	if own := mergeOwnership(existing.Ownership, incoming.Ownership, p.categoryWins(existing, CategoryOwnership, incoming.Source)); own != nil {
		patch.Ownership = own
		prov[CategoryOwnership] = incoming.Source
	}
	if pl := mergePlanning(existing.Planning, incoming.Planning, p.categoryWins(existing, CategoryPlanning, incoming.Source)); pl != nil {
		patch.Planning = pl
		prov[CategoryPlanning] = incoming.Source
	}
	if cn := mergeConnectivity(existing.Connectivity, incoming.Connectivity, p.categoryWins(existing, CategoryConnectivity, incoming.Source)); cn != nil {
		patch.Connectivity = cn
		prov[CategoryConnectivity] = incoming.Source
	}
	if len(prov) > 0 {
		patch.Provenance = prov
	}

	// Refreshable: always stamped, even when nothing else changed.
	patch.LastEnrichedAt = &now

	return patch
}

// categoryWins reports whether the incoming source may overwrite populated
// fields in a category: true when no provenance exists or the incoming
// source outranks the recorded one.
func (p *Policy) categoryWins(existing *model.StoredProperty, category, source string) bool {
	prev, ok := existing.Provenance[category]
	if !ok {
		return true
	}
	return p.rank(source) > p.rank(prev)
}

// FromListing builds the create patch for a record with no existing match.
func FromListing(l model.PropertyListing, now time.Time) model.Patch {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	patch := model.Patch{
		Address:  &l.Address,
		Postcode: &l.Postcode,
	}
	if l.City != "" {
		patch.City = &l.City
	}
	if l.UPRN != "" {
		patch.UPRN = &l.UPRN
	}
	if l.ListingType != "" {
		lt := l.ListingType
		patch.ListingType = &lt
	}
	if l.Coordinates != nil {
		c := *l.Coordinates
		patch.Coordinates = &c
	}
	if l.Bedrooms > 0 {
		b := l.Bedrooms
		patch.Bedrooms = &b
	}
	if l.Bathrooms > 0 {
		b := l.Bathrooms
		patch.Bathrooms = &b
	}
	if l.RentPCM != nil {
		v := *l.RentPCM
		patch.RentPCM = &v
	}
	if l.PriceGBP != nil {
		v := *l.PriceGBP
		patch.PriceGBP = &v
	}
	if l.ExternalID != "" && l.Source != "" {
		patch.ExternalIDs = map[string]string{l.Source: l.ExternalID}
	}

	prov := make(map[string]string)
	if l.Licensing != nil {
		lic := *l.Licensing
		patch.Licensing = &lic
		prov[CategoryLicensing] = l.Source
	}
	if l.EPC != nil {
		epc := *l.EPC
		patch.EPC = &epc
		prov[CategoryEPC] = l.Source
	}
	if l.Ownership != nil {
		own := *l.Ownership
		patch.Ownership = &own
		prov[CategoryOwnership] = l.Source
	}
	if l.Planning != nil {
		pl := *l.Planning
		patch.Planning = &pl
		prov[CategoryPlanning] = l.Source
	}
	if l.Connectivity != nil {
		cn := *l.Connectivity
		patch.Connectivity = &cn
		prov[CategoryConnectivity] = l.Source
	}
	if len(prov) > 0 {
		patch.Provenance = prov
	}

	patch.LastEnrichedAt = &now
	return patch
}
