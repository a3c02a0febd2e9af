package model

// Apply folds a sparse patch into the stored record. Nil patch fields
// leave the record untouched; map entries are added, never removed.
func (s *StoredProperty) Apply(p Patch) {
	if p.Address != nil {
		s.Address = *p.Address
	}
	if p.Postcode != nil {
		s.Postcode = *p.Postcode
	}
	if p.City != nil {
		s.City = *p.City
	}
	if p.Coordinates != nil {
		c := *p.Coordinates
		s.Coordinates = &c
	}
	if p.Bedrooms != nil {
		s.Bedrooms = *p.Bedrooms
	}
	if p.Bathrooms != nil {
		s.Bathrooms = *p.Bathrooms
	}
	if p.ListingType != nil {
		s.ListingType = *p.ListingType
	}
	if p.UPRN != nil {
		s.UPRN = *p.UPRN
	}
	if len(p.ExternalIDs) > 0 {
		if s.ExternalIDs == nil {
			s.ExternalIDs = make(map[string]string, len(p.ExternalIDs))
		}
		for k, v := range p.ExternalIDs {
			s.ExternalIDs[k] = v
		}
	}
	if p.Licensing != nil {
		lic := *p.Licensing
		s.Licensing = &lic
	}
	if p.EPC != nil {
		epc := *p.EPC
		s.EPC = &epc
	}
	if p.Ownership != nil {
		own := *p.Ownership
		s.Ownership = &own
	}
	if p.Planning != nil {
		pl := *p.Planning
		s.Planning = &pl
	}
	if p.Connectivity != nil {
		cn := *p.Connectivity
		s.Connectivity = &cn
	}
	if p.RentPCM != nil {
		v := *p.RentPCM
		s.RentPCM = &v
	}
	if p.PriceGBP != nil {
		v := *p.PriceGBP
		s.PriceGBP = &v
	}
	if len(p.Provenance) > 0 {
		if s.Provenance == nil {
			s.Provenance = make(map[string]string, len(p.Provenance))
		}
		for k, v := range p.Provenance {
			s.Provenance[k] = v
		}
	}
	if p.LastEnrichedAt != nil {
		t := *p.LastEnrichedAt
		s.LastEnrichedAt = &t
	}
}
