package merge

import "github.com/hmoscout/ingest-cli/internal/model"

// Per-category merge rules. Each helper returns the merged category value
// to write, or nil when the incoming side adds nothing. The merged value
// starts from the existing one, so an empty incoming field can never null
// out a populated stored field.

func mergeLicensing(existing, incoming *model.Licensing, wins bool) *model.Licensing {
	if incoming == nil {
		return nil
	}
	if existing == nil {
		out := *incoming
		return &out
	}

	out := *existing
	changed := false
	if incoming.Status != "" && (out.Status == "" || wins && incoming.Status != out.Status) {
		out.Status = incoming.Status
		changed = true
	}
	if incoming.LicenceRef != "" && (out.LicenceRef == "" || wins && incoming.LicenceRef != out.LicenceRef) {
		out.LicenceRef = incoming.LicenceRef
		changed = true
	}
	if incoming.MaxOccupants > 0 && (out.MaxOccupants == 0 || wins && incoming.MaxOccupants != out.MaxOccupants) {
		out.MaxOccupants = incoming.MaxOccupants
		changed = true
	}
	if incoming.ExpiresAt != nil && (out.ExpiresAt == nil || wins && !incoming.ExpiresAt.Equal(*out.ExpiresAt)) {
		t := *incoming.ExpiresAt
		out.ExpiresAt = &t
		changed = true
	}
	if !changed {
		return nil
	}
	return &out
}

func mergeEPC(existing, incoming *model.EPC, wins bool) *model.EPC {
	if incoming == nil {
		return nil
	}
	if existing == nil {
		out := *incoming
		return &out
	}

	out := *existing
	changed := false
	if incoming.Rating != "" && (out.Rating == "" || wins && incoming.Rating != out.Rating) {
		out.Rating = incoming.Rating
		changed = true
	}
	if incoming.Score > 0 && (out.Score == 0 || wins && incoming.Score != out.Score) {
		out.Score = incoming.Score
		changed = true
	}
	if !changed {
		return nil
	}
	return &out
}

func mergeOwnership(existing, incoming *model.Ownership, wins bool) *model.Ownership {
	if incoming == nil {
		return nil
	}
	if existing == nil {
		out := *incoming
		return &out
	}

	out := *existing
	changed := false
	if incoming.Owner != "" && (out.Owner == "" || wins && incoming.Owner != out.Owner) {
		out.Owner = incoming.Owner
		changed = true
	}
	if incoming.CompanyNo != "" && (out.CompanyNo == "" || wins && incoming.CompanyNo != out.CompanyNo) {
		out.CompanyNo = incoming.CompanyNo
		changed = true
	}
	if incoming.TenureType != "" && (out.TenureType == "" || wins && incoming.TenureType != out.TenureType) {
		out.TenureType = incoming.TenureType
		changed = true
	}
	if !changed {
		return nil
	}
	return &out
}

func mergePlanning(existing, incoming *model.Planning, wins bool) *model.Planning {
	if incoming == nil {
		return nil
	}
	if existing == nil {
		out := *incoming
		return &out
	}

	out := *existing
	changed := false
	if incoming.UseClass != "" && (out.UseClass == "" || wins && incoming.UseClass != out.UseClass) {
		out.UseClass = incoming.UseClass
		changed = true
	}
	// Article4 only flips false->true without authority; a higher-priority
	// source may clear it.
	if incoming.Article4 != out.Article4 && (incoming.Article4 || wins) {
		out.Article4 = incoming.Article4
		changed = true
	}
	if !changed {
		return nil
	}
	return &out
}

func mergeConnectivity(existing, incoming *model.Connectivity, wins bool) *model.Connectivity {
	if incoming == nil {
		return nil
	}
	if existing == nil {
		out := *incoming
		return &out
	}

	out := *existing
	changed := false
	if incoming.MaxDownloadMbps > 0 && (out.MaxDownloadMbps == 0 || wins && incoming.MaxDownloadMbps != out.MaxDownloadMbps) {
		out.MaxDownloadMbps = incoming.MaxDownloadMbps
		changed = true
	}
	if incoming.ProviderCount > 0 && (out.ProviderCount == 0 || wins && incoming.ProviderCount != out.ProviderCount) {
		out.ProviderCount = incoming.ProviderCount
		changed = true
	}
	if !changed {
		return nil
	}
	return &out
}
