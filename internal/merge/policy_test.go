package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmoscout/ingest-cli/internal/model"
)

func intPtr(n int) *int { return &n }

func newPolicy() *Policy {
	// council register outranks scraped listings.
	return NewPolicy([]string{"council_register", "epc_register", "listings_scrape"})
}

func TestMergeFillsEmptyFields(t *testing.T) {
	t.Parallel()

	existing := &model.StoredProperty{ID: "p1", Address: "12 Elm Road", Postcode: "N7 6PA"}
	incoming := model.PropertyListing{
		Source:   "listings_scrape",
		Address:  "12 Elm Road, London",
		City:     "London",
		Bedrooms: 4,
		RentPCM:  intPtr(2600),
	}

	patch := newPolicy().Merge(existing, incoming, Options{})

	assert.Nil(t, patch.Address, "populated address must not be replaced")
	require.NotNil(t, patch.City)
	assert.Equal(t, "London", *patch.City)
	require.NotNil(t, patch.Bedrooms)
	assert.Equal(t, 4, *patch.Bedrooms)
	require.NotNil(t, patch.RentPCM)
	assert.Equal(t, 2600, *patch.RentPCM)
}

func TestMergeNeverNullsPopulatedFields(t *testing.T) {
	t.Parallel()

	existing := &model.StoredProperty{
		ID:       "p1",
		Address:  "12 Elm Road",
		Postcode: "N7 6PA",
		City:     "London",
		Bedrooms: 4,
		RentPCM:  intPtr(2600),
		EPC:      &model.EPC{Rating: "C", Score: 72},
		Provenance: map[string]string{
			CategoryEPC: "epc_register",
		},
	}
	// Incoming record knows nothing: everything empty or absent.
	incoming := model.PropertyListing{Source: "listings_scrape"}

	patch := newPolicy().Merge(existing, incoming, Options{})

	assert.Nil(t, patch.Address)
	assert.Nil(t, patch.City)
	assert.Nil(t, patch.Bedrooms)
	assert.Nil(t, patch.RentPCM)
	assert.Nil(t, patch.EPC)
	assert.True(t, patch.IsEmpty())
	assert.NotNil(t, patch.LastEnrichedAt, "refreshable timestamp is always stamped")
}

func TestMergeSourcePriority(t *testing.T) {
	t.Parallel()

	existing := &model.StoredProperty{
		ID:        "p1",
		Licensing: &model.Licensing{Status: "pending", LicenceRef: "HMO/123"},
		Provenance: map[string]string{
			CategoryLicensing: "listings_scrape",
		},
	}

	// Higher-priority source corrects the status.
	patch := newPolicy().Merge(existing, model.PropertyListing{
		Source:    "council_register",
		Licensing: &model.Licensing{Status: "licensed"},
	}, Options{})
	require.NotNil(t, patch.Licensing)
	assert.Equal(t, "licensed", patch.Licensing.Status)
	assert.Equal(t, "HMO/123", patch.Licensing.LicenceRef, "untouched fields carry over")
	assert.Equal(t, "council_register", patch.Provenance[CategoryLicensing])

	// Lower-priority source cannot override a populated field.
	patch = newPolicy().Merge(existing, model.PropertyListing{
		Source:    "listings_scrape",
		Licensing: &model.Licensing{Status: "expired"},
	}, Options{})
	assert.Nil(t, patch.Licensing)
}

func TestMergeForceUpdateNumericRederivation(t *testing.T) {
	t.Parallel()

	existing := &model.StoredProperty{ID: "p1", RentPCM: intPtr(2400), Bedrooms: 4}
	incoming := model.PropertyListing{Source: "listings_scrape", RentPCM: intPtr(2750), Bedrooms: 5}

	patch := newPolicy().Merge(existing, incoming, Options{})
	assert.Nil(t, patch.RentPCM)
	assert.Nil(t, patch.Bedrooms)

	patch = newPolicy().Merge(existing, incoming, Options{ForceUpdate: true})
	require.NotNil(t, patch.RentPCM)
	assert.Equal(t, 2750, *patch.RentPCM)
	require.NotNil(t, patch.Bedrooms)
	assert.Equal(t, 5, *patch.Bedrooms)
}

func TestMergeAddsExternalID(t *testing.T) {
	t.Parallel()

	existing := &model.StoredProperty{
		ID:          "p1",
		ExternalIDs: map[string]string{"council_register": "LIC-9"},
	}
	incoming := model.PropertyListing{Source: "listings_scrape", ExternalID: "Z123"}

	patch := newPolicy().Merge(existing, incoming, Options{})
	assert.Equal(t, map[string]string{"listings_scrape": "Z123"}, patch.ExternalIDs)

	// Same id again produces no external-id change.
	existing.ExternalIDs["listings_scrape"] = "Z123"
	patch = newPolicy().Merge(existing, incoming, Options{})
	assert.Empty(t, patch.ExternalIDs)
}

func TestMergeNewCategoryFromAnySource(t *testing.T) {
	t.Parallel()

	existing := &model.StoredProperty{ID: "p1"}
	incoming := model.PropertyListing{
		Source:       "listings_scrape",
		Connectivity: &model.Connectivity{MaxDownloadMbps: 900, ProviderCount: 3},
	}

	patch := newPolicy().Merge(existing, incoming, Options{})
	require.NotNil(t, patch.Connectivity)
	assert.Equal(t, float64(900), patch.Connectivity.MaxDownloadMbps)
	assert.Equal(t, "listings_scrape", patch.Provenance[CategoryConnectivity])
}

func TestMergeCoordinatesOnlyWhenMissing(t *testing.T) {
	t.Parallel()

	coord := &model.Coordinate{Lat: 51.55, Lng: -0.11}
	existing := &model.StoredProperty{ID: "p1", Coordinates: coord}
	incoming := model.PropertyListing{
		Source:      "listings_scrape",
		Coordinates: &model.Coordinate{Lat: 0, Lng: 0},
	}

	patch := newPolicy().Merge(existing, incoming, Options{})
	assert.Nil(t, patch.Coordinates)

	existing.Coordinates = nil
	patch = newPolicy().Merge(existing, incoming, Options{})
	assert.NotNil(t, patch.Coordinates)
}

func TestFromListing(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := model.PropertyListing{
		Source:     "council_register",
		ExternalID: "LIC-42",
		Address:    "12 Elm Road",
		Postcode:   "N7 6PA",
		Bedrooms:   4,
		Licensing:  &model.Licensing{Status: "licensed"},
	}

	patch := FromListing(l, now)
	require.NotNil(t, patch.Address)
	assert.Equal(t, "12 Elm Road", *patch.Address)
	assert.Equal(t, map[string]string{"council_register": "LIC-42"}, patch.ExternalIDs)
	require.NotNil(t, patch.Licensing)
	assert.Equal(t, "council_register", patch.Provenance[CategoryLicensing])
	assert.Equal(t, now, *patch.LastEnrichedAt)
	assert.Empty(t, patch.PropertyID)
}
