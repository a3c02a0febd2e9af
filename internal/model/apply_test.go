package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySparse(t *testing.T) {
	t.Parallel()

	s := StoredProperty{
		ID:       "p1",
		Address:  "12 Elm Road",
		Postcode: "N7 6PA",
		Bedrooms: 4,
		EPC:      &EPC{Rating: "C", Score: 72},
	}

	beds := 5
	s.Apply(Patch{Bedrooms: &beds})

	assert.Equal(t, 5, s.Bedrooms)
	assert.Equal(t, "12 Elm Road", s.Address, "nil fields leave the record alone")
	require.NotNil(t, s.EPC)
	assert.Equal(t, "C", s.EPC.Rating)
}

func TestApplyMapsAreAddOnly(t *testing.T) {
	t.Parallel()

	s := StoredProperty{
		ExternalIDs: map[string]string{"council_register": "LIC-1"},
		Provenance:  map[string]string{"licensing": "council_register"},
	}

	s.Apply(Patch{
		ExternalIDs: map[string]string{"listings_scrape": "Z9"},
		Provenance:  map[string]string{"epc": "epc_register"},
	})

	assert.Equal(t, "LIC-1", s.ExternalIDs["council_register"])
	assert.Equal(t, "Z9", s.ExternalIDs["listings_scrape"])
	assert.Equal(t, "council_register", s.Provenance["licensing"])
	assert.Equal(t, "epc_register", s.Provenance["epc"])
}

func TestApplyCopiesPointerFields(t *testing.T) {
	t.Parallel()

	lic := &Licensing{Status: "licensed"}
	ts := time.Now().UTC()
	var s StoredProperty
	s.Apply(Patch{Licensing: lic, LastEnrichedAt: &ts})

	lic.Status = "revoked"
	assert.Equal(t, "licensed", s.Licensing.Status, "patch owner must not alias stored state")
	require.NotNil(t, s.LastEnrichedAt)
	assert.True(t, s.LastEnrichedAt.Equal(ts))
}

func TestIsEmpty(t *testing.T) {
	t.Parallel()

	var p Patch
	assert.True(t, p.IsEmpty())

	ts := time.Now()
	p.LastEnrichedAt = &ts
	assert.True(t, p.IsEmpty(), "a timestamp alone is not a change")

	beds := 4
	p.Bedrooms = &beds
	assert.False(t, p.IsEmpty())
}
