package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmoscout/ingest-cli/internal/model"
)

func stored(id, address string, bedrooms int, coords *model.Coordinate) model.StoredProperty {
	return model.StoredProperty{
		ID:          id,
		Address:     address,
		Postcode:    "N7 6PA",
		Bedrooms:    bedrooms,
		Coordinates: coords,
	}
}

func TestHeuristicFlatDesignatorMatches(t *testing.T) {
	t.Parallel()

	m, err := New(DefaultConfig())
	require.NoError(t, err)

	// Same property reported with and without a flat designator must match.
	got := m.Best(
		Target{Address: "Flat 2, 10 Oak Street", Postcode: "N7 6PA"},
		[]model.StoredProperty{stored("p1", "10 Oak Street", 0, nil)},
	)
	require.NotNil(t, got)
	assert.Equal(t, "p1", got.Property.ID)
}

func TestHeuristicDifferentHouseNumbersRejected(t *testing.T) {
	t.Parallel()

	m, err := New(DefaultConfig())
	require.NoError(t, err)

	// Shared postcode only: different numbers, no token overlap.
	got := m.Best(
		Target{Address: "12 Elm Road", Postcode: "N7 6PA"},
		[]model.StoredProperty{stored("p1", "47 Birch Avenue", 0, nil)},
	)
	assert.Nil(t, got)
}

func TestHeuristicTwoSourceScenario(t *testing.T) {
	t.Parallel()

	m, err := New(DefaultConfig())
	require.NoError(t, err)

	// Source A record against the stored record from source B.
	got := m.Best(
		Target{Address: "12 Elm Road", Postcode: "N7 6PA", Bedrooms: 4},
		[]model.StoredProperty{stored("pB", "Flat 1, 12 Elm Rd", 4, nil)},
	)
	require.NotNil(t, got)
	assert.Equal(t, "pB", got.Property.ID)
}

func TestHeuristicDistanceBands(t *testing.T) {
	t.Parallel()

	m, err := New(DefaultConfig())
	require.NoError(t, err)

	base := model.Coordinate{Lat: 51.55, Lng: -0.11}
	near := model.Coordinate{Lat: 51.55009, Lng: -0.11} // ~10m north
	far := model.Coordinate{Lat: 51.55060, Lng: -0.11}  // ~67m north

	// Near coordinates alone clear the threshold even with no address signal.
	got := m.Best(
		Target{Address: "The Old Mill", Postcode: "N7 6PA", Coordinates: &base},
		[]model.StoredProperty{stored("p1", "Riverside House", 0, &near)},
	)
	require.NotNil(t, got)

	// Beyond the far band, proximity contributes nothing.
	got = m.Best(
		Target{Address: "The Old Mill", Postcode: "N7 6PA", Coordinates: &base},
		[]model.StoredProperty{stored("p1", "Riverside House", 0, &far)},
	)
	assert.Nil(t, got)
}

func TestHeuristicTiesKeepEarliestCandidate(t *testing.T) {
	t.Parallel()

	m, err := New(DefaultConfig())
	require.NoError(t, err)

	got := m.Best(
		Target{Address: "12 Elm Road", Postcode: "N7 6PA", Bedrooms: 4},
		[]model.StoredProperty{
			stored("first", "12 Elm Road", 4, nil),
			stored("second", "12 Elm Road", 4, nil),
		},
	)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Property.ID)
}

func TestEditDistStrategy(t *testing.T) {
	t.Parallel()

	m, err := New(Config{Strategy: StrategyEditDist})
	require.NoError(t, err)

	// Containment short-circuit: "10 oak street" is contained in the
	// normalized target.
	got := m.Best(
		Target{Address: "Flat 2, 10 Oak Street", Postcode: "N7 6PA"},
		[]model.StoredProperty{stored("p1", "10 Oak Street", 0, nil)},
	)
	require.NotNil(t, got)
	assert.GreaterOrEqual(t, got.Score, 0.9)

	// Entirely different streets stay below 0.6.
	got = m.Best(
		Target{Address: "12 Elm Road", Postcode: "N7 6PA"},
		[]model.StoredProperty{stored("p1", "The Granary, Wharf Yard", 0, nil)},
	)
	assert.Nil(t, got)
}

func TestEditDistBedroomMultiplier(t *testing.T) {
	t.Parallel()

	m, err := New(Config{Strategy: StrategyEditDist, Threshold: 0.6})
	require.NoError(t, err)

	// Borderline similarity pushed over the threshold by bedroom equality.
	target := Target{Address: "21 Saint Augustines Road", Postcode: "N7 6PA", Bedrooms: 5}
	cand := stored("p1", "21 St Augustines Rd", 5, nil)

	withBeds := m.Best(target, []model.StoredProperty{cand})
	require.NotNil(t, withBeds)

	noBeds := cand
	noBeds.Bedrooms = 0
	targetNoBeds := target
	targetNoBeds.Bedrooms = 0
	flat := m.(*editDistMatcher).score(targetNoBeds, &noBeds)
	assert.Less(t, flat, withBeds.Score)
}

func TestNewUnknownStrategy(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Strategy: "phonetic"})
	assert.Error(t, err)
}

func TestHaversineM(t *testing.T) {
	t.Parallel()

	a := model.Coordinate{Lat: 51.55, Lng: -0.11}
	assert.InDelta(t, 0, HaversineM(a, a), 1e-9)

	// One degree of latitude is ~111km.
	b := model.Coordinate{Lat: 52.55, Lng: -0.11}
	assert.InDelta(t, 111195, HaversineM(a, b), 200)
}
