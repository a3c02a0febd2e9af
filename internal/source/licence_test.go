package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/hmoscout/ingest-cli/internal/fetcher"
	"github.com/hmoscout/ingest-cli/internal/ingest"
)

func fastFetcher(serverURL string) fetcher.Fetcher {
	req, _ := http.NewRequest(http.MethodGet, serverURL, nil)
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		PerHost: map[string]rate.Limit{req.URL.Host: 1000},
	})
}

func TestLicenceRegisterFetch(t *testing.T) {
	t.Parallel()

	const payload = `[
		{"licence_ref":"LIC-1","address":"12 Elm Road","postcode":"N7 6PA","city":"London","uprn":"100023336956","status":"licensed","max_occupants":6,"bedrooms":4,"expires_at":"2027-03-31"},
		{"licence_ref":"LIC-2","address":"","postcode":"N7 6PA","status":"licensed"},
		{"licence_ref":"LIC-3","address":"14 Elm Road","postcode":"N7 6PA","status":"expired","expires_at":"31/12/2025"}
	]`

	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	s := NewLicenceRegister(LicenceRegisterOptions{
		BaseURL: srv.URL,
		APIKey:  "secret",
		Fetcher: fastFetcher(srv.URL),
	})
	assert.Equal(t, "council_register", s.Name())

	listings, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/licences", gotPath)
	assert.Equal(t, "secret", gotKey)

	// The address-less row is dropped.
	require.Len(t, listings, 2)

	first := listings[0]
	assert.Equal(t, "12 Elm Road", first.Address)
	assert.Equal(t, "100023336956", first.UPRN)
	assert.Equal(t, "LIC-1", first.ExternalID)
	assert.Equal(t, "council_register", first.Source)
	require.NotNil(t, first.Licensing)
	assert.Equal(t, "licensed", first.Licensing.Status)
	assert.Equal(t, 6, first.Licensing.MaxOccupants)
	require.NotNil(t, first.Licensing.ExpiresAt)
	assert.Equal(t, 2027, first.Licensing.ExpiresAt.Year())

	second := listings[1]
	require.NotNil(t, second.Licensing.ExpiresAt, "UK day/month/year dates parse too")
	assert.Equal(t, 2025, second.Licensing.ExpiresAt.Year())
}

func TestLicenceRegisterBaseURLWithQuery(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	// Portals hand out base URLs like .../hmo?tenant=acme; the query must
	// survive the path join.
	s := NewLicenceRegister(LicenceRegisterOptions{
		BaseURL: srv.URL + "/hmo?tenant=acme",
		APIKey:  "secret",
		Fetcher: fastFetcher(srv.URL),
	})

	listings, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listings)
	assert.Equal(t, "/hmo/licences", gotPath)
	assert.Equal(t, []string{"acme"}, gotQuery["tenant"])
	assert.Equal(t, []string{"secret"}, gotQuery["key"])
}

func TestLicenceRegisterNotConfigured(t *testing.T) {
	t.Parallel()

	s := NewLicenceRegister(LicenceRegisterOptions{})
	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrNotConfigured)
}

func TestLicenceRegisterBadPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	s := NewLicenceRegister(LicenceRegisterOptions{BaseURL: srv.URL, Fetcher: fastFetcher(srv.URL)})
	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ingest.ErrNotConfigured)
}

func TestParseRegisterDate(t *testing.T) {
	t.Parallel()

	assert.Nil(t, parseRegisterDate(""))
	assert.Nil(t, parseRegisterDate("soon"))

	iso := parseRegisterDate("2027-03-31")
	require.NotNil(t, iso)
	assert.Equal(t, "2027-03-31", iso.Format("2006-01-02"))

	uk := parseRegisterDate("31/12/2025")
	require.NotNil(t, uk)
	assert.Equal(t, "2025-12-31", uk.Format("2006-01-02"))
}
