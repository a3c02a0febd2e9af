package source

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/hmoscout/ingest-cli/internal/ingest"
)

func registerWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Register")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestXLSXRegisterFetch(t *testing.T) {
	t.Parallel()

	data := registerWorkbook(t, [][]string{
		{"Address", "Postcode", "Licence Ref", "Status", "Max Occupants", "Expiry"},
		{"12 Elm Road", "N7 6PA", "HMO/123", "licensed", "6", "2027-03-31"},
		{"", "N7 6PA", "HMO/124", "licensed", "5", ""},
		{"3 Mill Lane", "LE1 7RU", "HMO/125", "expired", "not a number", "31/12/2025"},
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	s := NewXLSXRegister(XLSXRegisterOptions{URL: srv.URL, Fetcher: fastFetcher(srv.URL)})
	assert.Equal(t, "register_xlsx", s.Name())

	listings, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 2, "row without address is dropped")

	first := listings[0]
	assert.Equal(t, "12 Elm Road", first.Address)
	assert.Equal(t, "HMO/123", first.ExternalID)
	require.NotNil(t, first.Licensing)
	assert.Equal(t, 6, first.Licensing.MaxOccupants)
	require.NotNil(t, first.Licensing.ExpiresAt)

	second := listings[1]
	assert.Equal(t, 0, second.Licensing.MaxOccupants, "unparseable count falls back to zero")
	require.NotNil(t, second.Licensing.ExpiresAt)
	assert.Equal(t, 2025, second.Licensing.ExpiresAt.Year())
}

func TestXLSXRegisterReusesParseWhenUnchanged(t *testing.T) {
	t.Parallel()

	data := registerWorkbook(t, [][]string{
		{"Address", "Postcode", "Licence Ref", "Status", "Max Occupants", "Expiry"},
		{"12 Elm Road", "N7 6PA", "HMO/123", "licensed", "6", "2027-03-31"},
	})

	var served atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		served.Add(1)
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	s := NewXLSXRegister(XLSXRegisterOptions{URL: srv.URL, Fetcher: fastFetcher(srv.URL)})

	first, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, served.Load(), "unchanged register must not be re-downloaded")
}

func TestXLSXRegisterNotConfigured(t *testing.T) {
	t.Parallel()

	s := NewXLSXRegister(XLSXRegisterOptions{})
	_, err := s.Fetch(context.Background())
	assert.ErrorIs(t, err, ingest.ErrNotConfigured)
}

func TestXLSXRegisterCustomColumns(t *testing.T) {
	t.Parallel()

	data := registerWorkbook(t, [][]string{
		{"Ref", "Addr", "PC", "Beds"},
		{"HMO/9", "7 High Street", "LE1 7RU", "5"},
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	cols := XLSXColumns{LicenceRef: 0, Address: 1, Postcode: 2, Bedrooms: 3, Status: -1, MaxOccupants: -1, ExpiresAt: -1, UPRN: -1}
	s := NewXLSXRegister(XLSXRegisterOptions{
		Name:    "leicester_register",
		URL:     srv.URL,
		Columns: &cols,
		Fetcher: fastFetcher(srv.URL),
	})

	listings, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "7 High Street", listings[0].Address)
	assert.Equal(t, 5, listings[0].Bedrooms)
	assert.Equal(t, "leicester_register", listings[0].Source)
	assert.Equal(t, "HMO/9", listings[0].ExternalID)
}
