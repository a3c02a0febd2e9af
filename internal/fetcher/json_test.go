package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type licenceRow struct {
	Address string `json:"address"`
	Ref     string `json:"licence_ref"`
}

func TestDecodeJSONArray(t *testing.T) {
	t.Parallel()

	in := `[{"address":"12 Elm Road","licence_ref":"LIC-1"},{"address":"14 Elm Road","licence_ref":"LIC-2"}]`
	got, err := DecodeJSONArray[licenceRow](strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "LIC-2", got[1].Ref)
}

func TestDecodeJSONArrayEmpty(t *testing.T) {
	t.Parallel()

	got, err := DecodeJSONArray[licenceRow](strings.NewReader(`[]`))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeJSONArrayRejectsObject(t *testing.T) {
	t.Parallel()

	_, err := DecodeJSONArray[licenceRow](strings.NewReader(`{"address":"x"}`))
	assert.Error(t, err)
}

func TestDecodeJSONArrayMalformedElement(t *testing.T) {
	t.Parallel()

	_, err := DecodeJSONArray[licenceRow](strings.NewReader(`[{"address":12}]`))
	assert.Error(t, err)
}

func TestDecodeJSONObject(t *testing.T) {
	t.Parallel()

	got, err := DecodeJSONObject[licenceRow](strings.NewReader(`{"address":"12 Elm Road"}`))
	require.NoError(t, err)
	assert.Equal(t, "12 Elm Road", got.Address)
}
