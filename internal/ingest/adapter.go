package ingest

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/hmoscout/ingest-cli/internal/model"
	"github.com/hmoscout/ingest-cli/pkg/geocode"
)

// ErrNotConfigured is returned by a source whose credentials or base URL
// are absent; the orchestrator records the source as skipped, not failed.
var ErrNotConfigured = eris.New("source not configured")

// Source fetches raw listings from one upstream. Implementations are
// assumed slow and externally rate-limited; Fetch may fail.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.PropertyListing, error)
}

// Enricher produces a partial listing of additional fields for an
// already-stored property. The result flows through the merge policy like
// any other source, so enrichment can never downgrade stored data.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, existing model.StoredProperty) (model.PropertyListing, error)
}

// Geocoder is the resolver dependency; satisfied by *geocode.Resolver.
type Geocoder interface {
	Resolve(ctx context.Context, addr geocode.AddressInput) (*geocode.Result, error)
}
