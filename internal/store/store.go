// Package store persists canonical property records and ingestion runs.
// The pipeline reads stored records and proposes sparse patches; the store
// owns all mutation.
package store

import (
	"context"

	"github.com/hmoscout/ingest-cli/internal/model"
)

// Store is the persistence interface consumed by the ingestion pipeline.
type Store interface {
	// Properties. Find methods return (nil, nil) when nothing matches.
	FindByExternalID(ctx context.Context, source, externalID string) (*model.StoredProperty, error)
	FindByUPRN(ctx context.Context, uprn string) (*model.StoredProperty, error)

	// FindCandidates returns stored properties sharing a postcode, the
	// coarse filter the matcher scores against.
	FindCandidates(ctx context.Context, postcode string) ([]model.StoredProperty, error)

	// Upsert applies a sparse patch. An empty PropertyID creates a new
	// record; otherwise the patch is folded into the existing row.
	Upsert(ctx context.Context, patch model.Patch) (*model.StoredProperty, error)

	// Runs
	CreateRun(ctx context.Context) (*model.IngestionRun, error)
	CompleteRun(ctx context.Context, run *model.IngestionRun) error
	ListRuns(ctx context.Context, limit int) ([]model.IngestionRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
