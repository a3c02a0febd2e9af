// Package ingest drives the per-record reconciliation pipeline:
// fetch, match against the store, geocode when coordinates are missing,
// merge, persist. Failures are contained at the smallest possible scope;
// one bad record never aborts a batch and one bad source never aborts a
// run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hmoscout/ingest-cli/internal/match"
	"github.com/hmoscout/ingest-cli/internal/merge"
	"github.com/hmoscout/ingest-cli/internal/model"
	"github.com/hmoscout/ingest-cli/internal/store"
	"github.com/hmoscout/ingest-cli/pkg/geocode"
)

// Options tunes a run.
type Options struct {
	// RecordDelay spaces records within one source to stay polite to
	// third-party endpoints.
	RecordDelay time.Duration

	// MaxErrors bounds the per-source error list; overflow is counted,
	// not stored.
	MaxErrors int

	// MaxConcurrentSources bounds how many sources run in parallel.
	// Sources hit different upstreams, so parallelism across them is safe.
	MaxConcurrentSources int

	// ForceUpdate lets numeric re-derivations overwrite existing values.
	ForceUpdate bool
}

func (o Options) withDefaults() Options {
	if o.MaxErrors <= 0 {
		o.MaxErrors = 25
	}
	if o.MaxConcurrentSources <= 0 {
		o.MaxConcurrentSources = 2
	}
	return o
}

// Orchestrator owns the pipeline dependencies. All state (cache, limiter)
// lives in the injected collaborators, so concurrent runs over disjoint
// source sets are safe.
type Orchestrator struct {
	store     store.Store
	matcher   match.Matcher
	policy    *merge.Policy
	geocoder  Geocoder
	sources   []Source
	enrichers []Enricher
	opts      Options
}

// New creates an Orchestrator.
func New(st store.Store, m match.Matcher, p *merge.Policy, g Geocoder, sources []Source, enrichers []Enricher, opts Options) *Orchestrator {
	return &Orchestrator{
		store:     st,
		matcher:   m,
		policy:    p,
		geocoder:  g,
		sources:   sources,
		enrichers: enrichers,
		opts:      opts.withDefaults(),
	}
}

// Run ingests every source whose name matches the filter (empty filter
// means all). It always returns a structured run, even on total failure;
// the run's Error field carries any top-level problem.
func (o *Orchestrator) Run(ctx context.Context, sourceFilter string) *model.IngestionRun {
	return o.RunWith(ctx, sourceFilter, o.opts.ForceUpdate)
}

// RunWith is Run with a per-invocation force-update override, for callers
// like the webhook server that share one orchestrator across runs.
func (o *Orchestrator) RunWith(ctx context.Context, sourceFilter string, forceUpdate bool) *model.IngestionRun {
	run, err := o.store.CreateRun(ctx)
	if err != nil {
		// Still produce a usable in-memory summary.
		zap.L().Error("ingest: create run record failed", zap.Error(err))
		run = &model.IngestionRun{Status: model.RunStatusRunning, StartedAt: time.Now().UTC()}
		run.Error = "create run record: " + err.Error()
	}

	selected := o.selectSources(sourceFilter)
	if len(selected) == 0 {
		run.Status = model.RunStatusFailed
		if run.Error == "" {
			run.Error = fmt.Sprintf("no sources match filter %q", sourceFilter)
		}
		o.finishRun(ctx, run)
		return run
	}

	results := make([]model.SourceResult, len(selected))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.MaxConcurrentSources)
	for i, src := range selected {
		g.Go(func() error {
			results[i] = o.runSource(gCtx, src, forceUpdate)
			return nil
		})
	}
	_ = g.Wait()

	run.Sources = results
	run.Status = model.RunStatusComplete
	if ctx.Err() != nil {
		run.Status = model.RunStatusFailed
		run.Error = ctx.Err().Error()
	}
	o.finishRun(ctx, run)
	return run
}

func (o *Orchestrator) selectSources(filter string) []Source {
	if filter == "" {
		return o.sources
	}
	var out []Source
	for _, s := range o.sources {
		if strings.EqualFold(s.Name(), filter) {
			out = append(out, s)
		}
	}
	return out
}

func (o *Orchestrator) finishRun(ctx context.Context, run *model.IngestionRun) {
	now := time.Now().UTC()
	run.EndedAt = &now
	if run.ID == "" {
		return
	}
	// Completion uses a fresh context so a cancelled run still records
	// its partial results.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.store.CompleteRun(saveCtx, run); err != nil {
		zap.L().Warn("ingest: complete run record failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// runSource processes one source's full record list sequentially.
func (o *Orchestrator) runSource(ctx context.Context, src Source, forceUpdate bool) model.SourceResult {
	log := zap.L().With(zap.String("source", src.Name()))
	start := time.Now()
	res := model.SourceResult{Source: src.Name()}

	listings, err := src.Fetch(ctx)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			log.Info("ingest: source not configured, skipping")
			res.Status = model.SourceStatusSkipped
		} else {
			log.Error("ingest: fetch failed", zap.Error(err))
			res.Status = model.SourceStatusFailed
			o.recordError(&res, eris.Wrap(err, "fetch"))
		}
		res.Duration = time.Since(start)
		return res
	}
	if len(listings) == 0 {
		log.Warn("ingest: fetch returned no records")
		res.Status = model.SourceStatusFailed
		o.recordError(&res, eris.New("fetch returned no records"))
		res.Duration = time.Since(start)
		return res
	}

	log.Info("ingest: fetched records", zap.Int("count", len(listings)))

	for i, listing := range listings {
		if ctx.Err() != nil {
			o.recordError(&res, eris.Wrap(ctx.Err(), "run cancelled"))
			res.Status = model.SourceStatusFailed
			res.Duration = time.Since(start)
			return res
		}
		if i > 0 && o.opts.RecordDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.opts.RecordDelay):
			}
		}

		outcome, err := o.processRecord(ctx, src.Name(), listing, forceUpdate)
		if err != nil {
			log.Warn("ingest: record failed",
				zap.String("address", listing.Address),
				zap.Error(err),
			)
			o.recordError(&res, err)
			continue
		}
		switch outcome {
		case outcomeCreated:
			res.Created++
		case outcomeUpdated:
			res.Updated++
		case outcomeSkipped:
			res.Skipped++
		}
	}

	res.Status = model.SourceStatusComplete
	res.Duration = time.Since(start)
	log.Info("ingest: source complete",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", len(res.Errors)+res.TruncatedErrors),
	)
	return res
}

type recordOutcome int

const (
	outcomeCreated recordOutcome = iota
	outcomeUpdated
	outcomeSkipped
)

// processRecord runs one listing through match, geocode, and merge.
func (o *Orchestrator) processRecord(ctx context.Context, sourceName string, listing model.PropertyListing, forceUpdate bool) (recordOutcome, error) {
	if listing.Source == "" {
		listing.Source = sourceName
	}
	if strings.TrimSpace(listing.Address) == "" || strings.TrimSpace(listing.Postcode) == "" {
		return outcomeSkipped, nil
	}

	existing, matched, err := o.matchExisting(ctx, listing)
	if err != nil {
		return 0, err
	}

	// Geocode only records the source did not already locate, and only
	// when no exact-id match short-circuited the pipeline.
	if listing.Coordinates == nil && !matched && o.geocoder != nil {
		geo, geoErr := o.geocoder.Resolve(ctx, geocode.AddressInput{
			Address:  listing.Address,
			Postcode: listing.Postcode,
			City:     listing.City,
		})
		if geoErr != nil {
			if ctx.Err() != nil {
				return 0, eris.Wrap(geoErr, "geocode")
			}
			zap.L().Debug("ingest: geocode failed, continuing without coordinates",
				zap.String("address", listing.Address), zap.Error(geoErr))
		} else if geo.Matched {
			listing.Coordinates = &model.Coordinate{Lat: geo.Lat, Lng: geo.Lng}
		}
	}

	if existing == nil {
		patch := merge.FromListing(listing, time.Time{})
		created, upsertErr := o.store.Upsert(ctx, patch)
		if upsertErr != nil {
			return 0, eris.Wrapf(upsertErr, "create %q", listing.Address)
		}
		o.enrich(ctx, created)
		return outcomeCreated, nil
	}

	patch := o.policy.Merge(existing, listing, merge.Options{ForceUpdate: forceUpdate})
	if patch.IsEmpty() {
		return outcomeSkipped, nil
	}
	updated, upsertErr := o.store.Upsert(ctx, patch)
	if upsertErr != nil {
		return 0, eris.Wrapf(upsertErr, "update %q", existing.ID)
	}
	o.enrich(ctx, updated)
	return outcomeUpdated, nil
}

// matchExisting resolves the listing to a stored record. The bool result
// reports an exact-identifier match, which skips geocoding.
func (o *Orchestrator) matchExisting(ctx context.Context, listing model.PropertyListing) (*model.StoredProperty, bool, error) {
	// UPRN is the preferred dedupe key when a source supplies one.
	if listing.UPRN != "" {
		p, err := o.store.FindByUPRN(ctx, listing.UPRN)
		if err != nil {
			return nil, false, eris.Wrap(err, "find by uprn")
		}
		if p != nil {
			return p, true, nil
		}
	}
	if listing.ExternalID != "" {
		p, err := o.store.FindByExternalID(ctx, listing.Source, listing.ExternalID)
		if err != nil {
			return nil, false, eris.Wrap(err, "find by external id")
		}
		if p != nil {
			return p, true, nil
		}
	}

	candidates, err := o.store.FindCandidates(ctx, listing.Postcode)
	if err != nil {
		return nil, false, eris.Wrap(err, "find candidates")
	}
	if len(candidates) == 0 {
		return nil, false, nil
	}

	best := o.matcher.Best(match.Target{
		Address:     listing.Address,
		Postcode:    listing.Postcode,
		Coordinates: listing.Coordinates,
		Bedrooms:    listing.Bedrooms,
	}, candidates)
	if best == nil {
		return nil, false, nil
	}
	return &best.Property, false, nil
}

// enrich runs each enrichment adapter over a freshly written record.
// Enrichment failures are logged and dropped; they never fail the record.
func (o *Orchestrator) enrich(ctx context.Context, record *model.StoredProperty) {
	for _, e := range o.enrichers {
		partial, err := e.Enrich(ctx, *record)
		if err != nil {
			zap.L().Debug("ingest: enricher failed",
				zap.String("enricher", e.Name()),
				zap.String("property_id", record.ID),
				zap.Error(err),
			)
			continue
		}
		if partial.Source == "" {
			partial.Source = e.Name()
		}
		patch := o.policy.Merge(record, partial, merge.Options{})
		if patch.IsEmpty() {
			continue
		}
		updated, err := o.store.Upsert(ctx, patch)
		if err != nil {
			zap.L().Warn("ingest: enrichment upsert failed",
				zap.String("enricher", e.Name()),
				zap.String("property_id", record.ID),
				zap.Error(err),
			)
			continue
		}
		*record = *updated
	}
}

// recordError appends to the bounded error list.
func (o *Orchestrator) recordError(res *model.SourceResult, err error) {
	if len(res.Errors) >= o.opts.MaxErrors {
		res.TruncatedErrors++
		return
	}
	res.Errors = append(res.Errors, err.Error())
}
