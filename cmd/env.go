package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hmoscout/ingest-cli/internal/fetcher"
	"github.com/hmoscout/ingest-cli/internal/ingest"
	"github.com/hmoscout/ingest-cli/internal/match"
	"github.com/hmoscout/ingest-cli/internal/merge"
	"github.com/hmoscout/ingest-cli/internal/source"
	"github.com/hmoscout/ingest-cli/internal/store"
	"github.com/hmoscout/ingest-cli/pkg/geocode"
)

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// newGeocoder builds the resolver from config.
func newGeocoder() *geocode.Resolver {
	return geocode.NewResolver(
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithMinInterval(time.Duration(cfg.Geocode.MinIntervalMS)*time.Millisecond),
		geocode.WithCallTimeout(time.Duration(cfg.Geocode.CallTimeoutSec)*time.Second),
		geocode.WithBaseURLs(cfg.Geocode.NominatimURL, cfg.Geocode.PostcodesURL),
	)
}

// newSources builds every configured source adapter. Unconfigured
// adapters are included anyway; they report themselves as skipped.
func newSources() []ingest.Source {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{UserAgent: cfg.Geocode.UserAgent})
	return []ingest.Source{
		source.NewLicenceRegister(source.LicenceRegisterOptions{
			Name:    cfg.Sources.LicenceRegister.Name,
			BaseURL: cfg.Sources.LicenceRegister.BaseURL,
			APIKey:  cfg.Sources.LicenceRegister.APIKey,
			Fetcher: f,
		}),
		source.NewXLSXRegister(source.XLSXRegisterOptions{
			Name:      cfg.Sources.XLSXRegister.Name,
			URL:       cfg.Sources.XLSXRegister.URL,
			SheetName: cfg.Sources.XLSXRegister.SheetName,
			SkipRows:  cfg.Sources.XLSXRegister.SkipRows,
			Fetcher:   f,
		}),
	}
}

// initOrchestrator wires the full pipeline. The caller owns the store.
func initOrchestrator(st store.Store, forceUpdate bool) (*ingest.Orchestrator, error) {
	matcher, err := match.New(cfg.Matcher)
	if err != nil {
		return nil, err
	}
	policy := merge.NewPolicy(cfg.Sources.Priority)

	return ingest.New(st, matcher, policy, newGeocoder(), newSources(), nil, ingest.Options{
		RecordDelay:          time.Duration(cfg.Ingest.RecordDelayMS) * time.Millisecond,
		MaxErrors:            cfg.Ingest.MaxErrors,
		MaxConcurrentSources: cfg.Ingest.MaxConcurrentSources,
		ForceUpdate:          forceUpdate,
	}), nil
}
