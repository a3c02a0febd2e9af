// Package source holds the upstream adapters that feed the ingestion
// pipeline. Each adapter normalizes one upstream's payload into
// model.PropertyListing records and reports itself as not configured
// when its endpoint is absent, so a partial deployment still runs.
package source

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hmoscout/ingest-cli/internal/fetcher"
	"github.com/hmoscout/ingest-cli/internal/ingest"
	"github.com/hmoscout/ingest-cli/internal/model"
)

// licenceRecord is one row of a council licence register API payload.
type licenceRecord struct {
	LicenceRef   string `json:"licence_ref"`
	Address      string `json:"address"`
	Postcode     string `json:"postcode"`
	City         string `json:"city"`
	UPRN         string `json:"uprn"`
	Status       string `json:"status"`
	MaxOccupants int    `json:"max_occupants"`
	Bedrooms     int    `json:"bedrooms"`
	ExpiresAt    string `json:"expires_at"`
}

// LicenceRegisterOptions configures a licence register source.
type LicenceRegisterOptions struct {
	// Name identifies the source in run results and provenance.
	// Defaults to "council_register".
	Name string

	// BaseURL is the register API root, e.g.
	// https://data.example.gov.uk/hmo. Empty means not configured.
	BaseURL string

	// APIKey, when set, is passed as the key query parameter. Council
	// open-data portals authenticate this way.
	APIKey string

	Fetcher fetcher.Fetcher
}

// LicenceRegister fetches a council HMO licence register over its JSON
// API. The register is authoritative for licensing fields and usually
// carries a UPRN.
type LicenceRegister struct {
	opts LicenceRegisterOptions
}

// NewLicenceRegister creates the source. A nil Fetcher gets a default
// HTTP fetcher.
func NewLicenceRegister(opts LicenceRegisterOptions) *LicenceRegister {
	if opts.Name == "" {
		opts.Name = "council_register"
	}
	if opts.Fetcher == nil {
		opts.Fetcher = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
	}
	return &LicenceRegister{opts: opts}
}

func (s *LicenceRegister) Name() string { return s.opts.Name }

// Fetch downloads the register and maps each row to a listing.
func (s *LicenceRegister) Fetch(ctx context.Context) ([]model.PropertyListing, error) {
	if s.opts.BaseURL == "" {
		return nil, eris.Wrapf(ingest.ErrNotConfigured, "%s: base url missing", s.opts.Name)
	}

	endpoint, err := s.licencesURL()
	if err != nil {
		return nil, err
	}

	body, err := s.opts.Fetcher.Download(ctx, endpoint)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: download register", s.opts.Name)
	}
	defer body.Close() //nolint:errcheck

	records, err := fetcher.DecodeJSONArray[licenceRecord](body)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: decode register", s.opts.Name)
	}

	listings := make([]model.PropertyListing, 0, len(records))
	dropped := 0
	for _, rec := range records {
		listing, ok := s.toListing(rec)
		if !ok {
			dropped++
			continue
		}
		listings = append(listings, listing)
	}
	if dropped > 0 {
		zap.L().Warn("licence register: dropped rows without address or postcode",
			zap.String("source", s.opts.Name),
			zap.Int("dropped", dropped),
		)
	}
	return listings, nil
}

func (s *LicenceRegister) licencesURL() (string, error) {
	// Parse before joining so a base URL carrying a query string keeps it.
	u, err := url.Parse(s.opts.BaseURL)
	if err != nil {
		return "", eris.Wrapf(err, "%s: parse base url", s.opts.Name)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/licences"
	q := u.Query()
	if s.opts.APIKey != "" {
		q.Set("key", s.opts.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *LicenceRegister) toListing(rec licenceRecord) (model.PropertyListing, bool) {
	if strings.TrimSpace(rec.Address) == "" || strings.TrimSpace(rec.Postcode) == "" {
		return model.PropertyListing{}, false
	}
	listing := model.PropertyListing{
		Address:    rec.Address,
		Postcode:   rec.Postcode,
		City:       rec.City,
		Bedrooms:   rec.Bedrooms,
		UPRN:       rec.UPRN,
		ExternalID: rec.LicenceRef,
		Source:     s.opts.Name,
		Licensing: &model.Licensing{
			Status:       rec.Status,
			LicenceRef:   rec.LicenceRef,
			MaxOccupants: rec.MaxOccupants,
			ExpiresAt:    parseRegisterDate(rec.ExpiresAt),
		},
	}
	return listing, true
}

// registerDateLayouts covers the formats council portals actually emit.
var registerDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02/01/2006",
}

func parseRegisterDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range registerDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}
