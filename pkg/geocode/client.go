// Package geocode resolves UK addresses to coordinates using a free
// address-search service (primary) and a postcode-centroid service
// (fallback). Both upstreams are unauthenticated and externally
// rate-limited, so every call goes through a shared minimum-interval
// throttle.
package geocode

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultSearchBaseURL   = "https://nominatim.openstreetmap.org"
	defaultPostcodeBaseURL = "https://api.postcodes.io"

	// defaultMinInterval is the hard spacing the free search service
	// requires between requests.
	defaultMinInterval = 1100 * time.Millisecond

	defaultCallTimeout = 10 * time.Second
)

// AddressInput identifies a property to geocode.
type AddressInput struct {
	Address  string
	Postcode string
	City     string
}

// Result holds the outcome of a resolution attempt. Matched=false means
// every strategy was exhausted; callers treat that as "no coordinates
// available", not as an error.
type Result struct {
	Lat     float64
	Lng     float64
	Source  string // "address", "street", "centroid", or "cache"
	Matched bool
}

// Resolver geocodes addresses via an ordered strategy cascade with a
// process-wide cache. Construct with NewResolver; the zero value is not
// usable.
type Resolver struct {
	httpClient      *http.Client
	userAgent       string
	limiter         *rate.Limiter
	cache           *Cache
	searchBaseURL   string
	postcodeBaseURL string
	callTimeout     time.Duration
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithHTTPClient sets a custom HTTP client for all upstream requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Resolver) { r.httpClient = hc }
}

// WithUserAgent sets the identifying User-Agent sent to both upstreams.
// Free geocoding providers require one.
func WithUserAgent(ua string) Option {
	return func(r *Resolver) { r.userAgent = ua }
}

// WithMinInterval sets the minimum spacing between upstream calls.
func WithMinInterval(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithCache shares an existing cache between resolvers.
func WithCache(c *Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithBaseURLs overrides the upstream endpoints, mainly for tests.
func WithBaseURLs(searchURL, postcodeURL string) Option {
	return func(r *Resolver) {
		if searchURL != "" {
			r.searchBaseURL = searchURL
		}
		if postcodeURL != "" {
			r.postcodeBaseURL = postcodeURL
		}
	}
}

// WithCallTimeout bounds each individual upstream call.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// NewResolver creates a Resolver with the given options.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		httpClient:      &http.Client{Timeout: defaultCallTimeout},
		userAgent:       "hmoscout/1.0",
		limiter:         rate.NewLimiter(rate.Every(defaultMinInterval), 1),
		cache:           NewCache(),
		searchBaseURL:   defaultSearchBaseURL,
		postcodeBaseURL: defaultPostcodeBaseURL,
		callTimeout:     defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache exposes the resolver's cache so an orchestrator can share it.
func (r *Resolver) Cache() *Cache {
	return r.cache
}
