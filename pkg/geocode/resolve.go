package geocode

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hmoscout/ingest-cli/internal/normalize"
)

// houseNumberOffset spaces distinct house numbers on the same street so
// street-level matches do not collapse to one point.
const houseNumberOffset = 1e-5

// jitterSpanDeg is the full width of the pseudo-random centroid offset,
// roughly +/-50m at UK latitudes.
const jitterSpanDeg = 0.0009

// Resolve returns a coordinate for the address using, in order: the cache,
// a full-address search, a street-name search with a deterministic
// house-number offset, and the postcode centroid with deterministic
// jitter. Strategy failures (network, non-2xx, malformed payloads) are
// swallowed; only after every strategy misses does the caller get
// Matched=false, which is not an error.
func (r *Resolver) Resolve(ctx context.Context, addr AddressInput) (*Result, error) {
	if strings.TrimSpace(addr.Postcode) == "" && strings.TrimSpace(addr.Address) == "" {
		return &Result{Matched: false}, nil
	}

	key := addressKey(addr)
	if p, ok := r.cache.Get(key); ok {
		return &Result{Lat: p.Lat, Lng: p.Lng, Source: "cache", Matched: true}, nil
	}

	log := zap.L().With(zap.String("postcode", addr.Postcode))

	strategies := []struct {
		name string
		fn   func(context.Context, AddressInput) (*Point, error)
	}{
		{"address", r.resolveFullAddress},
		{"street", r.resolveStreet},
		{"centroid", r.resolveCentroid},
	}

	for _, s := range strategies {
		p, err := s.fn(ctx, addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Debug("geocode: strategy failed, trying next",
				zap.String("strategy", s.name),
				zap.Error(err),
			)
			continue
		}
		if p == nil {
			continue
		}
		r.cache.Put(key, *p)
		return &Result{Lat: p.Lat, Lng: p.Lng, Source: s.name, Matched: true}, nil
	}

	return &Result{Matched: false}, nil
}

// resolveFullAddress searches for the normalized address plus postcode.
func (r *Resolver) resolveFullAddress(ctx context.Context, addr AddressInput) (*Point, error) {
	street := normalize.Address(addr.Address)
	if street == "" {
		return nil, nil
	}
	query := street + ", " + normalize.Postcode(addr.Postcode) + ", United Kingdom"
	return r.searchAddress(ctx, query)
}

// resolveStreet drops the house number, searches for the bare street, and
// offsets the latitude by (number mod 100) * 1e-5 so neighbouring houses
// stay distinct.
func (r *Resolver) resolveStreet(ctx context.Context, addr AddressInput) (*Point, error) {
	num := normalize.HouseNumber(addr.Address)
	if num == "" {
		return nil, nil // no leading house number, nothing new to try
	}
	street := normalize.WithoutHouseNumber(addr.Address)
	if street == "" {
		return nil, nil
	}

	query := street + ", " + normalize.Postcode(addr.Postcode) + ", United Kingdom"
	p, err := r.searchAddress(ctx, query)
	if err != nil || p == nil {
		return p, err
	}

	digits := strings.TrimRight(num, "abcdefghijklmnopqrstuvwxyz")
	if n, convErr := strconv.Atoi(digits); convErr == nil {
		p.Lat += float64(n%100) * houseNumberOffset
	}
	return p, nil
}

// resolveCentroid falls back to the postcode centroid, jittered
// deterministically per address so properties sharing a postcode do not
// stack. The raw centroid is cached by postcode so later properties in the
// same postcode skip the upstream call.
func (r *Resolver) resolveCentroid(ctx context.Context, addr AddressInput) (*Point, error) {
	pc := normalize.Postcode(addr.Postcode)
	if pc == "" {
		return nil, nil
	}

	pcKey := postcodeKey(addr.Postcode)
	centroid, ok := r.cache.Get(pcKey)
	if !ok {
		p, err := r.lookupPostcode(ctx, pc)
		if err != nil || p == nil {
			return p, err
		}
		centroid = *p
		r.cache.Put(pcKey, centroid)
	}

	latOff, lngOff := jitter(addr.Address)
	return &Point{Lat: centroid.Lat + latOff, Lng: centroid.Lng + lngOff}, nil
}

// jitter derives a deterministic offset within +/-jitterSpanDeg/2 from a
// rolling hash of the raw address string. Same address, same offset;
// different addresses disperse around the centroid.
func jitter(address string) (latOff, lngOff float64) {
	var h uint32
	for _, ch := range address {
		h = h*31 + uint32(ch)
	}
	latOff = (float64(h%1000)/1000 - 0.5) * jitterSpanDeg
	lngOff = (float64((h/1000)%1000)/1000 - 0.5) * jitterSpanDeg
	return latOff, lngOff
}
