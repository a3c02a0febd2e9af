package geocode

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

// searchResult is one entry of the Nominatim-style search response.
// Coordinates arrive as strings.
type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// searchAddress queries the free-text address search endpoint and returns
// the first result, or (nil, nil) when the query produced no usable match.
func (r *Resolver) searchAddress(ctx context.Context, query string) (*Point, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: search rate limit")
	}

	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	reqURL := r.searchBaseURL + "/search?" + params.Encode()

	body, err := r.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "geocode: parse search response")
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, lng, err := parseCoords(results[0].Lat, results[0].Lon)
	if err != nil {
		return nil, err
	}
	return &Point{Lat: lat, Lng: lng}, nil
}

// postcodeResponse is the postcode-centroid lookup response.
type postcodeResponse struct {
	Status int `json:"status"`
	Result *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"result"`
}

// lookupPostcode queries the postcode-to-coordinate endpoint for the
// centroid of the given postcode.
func (r *Resolver) lookupPostcode(ctx context.Context, postcode string) (*Point, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: postcode rate limit")
	}

	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	reqURL := r.postcodeBaseURL + "/postcodes/" + url.PathEscape(postcode)
	body, err := r.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp postcodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "geocode: parse postcode response")
	}
	if resp.Result == nil {
		return nil, nil
	}
	if !finite(resp.Result.Latitude) || !finite(resp.Result.Longitude) {
		return nil, eris.New("geocode: postcode centroid not finite")
	}
	return &Point{Lat: resp.Result.Latitude, Lng: resp.Result.Longitude}, nil
}

// get issues a GET with the identifying User-Agent and returns the body
// for 2xx responses.
func (r *Resolver) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, eris.Errorf("geocode: upstream returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// parseCoords parses string coordinates, rejecting NaN and infinities.
func parseCoords(latStr, lonStr string) (lat, lng float64, err error) {
	lat, err = strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse lat")
	}
	lng, err = strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse lon")
	}
	if !finite(lat) || !finite(lng) {
		return 0, 0, eris.New("geocode: coordinates not finite")
	}
	return lat, lng, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
