package enrich

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/venueminer/venueminer/internal/venue"
)

const geoFieldMask = "places.rating,places.userRatingCount,places.location," +
	"places.formattedAddress,places.websiteUri,places.internationalPhoneNumber," +
	"places.nationalPhoneNumber,places.googleMapsUri,places.businessStatus"

// GeoOptions configures the place-search client.
type GeoOptions struct {
	BaseURL     string
	APIKey      string
	Language    string
	RPS         float64
	Burst       int
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (o *GeoOptions) withDefaults() {
	if o.Language == "" {
		o.Language = "fr"
	}
	if o.RPS <= 0 {
		o.RPS = 5
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 250 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 5 * time.Second
	}
}

// GeoClient resolves a venue's (name, address) pair against a text-search
// places API. Lookups are client-side rate limited, retried on transient
// failures, and cached, including the not-found outcome.
type GeoClient struct {
	opts  GeoOptions
	hc    *http.Client
	rl    *rate.Limiter
	cache Cache
	sf    singleflight.Group
	log   *zap.Logger
}

// NewGeoClient builds a geo enricher. cache must not be nil; use
// NewMemoryCache for uncached single runs.
func NewGeoClient(opts GeoOptions, cache Cache, log *zap.Logger) (*GeoClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("geo: API key is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("geo: cache is required")
	}
	opts.withDefaults()
	return &GeoClient{
		opts:  opts,
		hc:    &http.Client{Timeout: opts.Timeout},
		rl:    rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		cache: cache,
		log:   log,
	}, nil
}

// Lookup resolves place metadata for the venue. The query ladder is walked
// in order until a variant matches; a zero GeoResult means the venue could
// not be found anywhere, and that outcome is cached like any other so
// re-runs stay quiet. Concurrent Lookups for the same normalized (name,
// address) pair collapse into one upstream call.
func (c *GeoClient) Lookup(ctx context.Context, name, address string) (venue.GeoResult, error) {
	key := CacheKey("geo", name, address)
	out, err, _ := c.sf.Do(key, func() (any, error) {
		return c.lookup(ctx, key, name, address)
	})
	if err != nil {
		return venue.GeoResult{}, err
	}
	return out.(venue.GeoResult), nil
}

func (c *GeoClient) lookup(ctx context.Context, key, name, address string) (venue.GeoResult, error) {
	if raw, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		var cached venue.GeoResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		c.log.Warn("discarding undecodable geo cache entry", zap.String("key", key))
	}

	var result venue.GeoResult
	for _, q := range searchQueries(name, address) {
		res, found, err := c.search(ctx, q)
		if err != nil {
			return venue.GeoResult{}, err
		}
		if found {
			result = res
			break
		}
	}

	if raw, err := json.Marshal(result); err == nil {
		if err := c.cache.Set(ctx, key, raw); err != nil {
			c.log.Warn("geo cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return result, nil
}

// searchQueries builds the ladder of query variants for a venue, most
// specific first: name with city, cleaned name with city, bare name, and
// finally name with the full address. A later rung rescues venues whose
// batch address is stale or whose name carries boilerplate the places index
// does not.
func searchQueries(name, address string) []string {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	city := cityFromAddress(address)
	clean := cleanVenueName(name)

	var queries []string
	add := func(q string) {
		q = strings.Join(strings.Fields(q), " ")
		if q == "" {
			return
		}
		for _, seen := range queries {
			if strings.EqualFold(seen, q) {
				return
			}
		}
		queries = append(queries, q)
	}
	if city != "" {
		add(name + " " + city)
		add(clean + " hotel " + city)
	}
	add(name)
	if address != "" {
		add(name + ", " + address)
	}
	return queries
}

func cleanVenueName(name string) string {
	return strings.TrimSpace(strings.NewReplacer(
		"Hôtel", "", "hôtel", "", "Hotel", "", "hotel", "",
	).Replace(name))
}

// cityFromAddress pulls the locality out of a free-form address: the token
// after a 4 or 5 digit postal code when one is present, otherwise the
// trailing words.
func cityFromAddress(address string) string {
	parts := strings.Fields(address)
	if len(parts) == 0 {
		return ""
	}
	for i, p := range parts {
		if isPostalCode(p) && i+1 < len(parts) {
			return strings.Trim(parts[i+1], ",")
		}
	}
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], " ")
	}
	return parts[0]
}

func isPostalCode(s string) bool {
	s = strings.Trim(s, ",")
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type geoSearchRequest struct {
	TextQuery    string `json:"textQuery"`
	LanguageCode string `json:"languageCode,omitempty"`
}

type geoSearchResponse struct {
	Places []geoPlace `json:"places"`
}

type geoPlace struct {
	Rating          *float64 `json:"rating"`
	UserRatingCount *int     `json:"userRatingCount"`
	Location        *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	FormattedAddress         string `json:"formattedAddress"`
	WebsiteURI               string `json:"websiteUri"`
	InternationalPhoneNumber string `json:"internationalPhoneNumber"`
	NationalPhoneNumber      string `json:"nationalPhoneNumber"`
	GoogleMapsURI            string `json:"googleMapsUri"`
	BusinessStatus           string `json:"businessStatus"`
}

func (c *GeoClient) search(ctx context.Context, query string) (venue.GeoResult, bool, error) {
	body, err := json.Marshal(geoSearchRequest{TextQuery: query, LanguageCode: c.opts.Language})
	if err != nil {
		return venue.GeoResult{}, false, newFailure(KindMalformed, "geo search", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if err := c.rl.Wait(ctx); err != nil {
			return venue.GeoResult{}, false, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.opts.BaseURL+"/v1/places:searchText", bytes.NewReader(body))
		if err != nil {
			return venue.GeoResult{}, false, newFailure(KindMalformed, "geo search", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Goog-Api-Key", c.opts.APIKey)
		req.Header.Set("X-Goog-FieldMask", geoFieldMask)

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return venue.GeoResult{}, false, ctx.Err()
			}
			lastErr = newFailure(KindUnavailable, "geo search", err)
			if !backoffSleep(ctx, c.opts.BaseDelay, c.opts.MaxDelay, attempt, 0) {
				break
			}
			continue
		}

		res, found, wait, ferr := c.handleResponse(resp)
		if ferr == nil {
			return res, found, nil
		}
		lastErr = ferr
		if !IsRetryable(ferr) {
			break
		}
		if !backoffSleep(ctx, c.opts.BaseDelay, c.opts.MaxDelay, attempt, wait) {
			break
		}
	}
	if ctx.Err() != nil {
		return venue.GeoResult{}, false, ctx.Err()
	}
	return venue.GeoResult{}, false, lastErr
}

// handleResponse consumes and closes the response. It returns the parsed
// result, whether a place matched, a server-suggested retry delay, and a
// classified failure.
func (c *GeoClient) handleResponse(resp *http.Response) (venue.GeoResult, bool, time.Duration, error) {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var out geoSearchResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return venue.GeoResult{}, false, 0, newFailure(KindMalformed, "geo search", err)
		}
		if len(out.Places) == 0 {
			return venue.GeoResult{}, false, 0, nil
		}
		return placeToResult(out.Places[0]), true, 0, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return venue.GeoResult{}, false, retryAfter(resp),
			newFailure(KindRateLimited, "geo search", fmt.Errorf("status %d", resp.StatusCode))

	case resp.StatusCode >= 500:
		return venue.GeoResult{}, false, retryAfter(resp),
			newFailure(KindUnavailable, "geo search", fmt.Errorf("status %d", resp.StatusCode))

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return venue.GeoResult{}, false, 0,
			newFailure(KindRejected, "geo search", fmt.Errorf("status %d", resp.StatusCode))

	default:
		return venue.GeoResult{}, false, 0,
			newFailure(KindMalformed, "geo search", fmt.Errorf("status %d", resp.StatusCode))
	}
}

func placeToResult(p geoPlace) venue.GeoResult {
	r := venue.GeoResult{
		Rating:      p.Rating,
		ReviewCount: p.UserRatingCount,
	}
	if p.Location != nil {
		lat, lng := p.Location.Latitude, p.Location.Longitude
		r.Latitude, r.Longitude = &lat, &lng
	}
	if p.FormattedAddress != "" {
		r.FormattedAddress = &p.FormattedAddress
	}
	if p.WebsiteURI != "" {
		r.Website = &p.WebsiteURI
	}
	phone := p.InternationalPhoneNumber
	if phone == "" {
		phone = p.NationalPhoneNumber
	}
	if phone != "" {
		r.Phone = &phone
	}
	if p.GoogleMapsURI != "" {
		r.MapsURL = &p.GoogleMapsURI
	}
	if p.BusinessStatus != "" {
		closed := p.BusinessStatus == "CLOSED_PERMANENTLY" || p.BusinessStatus == "CLOSED_TEMPORARILY"
		r.Closed = &closed
	}
	return r
}

// backoffSleep waits out the jittered exponential delay for the attempt, or
// the server-suggested delay when longer. Returns false when ctx ends first.
func backoffSleep(ctx context.Context, baseDelay, maxDelay time.Duration, attempt int, suggested time.Duration) bool {
	delay := float64(baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	wait := time.Duration(delay)/2 + randomJitter(time.Duration(delay)/2)
	if suggested > wait {
		wait = suggested
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// retryAfter parses a Retry-After header in either seconds or HTTP-date
// form. Absent or invalid headers yield 0.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
