package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/venueminer/venueminer/internal/venue"
)

var (
	roomCountRe = regexp.MustCompile(`(?i)(\d{1,3})\s+(?:salles?\b|meeting\s+rooms?)`)
	phoneRe     = regexp.MustCompile(`(?:\+33|0)\s?[1-9](?:[\s.\-]?\d{2}){4}`)
	emailRe     = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// Amenity keywords checked against the page text, lowercase.
var amenityKeywords = map[string][]string{
	"parking":    {"parking"},
	"restaurant": {"restaurant", "brasserie"},
	"spa":        {"spa"},
	"wifi":       {"wifi", "wi-fi"},
}

// Image URL fragments that mark chrome rather than venue photography.
var imageURLBlocklist = []string{"logo", "icon", "sprite", "placeholder", "avatar"}

// ContentOptions configures the website content client.
type ContentOptions struct {
	UserAgent   string
	RPS         float64
	Burst       int
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (o *ContentOptions) withDefaults() {
	if o.UserAgent == "" {
		o.UserAgent = "venueminer/1.0"
	}
	if o.RPS <= 0 {
		o.RPS = 2
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
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

// ContentClient reads a venue's own website and lifts structured facts out
// of it: amenity flags, a published room count, contact details, and a
// bounded set of photography URLs.
type ContentClient struct {
	opts  ContentOptions
	rl    *rate.Limiter
	cache Cache
	sf    singleflight.Group
	log   *zap.Logger
	base  *colly.Collector
}

// NewContentClient builds a website content enricher.
func NewContentClient(opts ContentOptions, cache Cache, log *zap.Logger) (*ContentClient, error) {
	if cache == nil {
		return nil, fmt.Errorf("content: cache is required")
	}
	opts.withDefaults()
	base := colly.NewCollector(colly.Async(false))
	base.UserAgent = opts.UserAgent
	base.IgnoreRobotsTxt = false
	base.SetRequestTimeout(opts.Timeout)
	return &ContentClient{
		opts:  opts,
		rl:    rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		cache: cache,
		log:   log,
		base:  base,
	}, nil
}

// Lookup fetches the website's landing page and extracts its facts. The
// result is cached by URL; a page that loads but yields nothing is still a
// valid cached outcome. Concurrent Lookups for the same URL collapse into
// one fetch.
func (c *ContentClient) Lookup(ctx context.Context, websiteURL string) (venue.ContentResult, error) {
	key := CacheKey("content", websiteURL)
	out, err, _ := c.sf.Do(key, func() (any, error) {
		return c.lookup(ctx, key, websiteURL)
	})
	if err != nil {
		return venue.ContentResult{}, err
	}
	return out.(venue.ContentResult), nil
}

func (c *ContentClient) lookup(ctx context.Context, key, websiteURL string) (venue.ContentResult, error) {
	if raw, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		var cached venue.ContentResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		c.log.Warn("discarding undecodable content cache entry", zap.String("key", key))
	}

	var (
		result  venue.ContentResult
		lastErr error
	)
	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if err := c.rl.Wait(ctx); err != nil {
			return venue.ContentResult{}, err
		}
		res, err := c.fetch(ctx, websiteURL)
		if err == nil {
			result = res
			lastErr = nil
			break
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
		if !backoffSleep(ctx, c.opts.BaseDelay, c.opts.MaxDelay, attempt, 0) {
			break
		}
	}
	if lastErr != nil {
		if ctx.Err() != nil {
			return venue.ContentResult{}, ctx.Err()
		}
		return venue.ContentResult{}, lastErr
	}

	if raw, err := json.Marshal(result); err == nil {
		if err := c.cache.Set(ctx, key, raw); err != nil {
			c.log.Warn("content cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return result, nil
}

// fetch performs one collection pass over the landing page.
func (c *ContentClient) fetch(ctx context.Context, websiteURL string) (venue.ContentResult, error) {
	var (
		result   venue.ContentResult
		images   []string
		seen     = map[string]bool{}
		bodyText strings.Builder
		fetchErr error
	)

	collector := c.base.Clone()
	collector.UserAgent = c.opts.UserAgent
	collector.SetRequestTimeout(c.opts.Timeout)

	collector.OnHTML("img[src], img[data-src]", func(e *colly.HTMLElement) {
		src := e.Attr("src")
		if src == "" {
			src = e.Attr("data-src")
		}
		abs := e.Request.AbsoluteURL(src)
		if !keepImageURL(abs) || seen[abs] || len(images) >= venue.MaxImages {
			return
		}
		seen[abs] = true
		images = append(images, abs)
	})
	collector.OnHTML(`a[href^="mailto:"]`, func(e *colly.HTMLElement) {
		if result.Email != nil {
			return
		}
		addr := strings.TrimPrefix(e.Attr("href"), "mailto:")
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		if addr != "" {
			result.Email = &addr
		}
	})
	collector.OnHTML(`a[href^="tel:"]`, func(e *colly.HTMLElement) {
		if result.Phone != nil {
			return
		}
		num := strings.TrimPrefix(e.Attr("href"), "tel:")
		if num != "" {
			result.Phone = &num
		}
	})
	collector.OnHTML("body", func(e *colly.HTMLElement) {
		bodyText.WriteString(e.Text)
	})
	collector.OnError(func(resp *colly.Response, err error) {
		fetchErr = classifyFetchError(resp, err)
	})

	if err := visitWithContext(ctx, collector, websiteURL); err != nil {
		if fetchErr != nil {
			return venue.ContentResult{}, fetchErr
		}
		return venue.ContentResult{}, err
	}
	if fetchErr != nil {
		return venue.ContentResult{}, fetchErr
	}

	text := strings.ToLower(bodyText.String())
	result.Parking = containsAny(text, amenityKeywords["parking"])
	result.Restaurant = containsAny(text, amenityKeywords["restaurant"])
	result.Spa = containsAny(text, amenityKeywords["spa"])
	result.WiFi = containsAny(text, amenityKeywords["wifi"])
	result.RoomCount = matchRoomCount(text)
	if result.Phone == nil {
		if m := phoneRe.FindString(bodyText.String()); m != "" {
			result.Phone = &m
		}
	}
	if result.Email == nil {
		if m := emailRe.FindString(bodyText.String()); m != "" {
			result.Email = &m
		}
	}
	result.Images = images
	return result, nil
}

// visitWithContext runs the synchronous collector while honoring ctx. Colly
// has no native context plumbing, so cancellation abandons the visit and
// lets its goroutine drain in the background.
func visitWithContext(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return newFailure(KindUnavailable, "content fetch", err)
		}
		return nil
	}
}

func classifyFetchError(resp *colly.Response, err error) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	switch {
	case status == http.StatusTooManyRequests:
		return newFailure(KindRateLimited, "content fetch", err)
	case status >= 500:
		return newFailure(KindUnavailable, "content fetch", err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newFailure(KindRejected, "content fetch", err)
	case status >= 400:
		return newFailure(KindMalformed, "content fetch", err)
	default:
		return newFailure(KindUnavailable, "content fetch", err)
	}
}

func keepImageURL(u string) bool {
	if u == "" || strings.HasPrefix(u, "data:") {
		return false
	}
	lower := strings.ToLower(u)
	if strings.HasSuffix(lower, ".svg") {
		return false
	}
	for _, frag := range imageURLBlocklist {
		if strings.Contains(lower, frag) {
			return false
		}
	}
	return true
}

func containsAny(text string, keywords []string) *bool {
	found := false
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			found = true
			break
		}
	}
	return &found
}

func matchRoomCount(text string) *int {
	m := roomCountRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}
