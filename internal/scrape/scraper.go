// Package scrape extracts best-effort provider metrics from marketplace
// model pages when the primary API lacks that data. Everything here is
// second-class to API data: failures degrade output, never commands.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/everstacklabs/orin/internal/cache"
	"github.com/everstacklabs/orin/internal/catalog"
	"github.com/everstacklabs/orin/internal/httpclient"
)

var (
	// ErrPageNotFound means the model has no web page (404).
	ErrPageNotFound = errors.New("model page not found")
	// ErrWebTimeout means the page fetch exceeded its deadline. Timeouts
	// are terminal; the retry policy only covers rate limiting.
	ErrWebTimeout = errors.New("web request timed out")
	// ErrInvalidModelID means the identifier cannot form a page URL.
	ErrInvalidModelID = errors.New("invalid model id")
)

// ParseError reports HTML that could not be parsed into a document.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parsing %s: %v", e.URL, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ScrapingError wraps transport or parse faults that are not one of the
// named error conditions above.
type ScrapingError struct {
	URL string
	Err error
}

func (e *ScrapingError) Error() string { return fmt.Sprintf("scraping %s: %v", e.URL, e.Err) }
func (e *ScrapingError) Unwrap() error { return e.Err }

// Scraper fetches and parses model pages, caching successful extractions.
type Scraper struct {
	http    *http.Client
	cache   *cache.Memory
	baseURL string
	backoff time.Duration
	now     func() time.Time
}

// Option configures the Scraper.
type Option func(*Scraper)

// WithCache enables TTL caching of extracted offers by model id.
func WithCache(c *cache.Memory) Option {
	return func(s *Scraper) { s.cache = c }
}

// WithTimeout sets the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) { s.http.Timeout = d }
}

// New creates a scraper for the given web base URL (no trailing slash).
func New(baseURL string, opts ...Option) *Scraper {
	s := &Scraper{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		backoff: 2 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageURL maps a model id to its web page URL. The id must contain
// exactly one path separator; the author segment is strictly
// percent-encoded, the slug keeps "-._~".
func (s *Scraper) PageURL(modelID string) (string, error) {
	if strings.Count(modelID, "/") != 1 {
		return "", fmt.Errorf("%w: %q (expected author/slug)", ErrInvalidModelID, modelID)
	}
	author, slug, _ := strings.Cut(modelID, "/")
	author = strings.TrimSpace(author)
	slug = strings.TrimSpace(slug)
	if author == "" || slug == "" {
		return "", fmt.Errorf("%w: %q (expected author/slug)", ErrInvalidModelID, modelID)
	}
	return s.baseURL + "/" + escapeSegment(author) + "/" + escapeSegment(slug), nil
}

// escapeSegment percent-encodes everything outside the unreserved set.
func escapeSegment(seg string) string {
	const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
	var b strings.Builder
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if strings.IndexByte(unreserved, c) >= 0 {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// FetchMetrics scrapes the offers published on a model's web page. A
// successful result, including an empty one when the page simply has no
// discoverable provider data, is cached by model id.
func (s *Scraper) FetchMetrics(ctx context.Context, modelID string) ([]catalog.WebProviderMetric, error) {
	url, err := s.PageURL(modelID)
	if err != nil {
		return nil, err
	}

	cacheKey := "web:" + modelID
	if s.cache != nil {
		if v, ok := s.cache.Get(cacheKey); ok {
			if cached, ok := v.([]catalog.WebProviderMetric); ok {
				slog.Debug("using cached web metrics", "model", modelID)
				return cached, nil
			}
		}
	}

	body, err := s.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &ScrapingError{URL: url, Err: &ParseError{URL: url, Err: err}}
	}

	offers := ExtractOffers(doc, s.now().UTC())
	if s.cache != nil {
		s.cache.Set(cacheKey, offers)
	}

	slog.Debug("scraped model page", "model", modelID, "offers", len(offers))
	return offers, nil
}

// fetch retrieves the page HTML. Rate limiting gets a single retry after
// a fixed backoff; any other client error is raised immediately.
func (s *Scraper) fetch(ctx context.Context, url string) (string, error) {
	body, status, err := s.get(ctx, url)
	if err != nil {
		return "", err
	}

	if status == http.StatusTooManyRequests {
		slog.Warn("rate limited by model page, retrying once", "url", url, "backoff", s.backoff)
		select {
		case <-time.After(s.backoff):
		case <-ctx.Done():
			return "", &ScrapingError{URL: url, Err: ctx.Err()}
		}
		body, status, err = s.get(ctx, url)
		if err != nil {
			return "", err
		}
		if status == http.StatusTooManyRequests {
			return "", &ScrapingError{URL: url, Err: errors.New("rate limited after retry")}
		}
	}

	switch {
	case status == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrPageNotFound, url)
	case status >= 400:
		return "", &ScrapingError{URL: url, Err: fmt.Errorf("HTTP status %d", status)}
	}

	return body, nil
}

func (s *Scraper) get(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, &ScrapingError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; orin/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.http.Do(req)
	if err != nil {
		if httpclient.IsTimeout(err) {
			return "", 0, fmt.Errorf("%w: %s", ErrWebTimeout, url)
		}
		return "", 0, &ScrapingError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, &ScrapingError{URL: url, Err: err}
	}
	return string(body), resp.StatusCode, nil
}
