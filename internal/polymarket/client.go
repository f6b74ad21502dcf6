package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"prediction-feed/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL      = "https://gamma-api.polymarket.com"
	DefaultTimeout      = 12 * time.Second
	DefaultRetries      = 2
	DefaultRetryBackoff = 400 * time.Millisecond
	DefaultLimitPerPage = 100
	DefaultMaxPages     = 8
)

// ErrNotArray is returned when a listing page is not a JSON array.
var ErrNotArray = errors.New("listing response is not an array")

// HTTPClient implements MarketSource against the Gamma REST API.
type HTTPClient struct {
	baseURL      string
	client       *http.Client
	retries      int
	retryBackoff time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithRetries sets how many times a failed page is retried.
func WithRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.retries = n
	}
}

// WithRetryBackoff sets the linear backoff unit.
// Attempt n waits backoff*n before retrying.
func WithRetryBackoff(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryBackoff = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithClock overrides the time source used by the bouncer.
func WithClock(now func() time.Time) ClientOption {
	return func(c *HTTPClient) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// NewHTTPClient creates a new listing client.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &HTTPClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: DefaultTimeout},
		retries:      DefaultRetries,
		retryBackoff: DefaultRetryBackoff,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ MarketSource = (*HTTPClient)(nil)

// FetchActiveMarkets pages through the listing endpoint.
// Stops when a page is short or MaxPages is reached. The first occurrence of
// an id wins. A page that fails after all retries aborts the whole fetch.
func (c *HTTPClient) FetchActiveMarkets(ctx context.Context, opts FetchOptions) (*FetchResult, error) {
	limit := opts.LimitPerPage
	if limit <= 0 {
		limit = DefaultLimitPerPage
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	now := c.now()
	result := &FetchResult{FetchedAt: now}
	seen := make(map[string]struct{})

	for page := 0; page < maxPages; page++ {
		pageURL := c.pageURL(limit, page*limit, opts.Bouncer, now)

		records, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		result.PagesFetched++
		result.RawCount += len(records)

		for _, r := range records {
			id := r.ID()
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if !opts.Bouncer.Accept(r, now) {
				result.DroppedByBouncer++
				continue
			}
			result.Markets = append(result.Markets, r)
		}

		if len(records) < limit {
			break
		}
	}

	c.logger.Debug("listing fetch complete",
		"pages", result.PagesFetched,
		"raw", result.RawCount,
		"accepted", len(result.Markets),
		"bounced", result.DroppedByBouncer,
	)

	return result, nil
}

func (c *HTTPClient) pageURL(limit, offset int, b Bouncer, now time.Time) string {
	q := url.Values{}
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("archived", "false")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	b.apply(q, now)
	return c.baseURL + "/markets?" + q.Encode()
}

// fetchPage performs a GET with retries and linear backoff.
func (c *HTTPClient) fetchPage(ctx context.Context, pageURL string) ([]domain.RawListing, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryBackoff * time.Duration(attempt)):
			}
		}

		records, err := c.get(ctx, pageURL)
		if err == nil {
			return records, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, fmt.Errorf("max retries exceeded after %d attempts: %w", c.retries+1, lastErr)
}

func (c *HTTPClient) get(ctx context.Context, pageURL string) ([]domain.RawListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	items, ok := payload.([]any)
	if !ok {
		return nil, ErrNotArray
	}

	records := make([]domain.RawListing, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			records = append(records, domain.RawListing(m))
		}
	}
	return records, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
