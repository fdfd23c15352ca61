package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"onthecheap/internal/logging"
	"onthecheap/internal/metrics"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultCooldown  = time.Minute
	maxResponseBytes = 4 << 20
)

// Config holds the settings shared by every adapter.
type Config struct {
	APIKey            string
	BaseURL           string
	HTTPClient        *http.Client
	Cache             Cache
	RequestsPerSecond float64
	Burst             int
}

// client performs provider requests with caching, pacing and status
// classification. It is safe for concurrent use.
type client struct {
	name    string
	baseURL string
	http    *http.Client
	cache   Cache
	limiter *rate.Limiter
	logger  zerolog.Logger
	now     func() time.Time

	mu            sync.Mutex
	authErr       *AuthError
	coolDownUntil time.Time
}

type request struct {
	method   string
	endpoint string
	params   url.Values
	body     any
	header   http.Header
}

func newClient(name, defaultBaseURL string, cfg Config) *client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	cache := cfg.Cache
	if cache == nil {
		cache = NewTTLCache(DefaultCacheTTL, DefaultCacheEntries)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &client{
		name:    name,
		baseURL: baseURL,
		http:    httpClient,
		cache:   cache,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logging.WithComponent("provider").With().Str("provider", name).Logger(),
		now:     time.Now,
	}
}

// do executes req and decodes the JSON response into out, serving repeated
// requests from the cache.
func (c *client) do(ctx context.Context, req request, out any) (err error) {
	var payload []byte
	if req.body != nil {
		payload, err = json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", req.endpoint, err)
		}
	}

	keyParams := url.Values{}
	for k, v := range req.params {
		keyParams[k] = v
	}
	if payload != nil {
		keyParams.Set("_body", string(payload))
	}
	key := CacheKey(c.name+" "+req.method+" "+req.endpoint, keyParams)

	if cached, ok := c.cache.Get(ctx, key); ok {
		if err := json.Unmarshal(cached, out); err == nil {
			metrics.ProviderRequestsTotal.WithLabelValues(c.name, metricEndpoint(req.endpoint), "cached").Inc()
			return nil
		}
	}

	defer func() {
		metrics.ProviderRequestsTotal.WithLabelValues(c.name, metricEndpoint(req.endpoint), Outcome(err)).Inc()
	}()

	if err := c.gate(); err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return &UnavailableError{Provider: c.name, Err: err}
	}

	body, err := c.roundTrip(ctx, req, payload)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &UnavailableError{Provider: c.name, Err: fmt.Errorf("decode %s response: %w", req.endpoint, err)}
	}
	c.cache.Set(ctx, key, body)
	return nil
}

func (c *client) roundTrip(ctx context.Context, req request, payload []byte) ([]byte, error) {
	apiURL := c.baseURL + "/" + strings.TrimLeft(req.endpoint, "/")
	if len(req.params) > 0 {
		apiURL += "?" + req.params.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, apiURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, values := range req.header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	timer := metrics.NewTimer()
	resp, err := c.http.Do(httpReq)
	timer.ObserveDurationVec(metrics.ProviderRequestDuration, c.name)
	if err != nil {
		return nil, &UnavailableError{Provider: c.name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &UnavailableError{Provider: c.name, Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		authErr := &AuthError{Provider: c.name, Status: resp.StatusCode}
		c.mu.Lock()
		c.authErr = authErr
		c.mu.Unlock()
		c.logger.Error().Int("status", resp.StatusCode).Msg("provider rejected credentials; adapter disabled")
		return nil, authErr
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		wait := retryAfter
		if wait <= 0 {
			wait = defaultCooldown
		}
		c.mu.Lock()
		c.coolDownUntil = c.now().Add(wait)
		c.mu.Unlock()
		c.logger.Warn().Dur("retry_after", wait).Msg("provider rate limited")
		return nil, &RateLimitedError{Provider: c.name, RetryAfter: retryAfter}
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, &UnavailableError{
			Provider: c.name,
			Err:      fmt.Errorf("status %s: %s", resp.Status, truncate(string(body), 200)),
		}
	}
}

// gate short-circuits calls after an auth failure or during a rate-limit
// cool-down.
func (c *client) gate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authErr != nil {
		return c.authErr
	}
	if remaining := c.coolDownUntil.Sub(c.now()); remaining > 0 {
		return &RateLimitedError{Provider: c.name, RetryAfter: remaining}
	}
	return nil
}

func parseRetryAfter(raw string, now time.Time) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// metricEndpoint keeps id-bearing paths from exploding label cardinality.
func metricEndpoint(endpoint string) string {
	switch {
	case strings.HasSuffix(endpoint, "search"), strings.Contains(endpoint, ":"):
		return endpoint
	default:
		return "details"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
