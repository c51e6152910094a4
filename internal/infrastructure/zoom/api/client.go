// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/clock"
)

const (
	// BaseURL is the base URL for Zoom API
	BaseURL = "https://api.zoom.us/v2"
	// AuthURL is the OAuth token endpoint
	AuthURL = "https://zoom.us/oauth/token"
	// DefaultClientTimeout is the default timeout of a single Zoom API request
	DefaultClientTimeout = 30 * time.Second
	// Default retry configuration
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 1 * time.Second
	DefaultMaxBackoff        = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
	// Network errors retry on their own, faster ladder
	DefaultNetworkInitialBackoff = 200 * time.Millisecond
	DefaultNetworkMaxBackoff     = 5 * time.Second

	instrumentationName = "github.com/linuxfoundation/lfx-v2-meeting-attendance/internal/infrastructure/zoom/api"
)

// Config holds the configuration for the Zoom gateway
type Config struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	// Optional: override base URL for testing
	BaseURL string
	// Optional: override auth URL for testing
	AuthURL string
	// Optional: override timeout for HTTP requests
	Timeout time.Duration
	// Optional: retry configuration
	MaxRetries            int
	InitialBackoff        time.Duration
	MaxBackoff            time.Duration
	BackoffMultiplier     float64
	NetworkInitialBackoff time.Duration
	NetworkMaxBackoff     time.Duration
	// Optional: minimum interval per call category
	Intervals map[Category]time.Duration
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = BaseURL
	}
	if c.AuthURL == "" {
		c.AuthURL = AuthURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultClientTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if c.NetworkInitialBackoff == 0 {
		c.NetworkInitialBackoff = DefaultNetworkInitialBackoff
	}
	if c.NetworkMaxBackoff == 0 {
		c.NetworkMaxBackoff = DefaultNetworkMaxBackoff
	}
}

// Client is the rate-limited gateway to the Zoom API. Every call is paced by
// category, authenticated from the shared token cache, retried on rate limits
// and transport failures, and optionally served from the response cache.
type Client struct {
	config     Config
	httpClient *http.Client
	tokens     *TokenCache
	fetcher    TokenFetcher
	dispatcher *Dispatcher
	cache      ResponseCache
	clock      clock.Clock

	rateLimitLadder backoffLadder
	networkLadder   backoffLadder

	retries   metric.Int64Counter
	cacheHits metric.Int64Counter
}

// Option customizes a Client.
type Option func(*Client)

// WithClock sets the clock used for pacing, backoff and the token cache.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithResponseCache sets the response cache. Without it responses are not cached.
func WithResponseCache(cache ResponseCache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithTokenFetcher replaces the OAuth client credentials flow.
func WithTokenFetcher(fetcher TokenFetcher) Option {
	return func(c *Client) { c.fetcher = fetcher }
}

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a new Zoom API gateway
func NewClient(config Config, opts ...Option) *Client {
	config.setDefaults()

	c := &Client{
		config: config,
		clock:  clock.Real(),
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		rateLimitLadder: backoffLadder{
			initial:    config.InitialBackoff,
			max:        config.MaxBackoff,
			multiplier: config.BackoffMultiplier,
		},
		networkLadder: backoffLadder{
			initial:    config.NetworkInitialBackoff,
			max:        config.NetworkMaxBackoff,
			multiplier: config.BackoffMultiplier,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.fetcher == nil {
		c.fetcher = newOAuthConfig(config)
	}
	c.tokens = NewTokenCache(c.fetcher, c.clock, 0, 0, config.Timeout)
	c.dispatcher = NewDispatcher(c.clock, config.Intervals)

	meter := otel.Meter(instrumentationName)
	c.retries, _ = meter.Int64Counter("attendance.gateway.retries",
		metric.WithDescription("Zoom API calls retried after a rate limit or transport failure"))
	c.cacheHits, _ = meter.Int64Counter("attendance.gateway.cache_hits",
		metric.WithDescription("Zoom API calls served from the response cache"))

	return c
}

// newOAuthConfig sets up Zoom Server-to-Server OAuth, which requires the
// account_credentials grant and the account id.
func newOAuthConfig(config Config) *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     config.AuthURL,
		EndpointParams: url.Values{
			"grant_type": []string{"account_credentials"},
			"account_id": []string{config.AccountID},
		},
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// Request describes one Zoom API call.
type Request struct {
	Method string
	// Path is appended to the base URL and must already be escaped.
	Path  string
	Query url.Values
}

// Response is a successful Zoom API response.
type Response struct {
	StatusCode int
	Body       []byte
	Cached     bool
}

type callOptions struct {
	priority int
	cacheKey string
	cacheTTL time.Duration
}

// CallOption customizes a single call.
type CallOption func(*callOptions)

// WithPriority orders the call among queued calls of its category. Lower
// numbers dispatch first.
func WithPriority(priority int) CallOption {
	return func(o *callOptions) { o.priority = priority }
}

// WithCache serves the call from the response cache under key and stores a
// successful response for ttl.
func WithCache(key string, ttl time.Duration) CallOption {
	return func(o *callOptions) {
		o.cacheKey = key
		o.cacheTTL = ttl
	}
}

// Call performs a Zoom API request through the gateway.
func (c *Client) Call(ctx context.Context, req Request, category Category, opts ...CallOption) (*Response, error) {
	var options callOptions
	for _, opt := range opts {
		opt(&options)
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "zoom.gateway.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("zoom.category", string(category)),
			attribute.String("http.request.method", req.Method),
			attribute.String("zoom.path", req.Path),
		),
	)
	defer span.End()

	if options.cacheKey != "" && c.cache != nil {
		if cached, ok := c.cache.Get(ctx, options.cacheKey); ok {
			c.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("category", string(category))))
			span.SetAttributes(attribute.Bool("zoom.cache_hit", true))
			span.SetStatus(codes.Ok, "")
			return &Response{StatusCode: cached.StatusCode, Body: cached.Body, Cached: true}, nil
		}
	}

	resp, err := c.do(ctx, req, category, options.priority)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if options.cacheKey != "" && c.cache != nil {
		c.cache.Set(ctx, options.cacheKey, &CachedResponse{
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			StoredAt:   c.clock.Now(),
		}, options.cacheTTL)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// do runs the retry loop. Rate limit retries and network retries have
// separate budgets; every attempt is paced by the dispatcher.
func (c *Client) do(ctx context.Context, req Request, category Category, priority int) (*Response, error) {
	var (
		rateLimitAttempts int
		networkAttempts   int
		serverAttempts    int
	)

	for attempt := 0; ; attempt++ {
		if err := c.dispatcher.Acquire(ctx, category, priority); err != nil {
			return nil, err
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		c.logRequestAttempt(ctx, req, category, attempt)

		start := c.clock.Now()
		status, header, body, err := c.execute(ctx, req, token)
		duration := c.clock.Now().Sub(start)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !isNetworkError(err) || networkAttempts >= c.config.MaxRetries {
				c.logFinalFailure(ctx, req, 0, attempt, err)
				return nil, domain.NewUnavailableError("zoom API unavailable", err)
			}
			delay := c.networkLadder.delay(networkAttempts)
			networkAttempts++
			if err := c.wait(ctx, req, category, delay, 0, attempt, err); err != nil {
				return nil, err
			}

		case status == http.StatusTooManyRequests:
			if rateLimitAttempts >= c.config.MaxRetries {
				c.logFinalFailure(ctx, req, status, attempt, nil)
				return nil, domain.NewRateLimitedError(
					fmt.Sprintf("zoom API rate limit exceeded after %d retries", c.config.MaxRetries))
			}
			delay, ok := retryAfter(header.Get("Retry-After"), c.clock.Now())
			if !ok {
				delay = c.rateLimitLadder.delay(rateLimitAttempts)
			}
			rateLimitAttempts++
			if err := c.wait(ctx, req, category, delay, status, attempt, nil); err != nil {
				return nil, err
			}

		case status == http.StatusUnauthorized:
			// the token may have been revoked before its expiry; the next
			// call fetches a new one once the token interval allows it
			c.tokens.Invalidate()
			return nil, c.clientError(ctx, req, status, body, duration, attempt)

		case status >= http.StatusInternalServerError:
			if serverAttempts >= c.config.MaxRetries {
				c.logFinalFailure(ctx, req, status, attempt, nil)
				return nil, domain.NewUnavailableError(
					fmt.Sprintf("zoom API returned status %d", status), parseErrorResponse(body))
			}
			delay := c.rateLimitLadder.delay(serverAttempts)
			serverAttempts++
			if err := c.wait(ctx, req, category, delay, status, attempt, nil); err != nil {
				return nil, err
			}

		case status >= http.StatusBadRequest:
			return nil, c.clientError(ctx, req, status, body, duration, attempt)

		default:
			c.logSuccessfulResponse(ctx, req, status, duration, attempt)
			return &Response{StatusCode: status, Body: body}, nil
		}
	}
}

// execute sends one authenticated request and reads the whole body.
func (c *Client) execute(ctx context.Context, req Request, token string) (int, http.Header, []byte, error) {
	target := c.config.BaseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, target, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, body, nil
}

// wait sleeps before a retry, unless the context ends first.
func (c *Client) wait(ctx context.Context, req Request, category Category, delay time.Duration, status, attempt int, cause error) error {
	c.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", string(category)),
		attribute.Int("status", status),
	))
	slog.WarnContext(ctx, "Zoom API request failed, retrying",
		"method", req.Method,
		"path", req.Path,
		"status", status,
		"attempt", attempt+1,
		"max_retries", c.config.MaxRetries,
		"backoff", delay.String(),
		logging.ErrKey, cause)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(delay):
		return nil
	}
}

// clientError converts a non-retryable 4xx response into a domain error.
func (c *Client) clientError(ctx context.Context, req Request, status int, body []byte, duration time.Duration, attempt int) error {
	apiErr := parseErrorResponse(body)
	slog.ErrorContext(ctx, "Zoom API request failed (not retryable)",
		"method", req.Method,
		"path", req.Path,
		"status", status,
		"duration", duration.String(),
		"attempt", attempt+1,
		logging.ErrKey, apiErr)

	switch status {
	case http.StatusNotFound:
		return domain.NewNotFoundError("zoom resource not found", apiErr)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.NewValidationError("zoom API rejected the request", apiErr)
	case http.StatusUnauthorized:
		return domain.NewUnavailableError("zoom API rejected the access token", apiErr)
	default:
		return domain.NewInternalError(fmt.Sprintf("zoom API returned status %d", status), apiErr)
	}
}

// logRequestAttempt logs the request attempt
func (c *Client) logRequestAttempt(ctx context.Context, req Request, category Category, attempt int) {
	if attempt == 0 {
		slog.DebugContext(ctx, "making Zoom API request",
			"method", req.Method,
			"path", req.Path,
			"category", category,
			"max_retries", c.config.MaxRetries,
		)
	} else {
		slog.DebugContext(ctx, "retrying Zoom API request",
			"method", req.Method,
			"path", req.Path,
			"category", category,
			"attempt", attempt,
		)
	}
}

// logSuccessfulResponse logs successful responses
func (c *Client) logSuccessfulResponse(ctx context.Context, req Request, status int, duration time.Duration, attempt int) {
	slog.InfoContext(ctx, "Zoom API request completed",
		"method", req.Method,
		"path", req.Path,
		"status", status,
		"duration", duration.String(),
		"attempt", attempt+1,
	)
}

// logFinalFailure logs the final failure after all retries
func (c *Client) logFinalFailure(ctx context.Context, req Request, status, attempt int, err error) {
	slog.ErrorContext(ctx, "Zoom API request failed after all retries",
		"method", req.Method,
		"path", req.Path,
		"status", status,
		"attempts", attempt+1,
		"max_retries", c.config.MaxRetries,
		logging.ErrKey, err,
		logging.PriorityCritical())
}

// parseErrorResponse attempts to parse a Zoom API error response
func parseErrorResponse(body []byte) error {
	var errResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("zoom API error (code %d): %s", errResp.Code, errResp.Message)
	}
	return fmt.Errorf("zoom API error: %s", string(body))
}
