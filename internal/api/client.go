package api

import (
	"context"
	"fmt"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetlink/fleetlink-int/internal/config"
	"github.com/fleetlink/fleetlink-int/internal/constants"
	"github.com/fleetlink/fleetlink-int/internal/httpx"
	"github.com/fleetlink/fleetlink-int/internal/metrics"
	"github.com/fleetlink/fleetlink-int/internal/ratelimit"
)

// TokenProvider supplies a current bearer token for each outbound request.
// The interactive login and refresh flow lives outside the pipeline; the
// provider fails with an auth error when no valid token can be produced.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticTokenProvider serves a fixed token, typically read from the config
// file or the FLEETLINK_TOKEN environment variable.
type StaticTokenProvider string

// AccessToken returns the fixed token, or an auth error when it is empty.
func (t StaticTokenProvider) AccessToken(ctx context.Context) (string, error) {
	if t == "" {
		return "", &Error{Kind: KindUnauthorized, Message: "no access token configured; run 'fleetlink login'"}
	}
	return string(t), nil
}

// Client is the Graph API client shared by every service. One Client (and
// therefore one rate budget) per tenant: constructed explicitly and passed
// to each service at construction time, never held in package state.
type Client struct {
	httpClient *nethttp.Client
	baseURL    string
	tokens     TokenProvider
	budget     *ratelimit.Budget
	metrics    *metrics.Set
	log        zerolog.Logger

	maxRetries   int
	admitRecheck time.Duration
	interChunk   time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBudget substitutes the rate budget. Tests inject budgets with fast
// backoff so retry paths run in milliseconds.
func WithBudget(b *ratelimit.Budget) ClientOption {
	return func(c *Client) { c.budget = b }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *nethttp.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a logger to the client.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithMetrics attaches a metrics set to the client.
func WithMetrics(m *metrics.Set) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithAdmitRecheck overrides the sleep between admission checks when the
// budget is exhausted. Used by tests.
func WithAdmitRecheck(d time.Duration) ClientOption {
	return func(c *Client) { c.admitRecheck = d }
}

// WithInterChunkDelay overrides the pause between batch chunk submissions.
// Used by tests.
func WithInterChunkDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.interChunk = d }
}

// NewClient creates a Graph API client from config, with proxy-aware
// transport and a fresh rate budget.
func NewClient(cfg *config.Config, tokens TokenProvider, opts ...ClientOption) (*Client, error) {
	httpClient, err := httpx.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	c := &Client{
		httpClient:   httpClient,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		tokens:       tokens,
		budget:       ratelimit.NewBudget(),
		metrics:      metrics.Nop(),
		log:          zerolog.Nop(),
		maxRetries:   constants.MaxRetries,
		admitRecheck: constants.AdmitRecheckInterval,
		interChunk:   constants.InterChunkDelay,
		sleep:        sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Budget exposes the shared rate budget (for advisory reads by callers).
func (c *Client) Budget() *ratelimit.Budget { return c.budget }

// BaseURL returns the configured API authority without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// sleepCtx waits for d or until ctx is done, whichever comes first. All
// pipeline waits (preemptive, admission, backoff) go through this so a
// cancelled caller never sits in a sleep.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
