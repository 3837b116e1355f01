// Package constants defines shared limits and timeouts for the Fleetlink client.
package constants

import "time"

// Graph API defaults
const (
	// DefaultBaseURL is the Graph-style API authority used when no base URL
	// is configured. All endpoints are relative to this URL.
	DefaultBaseURL = "https://graph.example.com/v1.0"

	// BatchEndpoint is the composite request endpoint. A single POST here
	// bundles up to MaxBatchItems logical operations.
	BatchEndpoint = "/$batch"

	// MaxBatchItems is the server-imposed ceiling on operations per
	// composite request.
	MaxBatchItems = 20
)

// HTTP exchange timeouts
//
// Timeouts apply per exchange, never across a whole multi-page or
// multi-chunk operation (those are bounded by the caller's context).
const (
	// HTTPResponseHeaderTimeout bounds the wait for the first response byte.
	HTTPResponseHeaderTimeout = 30 * time.Second

	// HTTPRequestTimeout bounds one complete exchange including body read.
	HTTPRequestTimeout = 60 * time.Second

	// HTTPDialTimeout bounds TCP connection establishment.
	HTTPDialTimeout = 10 * time.Second

	// HTTPDialKeepAlive is the keep-alive probe interval for pooled connections.
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPIdleConnTimeout closes pooled connections idle longer than this.
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout bounds the TLS handshake. Extended beyond the
	// stdlib default for slow corporate proxies.
	HTTPTLSHandshakeTimeout = 20 * time.Second

	// HTTPExpectContinueTimeout bounds the HTTP 100-continue wait.
	HTTPExpectContinueTimeout = 5 * time.Second
)

// Retry configuration
const (
	// MaxRetries is the number of re-issues after the first attempt for
	// retryable failures (429, 5xx, transport errors). A request is
	// attempted at most MaxRetries+1 times.
	MaxRetries = 3

	// AdmitRecheckInterval is how long the executor sleeps when the rate
	// budget refuses admission before checking again. This is a blocking
	// wait, not a failure.
	AdmitRecheckInterval = 5 * time.Second

	// InterChunkDelay is the pause between consecutive batch chunk
	// submissions, applied from the second chunk onward.
	InterChunkDelay = 1 * time.Second
)

// Cache defaults
const (
	// DefaultCacheTTL is the freshness window for cached entity records
	// when the config does not override it per entity type.
	DefaultCacheTTL = 5 * time.Minute
)
