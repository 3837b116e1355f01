// Package ratelimit provides the shared request budget for Graph API calls.
package ratelimit

import "time"

// Graph tenant throttle limits
//
// The Graph-style service throttles per tenant using two independent sliding
// windows: one counting every request, one counting only writes (POST, PATCH,
// DELETE). Both windows cover the same 20 second span. Exceeding either limit
// returns 429 for the remainder of the window, so the client must never admit
// a request that would break either ceiling.
const (
	// WindowLength is the span of both sliding windows.
	WindowLength = 20 * time.Second

	// TotalCeiling is the maximum number of requests (any method) admitted
	// inside one window.
	TotalCeiling = 1000

	// WriteCeiling is the maximum number of write requests admitted inside
	// one window. Writes also count against TotalCeiling.
	WriteCeiling = 100
)

// Preemptive throttling
//
// Rather than running a window to its ceiling and eating a hard 429 lockout,
// callers are slowed down once utilization passes the threshold. The delay
// ramps linearly from zero at the threshold to PreemptiveDelayMax at 100%
// utilization.
const (
	// PreemptiveThreshold is the utilization fraction above which requests
	// are delayed before being sent.
	PreemptiveThreshold = 0.8

	// PreemptiveDelayMax caps the utilization-proportional delay.
	PreemptiveDelayMax = 5 * time.Second

	// RejectionPenalty is added to the preemptive delay per consecutive
	// upstream 429, up to RejectionPenaltyMax. A success resets the count.
	RejectionPenalty    = 500 * time.Millisecond
	RejectionPenaltyMax = 3 * time.Second
)

// Backoff configuration
const (
	// BackoffBase is the first retry delay; doubled per attempt.
	BackoffBase = 1 * time.Second

	// BackoffCap bounds any computed backoff delay, jitter included.
	BackoffCap = 32 * time.Second

	// BackoffJitter is the fractional jitter applied to computed delays
	// (±20%) so concurrent callers do not retry in lockstep.
	BackoffJitter = 0.2
)

// Batch sizing
const (
	// MaxBatchSize is the server-imposed ceiling on items per composite
	// request.
	MaxBatchSize = 20

	// BatchHeadroom reserves a fraction of the remaining window capacity
	// for concurrent callers when advising a batch size.
	BatchHeadroom = 0.8
)
