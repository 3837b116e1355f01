// Package metrics exposes Prometheus counters for the request pipeline.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Set holds the pipeline counters. A nil-safe Nop set is used when the
// caller does not wire a registry (the CLI only registers metrics when
// asked to serve them).
type Set struct {
	requestsIssued *prometheus.CounterVec
	requestsTotal  *prometheus.CounterVec
	retriesTotal   prometheus.Counter
	throttled      prometheus.Counter
	batchItems     *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

// New creates the counter set and registers it with reg.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		requestsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetlink_requests_issued_total",
			Help: "Wire attempts issued, by method.",
		}, []string{"method"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetlink_requests_total",
			Help: "Completed exchanges, by method and HTTP status.",
		}, []string{"method", "status"}),
		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetlink_request_retries_total",
			Help: "Retry attempts for transient failures (5xx, transport).",
		}),
		throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetlink_throttled_total",
			Help: "429 responses received from the service.",
		}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetlink_batch_items_total",
			Help: "Terminal batch item outcomes, by outcome class.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetlink_cache_lookups_total",
			Help: "Cache trust decisions, by result (hit, refresh, forced).",
		}, []string{"result"}),
	}
	reg.MustRegister(s.requestsIssued, s.requestsTotal, s.retriesTotal, s.throttled, s.batchItems, s.cacheLookups)
	return s
}

// Nop returns a set whose methods do nothing.
func Nop() *Set { return nil }

// RequestIssued counts a wire attempt. Completions are counted separately
// since an attempt may fail at the transport level.
func (s *Set) RequestIssued(method string) {
	if s == nil {
		return
	}
	s.requestsIssued.WithLabelValues(method).Inc()
}

// RequestCompleted counts a finished exchange with its HTTP status.
func (s *Set) RequestCompleted(method string, status int) {
	if s == nil {
		return
	}
	s.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// RequestRetried counts one transient-failure retry.
func (s *Set) RequestRetried() {
	if s == nil {
		return
	}
	s.retriesTotal.Inc()
}

// Throttled counts one upstream 429.
func (s *Set) Throttled() {
	if s == nil {
		return
	}
	s.throttled.Inc()
}

// BatchItem counts a terminal batch item outcome.
func (s *Set) BatchItem(status int) {
	if s == nil {
		return
	}
	outcome := "error"
	switch {
	case status >= 200 && status < 300:
		outcome = "success"
	case status == 429:
		outcome = "throttled"
	}
	s.batchItems.WithLabelValues(outcome).Inc()
}

// CacheLookup counts a cache trust decision.
func (s *Set) CacheLookup(result string) {
	if s == nil {
		return
	}
	s.cacheLookups.WithLabelValues(result).Inc()
}
