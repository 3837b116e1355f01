// Package cache tracks staleness of locally stored entity records and
// propagates invalidation between dependent entity types. It holds only
// metadata; the records themselves live in the local store.
package cache

import (
	"sync"
	"time"
)

// Entity type keys used across the pipeline.
const (
	EntityDevices      = "devices"
	EntityApplications = "applications"
	EntityGroups       = "groups"
	EntityAssignments  = "assignments"
)

// Metadata is the staleness record for one entity type. Data is
// trustworthy iff it is not past its TTL, not explicitly marked stale,
// and at least one record exists.
type Metadata struct {
	EntityType  string
	TTL         time.Duration
	LastRefresh time.Time
	RecordCount int
	Stale       bool
	Version     string

	// invalidatedAt is the timestamp of the most recent accepted
	// invalidation. Invalidations older than LastRefresh are ignored so a
	// stale signal cannot clobber a refresh that completed after it.
	invalidatedAt time.Time
}

// expired reports whether the TTL has elapsed at time now.
func (m *Metadata) expired(now time.Time) bool {
	return now.Sub(m.LastRefresh) > m.TTL
}

// TTLProvider yields the freshness window for an entity type. The config
// package implements this.
type TTLProvider interface {
	TTLFor(entityType string) time.Duration
}

// Coordinator is the staleness ledger shared by all services. Metadata
// reads and writes for different entity types are independent, but a
// refresh of one type and the invalidation of its dependents happen under
// one lock so a dependent's concurrent refresh can never observe half the
// transition.
type Coordinator struct {
	mu      sync.Mutex
	entries map[string]*Metadata
	deps    map[string][]string
	ttls    TTLProvider
	now     func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a staleness ledger with the default entity
// dependency table:
//
//	groups       → devices, assignments
//	devices      → assignments
//	applications → assignments
//	assignments  → applications, devices
//
// Group membership and assignment targets reference device, app, and group
// identities, so refreshing one side invalidates the cached view of the
// other.
func NewCoordinator(ttls TTLProvider, opts ...Option) *Coordinator {
	c := &Coordinator{
		entries: make(map[string]*Metadata),
		deps: map[string][]string{
			EntityGroups:       {EntityDevices, EntityAssignments},
			EntityDevices:      {EntityAssignments},
			EntityApplications: {EntityAssignments},
			EntityAssignments:  {EntityApplications, EntityDevices},
		},
		ttls: ttls,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterDependency adds dependents invalidated whenever entityType is
// refreshed. New entity types register here without touching pipeline code.
func (c *Coordinator) RegisterDependency(entityType string, dependents ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deps[entityType] = append(c.deps[entityType], dependents...)
}

// ShouldRefresh reports whether cached records for entityType must be
// refetched: forced, never fetched, past TTL, or explicitly stale.
func (c *Coordinator) ShouldRefresh(entityType string, force bool) bool {
	if force {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	meta, ok := c.entries[entityType]
	if !ok {
		return true
	}
	return meta.expired(c.now()) || meta.Stale
}

// CanServeFromCache reports whether cached records for entityType are
// trustworthy: metadata exists, TTL not elapsed, not stale, and at least
// one record present.
func (c *Coordinator) CanServeFromCache(entityType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta, ok := c.entries[entityType]
	if !ok {
		return false
	}
	return !meta.expired(c.now()) && !meta.Stale && meta.RecordCount > 0
}

// RecordRefresh marks entityType fresh as of now with recordCount records,
// then synchronously invalidates its dependents. The invalidation carries
// this refresh's timestamp: a dependent whose own refresh completed later
// ignores it.
func (c *Coordinator) RecordRefresh(entityType string, recordCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	meta, ok := c.entries[entityType]
	if !ok {
		meta = &Metadata{
			EntityType: entityType,
			TTL:        c.ttls.TTLFor(entityType),
		}
		c.entries[entityType] = meta
	}
	meta.LastRefresh = now
	meta.RecordCount = recordCount
	meta.Stale = false

	c.invalidateDependentsLocked(entityType, now)
}

// MarkStale flags entityType as invalidated without touching its
// timestamp, distinguishing "known invalid" from "too old".
func (c *Coordinator) MarkStale(entityType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markStaleLocked(entityType, c.now())
}

// InvalidateDependents marks every dependent of entityType stale, stamped
// with the current instant. RecordRefresh calls this internally; it is
// exported for callers that mutate records outside a full refresh (e.g. a
// single-entity write).
func (c *Coordinator) InvalidateDependents(entityType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateDependentsLocked(entityType, c.now())
}

// Snapshot returns a copy of the metadata for entityType, if present.
func (c *Coordinator) Snapshot(entityType string) (Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta, ok := c.entries[entityType]
	if !ok {
		return Metadata{}, false
	}
	return *meta, true
}

func (c *Coordinator) invalidateDependentsLocked(entityType string, at time.Time) {
	for _, dep := range c.deps[entityType] {
		c.markStaleLocked(dep, at)
	}
}

// markStaleLocked applies an invalidation stamped at. A signal older than
// the target's most recent refresh is dropped: the refresh already
// re-fetched whatever the signal was warning about.
func (c *Coordinator) markStaleLocked(entityType string, at time.Time) {
	meta, ok := c.entries[entityType]
	if !ok {
		// Nothing cached yet; the first fetch will create metadata, and
		// ShouldRefresh already returns true for unknown types.
		return
	}
	if at.Before(meta.LastRefresh) {
		return
	}
	meta.Stale = true
	meta.invalidatedAt = at
}
