// Package services provides the UI-facing entity services (devices,
// applications, groups, assignments). Each service funnels through the
// shared pipeline client, serves trusted data from the local store, and
// keeps the cache coordinator's staleness ledger current.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/fleetlink/fleetlink-int/internal/api"
	"github.com/fleetlink/fleetlink-int/internal/cache"
	"github.com/fleetlink/fleetlink-int/internal/metrics"
	"github.com/fleetlink/fleetlink-int/internal/store"
)

// Deps bundles the collaborators every entity service shares. One Deps
// value (and thus one client and one budget) serves all services of a
// tenant. Metrics may be nil.
type Deps struct {
	Client  *api.Client
	Cache   *cache.Coordinator
	Store   store.LocalStore
	Log     zerolog.Logger
	Metrics *metrics.Set
}

// syncer implements the fetch-or-serve flow shared by all entity services.
type syncer struct {
	deps       Deps
	entityType string
	endpoint   string
	query      url.Values
}

// records returns the entity's record set, serving from the local store
// when the cache coordinator trusts it and refreshing through the
// paginator otherwise. A successful refresh replaces the stored set and
// records the refresh (which synchronously invalidates dependents).
func (s *syncer) records(ctx context.Context, force bool) ([]json.RawMessage, error) {
	if !s.deps.Cache.ShouldRefresh(s.entityType, force) && s.deps.Cache.CanServeFromCache(s.entityType) {
		s.deps.Log.Debug().Str("entity", s.entityType).Msg("serving from local store")
		s.deps.Metrics.CacheLookup("hit")
		return s.deps.Store.Fetch(ctx, s.entityType)
	}

	if force {
		s.deps.Metrics.CacheLookup("forced")
	} else {
		s.deps.Metrics.CacheLookup("refresh")
	}
	s.deps.Log.Debug().Str("entity", s.entityType).Bool("forced", force).Msg("refreshing from API")

	records, err := api.ListAllRaw(ctx, s.deps.Client, s.endpoint, s.query)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh %s: %w", s.entityType, err)
	}

	if err := s.deps.Store.Replace(ctx, s.entityType, records); err != nil {
		return nil, fmt.Errorf("failed to persist %s: %w", s.entityType, err)
	}

	s.deps.Cache.RecordRefresh(s.entityType, len(records))

	s.deps.Log.Info().Str("entity", s.entityType).Int("count", len(records)).Msg("refreshed")
	return records, nil
}

// decodeRecords unmarshals stored raw records into typed values.
func decodeRecords[T any](records []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		var v T
		if err := json.Unmarshal(rec, &v); err != nil {
			return nil, fmt.Errorf("corrupt cached record: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
