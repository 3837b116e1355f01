package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetlink/fleetlink-int/internal/api"
	"github.com/fleetlink/fleetlink-int/internal/cache"
	"github.com/fleetlink/fleetlink-int/internal/config"
	"github.com/fleetlink/fleetlink-int/internal/ratelimit"
	"github.com/fleetlink/fleetlink-int/internal/store"
)

// tenantFixture is a fake tenant API: canned listings per endpoint path,
// a composite batch endpoint answering 204 per item, and request counters.
type tenantFixture struct {
	listings map[string][]map[string]any

	listCalls  atomic.Int32
	batchCalls atomic.Int32
	lastBatch  []api.BatchItem
}

func (f *tenantFixture) handler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/$batch" {
			f.batchCalls.Add(1)
			var env struct {
				Requests []api.BatchItem `json:"requests"`
			}
			if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
				t.Errorf("malformed batch request: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.lastBatch = env.Requests

			var out struct {
				Responses []api.BatchResult `json:"responses"`
			}
			for _, item := range env.Requests {
				out.Responses = append(out.Responses, api.BatchResult{ID: item.ID, Status: http.StatusNoContent})
			}
			json.NewEncoder(w).Encode(out)
			return
		}

		items, ok := f.listings[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.listCalls.Add(1)
		if items == nil {
			items = []map[string]any{}
		}
		json.NewEncoder(w).Encode(map[string]any{"value": items})
	}
}

// newTestDeps wires real pipeline collaborators against the fixture: a
// memory store, a cache coordinator on a fake clock, and a client with
// millisecond pacing.
func newTestDeps(t *testing.T, f *tenantFixture) (Deps, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(f.handler(t))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.BaseURL = server.URL

	budget := ratelimit.NewBudget(ratelimit.WithBackoff(time.Millisecond, 20*time.Millisecond))
	client, err := api.NewClient(cfg, api.StaticTokenProvider("test-token"),
		api.WithBudget(budget),
		api.WithHTTPClient(server.Client()),
		api.WithAdmitRecheck(5*time.Millisecond),
		api.WithInterChunkDelay(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	return Deps{
		Client: client,
		Cache:  cache.NewCoordinator(cfg),
		Store:  store.NewMemoryStore(),
		Log:    zerolog.Nop(),
	}, server
}

func TestDeviceListServesFromStoreWhenFresh(t *testing.T) {
	fixture := &tenantFixture{listings: map[string][]map[string]any{
		devicesEndpoint: {
			{"id": "d1", "deviceName": "LAPTOP-01"},
			{"id": "d2", "deviceName": "LAPTOP-02"},
		},
	}}
	deps, _ := newTestDeps(t, fixture)
	svc := NewDeviceService(deps)

	first, err := svc.List(t.Context(), false)
	if err != nil {
		t.Fatalf("first List() failed: %v", err)
	}
	if len(first) != 2 || first[0].ID != "d1" {
		t.Fatalf("first List() = %+v", first)
	}

	second, err := svc.List(t.Context(), false)
	if err != nil {
		t.Fatalf("second List() failed: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("second List() returned %d devices", len(second))
	}

	if n := fixture.listCalls.Load(); n != 1 {
		t.Errorf("API saw %d list requests, want 1 (second read served locally)", n)
	}
}

func TestForceRefreshBypassesFreshCache(t *testing.T) {
	fixture := &tenantFixture{listings: map[string][]map[string]any{
		devicesEndpoint: {{"id": "d1"}},
	}}
	deps, _ := newTestDeps(t, fixture)
	svc := NewDeviceService(deps)

	if _, err := svc.List(t.Context(), false); err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if _, err := svc.List(t.Context(), true); err != nil {
		t.Fatalf("forced List() failed: %v", err)
	}

	if n := fixture.listCalls.Load(); n != 2 {
		t.Errorf("API saw %d list requests, want 2", n)
	}
}

func TestEmptyListingIsNeverServedBlindly(t *testing.T) {
	fixture := &tenantFixture{listings: map[string][]map[string]any{
		groupsEndpoint: {},
	}}
	deps, _ := newTestDeps(t, fixture)
	svc := NewGroupService(deps)

	for i := 0; i < 2; i++ {
		groups, err := svc.List(t.Context(), false)
		if err != nil {
			t.Fatalf("List() %d failed: %v", i, err)
		}
		if len(groups) != 0 {
			t.Fatalf("List() %d = %+v", i, groups)
		}
	}

	// Zero-record state is not trustworthy, so the second read refetches.
	if n := fixture.listCalls.Load(); n != 2 {
		t.Errorf("API saw %d list requests, want 2", n)
	}
}

func TestSyncDevicesInvalidatesDependentViews(t *testing.T) {
	fixture := &tenantFixture{listings: map[string][]map[string]any{
		devicesEndpoint:     {{"id": "d1"}},
		assignmentsEndpoint: {{"id": "a1", "intent": "required"}},
	}}
	deps, _ := newTestDeps(t, fixture)
	devices := NewDeviceService(deps)
	assignments := NewAssignmentService(deps)

	if _, err := devices.List(t.Context(), false); err != nil {
		t.Fatalf("device List() failed: %v", err)
	}
	if _, err := assignments.List(t.Context(), false); err != nil {
		t.Fatalf("assignment List() failed: %v", err)
	}

	results, err := devices.SyncDevices(t.Context(), []string{"d1"})
	if err != nil {
		t.Fatalf("SyncDevices() failed: %v", err)
	}
	if len(results) != 1 || results[0].Status != http.StatusNoContent {
		t.Fatalf("SyncDevices() results = %+v", results)
	}

	if deps.Cache.CanServeFromCache(cache.EntityDevices) {
		t.Error("device cache should be stale after a sync action")
	}
	if deps.Cache.CanServeFromCache(cache.EntityAssignments) {
		t.Error("assignment cache should be stale after a device sync")
	}

	before := fixture.listCalls.Load()
	if _, err := devices.List(t.Context(), false); err != nil {
		t.Fatalf("post-sync List() failed: %v", err)
	}
	if fixture.listCalls.Load() != before+1 {
		t.Error("post-sync List() should refetch from the API")
	}
}

func TestAssignBuildsGroupTargets(t *testing.T) {
	fixture := &tenantFixture{listings: map[string][]map[string]any{}}
	deps, _ := newTestDeps(t, fixture)
	svc := NewAssignmentService(deps)

	results, err := svc.Assign(t.Context(), "app-1", "required", []string{"g1", "g2"})
	if err != nil {
		t.Fatalf("Assign() failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	if len(fixture.lastBatch) != 2 {
		t.Fatalf("batch carried %d items, want 2", len(fixture.lastBatch))
	}
	for i, item := range fixture.lastBatch {
		if item.Method != http.MethodPost {
			t.Errorf("item %d method = %q", i, item.Method)
		}
		if item.URL != "/deviceAppManagement/mobileApps/app-1/assignments" {
			t.Errorf("item %d url = %q", i, item.URL)
		}
		body, err := json.Marshal(item.Body)
		if err != nil {
			t.Fatalf("re-marshal item %d body: %v", i, err)
		}
		var assignment struct {
			Intent string `json:"intent"`
			Target struct {
				Type    string `json:"@odata.type"`
				GroupID string `json:"groupId"`
			} `json:"target"`
		}
		if err := json.Unmarshal(body, &assignment); err != nil {
			t.Fatalf("decode item %d body: %v", i, err)
		}
		if assignment.Intent != "required" {
			t.Errorf("item %d intent = %q", i, assignment.Intent)
		}
		if assignment.Target.Type != "#microsoft.graph.groupAssignmentTarget" {
			t.Errorf("item %d target type = %q", i, assignment.Target.Type)
		}
	}

	if deps.Cache.CanServeFromCache(cache.EntityAssignments) {
		t.Error("assignment cache should be stale after a write batch")
	}
}

func TestRemoveAssignmentsBatchesDeletes(t *testing.T) {
	fixture := &tenantFixture{listings: map[string][]map[string]any{}}
	deps, _ := newTestDeps(t, fixture)
	svc := NewAssignmentService(deps)

	results, err := svc.Remove(t.Context(), "app-1", []string{"a1", "a2", "a3"})
	if err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	for i, item := range fixture.lastBatch {
		if item.Method != http.MethodDelete {
			t.Errorf("item %d method = %q, want DELETE", i, item.Method)
		}
	}
	if fixture.lastBatch[0].URL != "/deviceAppManagement/mobileApps/app-1/assignments/a1" {
		t.Errorf("item 0 url = %q", fixture.lastBatch[0].URL)
	}
}
