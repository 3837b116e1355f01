package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fleetlink/fleetlink-int/internal/api"
	"github.com/fleetlink/fleetlink-int/internal/cache"
	"github.com/fleetlink/fleetlink-int/internal/models"
)

// devicesEndpoint lists the tenant's enrolled devices.
const devicesEndpoint = "/deviceManagement/managedDevices"

// DeviceService exposes managed device reads and bulk actions.
type DeviceService struct {
	deps Deps
	sync syncer
}

// NewDeviceService creates the device service on shared collaborators.
func NewDeviceService(deps Deps) *DeviceService {
	return &DeviceService{
		deps: deps,
		sync: syncer{
			deps:       deps,
			entityType: cache.EntityDevices,
			endpoint:   devicesEndpoint,
		},
	}
}

// List returns all managed devices, from the local store when fresh.
func (s *DeviceService) List(ctx context.Context, force bool) ([]models.ManagedDevice, error) {
	records, err := s.sync.records(ctx, force)
	if err != nil {
		return nil, err
	}
	return decodeRecords[models.ManagedDevice](records)
}

// SyncDevices requests a check-in from each device, batching the POSTs
// through the composite endpoint. The returned results carry one entry per
// device id; callers inspect per-item status.
func (s *DeviceService) SyncDevices(ctx context.Context, deviceIDs []string) ([]api.BatchResult, error) {
	if len(deviceIDs) == 0 {
		return nil, nil
	}

	items := make([]api.BatchItem, len(deviceIDs))
	for i, id := range deviceIDs {
		items[i] = api.BatchItem{
			ID:     fmt.Sprintf("sync-%d", i+1),
			Method: http.MethodPost,
			URL:    fmt.Sprintf("%s/%s/syncDevice", devicesEndpoint, id),
		}
	}

	results, err := s.deps.Client.SubmitBatch(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("device sync batch failed: %w", err)
	}

	// Device state changed server-side; cached views that join against
	// devices can no longer be trusted.
	s.deps.Cache.MarkStale(cache.EntityDevices)
	s.deps.Cache.InvalidateDependents(cache.EntityDevices)

	return results, nil
}
