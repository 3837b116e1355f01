package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fleetlink/fleetlink-int/internal/api"
	"github.com/fleetlink/fleetlink-int/internal/cache"
	"github.com/fleetlink/fleetlink-int/internal/models"
)

// assignmentsEndpoint lists app assignments across the tenant.
const assignmentsEndpoint = "/deviceAppManagement/assignments"

// AssignmentService exposes assignment reads and batched writes.
type AssignmentService struct {
	deps Deps
	sync syncer
}

// NewAssignmentService creates the assignment service on shared
// collaborators.
func NewAssignmentService(deps Deps) *AssignmentService {
	return &AssignmentService{
		deps: deps,
		sync: syncer{
			deps:       deps,
			entityType: cache.EntityAssignments,
			endpoint:   assignmentsEndpoint,
		},
	}
}

// List returns all app assignments, from the local store when fresh.
func (s *AssignmentService) List(ctx context.Context, force bool) ([]models.AppAssignment, error) {
	records, err := s.sync.records(ctx, force)
	if err != nil {
		return nil, err
	}
	return decodeRecords[models.AppAssignment](records)
}

// Assign targets an application at each group with the given intent,
// batching the POSTs through the composite endpoint. Returns one result
// per group; callers inspect per-item status.
func (s *AssignmentService) Assign(ctx context.Context, appID, intent string, groupIDs []string) ([]api.BatchResult, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	items := make([]api.BatchItem, len(groupIDs))
	for i, groupID := range groupIDs {
		items[i] = api.BatchItem{
			ID:     fmt.Sprintf("assign-%d", i+1),
			Method: http.MethodPost,
			URL:    fmt.Sprintf("/deviceAppManagement/mobileApps/%s/assignments", appID),
			Body: models.AppAssignment{
				AppID:  appID,
				Intent: intent,
				Target: models.AssignmentTarget{
					Type:    "#microsoft.graph.groupAssignmentTarget",
					GroupID: groupID,
				},
			},
		}
	}

	results, err := s.deps.Client.SubmitBatch(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("assignment batch failed: %w", err)
	}

	s.afterWrite()
	return results, nil
}

// Remove deletes assignments by id, batching the DELETEs through the
// composite endpoint.
func (s *AssignmentService) Remove(ctx context.Context, appID string, assignmentIDs []string) ([]api.BatchResult, error) {
	if len(assignmentIDs) == 0 {
		return nil, nil
	}

	items := make([]api.BatchItem, len(assignmentIDs))
	for i, id := range assignmentIDs {
		items[i] = api.BatchItem{
			ID:     fmt.Sprintf("remove-%d", i+1),
			Method: http.MethodDelete,
			URL:    fmt.Sprintf("/deviceAppManagement/mobileApps/%s/assignments/%s", appID, id),
		}
	}

	results, err := s.deps.Client.SubmitBatch(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("assignment removal batch failed: %w", err)
	}

	s.afterWrite()
	return results, nil
}

// afterWrite invalidates the assignment view and its dependents after a
// successful write batch.
func (s *AssignmentService) afterWrite() {
	s.deps.Cache.MarkStale(cache.EntityAssignments)
	s.deps.Cache.InvalidateDependents(cache.EntityAssignments)
}
