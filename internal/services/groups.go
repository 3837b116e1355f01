package services

import (
	"context"

	"github.com/fleetlink/fleetlink-int/internal/cache"
	"github.com/fleetlink/fleetlink-int/internal/models"
)

// groupsEndpoint lists the tenant's directory groups.
const groupsEndpoint = "/groups"

// GroupService exposes directory group reads.
type GroupService struct {
	sync syncer
}

// NewGroupService creates the group service on shared collaborators.
func NewGroupService(deps Deps) *GroupService {
	return &GroupService{
		sync: syncer{
			deps:       deps,
			entityType: cache.EntityGroups,
			endpoint:   groupsEndpoint,
		},
	}
}

// List returns all directory groups, from the local store when fresh.
func (s *GroupService) List(ctx context.Context, force bool) ([]models.DirectoryGroup, error) {
	records, err := s.sync.records(ctx, force)
	if err != nil {
		return nil, err
	}
	return decodeRecords[models.DirectoryGroup](records)
}
