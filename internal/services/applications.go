package services

import (
	"context"
	"net/url"

	"github.com/fleetlink/fleetlink-int/internal/cache"
	"github.com/fleetlink/fleetlink-int/internal/models"
)

// appsEndpoint lists the tenant's managed applications.
const appsEndpoint = "/deviceAppManagement/mobileApps"

// AppService exposes managed application reads.
type AppService struct {
	sync syncer
}

// NewAppService creates the application service on shared collaborators.
func NewAppService(deps Deps) *AppService {
	query := url.Values{}
	query.Set("$orderby", "displayName")

	return &AppService{
		sync: syncer{
			deps:       deps,
			entityType: cache.EntityApplications,
			endpoint:   appsEndpoint,
			query:      query,
		},
	}
}

// List returns all managed applications, from the local store when fresh.
func (s *AppService) List(ctx context.Context, force bool) ([]models.MobileApp, error) {
	records, err := s.sync.records(ctx, force)
	if err != nil {
		return nil, err
	}
	return decodeRecords[models.MobileApp](records)
}
