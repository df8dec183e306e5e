package service

import (
	"context"
	"time"

	"github.com/kilupskalvis/recstore/internal/models"
	"github.com/kilupskalvis/recstore/internal/store"
)

// ProviderService manages data provider records.
type ProviderService struct {
	deps Dependencies
}

// CreateProvider registers a data provider.
func (s *ProviderService) CreateProvider(ctx context.Context, providerID string, properties map[string]string) (*models.DataProvider, error) {
	if err := store.ValidateID(providerID); err != nil {
		return nil, err
	}

	provider := &models.DataProvider{
		ID:           providerID,
		Properties:   properties,
		CreationDate: time.Now().UTC(),
	}
	if err := s.deps.Store.CreateProvider(provider); err != nil {
		return nil, err
	}

	s.deps.Logger.Info("created data provider", "provider", providerID)
	return provider, nil
}

// GetProvider retrieves a data provider by id.
func (s *ProviderService) GetProvider(ctx context.Context, providerID string) (*models.DataProvider, error) {
	return s.deps.Store.GetProvider(providerID)
}

// ListProviders returns one page of providers ordered by id. The token
// is the provider id to start from; an empty next token means the last
// page.
func (s *ProviderService) ListProviders(ctx context.Context, startFrom string, limit int) ([]models.DataProvider, string, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	providers, err := s.deps.Store.ListProviders(startFrom, limit+1)
	if err != nil {
		return nil, "", err
	}
	if len(providers) > limit {
		next := providers[limit].ID
		return providers[:limit], next, nil
	}
	return providers, "", nil
}

// DeleteProvider removes a provider. Fails with
// models.ErrProviderInUse while the provider still owns data sets or
// representation versions.
func (s *ProviderService) DeleteProvider(ctx context.Context, providerID string) error {
	if err := s.deps.Store.DeleteProvider(providerID); err != nil {
		return err
	}
	s.deps.Logger.Info("deleted data provider", "provider", providerID)
	return nil
}
