// Package service implements the operations of the record repository on
// top of the metadata store, the content router, the identifier
// resolver and the asynchronous index synchronizer. All invariants
// (version immutability, cascade completeness, assignment semantics)
// are enforced here; the layers below only move data.
package service

import (
	"context"
	"log/slog"

	"github.com/kilupskalvis/recstore/internal/content"
	"github.com/kilupskalvis/recstore/internal/identifiers"
	"github.com/kilupskalvis/recstore/internal/index"
	"github.com/kilupskalvis/recstore/internal/store"
)

// Dependencies bundles the shared collaborators of all services.
// Index is the write path (asynchronous mutations); Search is the read
// path against the same index.
type Dependencies struct {
	Store    *store.Store
	Content  *content.Router
	Resolver identifiers.Resolver
	Index    *index.Synchronizer
	Search   index.Client
	Logger   *slog.Logger
}

// New wires up the full service set over one dependency bundle.
func New(deps Dependencies) (*ProviderService, *RecordService, *DataSetService) {
	providers := &ProviderService{deps: deps}
	records := &RecordService{deps: deps}
	dataSets := &DataSetService{deps: deps}
	return providers, records, dataSets
}

// defaultPageSize bounds list operations when the caller does not ask
// for a specific page size.
const defaultPageSize = 100

// providerExists consults the local store first and falls back to the
// identifier authority, so providers known upstream but not yet
// registered locally still pass existence checks.
func (d Dependencies) providerExists(ctx context.Context, providerID string) (bool, error) {
	ok, err := d.Store.ProviderExists(providerID)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	if d.Resolver == nil {
		return false, nil
	}
	return d.Resolver.ProviderExists(ctx, providerID)
}

// recordExists asks the identifier authority about a cloud id. Without
// a resolver every well-formed cloud id is accepted.
func (d Dependencies) recordExists(ctx context.Context, cloudID string) (bool, error) {
	if d.Resolver == nil {
		return true, nil
	}
	return d.Resolver.RecordExists(ctx, cloudID)
}
