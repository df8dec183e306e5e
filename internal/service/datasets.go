package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilupskalvis/recstore/internal/index"
	"github.com/kilupskalvis/recstore/internal/models"
	"github.com/kilupskalvis/recstore/internal/store"
)

// DataSetService manages data sets and their assignments.
type DataSetService struct {
	deps Dependencies
}

// CreateDataSet creates a data set owned by an existing provider.
func (s *DataSetService) CreateDataSet(ctx context.Context, providerID, dataSetID, description string) (*models.DataSet, error) {
	if err := store.ValidateID(providerID); err != nil {
		return nil, err
	}
	if err := store.ValidateID(dataSetID); err != nil {
		return nil, err
	}

	ok, err := s.deps.providerExists(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("check provider %q: %w", providerID, err)
	}
	if !ok {
		return nil, models.ErrProviderNotExists
	}

	ds := &models.DataSet{
		ProviderID:   providerID,
		ID:           dataSetID,
		Description:  description,
		CreationDate: time.Now().UTC(),
	}
	if err := s.deps.Store.CreateDataSet(ds); err != nil {
		return nil, err
	}

	s.deps.Logger.Info("created data set", "provider", providerID, "dataSet", dataSetID)
	return ds, nil
}

// UpdateDataSet rewrites a data set's description.
func (s *DataSetService) UpdateDataSet(ctx context.Context, providerID, dataSetID, description string) error {
	return s.deps.Store.UpdateDataSet(providerID, dataSetID, description)
}

// GetDataSet retrieves one data set.
func (s *DataSetService) GetDataSet(ctx context.Context, providerID, dataSetID string) (*models.DataSet, error) {
	return s.deps.Store.GetDataSet(providerID, dataSetID)
}

// GetDataSets returns one page of a provider's data sets ordered by id.
// The token is the data set id to start from.
func (s *DataSetService) GetDataSets(ctx context.Context, providerID, startFrom string, limit int) ([]models.DataSet, string, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	sets, err := s.deps.Store.ListDataSets(providerID, startFrom, limit+1)
	if err != nil {
		return nil, "", err
	}
	if len(sets) > limit {
		next := sets[limit].ID
		return sets[:limit], next, nil
	}
	return sets, "", nil
}

// DeleteDataSet removes a data set with all its assignments. The
// referenced representation versions are untouched.
func (s *DataSetService) DeleteDataSet(ctx context.Context, providerID, dataSetID string) error {
	if _, err := s.deps.Store.GetDataSet(providerID, dataSetID); err != nil {
		return err
	}

	if _, err := s.deps.Store.RemoveAllAssignments(providerID, dataSetID); err != nil {
		return models.NewStorageError("remove data set assignments", err)
	}
	if err := s.deps.Store.DeleteDataSetRow(providerID, dataSetID); err != nil {
		return models.NewStorageError("delete data set", err)
	}

	s.deps.Index.Submit(index.Mutation{
		Op:      index.OpRemoveDataSetAll,
		DataSet: store.EncodeDataSetKey(providerID, dataSetID),
	})

	s.deps.Logger.Info("deleted data set", "provider", providerID, "dataSet", dataSetID)
	return nil
}

// AddAssignment puts a representation into a data set. With a version
// the assignment is pinned to that exact version, which must exist.
// Without one the assignment is a live binding, and the representation
// must have at least one version. Re-assigning the same (record,
// schema) pair silently replaces the earlier assignment.
func (s *DataSetService) AddAssignment(ctx context.Context, providerID, dataSetID, cloudID, schema, version string) error {
	if _, err := s.deps.Store.GetDataSet(providerID, dataSetID); err != nil {
		return err
	}

	var indexedVersion string
	if version != "" {
		rep, err := s.deps.Store.GetVersion(cloudID, schema, version)
		if err != nil {
			return err
		}
		indexedVersion = rep.Version
	} else {
		reps, err := s.deps.Store.ListVersions(cloudID, schema)
		if err != nil {
			return err
		}
		if len(reps) == 0 {
			return models.ErrRepresentationNotExists
		}
		// live bindings surface in search through the latest persistent
		// version, when there is one
		for _, rep := range reps {
			if rep.Persistent {
				indexedVersion = rep.Version
				break
			}
		}
	}

	err := s.deps.Store.AddAssignment(providerID, dataSetID, models.Assignment{
		CloudID:      cloudID,
		Schema:       schema,
		Version:      version,
		CreationDate: time.Now().UTC(),
	})
	if err != nil {
		return models.NewStorageError("add data set assignment", err)
	}

	if indexedVersion != "" {
		s.deps.Index.Submit(index.Mutation{
			Op:        index.OpAddDataSet,
			VersionID: indexedVersion,
			DataSet:   store.EncodeDataSetKey(providerID, dataSetID),
		})
	}

	s.deps.Logger.Info("added data set assignment",
		"provider", providerID, "dataSet", dataSetID,
		"cloudId", cloudID, "schema", schema, "version", version)
	return nil
}

// RemoveAssignment takes a representation out of a data set. Removing
// an assignment that does not exist is a no-op.
func (s *DataSetService) RemoveAssignment(ctx context.Context, providerID, dataSetID, cloudID, schema string) error {
	if _, err := s.deps.Store.GetDataSet(providerID, dataSetID); err != nil {
		return err
	}

	// resolve which version the assignment points at before it goes,
	// so the index entry can be fixed up
	assigned, err := s.resolveAssignedVersion(providerID, dataSetID, cloudID, schema)
	if err != nil && !errors.Is(err, models.ErrRepresentationNotExists) {
		return err
	}

	if err := s.deps.Store.RemoveAssignment(providerID, dataSetID, cloudID, schema); err != nil {
		return models.NewStorageError("remove data set assignment", err)
	}

	if assigned != "" {
		s.deps.Index.Submit(index.Mutation{
			Op:        index.OpRemoveDataSet,
			VersionID: assigned,
			DataSet:   store.EncodeDataSetKey(providerID, dataSetID),
		})
	}

	s.deps.Logger.Info("removed data set assignment",
		"provider", providerID, "dataSet", dataSetID,
		"cloudId", cloudID, "schema", schema)
	return nil
}

// ListDataSet returns one resolved page of a data set's contents. Each
// assignment resolves to its pinned version, or for live bindings to
// the current latest persistent version; live bindings with no
// persistent version yet are skipped. The returned token names the
// first assignment of the next page.
func (s *DataSetService) ListDataSet(ctx context.Context, providerID, dataSetID, pageToken string, limit int) ([]models.Representation, string, error) {
	if _, err := s.deps.Store.GetDataSet(providerID, dataSetID); err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	var afterCloudID, afterSchema string
	if pageToken != "" {
		var err error
		afterCloudID, afterSchema, err = store.DecodePageToken(pageToken)
		if err != nil {
			return nil, "", err
		}
	}

	assignments, err := s.deps.Store.ListAssignments(providerID, dataSetID, afterCloudID, afterSchema, limit+1)
	if err != nil {
		return nil, "", models.NewStorageError("list data set assignments", err)
	}

	nextToken := ""
	if len(assignments) > limit {
		overflow := assignments[limit]
		nextToken = store.EncodePageToken(overflow.CloudID, overflow.Schema)
		assignments = assignments[:limit]
	}

	var reps []models.Representation
	for _, a := range assignments {
		rep, err := s.resolveAssignment(a)
		if err != nil {
			if errors.Is(err, models.ErrRepresentationNotExists) || errors.Is(err, models.ErrVersionNotExists) {
				continue
			}
			return nil, "", err
		}
		reps = append(reps, *rep)
	}
	return reps, nextToken, nil
}

// GetDataSetsContaining is the reverse lookup. With an empty version it
// returns every data set holding the representation. With a version it
// returns the data sets whose assignment resolves to that version: the
// ones pinned to exactly it, plus the live bindings when it is the
// current latest persistent version.
func (s *DataSetService) GetDataSetsContaining(ctx context.Context, cloudID, schema, version string) ([]models.CompoundDataSetID, error) {
	if version == "" {
		return s.deps.Store.DataSetsContaining(cloudID, schema)
	}

	dataSets, err := s.deps.Store.DataSetsPinnedTo(cloudID, schema, version)
	if err != nil {
		return nil, err
	}
	latest, err := s.deps.Store.GetLatestPersistentVersion(cloudID, schema)
	if err != nil {
		if errors.Is(err, models.ErrRepresentationNotExists) {
			return dataSets, nil
		}
		return nil, err
	}
	if latest.Version == version {
		live, err := s.deps.Store.DataSetsPinnedTo(cloudID, schema, "")
		if err != nil {
			return nil, err
		}
		dataSets = append(dataSets, live...)
	}
	return dataSets, nil
}

// Search queries the asynchronous index. Results can lag the primary
// store; callers needing authoritative answers read the store directly.
func (s *DataSetService) Search(ctx context.Context, params index.SearchParams, offset, limit int) ([]index.Document, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	return s.deps.Search.Search(ctx, params, offset, limit)
}

func (s *DataSetService) resolveAssignment(a models.Assignment) (*models.Representation, error) {
	if a.Pinned() {
		return s.deps.Store.GetVersion(a.CloudID, a.Schema, a.Version)
	}
	return s.deps.Store.GetLatestPersistentVersion(a.CloudID, a.Schema)
}

// resolveAssignedVersion finds the version an assignment points at: the
// pinned version for pinned assignments, otherwise the current latest
// persistent version.
func (s *DataSetService) resolveAssignedVersion(providerID, dataSetID, cloudID, schema string) (string, error) {
	assignments, err := s.deps.Store.ListAssignments(providerID, dataSetID, cloudID, schema, 1)
	if err != nil {
		return "", models.NewStorageError("look up data set assignment", err)
	}
	if len(assignments) == 0 || assignments[0].CloudID != cloudID || assignments[0].Schema != schema {
		return "", nil
	}
	if assignments[0].Pinned() {
		return assignments[0].Version, nil
	}
	rep, err := s.deps.Store.GetLatestPersistentVersion(cloudID, schema)
	if err != nil {
		return "", err
	}
	return rep.Version, nil
}
