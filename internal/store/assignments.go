package store

import (
	"database/sql"

	"github.com/kilupskalvis/recstore/internal/models"
)

// CreateDataSet inserts a data set row. Returns
// models.ErrDataSetAlreadyExists when the (provider, id) pair is taken.
func (s *Store) CreateDataSet(ds *models.DataSet) error {
	_, err := s.db.Exec(`
		INSERT INTO data_sets (provider_id, dataset_id, description, creation_date)
		VALUES (?, ?, ?, ?)`,
		ds.ProviderID, ds.ID, ds.Description, formatTime(ds.CreationDate),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrDataSetAlreadyExists
		}
		return err
	}
	return nil
}

// UpdateDataSet rewrites a data set's description.
func (s *Store) UpdateDataSet(providerID, dataSetID, description string) error {
	res, err := s.db.Exec(`
		UPDATE data_sets SET description = ?
		WHERE provider_id = ? AND dataset_id = ?`,
		description, providerID, dataSetID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrDataSetNotExists
	}
	return nil
}

// GetDataSet retrieves a data set row.
func (s *Store) GetDataSet(providerID, dataSetID string) (*models.DataSet, error) {
	var ds models.DataSet
	var desc sql.NullString
	var created string

	err := s.db.QueryRow(`
		SELECT provider_id, dataset_id, description, creation_date
		FROM data_sets WHERE provider_id = ? AND dataset_id = ?`,
		providerID, dataSetID).Scan(&ds.ProviderID, &ds.ID, &desc, &created)
	if err == sql.ErrNoRows {
		return nil, models.ErrDataSetNotExists
	}
	if err != nil {
		return nil, err
	}

	ds.Description = desc.String
	ds.CreationDate = parseTimestamp(created)
	return &ds, nil
}

// ListDataSets returns a provider's data sets ordered by id, starting at
// the threshold id (inclusive).
func (s *Store) ListDataSets(providerID, thresholdID string, limit int) ([]models.DataSet, error) {
	rows, err := s.db.Query(`
		SELECT provider_id, dataset_id, description, creation_date
		FROM data_sets
		WHERE provider_id = ? AND dataset_id >= ?
		ORDER BY dataset_id
		LIMIT ?`, providerID, thresholdID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []models.DataSet
	for rows.Next() {
		var ds models.DataSet
		var desc sql.NullString
		var created string
		if err := rows.Scan(&ds.ProviderID, &ds.ID, &desc, &created); err != nil {
			return nil, err
		}
		ds.Description = desc.String
		ds.CreationDate = parseTimestamp(created)
		sets = append(sets, ds)
	}
	return sets, rows.Err()
}

// DeleteDataSetRow removes the data set row itself. Assignments are
// removed separately; the two steps are not atomic.
func (s *Store) DeleteDataSetRow(providerID, dataSetID string) error {
	_, err := s.db.Exec(`
		DELETE FROM data_sets WHERE provider_id = ? AND dataset_id = ?`,
		providerID, dataSetID)
	return err
}

// AddAssignment writes an assignment into a data set partition. A new
// assignment for the same (cloudID, schema) silently replaces the prior
// one; the permissive replace semantics are deliberate.
func (s *Store) AddAssignment(providerID, dataSetID string, a models.Assignment) error {
	key := EncodeDataSetKey(providerID, dataSetID)
	var version any
	if a.Version != "" {
		version = a.Version
	}
	_, err := s.addAssignmentStmt.Exec(key, a.CloudID, a.Schema, version, formatTime(a.CreationDate))
	return err
}

// RemoveAssignment removes an assignment regardless of its pinned
// version.
func (s *Store) RemoveAssignment(providerID, dataSetID, cloudID, schema string) error {
	key := EncodeDataSetKey(providerID, dataSetID)
	_, err := s.removeAssignmentStmt.Exec(key, cloudID, schema)
	return err
}

// RemoveAllAssignments drops the whole assignment partition of a data
// set and returns the assignments that were removed, so index updates
// can be scheduled for each of them.
func (s *Store) RemoveAllAssignments(providerID, dataSetID string) ([]models.Assignment, error) {
	removed, err := s.ListAssignments(providerID, dataSetID, "", "", -1)
	if err != nil {
		return nil, err
	}
	key := EncodeDataSetKey(providerID, dataSetID)
	if _, err := s.db.Exec(
		`DELETE FROM data_set_assignments WHERE provider_dataset_id = ?`, key); err != nil {
		return nil, err
	}
	return removed, nil
}

// ListAssignments returns one page of a data set's assignments ordered
// by (cloudID, schema), starting at the threshold pair (inclusive).
// A negative limit returns the whole partition.
func (s *Store) ListAssignments(providerID, dataSetID, afterCloudID, afterSchema string, limit int) ([]models.Assignment, error) {
	key := EncodeDataSetKey(providerID, dataSetID)
	rows, err := s.listAssignmentsStmt.Query(key, afterCloudID, afterCloudID, afterSchema, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []models.Assignment
	for rows.Next() {
		var a models.Assignment
		var version sql.NullString
		var created string
		if err := rows.Scan(&a.CloudID, &a.Schema, &version, &created); err != nil {
			return nil, err
		}
		a.Version = version.String
		a.CreationDate = parseTimestamp(created)
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// DataSetsContaining is the reverse lookup: every data set holding any
// assignment for the representation, pinned to any version or live.
func (s *Store) DataSetsContaining(cloudID, schema string) ([]models.CompoundDataSetID, error) {
	return s.reverseLookup(cloudID, schema, func(sql.NullString) bool { return true })
}

// DataSetsPinnedTo returns the data sets whose assignment for the
// representation is pinned to exactly the given version. An empty
// version selects the live (unpinned) bindings instead; those are never
// returned for a non-empty version.
func (s *Store) DataSetsPinnedTo(cloudID, schema, version string) ([]models.CompoundDataSetID, error) {
	if version == "" {
		return s.reverseLookup(cloudID, schema, func(pinned sql.NullString) bool {
			return !pinned.Valid
		})
	}
	return s.reverseLookup(cloudID, schema, func(pinned sql.NullString) bool {
		return pinned.Valid && pinned.String == version
	})
}

func (s *Store) reverseLookup(cloudID, schema string, match func(pinned sql.NullString) bool) ([]models.CompoundDataSetID, error) {
	rows, err := s.reverseLookupStmt.Query(cloudID, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []models.CompoundDataSetID
	for rows.Next() {
		var key string
		var pinned sql.NullString
		if err := rows.Scan(&key, &pinned); err != nil {
			return nil, err
		}
		if !match(pinned) {
			continue
		}
		providerID, dataSetID, err := DecodeDataSetKey(key)
		if err != nil {
			return nil, err
		}
		ids = append(ids, models.CompoundDataSetID{ProviderID: providerID, DataSetID: dataSetID})
	}
	return ids, rows.Err()
}
