package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kilupskalvis/recstore/internal/models"
)

// InsertVersion inserts a new representation version row.
func (s *Store) InsertVersion(rep *models.Representation) error {
	files, err := serializeFiles(rep.Files)
	if err != nil {
		return err
	}
	_, err = s.insertVersionStmt.Exec(
		rep.CloudID, rep.Schema, rep.Version, rep.ProviderID,
		boolToInt(rep.Persistent), formatTime(rep.CreationDate), files,
	)
	return err
}

// GetVersion retrieves one representation version by its full key.
// Returns models.ErrVersionNotExists if the row is absent.
func (s *Store) GetVersion(cloudID, schema, version string) (*models.Representation, error) {
	rep, err := scanRepresentation(s.getVersionStmt.QueryRow(cloudID, schema, version))
	if err == sql.ErrNoRows {
		return nil, models.ErrVersionNotExists
	}
	return rep, err
}

// GetLatestPersistentVersion returns the most recent persistent version
// of a representation, or models.ErrRepresentationNotExists if none of
// its versions is persistent.
func (s *Store) GetLatestPersistentVersion(cloudID, schema string) (*models.Representation, error) {
	rep, err := scanRepresentation(s.latestPersistentStmt.QueryRow(cloudID, schema))
	if err == sql.ErrNoRows {
		return nil, models.ErrRepresentationNotExists
	}
	return rep, err
}

// ListVersions returns all versions of a representation, most recent
// first.
func (s *Store) ListVersions(cloudID, schema string) ([]models.Representation, error) {
	rows, err := s.listVersionsStmt.Query(cloudID, schema)
	if err != nil {
		return nil, err
	}
	return collectRepresentations(rows)
}

// ListAllVersions returns every version of every representation of a
// record, ordered by schema then version, most recent first.
func (s *Store) ListAllVersions(cloudID string) ([]models.Representation, error) {
	rows, err := s.listAllVersionsStmt.Query(cloudID)
	if err != nil {
		return nil, err
	}
	return collectRepresentations(rows)
}

// PersistVersion flips a version to persistent with a conditional write
// keyed on persistent = 0, so concurrent persists are mutually
// exclusive. Returns true when this call performed the transition.
func (s *Store) PersistVersion(cloudID, schema, version string, date time.Time) (bool, error) {
	res, err := s.persistVersionStmt.Exec(formatTime(date), cloudID, schema, version)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PutFile adds or replaces a file entry in a version's file set.
// Returns true when the file name was not present before.
func (s *Store) PutFile(cloudID, schema, version string, file models.File) (bool, error) {
	rep, err := s.GetVersion(cloudID, schema, version)
	if err != nil {
		return false, err
	}

	isNew := true
	for i := range rep.Files {
		if rep.Files[i].FileName == file.FileName {
			rep.Files[i] = file
			isNew = false
			break
		}
	}
	if isNew {
		rep.Files = append(rep.Files, file)
	}

	if err := s.writeFiles(cloudID, schema, version, rep.Files); err != nil {
		return false, err
	}
	return isNew, nil
}

// RemoveFile removes a file entry from a version's file set. Returns
// models.ErrFileNotExists when no such file name is recorded.
func (s *Store) RemoveFile(cloudID, schema, version, fileName string) error {
	rep, err := s.GetVersion(cloudID, schema, version)
	if err != nil {
		return err
	}

	kept := rep.Files[:0]
	found := false
	for _, f := range rep.Files {
		if f.FileName == fileName {
			found = true
			continue
		}
		kept = append(kept, f)
	}
	if !found {
		return models.ErrFileNotExists
	}
	return s.writeFiles(cloudID, schema, version, kept)
}

// DeleteVersion removes one representation version row.
func (s *Store) DeleteVersion(cloudID, schema, version string) error {
	_, err := s.db.Exec(`
		DELETE FROM representation_versions
		WHERE cloud_id = ? AND schema_id = ? AND version_id = ?`,
		cloudID, schema, version)
	return err
}

// DeleteRepresentation removes all versions of a representation.
func (s *Store) DeleteRepresentation(cloudID, schema string) error {
	_, err := s.db.Exec(`
		DELETE FROM representation_versions
		WHERE cloud_id = ? AND schema_id = ?`,
		cloudID, schema)
	return err
}

// DeleteRecordVersions removes every representation version of a record.
func (s *Store) DeleteRecordVersions(cloudID string) error {
	_, err := s.db.Exec(`
		DELETE FROM representation_versions WHERE cloud_id = ?`, cloudID)
	return err
}

func (s *Store) writeFiles(cloudID, schema, version string, files []models.File) error {
	data, err := serializeFiles(files)
	if err != nil {
		return err
	}
	res, err := s.setFilesStmt.Exec(data, cloudID, schema, version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrVersionNotExists
	}
	return nil
}

// serializeFiles renders a file set as the JSON stored in the files
// column. The field list is the explicit one on models.File; nothing is
// derived by reflection scanning.
func serializeFiles(files []models.File) (string, error) {
	if files == nil {
		files = []models.File{}
	}
	data, err := json.Marshal(files)
	if err != nil {
		return "", fmt.Errorf("failed to serialize file set: %w", err)
	}
	return string(data), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepresentation(row rowScanner) (*models.Representation, error) {
	var rep models.Representation
	var persistent int
	var created, files string

	err := row.Scan(&rep.CloudID, &rep.Schema, &rep.Version, &rep.ProviderID,
		&persistent, &created, &files)
	if err != nil {
		return nil, err
	}

	rep.Persistent = persistent != 0
	rep.CreationDate = parseTimestamp(created)
	if err := json.Unmarshal([]byte(files), &rep.Files); err != nil {
		return nil, fmt.Errorf("failed to parse file set: %w", err)
	}
	return &rep, nil
}

func collectRepresentations(rows *sql.Rows) ([]models.Representation, error) {
	defer rows.Close()
	var reps []models.Representation
	for rows.Next() {
		rep, err := scanRepresentation(rows)
		if err != nil {
			return nil, err
		}
		reps = append(reps, *rep)
	}
	return reps, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
