package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/kilupskalvis/recstore/internal/content"
	"github.com/kilupskalvis/recstore/internal/index"
	"github.com/kilupskalvis/recstore/internal/models"
	"github.com/kilupskalvis/recstore/internal/store"
)

// RecordService manages records, representation versions, their file
// sets and the payloads behind them.
type RecordService struct {
	deps Dependencies
}

// CreateRepresentation opens a new mutable version of a representation.
// The record and the provider must both exist. Version ids are
// time-ordered, so the lexicographically greatest version id of a
// representation is the most recent one.
func (s *RecordService) CreateRepresentation(ctx context.Context, cloudID, schema, providerID string) (*models.Representation, error) {
	for _, id := range []string{cloudID, schema, providerID} {
		if err := store.ValidateID(id); err != nil {
			return nil, err
		}
	}

	ok, err := s.deps.recordExists(ctx, cloudID)
	if err != nil {
		return nil, fmt.Errorf("check record %q: %w", cloudID, err)
	}
	if !ok {
		return nil, models.ErrRecordNotExists
	}

	ok, err = s.deps.providerExists(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("check provider %q: %w", providerID, err)
	}
	if !ok {
		return nil, models.ErrProviderNotExists
	}

	versionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate version id: %w", err)
	}

	rep := &models.Representation{
		CloudID:      cloudID,
		Schema:       schema,
		Version:      versionID.String(),
		ProviderID:   providerID,
		Persistent:   false,
		CreationDate: time.Now().UTC(),
		Files:        []models.File{},
	}
	if err := s.deps.Store.InsertVersion(rep); err != nil {
		return nil, models.NewStorageError("create representation version", err)
	}

	s.deps.Index.Submit(index.Mutation{
		Op:       index.OpUpsert,
		Document: documentFor(rep, nil),
	})

	s.deps.Logger.Info("created representation version",
		"cloudId", cloudID, "schema", schema, "version", rep.Version)
	return rep, nil
}

// GetRepresentation resolves a representation to its most recent
// persistent version.
func (s *RecordService) GetRepresentation(ctx context.Context, cloudID, schema string) (*models.Representation, error) {
	return s.deps.Store.GetLatestPersistentVersion(cloudID, schema)
}

// GetRepresentationVersion retrieves one exact version.
func (s *RecordService) GetRepresentationVersion(ctx context.Context, cloudID, schema, version string) (*models.Representation, error) {
	return s.deps.Store.GetVersion(cloudID, schema, version)
}

// ListRepresentationVersions returns every version of a representation,
// most recent first.
func (s *RecordService) ListRepresentationVersions(ctx context.Context, cloudID, schema string) ([]models.Representation, error) {
	reps, err := s.deps.Store.ListVersions(cloudID, schema)
	if err != nil {
		return nil, err
	}
	if len(reps) == 0 {
		return nil, models.ErrRepresentationNotExists
	}
	return reps, nil
}

// GetRecord aggregates the latest persistent version of each schema of a
// record. Schemas with no persistent version yet are left out.
func (s *RecordService) GetRecord(ctx context.Context, cloudID string) (*models.Record, error) {
	all, err := s.deps.Store.ListAllVersions(cloudID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, models.ErrRecordNotExists
	}

	record := &models.Record{CloudID: cloudID}
	seen := make(map[string]bool)
	for _, rep := range all {
		if seen[rep.Schema] {
			continue
		}
		if !rep.Persistent {
			continue
		}
		// versions arrive most recent first per schema, so the first
		// persistent hit is the latest one
		seen[rep.Schema] = true
		record.Representations = append(record.Representations, rep)
	}
	return record, nil
}

// PersistRepresentation freezes a version. The transition is
// conditional in the store, so of two concurrent persists exactly one
// succeeds and the loser observes the version as already persistent.
func (s *RecordService) PersistRepresentation(ctx context.Context, cloudID, schema, version string) (*models.Representation, error) {
	rep, err := s.deps.Store.GetVersion(cloudID, schema, version)
	if err != nil {
		return nil, err
	}
	if rep.Persistent {
		return nil, models.ErrCannotModifyPersistentRepresentation
	}
	if len(rep.Files) == 0 {
		return nil, models.ErrCannotPersistEmptyRepresentation
	}

	now := time.Now().UTC()
	applied, err := s.deps.Store.PersistVersion(cloudID, schema, version, now)
	if err != nil {
		return nil, models.NewStorageError("persist representation version", err)
	}
	if !applied {
		return nil, models.ErrCannotModifyPersistentRepresentation
	}

	rep.Persistent = true
	rep.CreationDate = now

	dataSets, err := s.persistedVersionDataSets(cloudID, schema, version)
	if err != nil {
		s.deps.Logger.Warn("failed to collect data sets for index update",
			"cloudId", cloudID, "schema", schema, "version", version, "error", err)
		dataSets = nil
	}
	s.deps.Index.Submit(index.Mutation{
		Op:       index.OpUpsert,
		Document: documentFor(rep, dataSets),
	})

	s.deps.Logger.Info("persisted representation version",
		"cloudId", cloudID, "schema", schema, "version", version)
	return rep, nil
}

// CopyRepresentation clones a version's file set into a fresh mutable
// version. Payload copies are best effort: files whose payload cannot
// be duplicated are dropped from the clone with a warning, matching the
// non-transactional relationship between metadata and content.
func (s *RecordService) CopyRepresentation(ctx context.Context, cloudID, schema, srcVersion string) (*models.Representation, error) {
	src, err := s.deps.Store.GetVersion(cloudID, schema, srcVersion)
	if err != nil {
		return nil, err
	}

	versionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate version id: %w", err)
	}

	dst := &models.Representation{
		CloudID:      cloudID,
		Schema:       schema,
		Version:      versionID.String(),
		ProviderID:   src.ProviderID,
		Persistent:   false,
		CreationDate: time.Now().UTC(),
		Files:        []models.File{},
	}

	for _, f := range src.Files {
		srcKey, err := content.BuildKey(cloudID, schema, srcVersion, f.FileName)
		if err != nil {
			return nil, err
		}
		dstKey, err := content.BuildKey(cloudID, schema, dst.Version, f.FileName)
		if err != nil {
			return nil, err
		}
		if err := s.deps.Content.Copy(ctx, f.Storage, srcKey, dstKey); err != nil {
			s.deps.Logger.Warn("skipping file during version copy",
				"cloudId", cloudID, "schema", schema, "version", srcVersion,
				"file", f.FileName, "error", err)
			continue
		}
		copied := f
		copied.Date = dst.CreationDate
		dst.Files = append(dst.Files, copied)
	}

	if err := s.deps.Store.InsertVersion(dst); err != nil {
		return nil, models.NewStorageError("create representation version", err)
	}

	s.deps.Index.Submit(index.Mutation{
		Op:       index.OpUpsert,
		Document: documentFor(dst, nil),
	})

	s.deps.Logger.Info("copied representation version",
		"cloudId", cloudID, "schema", schema,
		"from", srcVersion, "to", dst.Version)
	return dst, nil
}

// DeleteRepresentationVersion removes one mutable version together with
// its payloads and the assignments pinned to it. Persistent versions
// cannot be deleted this way.
func (s *RecordService) DeleteRepresentationVersion(ctx context.Context, cloudID, schema, version string) error {
	rep, err := s.deps.Store.GetVersion(cloudID, schema, version)
	if err != nil {
		return err
	}
	if rep.Persistent {
		return models.ErrCannotModifyPersistentRepresentation
	}

	var problems []error
	s.deleteVersionPayloads(ctx, rep, &problems)
	if err := s.removeVersionAssignments(ctx, cloudID, schema, version); err != nil {
		problems = append(problems, err)
	}
	if err := s.deps.Store.DeleteVersion(cloudID, schema, version); err != nil {
		problems = append(problems, models.NewStorageError("delete representation version", err))
	}

	s.deps.Index.Submit(index.Mutation{Op: index.OpDeleteVersion, VersionID: version})

	if len(problems) > 0 {
		return errors.Join(problems...)
	}
	s.deps.Logger.Info("deleted representation version",
		"cloudId", cloudID, "schema", schema, "version", version)
	return nil
}

// DeleteRepresentation removes every version of a representation, its
// payloads and its assignments. Persistent versions go too: deleting
// the whole representation is the administrative escape hatch.
func (s *RecordService) DeleteRepresentation(ctx context.Context, cloudID, schema string) error {
	reps, err := s.deps.Store.ListVersions(cloudID, schema)
	if err != nil {
		return err
	}
	if len(reps) == 0 {
		return models.ErrRepresentationNotExists
	}

	var problems []error
	for i := range reps {
		s.deleteVersionPayloads(ctx, &reps[i], &problems)
	}
	if err := s.removeRepresentationAssignments(ctx, cloudID, schema); err != nil {
		problems = append(problems, err)
	}
	if err := s.deps.Store.DeleteRepresentation(cloudID, schema); err != nil {
		problems = append(problems, models.NewStorageError("delete representation", err))
	}

	s.deps.Index.Submit(index.Mutation{
		Op: index.OpDeleteRepresentation, CloudID: cloudID, Schema: schema,
	})

	if len(problems) > 0 {
		return errors.Join(problems...)
	}
	s.deps.Logger.Info("deleted representation", "cloudId", cloudID, "schema", schema)
	return nil
}

// DeleteRecord removes every representation version of a record, all
// payloads and all assignments referring to them. The cascade is best
// effort per item and reports every failure instead of stopping at the
// first one.
func (s *RecordService) DeleteRecord(ctx context.Context, cloudID string) error {
	reps, err := s.deps.Store.ListAllVersions(cloudID)
	if err != nil {
		return err
	}
	if len(reps) == 0 {
		return models.ErrRecordNotExists
	}

	var problems []error
	schemas := make(map[string]bool)
	for i := range reps {
		s.deleteVersionPayloads(ctx, &reps[i], &problems)
		schemas[reps[i].Schema] = true
	}
	for schema := range schemas {
		if err := s.removeRepresentationAssignments(ctx, cloudID, schema); err != nil {
			problems = append(problems, err)
		}
	}
	if err := s.deps.Store.DeleteRecordVersions(cloudID); err != nil {
		problems = append(problems, models.NewStorageError("delete record versions", err))
	}

	s.deps.Index.Submit(index.Mutation{Op: index.OpDeleteRecord, CloudID: cloudID})

	if len(problems) > 0 {
		return errors.Join(problems...)
	}
	s.deps.Logger.Info("deleted record", "cloudId", cloudID)
	return nil
}

// PutContent uploads a file payload into a mutable version. An empty
// file name gets a generated one. Returns the stored file metadata and
// whether the name was new in the version. When expectedMD5 is
// non-empty and does not match the computed checksum the payload is
// rolled back.
func (s *RecordService) PutContent(ctx context.Context, cloudID, schema, version, fileName, mimeType, expectedMD5 string, r io.Reader) (*models.File, bool, error) {
	rep, err := s.deps.Store.GetVersion(cloudID, schema, version)
	if err != nil {
		return nil, false, err
	}
	if rep.Persistent {
		return nil, false, models.ErrCannotModifyPersistentRepresentation
	}

	if fileName == "" {
		fileName = uuid.NewString()
	}

	key, err := content.BuildKey(cloudID, schema, version, fileName)
	if err != nil {
		return nil, false, err
	}

	result, backend, err := s.deps.Content.Put(ctx, key, r)
	if err != nil {
		return nil, false, models.NewStorageError("store file content", err)
	}

	if expectedMD5 != "" && expectedMD5 != result.MD5 {
		if err := s.deps.Content.Delete(ctx, backend, key); err != nil && !errors.Is(err, content.ErrNotFound) {
			s.deps.Logger.Warn("failed to remove mismatched payload",
				"key", key, "error", err)
		}
		return nil, false, models.ErrContentHashMismatch
	}

	file := models.File{
		FileName:      fileName,
		MimeType:      mimeType,
		MD5:           result.MD5,
		ContentLength: result.Length,
		Date:          time.Now().UTC(),
		Storage:       backend,
	}
	isNew, err := s.deps.Store.PutFile(cloudID, schema, version, file)
	if err != nil {
		return nil, false, models.NewStorageError("record file metadata", err)
	}

	s.deps.Logger.Info("stored file content",
		"cloudId", cloudID, "schema", schema, "version", version,
		"file", fileName, "bytes", result.Length, "backend", backend)
	return &file, isNew, nil
}

// GetFile returns the metadata of one file in a version.
func (s *RecordService) GetFile(ctx context.Context, cloudID, schema, version, fileName string) (*models.File, error) {
	rep, err := s.deps.Store.GetVersion(cloudID, schema, version)
	if err != nil {
		return nil, err
	}
	file := rep.File(fileName)
	if file == nil {
		return nil, models.ErrFileNotExists
	}
	return file, nil
}

// GetContent streams a byte range of a file payload to w and returns
// the file's checksum for response headers. start and end are inclusive
// offsets; -1 for end means "to the end of the file". A start beyond
// the stored length fails with models.ErrWrongContentRange.
func (s *RecordService) GetContent(ctx context.Context, cloudID, schema, version, fileName string, start, end int64, w io.Writer) (string, error) {
	file, err := s.GetFile(ctx, cloudID, schema, version, fileName)
	if err != nil {
		return "", err
	}

	if start < 0 {
		start = 0
	}
	if start > 0 && start >= file.ContentLength {
		return "", models.ErrWrongContentRange
	}
	if end >= file.ContentLength {
		end = file.ContentLength - 1
	}

	key, err := content.BuildKey(cloudID, schema, version, fileName)
	if err != nil {
		return "", err
	}
	if err := s.deps.Content.Get(ctx, file.Storage, key, start, end, w); err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return "", models.ErrFileNotExists
		}
		return "", models.NewStorageError("read file content", err)
	}
	return file.MD5, nil
}

// DeleteContent removes a file and its payload from a mutable version.
func (s *RecordService) DeleteContent(ctx context.Context, cloudID, schema, version, fileName string) error {
	rep, err := s.deps.Store.GetVersion(cloudID, schema, version)
	if err != nil {
		return err
	}
	if rep.Persistent {
		return models.ErrCannotModifyPersistentRepresentation
	}

	file := rep.File(fileName)
	if file == nil {
		return models.ErrFileNotExists
	}

	if err := s.deps.Store.RemoveFile(cloudID, schema, version, fileName); err != nil {
		return err
	}

	key, err := content.BuildKey(cloudID, schema, version, fileName)
	if err != nil {
		return err
	}
	if err := s.deps.Content.Delete(ctx, file.Storage, key); err != nil && !errors.Is(err, content.ErrNotFound) {
		return models.NewStorageError("delete file content", err)
	}

	s.deps.Logger.Info("deleted file content",
		"cloudId", cloudID, "schema", schema, "version", version, "file", fileName)
	return nil
}

// deleteVersionPayloads removes every payload of a version. Missing
// payloads are tolerated with a warning so a half-failed earlier delete
// can be retried to completion.
func (s *RecordService) deleteVersionPayloads(ctx context.Context, rep *models.Representation, problems *[]error) {
	for _, f := range rep.Files {
		key, err := content.BuildKey(rep.CloudID, rep.Schema, rep.Version, f.FileName)
		if err != nil {
			*problems = append(*problems, err)
			continue
		}
		err = s.deps.Content.Delete(ctx, f.Storage, key)
		if err == nil {
			continue
		}
		if errors.Is(err, content.ErrNotFound) {
			s.deps.Logger.Warn("payload already gone during delete",
				"cloudId", rep.CloudID, "schema", rep.Schema,
				"version", rep.Version, "file", f.FileName)
			continue
		}
		*problems = append(*problems, models.NewStorageError("delete file content", err))
	}
}

// removeVersionAssignments strips the deleted version from every data
// set pinned to exactly it. Live bindings are untouched: they track the
// latest persistent version and never point at one specific deleted
// version.
func (s *RecordService) removeVersionAssignments(ctx context.Context, cloudID, schema, version string) error {
	dataSets, err := s.deps.Store.DataSetsPinnedTo(cloudID, schema, version)
	if err != nil {
		return models.NewStorageError("collect data set assignments", err)
	}

	var problems []error
	for _, ds := range dataSets {
		if err := s.deps.Store.RemoveAssignment(ds.ProviderID, ds.DataSetID, cloudID, schema); err != nil {
			problems = append(problems, models.NewStorageError("remove data set assignment", err))
			continue
		}
		s.deps.Index.Submit(index.Mutation{
			Op:        index.OpRemoveDataSet,
			VersionID: version,
			DataSet:   store.EncodeDataSetKey(ds.ProviderID, ds.DataSetID),
		})
	}
	return errors.Join(problems...)
}

// removeRepresentationAssignments drops every assignment for the
// representation, pinned to any version or live. Used by the
// representation and record cascades, where the whole representation
// goes and live bindings have nothing left to resolve to. Index
// documents are wiped wholesale by the caller's delete mutation.
func (s *RecordService) removeRepresentationAssignments(ctx context.Context, cloudID, schema string) error {
	dataSets, err := s.deps.Store.DataSetsContaining(cloudID, schema)
	if err != nil {
		return models.NewStorageError("collect data set assignments", err)
	}

	var problems []error
	for _, ds := range dataSets {
		if err := s.deps.Store.RemoveAssignment(ds.ProviderID, ds.DataSetID, cloudID, schema); err != nil {
			problems = append(problems, models.NewStorageError("remove data set assignment", err))
		}
	}
	return errors.Join(problems...)
}

// persistedVersionDataSets collects the data set memberships a freshly
// persisted version's index document carries: the sets pinned to
// exactly this version, plus the live bindings when this version is now
// the latest persistent one and they resolve to it.
func (s *RecordService) persistedVersionDataSets(cloudID, schema, version string) ([]models.CompoundDataSetID, error) {
	dataSets, err := s.deps.Store.DataSetsPinnedTo(cloudID, schema, version)
	if err != nil {
		return nil, err
	}
	latest, err := s.deps.Store.GetLatestPersistentVersion(cloudID, schema)
	if err != nil {
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

// documentFor projects a representation version into its index
// document.
func documentFor(rep *models.Representation, dataSets []models.CompoundDataSetID) *index.Document {
	doc := &index.Document{
		CloudID:      rep.CloudID,
		VersionID:    rep.Version,
		Schema:       rep.Schema,
		ProviderID:   rep.ProviderID,
		CreationDate: rep.CreationDate,
		Persistent:   rep.Persistent,
	}
	for _, ds := range dataSets {
		doc.DataSets = append(doc.DataSets, store.EncodeDataSetKey(ds.ProviderID, ds.DataSetID))
	}
	return doc
}
