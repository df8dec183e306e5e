package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/recstore/internal/content"
	"github.com/kilupskalvis/recstore/internal/identifiers"
	"github.com/kilupskalvis/recstore/internal/index"
	"github.com/kilupskalvis/recstore/internal/models"
	"github.com/kilupskalvis/recstore/internal/store"
)

type env struct {
	Store     *store.Store
	Index     *index.MockClient
	Sync      *index.Synchronizer
	Providers *ProviderService
	Records   *RecordService
	DataSets  *DataSetService
}

// flush waits for all queued index mutations to be applied. The
// synchronizer is unusable afterwards, so call it only at the end of a
// test's mutating phase.
func (e *env) flush() {
	e.Sync.Close()
}

func newEnv(t *testing.T) *env {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { st.Close() })

	client := index.NewMockClient()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sync := index.NewSynchronizer(client, nil, logger, index.SynchronizerConfig{
		Workers: 1, QueueSize: 64,
	})

	// records always exist upstream; providers only when registered
	resolver := &identifiers.StaticResolver{Providers: map[string]bool{}}

	router := content.NewRouter(content.NewInlineStore(st.DB()), nil, 1<<20)
	providers, records, dataSets := New(Dependencies{
		Store:    st,
		Content:  router,
		Resolver: resolver,
		Index:    sync,
		Search:   client,
		Logger:   logger,
	})

	return &env{
		Store:     st,
		Index:     client,
		Sync:      sync,
		Providers: providers,
		Records:   records,
		DataSets:  dataSets,
	}
}

func (e *env) mustProvider(t *testing.T, id string) {
	t.Helper()
	_, err := e.Providers.CreateProvider(context.Background(), id, nil)
	require.NoError(t, err)
}

func (e *env) mustVersion(t *testing.T, cloudID, schema string) *models.Representation {
	t.Helper()
	rep, err := e.Records.CreateRepresentation(context.Background(), cloudID, schema, "provider-1")
	require.NoError(t, err)
	return rep
}

func (e *env) mustFile(t *testing.T, rep *models.Representation, name, payload string) *models.File {
	t.Helper()
	file, _, err := e.Records.PutContent(context.Background(),
		rep.CloudID, rep.Schema, rep.Version, name, "text/plain", "", strings.NewReader(payload))
	require.NoError(t, err)
	return file
}

func (e *env) mustPersist(t *testing.T, rep *models.Representation) *models.Representation {
	t.Helper()
	persisted, err := e.Records.PersistRepresentation(context.Background(),
		rep.CloudID, rep.Schema, rep.Version)
	require.NoError(t, err)
	return persisted
}

// ==================== Representation Lifecycle ====================

func TestCreateRepresentation_RequiresProvider(t *testing.T) {
	e := newEnv(t)

	_, err := e.Records.CreateRepresentation(context.Background(), "cloud-1", "edm", "ghost")
	assert.ErrorIs(t, err, models.ErrProviderNotExists)

	e.mustProvider(t, "provider-1")
	rep := e.mustVersion(t, "cloud-1", "edm")
	assert.False(t, rep.Persistent)
	assert.NotEmpty(t, rep.Version)
}

func TestCreateRepresentation_RequiresRecord(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sync := index.NewSynchronizer(index.NewMockClient(), nil, logger, index.SynchronizerConfig{})
	defer sync.Close()

	_, records, _ := New(Dependencies{
		Store:   st,
		Content: content.NewRouter(content.NewInlineStore(st.DB()), nil, 1<<20),
		Resolver: &identifiers.StaticResolver{
			Records:   map[string]bool{"known": true},
			Providers: nil, // all providers exist
		},
		Index:  sync,
		Logger: logger,
	})

	_, err = records.CreateRepresentation(context.Background(), "unknown", "edm", "provider-1")
	assert.ErrorIs(t, err, models.ErrRecordNotExists)

	_, err = records.CreateRepresentation(context.Background(), "known", "edm", "provider-1")
	assert.NoError(t, err)
}

func TestVersionIDsAreTimeOrdered(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")

	first := e.mustVersion(t, "cloud-1", "edm")
	time.Sleep(2 * time.Millisecond)
	second := e.mustVersion(t, "cloud-1", "edm")

	assert.Less(t, first.Version, second.Version)

	reps, err := e.Records.ListRepresentationVersions(context.Background(), "cloud-1", "edm")
	require.NoError(t, err)
	require.Len(t, reps, 2)
	assert.Equal(t, second.Version, reps[0].Version)
}

// ==================== Content Round Trip ====================

func TestContentRoundTrip(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	rep := e.mustVersion(t, "cloud-1", "edm")

	payload := "the quick brown fox"
	file := e.mustFile(t, rep, "data.txt", payload)
	assert.Equal(t, int64(len(payload)), file.ContentLength)

	var buf bytes.Buffer
	md5sum, err := e.Records.GetContent(context.Background(),
		"cloud-1", "edm", rep.Version, "data.txt", 0, -1, &buf)
	require.NoError(t, err)
	assert.Equal(t, payload, buf.String())
	assert.Equal(t, file.MD5, md5sum)
}

func TestContentRange(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	rep := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, rep, "data.txt", "0123456789")

	var buf bytes.Buffer
	_, err := e.Records.GetContent(context.Background(),
		"cloud-1", "edm", rep.Version, "data.txt", 3, 6, &buf)
	require.NoError(t, err)
	assert.Equal(t, "3456", buf.String())

	// A start beyond the stored length is unsatisfiable
	_, err = e.Records.GetContent(context.Background(),
		"cloud-1", "edm", rep.Version, "data.txt", 10, -1, io.Discard)
	assert.ErrorIs(t, err, models.ErrWrongContentRange)
}

func TestPutContent_GeneratedFileName(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	rep := e.mustVersion(t, "cloud-1", "edm")

	file, isNew, err := e.Records.PutContent(context.Background(),
		"cloud-1", "edm", rep.Version, "", "text/plain", "", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEmpty(t, file.FileName)
}

func TestPutContent_HashMismatchRollsBack(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	rep := e.mustVersion(t, "cloud-1", "edm")

	_, _, err := e.Records.PutContent(context.Background(),
		"cloud-1", "edm", rep.Version, "data.txt", "text/plain",
		"00000000000000000000000000000000", strings.NewReader("payload"))
	assert.ErrorIs(t, err, models.ErrContentHashMismatch)

	// Nothing was recorded
	_, err = e.Records.GetFile(context.Background(), "cloud-1", "edm", rep.Version, "data.txt")
	assert.ErrorIs(t, err, models.ErrFileNotExists)
}

// ==================== Persistence and Immutability ====================

func TestPersist_EmptyVersionRejected(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	rep := e.mustVersion(t, "cloud-1", "edm")

	_, err := e.Records.PersistRepresentation(context.Background(), "cloud-1", "edm", rep.Version)
	assert.ErrorIs(t, err, models.ErrCannotPersistEmptyRepresentation)
}

func TestPersist_MakesVersionImmutable(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	rep := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, rep, "data.txt", "payload")
	e.mustPersist(t, rep)

	ctx := context.Background()

	// No writes of any kind after persist
	_, _, err := e.Records.PutContent(ctx, "cloud-1", "edm", rep.Version,
		"other.txt", "text/plain", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, models.ErrCannotModifyPersistentRepresentation)

	err = e.Records.DeleteContent(ctx, "cloud-1", "edm", rep.Version, "data.txt")
	assert.ErrorIs(t, err, models.ErrCannotModifyPersistentRepresentation)

	_, err = e.Records.PersistRepresentation(ctx, "cloud-1", "edm", rep.Version)
	assert.ErrorIs(t, err, models.ErrCannotModifyPersistentRepresentation)

	err = e.Records.DeleteRepresentationVersion(ctx, "cloud-1", "edm", rep.Version)
	assert.ErrorIs(t, err, models.ErrCannotModifyPersistentRepresentation)
}

func TestGetRepresentation_ResolvesLatestPersistent(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	v1 := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, v1, "a.txt", "one")
	e.mustPersist(t, v1)

	time.Sleep(2 * time.Millisecond)
	v2 := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, v2, "a.txt", "two")

	// v2 is still mutable: v1 remains the visible version
	got, err := e.Records.GetRepresentation(ctx, "cloud-1", "edm")
	require.NoError(t, err)
	assert.Equal(t, v1.Version, got.Version)

	e.mustPersist(t, v2)
	got, err = e.Records.GetRepresentation(ctx, "cloud-1", "edm")
	require.NoError(t, err)
	assert.Equal(t, v2.Version, got.Version)
}

func TestGetRecord_LatestPersistentPerSchema(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	edm := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, edm, "a.txt", "x")
	e.mustPersist(t, edm)
	e.mustVersion(t, "cloud-1", "oai") // never persisted

	record, err := e.Records.GetRecord(ctx, "cloud-1")
	require.NoError(t, err)
	require.Len(t, record.Representations, 1)
	assert.Equal(t, "edm", record.Representations[0].Schema)

	_, err = e.Records.GetRecord(ctx, "nonexistent")
	assert.ErrorIs(t, err, models.ErrRecordNotExists)
}

// ==================== Copy ====================

func TestCopyRepresentation(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	src := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, src, "a.txt", "payload-a")
	e.mustFile(t, src, "b.txt", "payload-b")
	e.mustPersist(t, src)

	dst, err := e.Records.CopyRepresentation(ctx, "cloud-1", "edm", src.Version)
	require.NoError(t, err)
	assert.NotEqual(t, src.Version, dst.Version)
	assert.False(t, dst.Persistent)
	assert.Len(t, dst.Files, 2)

	// The copy has its own payload bytes
	var buf bytes.Buffer
	_, err = e.Records.GetContent(ctx, "cloud-1", "edm", dst.Version, "a.txt", 0, -1, &buf)
	require.NoError(t, err)
	assert.Equal(t, "payload-a", buf.String())

	// And is mutable independently of the source
	_, _, err = e.Records.PutContent(ctx, "cloud-1", "edm", dst.Version,
		"c.txt", "text/plain", "", strings.NewReader("new"))
	assert.NoError(t, err)
}

// ==================== Cascade Deletes ====================

func TestDeleteRecord_CascadeCompleteness(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	rep := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, rep, "a.txt", "payload")
	e.mustPersist(t, rep)

	_, err := e.DataSets.CreateDataSet(ctx, "provider-1", "ds-1", "")
	require.NoError(t, err)
	require.NoError(t, e.DataSets.AddAssignment(ctx, "provider-1", "ds-1", "cloud-1", "edm", ""))

	require.NoError(t, e.Records.DeleteRecord(ctx, "cloud-1"))

	// Metadata gone
	_, err = e.Records.GetRepresentationVersion(ctx, "cloud-1", "edm", rep.Version)
	assert.ErrorIs(t, err, models.ErrVersionNotExists)

	// Assignments gone
	assignments, err := e.Store.ListAssignments("provider-1", "ds-1", "", "", -1)
	require.NoError(t, err)
	assert.Empty(t, assignments)

	// Index documents gone
	e.flush()
	doc, err := e.Index.GetDocument(ctx, rep.Version)
	require.NoError(t, err)
	assert.Nil(t, doc)

	// Deleting again reports the record as missing
	err = e.Records.DeleteRecord(ctx, "cloud-1")
	assert.ErrorIs(t, err, models.ErrRecordNotExists)
}

func TestDeleteRecord_ToleratesMissingPayloads(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	rep := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, rep, "a.txt", "payload")

	// Simulate a half-failed earlier delete by removing the payload
	// behind the service's back
	key := rep.CloudID + "|" + rep.Schema + "|" + rep.Version + "|a.txt"
	_, err := e.Store.DB().Exec(`DELETE FROM content_blobs WHERE object_key = ?`, key)
	require.NoError(t, err)

	// The cascade still completes
	assert.NoError(t, e.Records.DeleteRecord(ctx, "cloud-1"))
}

func TestDeleteRepresentationVersion_RemovesPinnedAssignments(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	rep := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, rep, "a.txt", "payload")

	_, err := e.DataSets.CreateDataSet(ctx, "provider-1", "ds-1", "")
	require.NoError(t, err)
	require.NoError(t, e.DataSets.AddAssignment(ctx, "provider-1", "ds-1", "cloud-1", "edm", rep.Version))

	require.NoError(t, e.Records.DeleteRepresentationVersion(ctx, "cloud-1", "edm", rep.Version))

	assignments, err := e.Store.ListAssignments("provider-1", "ds-1", "", "", -1)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestDeleteRepresentationVersion_KeepsLiveBindings(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	v1 := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, v1, "a.txt", "one")
	e.mustPersist(t, v1)

	_, err := e.DataSets.CreateDataSet(ctx, "provider-1", "ds-1", "")
	require.NoError(t, err)
	require.NoError(t, e.DataSets.AddAssignment(ctx, "provider-1", "ds-1", "cloud-1", "edm", ""))

	// Deleting an unrelated scratch version must not touch the live
	// binding, which keeps resolving to the latest persistent version
	time.Sleep(2 * time.Millisecond)
	v2 := e.mustVersion(t, "cloud-1", "edm")
	require.NoError(t, e.Records.DeleteRepresentationVersion(ctx, "cloud-1", "edm", v2.Version))

	reps, _, err := e.DataSets.ListDataSet(ctx, "provider-1", "ds-1", "", 10)
	require.NoError(t, err)
	require.Len(t, reps, 1)
	assert.Equal(t, v1.Version, reps[0].Version)
}

func TestDeleteRepresentation_RemovesLiveBindings(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	v1 := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, v1, "a.txt", "one")
	e.mustPersist(t, v1)

	_, err := e.DataSets.CreateDataSet(ctx, "provider-1", "ds-1", "")
	require.NoError(t, err)
	require.NoError(t, e.DataSets.AddAssignment(ctx, "provider-1", "ds-1", "cloud-1", "edm", ""))

	// The whole representation goes, so the live binding has nothing
	// left to resolve to and goes with it
	require.NoError(t, e.Records.DeleteRepresentation(ctx, "cloud-1", "edm"))

	assignments, err := e.Store.ListAssignments("provider-1", "ds-1", "", "", -1)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

// ==================== Data Sets ====================

func TestDataSet_RequiresProvider(t *testing.T) {
	e := newEnv(t)

	_, err := e.DataSets.CreateDataSet(context.Background(), "ghost", "ds-1", "")
	assert.ErrorIs(t, err, models.ErrProviderNotExists)
}

func TestAddAssignment_Validation(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	_, err := e.DataSets.CreateDataSet(ctx, "provider-1", "ds-1", "")
	require.NoError(t, err)

	// Representation must have at least one version for a live binding
	err = e.DataSets.AddAssignment(ctx, "provider-1", "ds-1", "cloud-1", "edm", "")
	assert.ErrorIs(t, err, models.ErrRepresentationNotExists)

	rep := e.mustVersion(t, "cloud-1", "edm")

	// A pinned assignment needs the exact version to exist
	err = e.DataSets.AddAssignment(ctx, "provider-1", "ds-1", "cloud-1", "edm", "no-such")
	assert.ErrorIs(t, err, models.ErrVersionNotExists)

	assert.NoError(t, e.DataSets.AddAssignment(ctx, "provider-1", "ds-1", "cloud-1", "edm", rep.Version))

	// Unknown data set
	err = e.DataSets.AddAssignment(ctx, "provider-1", "nope", "cloud-1", "edm", "")
	assert.ErrorIs(t, err, models.ErrDataSetNotExists)
}

func TestListDataSet_LiveBindingTracksNewestPersistent(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	_, err := e.DataSets.CreateDataSet(ctx, "provider-1", "ds-1", "")
	require.NoError(t, err)

	v1 := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, v1, "a.txt", "one")
	e.mustPersist(t, v1)
	require.NoError(t, e.DataSets.AddAssignment(ctx, "provider-1", "ds-1", "cloud-1", "edm", ""))

	reps, _, err := e.DataSets.ListDataSet(ctx, "provider-1", "ds-1", "", 10)
	require.NoError(t, err)
	require.Len(t, reps, 1)
	assert.Equal(t, v1.Version, reps[0].Version)

	// A newer persistent version appears in the data set without any
	// assignment change
	time.Sleep(2 * time.Millisecond)
	v2 := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, v2, "a.txt", "two")
	e.mustPersist(t, v2)

	reps, _, err = e.DataSets.ListDataSet(ctx, "provider-1", "ds-1", "", 10)
	require.NoError(t, err)
	require.Len(t, reps, 1)
	assert.Equal(t, v2.Version, reps[0].Version)
}

func TestListDataSet_PinnedAssignmentStaysPut(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	_, err := e.DataSets.CreateDataSet(ctx, "provider-1", "ds-1", "")
	require.NoError(t, err)

	v1 := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, v1, "a.txt", "one")
	e.mustPersist(t, v1)
	require.NoError(t, e.DataSets.AddAssignment(ctx, "provider-1", "ds-1", "cloud-1", "edm", v1.Version))

	time.Sleep(2 * time.Millisecond)
	v2 := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, v2, "a.txt", "two")
	e.mustPersist(t, v2)

	reps, _, err := e.DataSets.ListDataSet(ctx, "provider-1", "ds-1", "", 10)
	require.NoError(t, err)
	require.Len(t, reps, 1)
	assert.Equal(t, v1.Version, reps[0].Version)
}

func TestListDataSet_PaginationCompleteness(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	_, err := e.DataSets.CreateDataSet(ctx, "provider-1", "ds-1", "")
	require.NoError(t, err)

	clouds := []string{"cloud-a", "cloud-b", "cloud-c", "cloud-d", "cloud-e"}
	for _, cloud := range clouds {
		rep := e.mustVersion(t, cloud, "edm")
		e.mustFile(t, rep, "a.txt", "x")
		e.mustPersist(t, rep)
		require.NoError(t, e.DataSets.AddAssignment(ctx, "provider-1", "ds-1", cloud, "edm", ""))
	}

	var collected []string
	token := ""
	pages := 0
	for {
		reps, next, err := e.DataSets.ListDataSet(ctx, "provider-1", "ds-1", token, 2)
		require.NoError(t, err)
		for _, rep := range reps {
			collected = append(collected, rep.CloudID)
		}
		pages++
		if next == "" {
			break
		}
		token = next
	}

	// Every element exactly once, in order, across 3 pages
	assert.Equal(t, clouds, collected)
	assert.Equal(t, 3, pages)
}

func TestDeleteDataSet_RemovesAssignmentsOnly(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	rep := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, rep, "a.txt", "x")
	e.mustPersist(t, rep)

	_, err := e.DataSets.CreateDataSet(ctx, "provider-1", "ds-1", "")
	require.NoError(t, err)
	require.NoError(t, e.DataSets.AddAssignment(ctx, "provider-1", "ds-1", "cloud-1", "edm", ""))

	require.NoError(t, e.DataSets.DeleteDataSet(ctx, "provider-1", "ds-1"))

	_, err = e.DataSets.GetDataSet(ctx, "provider-1", "ds-1")
	assert.ErrorIs(t, err, models.ErrDataSetNotExists)

	// The representation version survives
	_, err = e.Records.GetRepresentationVersion(ctx, "cloud-1", "edm", rep.Version)
	assert.NoError(t, err)

	// The index no longer lists the data set on the version
	e.flush()
	doc, err := e.Index.GetDocument(ctx, rep.Version)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Empty(t, doc.DataSets)
}

// ==================== Index Projection ====================

func TestIndexProjection_FollowsLifecycle(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	rep := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, rep, "a.txt", "x")

	_, err := e.DataSets.CreateDataSet(ctx, "provider-1", "ds-1", "")
	require.NoError(t, err)
	require.NoError(t, e.DataSets.AddAssignment(ctx, "provider-1", "ds-1", "cloud-1", "edm", rep.Version))

	e.mustPersist(t, rep)
	e.flush()

	doc, err := e.Index.GetDocument(ctx, rep.Version)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.True(t, doc.Persistent)
	assert.Equal(t, "cloud-1", doc.CloudID)
	assert.Contains(t, doc.DataSets, store.EncodeDataSetKey("provider-1", "ds-1"))

	persistent := true
	docs, err := e.Index.Search(ctx, index.SearchParams{
		Schema:     "edm",
		Persistent: &persistent,
	}, 0, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, rep.Version, docs[0].VersionID)
}

func TestIndexProjection_PersistedDocumentMemberships(t *testing.T) {
	e := newEnv(t)
	e.mustProvider(t, "provider-1")
	ctx := context.Background()

	v1 := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, v1, "a.txt", "one")
	time.Sleep(2 * time.Millisecond)
	v2 := e.mustVersion(t, "cloud-1", "edm")
	e.mustFile(t, v2, "a.txt", "two")

	_, err := e.DataSets.CreateDataSet(ctx, "provider-1", "ds-pin", "")
	require.NoError(t, err)
	_, err = e.DataSets.CreateDataSet(ctx, "provider-1", "ds-live", "")
	require.NoError(t, err)
	require.NoError(t, e.DataSets.AddAssignment(ctx, "provider-1", "ds-pin", "cloud-1", "edm", v1.Version))
	require.NoError(t, e.DataSets.AddAssignment(ctx, "provider-1", "ds-live", "cloud-1", "edm", ""))

	e.mustPersist(t, v2)
	e.mustPersist(t, v1)
	e.flush()

	pinKey := store.EncodeDataSetKey("provider-1", "ds-pin")
	liveKey := store.EncodeDataSetKey("provider-1", "ds-live")

	// The newest persistent version carries the live binding; the pin
	// to v1 belongs to v1's document only
	doc, err := e.Index.GetDocument(ctx, v2.Version)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Contains(t, doc.DataSets, liveKey)
	assert.NotContains(t, doc.DataSets, pinKey)

	// v1 is not the newest persistent version, so its document lists
	// only the assignment pinned to it
	doc, err = e.Index.GetDocument(ctx, v1.Version)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Contains(t, doc.DataSets, pinKey)
	assert.NotContains(t, doc.DataSets, liveKey)
}

// ==================== Providers ====================

func TestProviderPagination(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, id := range []string{"p-a", "p-b", "p-c"} {
		e.mustProvider(t, id)
	}

	page1, next, err := e.Providers.ListProviders(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, next)

	page2, next, err := e.Providers.ListProviders(ctx, next, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Empty(t, next)
	assert.Equal(t, "p-c", page2[0].ID)
}
