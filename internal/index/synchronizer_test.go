package index

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func testDocument(versionID string) *Document {
	return &Document{
		CloudID:      "cloud-1",
		VersionID:    versionID,
		Schema:       "edm",
		ProviderID:   "provider-1",
		CreationDate: time.Now().UTC(),
		Persistent:   true,
	}
}

// ==================== Journal Tests ====================

func TestJournal_AppendReplay(t *testing.T) {
	j := newTestJournal(t)

	require.NoError(t, j.Append(Mutation{Op: OpDeleteVersion, VersionID: "v-001"}))
	require.NoError(t, j.Append(Mutation{Op: OpDeleteRecord, CloudID: "cloud-1"}))

	n, err := j.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var seen []string
	replayed, err := j.Replay(func(m Mutation) error {
		seen = append(seen, m.Op)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, replayed)
	// Submission order is preserved
	assert.Equal(t, []string{OpDeleteVersion, OpDeleteRecord}, seen)

	n, err = j.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestJournal_ReplayStopsAtFirstFailure(t *testing.T) {
	j := newTestJournal(t)

	require.NoError(t, j.Append(Mutation{Op: OpDeleteVersion, VersionID: "v-001"}))
	require.NoError(t, j.Append(Mutation{Op: OpDeleteVersion, VersionID: "v-002"}))
	require.NoError(t, j.Append(Mutation{Op: OpDeleteVersion, VersionID: "v-003"}))

	calls := 0
	replayed, err := j.Replay(func(m Mutation) error {
		calls++
		if m.VersionID == "v-002" {
			return errors.New("index down")
		}
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, 1, replayed)
	assert.Equal(t, 2, calls)

	// The failed mutation and everything after it stay journaled
	n, err := j.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// ==================== Synchronizer Tests ====================

func TestSynchronizer_AppliesMutations(t *testing.T) {
	client := NewMockClient()
	s := NewSynchronizer(client, nil, testLogger(), SynchronizerConfig{Workers: 2, QueueSize: 16})

	s.Submit(Mutation{Op: OpUpsert, Document: testDocument("v-001")})
	s.Submit(Mutation{Op: OpUpsert, Document: testDocument("v-002")})
	s.Submit(Mutation{Op: OpAddDataSet, VersionID: "v-001", DataSet: "provider-1\nds-1"})
	s.Close()

	doc, err := client.GetDocument(context.Background(), "v-001")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, []string{"provider-1\nds-1"}, doc.DataSets)

	doc, err = client.GetDocument(context.Background(), "v-002")
	require.NoError(t, err)
	assert.NotNil(t, doc)
}

func TestSynchronizer_DeleteFanout(t *testing.T) {
	client := NewMockClient()
	s := NewSynchronizer(client, nil, testLogger(), SynchronizerConfig{Workers: 1, QueueSize: 16})

	s.Submit(Mutation{Op: OpUpsert, Document: testDocument("v-001")})
	s.Submit(Mutation{Op: OpUpsert, Document: testDocument("v-002")})
	s.Submit(Mutation{Op: OpDeleteRecord, CloudID: "cloud-1"})
	s.Close()

	assert.Empty(t, client.Documents)
}

func TestSynchronizer_FailuresAreJournaledAndSwept(t *testing.T) {
	client := NewMockClient()
	client.Err = errors.New("index down")
	j := newTestJournal(t)

	s := NewSynchronizer(client, j, testLogger(), SynchronizerConfig{
		Workers: 1, QueueSize: 16,
		SweepInterval: time.Hour, // sweep manually
	})
	s.Submit(Mutation{Op: OpUpsert, Document: testDocument("v-001")})
	s.Close()

	// The failed mutation landed in the journal, not in the index
	n, err := j.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, client.Documents)

	// Index back up: sweep replays the journal
	client.Err = nil
	s2 := NewSynchronizer(client, j, testLogger(), SynchronizerConfig{
		Workers: 1, QueueSize: 16, SweepInterval: time.Hour,
	})
	s2.Sweep()
	s2.Close()

	n, err = j.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	doc, err := client.GetDocument(context.Background(), "v-001")
	require.NoError(t, err)
	assert.NotNil(t, doc)
}

func TestSynchronizer_FullQueueSpillsToJournal(t *testing.T) {
	client := NewMockClient()
	j := newTestJournal(t)

	// Zero-ish queue and no workers pulling yet is hard to arrange
	// deterministically; instead use a closed-over blocked client.
	blocked := make(chan struct{})
	slow := &blockingClient{MockClient: client, release: blocked}
	s := NewSynchronizer(slow, j, testLogger(), SynchronizerConfig{
		Workers: 1, QueueSize: 1, SweepInterval: time.Hour,
	})

	// First fills the worker, second fills the queue, third spills
	s.Submit(Mutation{Op: OpUpsert, Document: testDocument("v-001")})
	s.Submit(Mutation{Op: OpUpsert, Document: testDocument("v-002")})
	for i := 0; i < 50; i++ {
		s.Submit(Mutation{Op: OpUpsert, Document: testDocument("v-overflow")})
	}

	n, err := j.Len()
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	close(blocked)
	s.Close()
}

func TestSynchronizer_SubmitAfterCloseJournals(t *testing.T) {
	client := NewMockClient()
	j := newTestJournal(t)

	s := NewSynchronizer(client, j, testLogger(), SynchronizerConfig{
		Workers: 1, QueueSize: 16, SweepInterval: time.Hour,
	})
	s.Close()

	// A late submission must not panic; it lands in the journal for the
	// next sweep instead.
	require.NotPanics(t, func() {
		s.Submit(Mutation{Op: OpUpsert, Document: testDocument("v-late")})
	})

	n, err := j.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, client.Documents)
}

// blockingClient delays the first upsert until released.
type blockingClient struct {
	*MockClient
	release chan struct{}
}

func (b *blockingClient) UpsertDocument(ctx context.Context, doc *Document) error {
	<-b.release
	return b.MockClient.UpsertDocument(ctx, doc)
}

// ==================== Mock Client Tests ====================

func TestMockClient_SearchFilters(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	persistent := testDocument("v-001")
	mutable := testDocument("v-002")
	mutable.Persistent = false
	mutable.Schema = "oai"
	require.NoError(t, client.UpsertDocument(ctx, persistent))
	require.NoError(t, client.UpsertDocument(ctx, mutable))

	docs, err := client.Search(ctx, SearchParams{Schema: "edm"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "v-001", docs[0].VersionID)

	wantPersistent := false
	docs, err = client.Search(ctx, SearchParams{Persistent: &wantPersistent}, 0, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "v-002", docs[0].VersionID)
}

func TestMockClient_UpsertMergesDataSets(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	doc := testDocument("v-001")
	doc.DataSets = []string{"a"}
	require.NoError(t, client.UpsertDocument(ctx, doc))

	again := testDocument("v-001")
	again.DataSets = []string{"b", "a"}
	require.NoError(t, client.UpsertDocument(ctx, again))

	got, err := client.GetDocument(ctx, "v-001")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, got.DataSets)
}
