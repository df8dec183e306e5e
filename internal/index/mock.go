package index

import (
	"context"
	"sort"
	"sync"
)

// MockClient is an in-memory Client implementation for testing.
type MockClient struct {
	mu sync.Mutex
	// Documents stores documents by version id
	Documents map[string]*Document
	// Err can be set to make all methods return an error
	Err error
}

// NewMockClient creates a new MockClient for testing.
func NewMockClient() *MockClient {
	return &MockClient{Documents: make(map[string]*Document)}
}

func (m *MockClient) EnsureSchema(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

func (m *MockClient) UpsertDocument(ctx context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	stored := *doc
	if existing, ok := m.Documents[doc.VersionID]; ok {
		stored.DataSets = mergeDataSets(existing.DataSets, doc.DataSets)
	} else {
		stored.DataSets = append([]string(nil), doc.DataSets...)
	}
	m.Documents[doc.VersionID] = &stored
	return nil
}

func (m *MockClient) GetDocument(ctx context.Context, versionID string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	doc, ok := m.Documents[versionID]
	if !ok {
		return nil, nil
	}
	copied := *doc
	copied.DataSets = append([]string(nil), doc.DataSets...)
	return &copied, nil
}

func (m *MockClient) DeleteDocument(ctx context.Context, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.Documents, versionID)
	return nil
}

func (m *MockClient) DeleteByRepresentation(ctx context.Context, cloudID, schema string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for id, doc := range m.Documents {
		if doc.CloudID == cloudID && doc.Schema == schema {
			delete(m.Documents, id)
		}
	}
	return nil
}

func (m *MockClient) DeleteByRecord(ctx context.Context, cloudID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for id, doc := range m.Documents {
		if doc.CloudID == cloudID {
			delete(m.Documents, id)
		}
	}
	return nil
}

func (m *MockClient) AddDataSet(ctx context.Context, versionID, dataSet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	doc, ok := m.Documents[versionID]
	if !ok {
		return nil
	}
	doc.DataSets = mergeDataSets(doc.DataSets, []string{dataSet})
	return nil
}

func (m *MockClient) RemoveDataSet(ctx context.Context, versionID, dataSet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	doc, ok := m.Documents[versionID]
	if !ok {
		return nil
	}
	kept := doc.DataSets[:0]
	for _, ds := range doc.DataSets {
		if ds != dataSet {
			kept = append(kept, ds)
		}
	}
	doc.DataSets = kept
	return nil
}

func (m *MockClient) RemoveDataSetEverywhere(ctx context.Context, dataSet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, doc := range m.Documents {
		kept := doc.DataSets[:0]
		for _, ds := range doc.DataSets {
			if ds != dataSet {
				kept = append(kept, ds)
			}
		}
		doc.DataSets = kept
	}
	return nil
}

func (m *MockClient) Search(ctx context.Context, params SearchParams, offset, limit int) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	var matched []Document
	for _, doc := range m.Documents {
		if params.Schema != "" && doc.Schema != params.Schema {
			continue
		}
		if params.ProviderID != "" && doc.ProviderID != params.ProviderID {
			continue
		}
		if params.Persistent != nil && doc.Persistent != *params.Persistent {
			continue
		}
		if params.DataSet != "" && !containsDataSet(doc.DataSets, params.DataSet) {
			continue
		}
		if !params.CreatedAfter.IsZero() && doc.CreationDate.Before(params.CreatedAfter) {
			continue
		}
		if !params.CreatedBefore.IsZero() && doc.CreationDate.After(params.CreatedBefore) {
			continue
		}
		copied := *doc
		copied.DataSets = append([]string(nil), doc.DataSets...)
		matched = append(matched, copied)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreationDate.After(matched[j].CreationDate)
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func containsDataSet(dataSets []string, dataSet string) bool {
	for _, ds := range dataSets {
		if ds == dataSet {
			return true
		}
	}
	return false
}

var _ Client = (*MockClient)(nil)
